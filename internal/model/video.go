package model

// 视频生成任务状态，取值与智谱 CogVideoX 接口保持一致。
const (
	TaskStatusProcessing = "PROCESSING"
	TaskStatusSuccess    = "SUCCESS"
	TaskStatusFail       = "FAIL"
)

// VideoResult 是一条生成结果，包含视频地址与可选的封面图地址。
type VideoResult struct {
	URL           string `json:"url"`
	CoverImageURL string `json:"cover_image_url"`
}

// VideoTask 表示远端的一个视频生成任务（瞬态，不落库）。
type VideoTask struct {
	ID        string        `json:"id"`
	RequestID string        `json:"request_id"`
	Status    string        `json:"task_status"`
	Results   []VideoResult `json:"video_result"`
}

// FirstResult 返回第一条生成结果，没有结果时返回 false。
func (t *VideoTask) FirstResult() (VideoResult, bool) {
	if len(t.Results) == 0 {
		return VideoResult{}, false
	}
	return t.Results[0], true
}
