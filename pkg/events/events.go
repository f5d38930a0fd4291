// Package events 定义了在服务边界之间传递的事件结构。
package events

// GenerationEvent 是一次视频生成任务到达终态时产生的事件，
// 通过 Kafka 发给下游的统计/审计消费者。
type GenerationEvent struct {
	TaskID     string `json:"task_id"`
	FromWxid   string `json:"from_wxid"`
	SenderWxid string `json:"sender_wxid"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	VideoURL   string `json:"video_url,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}
