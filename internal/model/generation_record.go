package model

import "time"

// 生成方式。
const (
	GenerationKindText  = "text"
	GenerationKindImage = "image"
)

// 记录的终态（在远端状态之外补充投递侧的结果）。
const (
	RecordStatusProcessing = "PROCESSING"
	RecordStatusDelivered  = "DELIVERED"
	// 远端生成成功，但二进制投递失败，只把 URL 发给了用户。
	RecordStatusFallback = "URL_FALLBACK"
	RecordStatusFailed   = "FAILED"
	RecordStatusTimeout  = "TIMEOUT"
)

// GenerationRecord 是一次被接受的视频生成请求的持久化记录，
// 供管理接口回溯查询。会话状态本身不落库。
type GenerationRecord struct {
	ID         uint   `gorm:"primarykey" json:"id"`
	TaskID     string `gorm:"type:varchar(64);uniqueIndex" json:"task_id"`
	RequestID  string `gorm:"type:varchar(64)" json:"request_id"`
	FromWxid   string `gorm:"type:varchar(64);index" json:"from_wxid"`
	SenderWxid string `gorm:"type:varchar(64);index" json:"sender_wxid"`
	Kind       string `gorm:"type:varchar(16)" json:"kind"`
	Prompt     string `gorm:"type:text" json:"prompt"`
	Size       string `gorm:"type:varchar(16)" json:"size"`
	Ratio      string `gorm:"type:varchar(16)" json:"ratio"`
	Status     string `gorm:"type:varchar(16);index" json:"status"`
	VideoURL   string `gorm:"type:varchar(512)" json:"video_url"`
	CoverURL   string `gorm:"type:varchar(512)" json:"cover_url"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定 GORM 使用的表名。
func (GenerationRecord) TableName() string {
	return "generation_records"
}
