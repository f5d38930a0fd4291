// Package model 定义了应用的核心数据结构。
package model

// 消息类型，与网关事件帧中的 type 字段对应。
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// Message 表示一条从微信网关收到的入站消息。
// FromWxid 是消息所在的聊天（个人或群），SenderWxid 是实际发送者。
type Message struct {
	Type       string `json:"type"`
	FromWxid   string `json:"from_wxid"`
	SenderWxid string `json:"sender_wxid"`
	// 文本消息时为正文；图片消息时为图片内容（base64 或网关侧媒体 ID），
	// 核心逻辑只把它当作不透明句柄。
	Content string `json:"content"`
}
