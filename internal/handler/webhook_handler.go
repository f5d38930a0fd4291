// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"net/http"

	"cogvideo-bot-go/internal/model"
	"cogvideo-bot-go/internal/service"

	"github.com/gin-gonic/gin"
)

// WebhookHandler 接收网关以 HTTP 回调方式推送的入站消息。
// 这是 WebSocket 事件通道之外的备用投递路径。
type WebhookHandler struct {
	videoService service.VideoService
}

// NewWebhookHandler 创建一个新的 WebhookHandler。
func NewWebhookHandler(videoService service.VideoService) *WebhookHandler {
	return &WebhookHandler{videoService: videoService}
}

// ReceiveMessage 处理 POST /webhook/message。
// 消息在后台处理，回调立即返回，避免网关因慢命令超时重推。
func (h *WebhookHandler) ReceiveMessage(c *gin.Context) {
	var msg model.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无法解析消息"})
		return
	}

	go h.videoService.HandleMessage(context.Background(), msg)

	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
