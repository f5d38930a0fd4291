// Package wechat 提供了与微信网关交互的客户端。
// 网关负责真正的消息收发，本包只是薄的 I/O 封装：
// 通过 HTTP 发送消息，通过 WebSocket 接收入站事件。
package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cogvideo-bot-go/internal/config"
)

// Transport 定义了发送消息所需的操作，便于在测试中替换。
type Transport interface {
	// SendText 向 fromWxid 所在聊天发送一条文本消息，并 @ 指定用户。
	SendText(ctx context.Context, fromWxid, content string, at []string) error
	// SendVideo 发送一条视频消息，video/cover 为 base64 编码内容，cover 可为空。
	SendVideo(ctx context.Context, fromWxid, video, cover string) error
}

type client struct {
	cfg  config.WechatConfig
	http *http.Client
}

// NewClient 创建一个新的网关客户端。
func NewClient(cfg config.WechatConfig) Transport {
	return &client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type sendTextRequest struct {
	To      string   `json:"to"`
	Content string   `json:"content"`
	At      []string `json:"at,omitempty"`
}

type sendVideoRequest struct {
	To    string `json:"to"`
	Video string `json:"video"`
	Image string `json:"image,omitempty"`
}

// SendText 调用网关的文本发送接口。
func (c *client) SendText(ctx context.Context, fromWxid, content string, at []string) error {
	return c.post(ctx, "/message/sendText", sendTextRequest{
		To:      fromWxid,
		Content: content,
		At:      at,
	})
}

// SendVideo 调用网关的视频发送接口。视频以 base64 形式传递，
// 封面为空时网关自行截取首帧。
func (c *client) SendVideo(ctx context.Context, fromWxid, video, cover string) error {
	return c.post(ctx, "/message/sendVideo", sendVideoRequest{
		To:    fromWxid,
		Video: video,
		Image: cover,
	})
}

func (c *client) post(ctx context.Context, path string, body interface{}) error {
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+path, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}
	return nil
}
