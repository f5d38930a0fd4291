// Package cogvideo 提供了智谱 CogVideoX 视频生成接口的客户端。
package cogvideo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cogvideo-bot-go/internal/config"
	"cogvideo-bot-go/internal/model"
)

// 生成质量档位。文生视频走高质量档，图生视频走速度档，与原插件一致。
const (
	qualityQuality = "quality"
	qualitySpeed   = "speed"
)

// Client 定义了视频生成服务的接口。
type Client interface {
	// GenerateFromText 提交一个文生视频任务，立即返回任务引用。
	GenerateFromText(ctx context.Context, prompt, size string) (*model.VideoTask, error)
	// GenerateFromImage 提交一个图生视频任务，imageURL 为图片内容或地址。
	GenerateFromImage(ctx context.Context, imageURL, prompt, size string) (*model.VideoTask, error)
	// RetrieveResult 查询任务的当前状态与结果。
	RetrieveResult(ctx context.Context, taskID string) (*model.VideoTask, error)
}

type zhipuClient struct {
	cfg    config.CogVideoConfig
	client *http.Client
}

// NewClient 创建一个新的 CogVideoX 客户端。
func NewClient(cfg config.CogVideoConfig) Client {
	return &zhipuClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type generationRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	ImageURL  string `json:"image_url,omitempty"`
	Quality   string `json:"quality"`
	WithAudio bool   `json:"with_audio"`
	Size      string `json:"size"`
	FPS       int    `json:"fps"`
}

// GenerateFromText 调用文生视频接口。
func (c *zhipuClient) GenerateFromText(ctx context.Context, prompt, size string) (*model.VideoTask, error) {
	return c.generate(ctx, generationRequest{
		Model:     c.cfg.Model,
		Prompt:    prompt,
		Quality:   qualityQuality,
		WithAudio: c.cfg.WithAudio,
		Size:      size,
		FPS:       c.cfg.FPS,
	})
}

// GenerateFromImage 调用图生视频接口。
func (c *zhipuClient) GenerateFromImage(ctx context.Context, imageURL, prompt, size string) (*model.VideoTask, error) {
	return c.generate(ctx, generationRequest{
		Model:     c.cfg.Model,
		Prompt:    prompt,
		ImageURL:  imageURL,
		Quality:   qualitySpeed,
		WithAudio: c.cfg.WithAudio,
		Size:      size,
		FPS:       c.cfg.FPS,
	})
}

func (c *zhipuClient) generate(ctx context.Context, reqBody generationRequest) (*model.VideoTask, error) {
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/videos/generations", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	return c.do(req)
}

// RetrieveResult 查询异步任务结果。
func (c *zhipuClient) RetrieveResult(ctx context.Context, taskID string) (*model.VideoTask, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.BaseURL+"/async-result/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieve request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	return c.do(req)
}

func (c *zhipuClient) do(req *http.Request) (*model.VideoTask, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call cogvideo api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cogvideo api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var task model.VideoTask
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("failed to decode cogvideo response: %w", err)
	}
	return &task, nil
}
