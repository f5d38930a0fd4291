package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MediaFetcher 下载一个 URL 指向的二进制内容。
// 独立成接口便于在测试中替换，也把超时策略集中到一处。
type MediaFetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

type httpFetcher struct {
	client *http.Client
}

// NewMediaFetcher 创建一个基于 HTTP 的下载器。
// 每次调用通过 context 附带独立的超时：视频和封面的超时预算不同。
func NewMediaFetcher() MediaFetcher {
	return &httpFetcher{client: &http.Client{}}
}

// Fetch 下载 url 的内容，超时或非 200 状态都视为失败。
func (f *httpFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned non-200 status: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read media body: %w", err)
	}
	return data, nil
}
