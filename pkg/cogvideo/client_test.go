package cogvideo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cogvideo-bot-go/internal/config"
	"cogvideo-bot-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.CogVideoConfig {
	return config.CogVideoConfig{
		APIKey:    "test-key",
		BaseURL:   baseURL,
		Model:     "cogvideox-2",
		WithAudio: true,
		FPS:       30,
	}
}

func TestGenerateFromText(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/videos/generations", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":          "task-1",
			"request_id":  "req-1",
			"task_status": "PROCESSING",
		})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	task, err := client.GenerateFromText(context.Background(), "a cat", "1280x720")
	require.NoError(t, err)

	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, "req-1", task.RequestID)
	assert.Equal(t, model.TaskStatusProcessing, task.Status)

	assert.Equal(t, "cogvideox-2", gotBody["model"])
	assert.Equal(t, "a cat", gotBody["prompt"])
	assert.Equal(t, "quality", gotBody["quality"], "文生视频走高质量档")
	assert.Equal(t, "1280x720", gotBody["size"])
	assert.Equal(t, float64(30), gotBody["fps"])
	assert.Equal(t, true, gotBody["with_audio"])
	_, hasImage := gotBody["image_url"]
	assert.False(t, hasImage)
}

func TestGenerateFromImage(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":          "task-2",
			"task_status": "PROCESSING",
		})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	task, err := client.GenerateFromImage(context.Background(), "data:image/png;base64,xxx", "让它动起来", "1920x1080")
	require.NoError(t, err)

	assert.Equal(t, "task-2", task.ID)
	assert.Equal(t, "data:image/png;base64,xxx", gotBody["image_url"])
	assert.Equal(t, "speed", gotBody["quality"], "图生视频走速度档")
}

func TestRetrieveResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/async-result/task-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":          "task-1",
			"task_status": "SUCCESS",
			"video_result": []map[string]string{
				{"url": "http://cdn/v.mp4", "cover_image_url": "http://cdn/c.jpg"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	task, err := client.RetrieveResult(context.Background(), "task-1")
	require.NoError(t, err)

	assert.Equal(t, model.TaskStatusSuccess, task.Status)
	result, ok := task.FirstResult()
	require.True(t, ok)
	assert.Equal(t, "http://cdn/v.mp4", result.URL)
	assert.Equal(t, "http://cdn/c.jpg", result.CoverImageURL)
}

func TestNon200IsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	_, err := client.RetrieveResult(context.Background(), "task-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-200")
}
