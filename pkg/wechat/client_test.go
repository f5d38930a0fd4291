package wechat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cogvideo-bot-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendText(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/message/sendText", r.URL.Path)
		assert.Equal(t, "Bearer gw-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(config.WechatConfig{BaseURL: server.URL, Token: "gw-token"})
	err := client.SendText(context.Background(), "group1", "\n你好", []string{"user1"})
	require.NoError(t, err)

	assert.Equal(t, "group1", gotBody["to"])
	assert.Equal(t, "\n你好", gotBody["content"])
	assert.Equal(t, []interface{}{"user1"}, gotBody["at"])
}

func TestSendVideoOmitsEmptyCover(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/message/sendVideo", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(config.WechatConfig{BaseURL: server.URL})
	err := client.SendVideo(context.Background(), "group1", "dmlkZW8=", "")
	require.NoError(t, err)

	assert.Equal(t, "dmlkZW8=", gotBody["video"])
	_, hasCover := gotBody["image"]
	assert.False(t, hasCover, "空封面不应出现在请求体中")
}

func TestSendTextGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(config.WechatConfig{BaseURL: server.URL})
	err := client.SendText(context.Background(), "group1", "hi", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-200")
}
