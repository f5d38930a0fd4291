package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"cogvideo-bot-go/internal/config"
	"cogvideo-bot-go/internal/model"
	"cogvideo-bot-go/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testChat   = "group1"
	testSender = "user1"
	testTaskID = "task-42"
)

// fakeProvider 按脚本逐次返回查询结果，超出脚本后重复最后一步。
type fakeProvider struct {
	mu    sync.Mutex
	steps []retrieveStep
	calls int
}

type retrieveStep struct {
	task *model.VideoTask
	err  error
}

func (f *fakeProvider) GenerateFromText(ctx context.Context, prompt, size string) (*model.VideoTask, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) GenerateFromImage(ctx context.Context, imageURL, prompt, size string) (*model.VideoTask, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) RetrieveResult(ctx context.Context, taskID string) (*model.VideoTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	f.calls++
	step := f.steps[idx]
	return step.task, step.err
}

type sentText struct {
	to      string
	content string
	at      []string
}

type sentVideo struct {
	to    string
	video string
	cover string
}

type fakeTransport struct {
	mu      sync.Mutex
	texts   []sentText
	videos  []sentVideo
	sendErr error
}

func (f *fakeTransport) SendText(ctx context.Context, fromWxid, content string, at []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, sentText{to: fromWxid, content: content, at: at})
	return nil
}

func (f *fakeTransport) SendVideo(ctx context.Context, fromWxid, video, cover string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.videos = append(f.videos, sentVideo{to: fromWxid, video: video, cover: cover})
	return nil
}

type fakeFetcher struct {
	data map[string][]byte
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	data, ok := f.data[url]
	if !ok {
		return nil, errors.New("unreachable url")
	}
	return data, nil
}

type recordedOutcome struct {
	taskID   string
	status   string
	videoURL string
	coverURL string
}

type fakeRecords struct {
	mu       sync.Mutex
	outcomes []recordedOutcome
}

func (f *fakeRecords) Create(record *model.GenerationRecord) error { return nil }

func (f *fakeRecords) UpdateOutcome(taskID, status, videoURL, coverURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, recordedOutcome{taskID, status, videoURL, coverURL})
	return nil
}

func (f *fakeRecords) FindRecent(limit int) ([]model.GenerationRecord, error) { return nil, nil }

func testBotConfig(maxAttempts int) config.BotConfig {
	return config.BotConfig{
		PollIntervalSeconds: 0,
		PollMaxAttempts:     maxAttempts,
		VideoTimeoutSeconds: 1,
		CoverTimeoutSeconds: 1,
	}
}

func newTestPoller(provider *fakeProvider, transport *fakeTransport, fetcher *fakeFetcher, records *fakeRecords, maxAttempts int) (*Poller, *session.Store) {
	sessions := session.NewStore(time.Hour)
	sessions.RecordSubmission(session.Key{FromWxid: testChat, SenderWxid: testSender}, testTaskID)
	return NewPoller(provider, transport, fetcher, sessions, records, testBotConfig(maxAttempts)), sessions
}

func successTask(videoURL, coverURL string) *model.VideoTask {
	return &model.VideoTask{
		ID:     testTaskID,
		Status: model.TaskStatusSuccess,
		Results: []model.VideoResult{
			{URL: videoURL, CoverImageURL: coverURL},
		},
	}
}

func TestWatchDeliversVideoWithCover(t *testing.T) {
	provider := &fakeProvider{steps: []retrieveStep{
		{task: &model.VideoTask{ID: testTaskID, Status: model.TaskStatusProcessing}},
		{task: successTask("http://cdn/video.mp4", "http://cdn/cover.jpg")},
	}}
	transport := &fakeTransport{}
	fetcher := &fakeFetcher{data: map[string][]byte{
		"http://cdn/video.mp4": []byte("video-bytes"),
		"http://cdn/cover.jpg": []byte("cover-bytes"),
	}}
	records := &fakeRecords{}
	poller, sessions := newTestPoller(provider, transport, fetcher, records, 10)

	poller.Watch(testChat, testSender, testTaskID, model.GenerationKindText)

	require.Len(t, transport.videos, 1)
	assert.Equal(t, testChat, transport.videos[0].to)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("video-bytes")), transport.videos[0].video)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("cover-bytes")), transport.videos[0].cover)
	assert.Empty(t, transport.texts)

	require.Len(t, records.outcomes, 1)
	assert.Equal(t, model.RecordStatusDelivered, records.outcomes[0].status)

	st := sessions.GetOrCreate(session.Key{FromWxid: testChat, SenderWxid: testSender})
	assert.Equal(t, model.TaskStatusSuccess, st.Status)
}

func TestWatchDeliversVideoWithoutCoverWhenCoverUnreachable(t *testing.T) {
	provider := &fakeProvider{steps: []retrieveStep{
		{task: successTask("http://cdn/video.mp4", "http://cdn/cover.jpg")},
	}}
	transport := &fakeTransport{}
	fetcher := &fakeFetcher{data: map[string][]byte{
		"http://cdn/video.mp4": []byte("video-bytes"),
		// 封面地址不可达
	}}
	records := &fakeRecords{}
	poller, _ := newTestPoller(provider, transport, fetcher, records, 10)

	poller.Watch(testChat, testSender, testTaskID, model.GenerationKindText)

	require.Len(t, transport.videos, 1)
	assert.Empty(t, transport.videos[0].cover, "封面失败时应只发视频")
	require.Len(t, records.outcomes, 1)
	assert.Equal(t, model.RecordStatusDelivered, records.outcomes[0].status)
}

func TestWatchFallsBackToURLsWhenVideoUnreachable(t *testing.T) {
	provider := &fakeProvider{steps: []retrieveStep{
		{task: successTask("http://cdn/video.mp4", "http://cdn/cover.jpg")},
	}}
	transport := &fakeTransport{}
	fetcher := &fakeFetcher{data: map[string][]byte{}}
	records := &fakeRecords{}
	poller, _ := newTestPoller(provider, transport, fetcher, records, 10)

	poller.Watch(testChat, testSender, testTaskID, model.GenerationKindText)

	assert.Empty(t, transport.videos)
	require.Len(t, transport.texts, 1)
	assert.Contains(t, transport.texts[0].content, "下载失败")
	assert.Contains(t, transport.texts[0].content, "http://cdn/video.mp4")
	require.Len(t, records.outcomes, 1)
	assert.Equal(t, model.RecordStatusFallback, records.outcomes[0].status)
}

func TestWatchNotifiesOnRemoteFailure(t *testing.T) {
	provider := &fakeProvider{steps: []retrieveStep{
		{task: &model.VideoTask{ID: testTaskID, Status: model.TaskStatusFail}},
	}}
	transport := &fakeTransport{}
	records := &fakeRecords{}
	poller, _ := newTestPoller(provider, transport, &fakeFetcher{}, records, 10)

	poller.Watch(testChat, testSender, testTaskID, model.GenerationKindText)

	require.Len(t, transport.texts, 1)
	assert.Contains(t, transport.texts[0].content, "生成失败")
	assert.Contains(t, transport.texts[0].content, testTaskID)
	assert.Equal(t, 1, provider.calls, "到达终态后不再轮询")
	require.Len(t, records.outcomes, 1)
	assert.Equal(t, model.RecordStatusFailed, records.outcomes[0].status)
}

func TestWatchStopsOnPollError(t *testing.T) {
	provider := &fakeProvider{steps: []retrieveStep{
		{err: errors.New("connection refused")},
	}}
	transport := &fakeTransport{}
	records := &fakeRecords{}
	poller, _ := newTestPoller(provider, transport, &fakeFetcher{}, records, 10)

	poller.Watch(testChat, testSender, testTaskID, model.GenerationKindText)

	assert.Equal(t, 1, provider.calls, "查询失败立即终止，不重试")
	require.Len(t, transport.texts, 1)
	assert.Contains(t, transport.texts[0].content, "查询失败")
}

func TestWatchTimesOutAfterAttemptBudget(t *testing.T) {
	provider := &fakeProvider{steps: []retrieveStep{
		{task: &model.VideoTask{ID: testTaskID, Status: model.TaskStatusProcessing}},
	}}
	transport := &fakeTransport{}
	records := &fakeRecords{}
	poller, _ := newTestPoller(provider, transport, &fakeFetcher{}, records, 3)

	poller.Watch(testChat, testSender, testTaskID, model.GenerationKindText)

	assert.Equal(t, 3, provider.calls)

	timeoutMsgs := 0
	for _, msg := range transport.texts {
		if strings.Contains(msg.content, "处理超时") {
			timeoutMsgs++
			assert.Contains(t, msg.content, testTaskID, "超时消息必须带任务 ID")
		}
	}
	assert.Equal(t, 1, timeoutMsgs, "超时消息恰好发送一次")
	require.Len(t, records.outcomes, 1)
	assert.Equal(t, model.RecordStatusTimeout, records.outcomes[0].status)
}

func TestWatchNotifiesWhenSendVideoFails(t *testing.T) {
	provider := &fakeProvider{steps: []retrieveStep{
		{task: successTask("http://cdn/video.mp4", "")},
	}}
	transport := &fakeTransport{sendErr: errors.New("gateway down")}
	fetcher := &fakeFetcher{data: map[string][]byte{
		"http://cdn/video.mp4": []byte("video-bytes"),
	}}
	records := &fakeRecords{}
	poller, _ := newTestPoller(provider, transport, fetcher, records, 10)

	poller.Watch(testChat, testSender, testTaskID, model.GenerationKindText)

	require.Len(t, transport.texts, 1)
	assert.Contains(t, transport.texts[0].content, "发送失败")
	require.Len(t, records.outcomes, 1)
	assert.Equal(t, model.RecordStatusFallback, records.outcomes[0].status)
}

func TestWatchDoesNotTouchSupersededSession(t *testing.T) {
	provider := &fakeProvider{steps: []retrieveStep{
		{task: successTask("http://cdn/video.mp4", "")},
	}}
	transport := &fakeTransport{}
	fetcher := &fakeFetcher{data: map[string][]byte{
		"http://cdn/video.mp4": []byte("video-bytes"),
	}}
	records := &fakeRecords{}
	poller, sessions := newTestPoller(provider, transport, fetcher, records, 10)

	// 用户又提交了一个新任务，旧任务的轮询器照常跑完。
	key := session.Key{FromWxid: testChat, SenderWxid: testSender}
	sessions.RecordSubmission(key, "task-43")

	poller.Watch(testChat, testSender, testTaskID, model.GenerationKindText)

	// 旧任务的视频仍然送达。
	require.Len(t, transport.videos, 1)
	// 但会话状态仍属于新任务。
	st := sessions.GetOrCreate(key)
	assert.Equal(t, "task-43", st.TaskID)
	assert.Equal(t, model.TaskStatusProcessing, st.Status)
}
