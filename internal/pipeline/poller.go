// Package pipeline 实现了视频生成任务的后台轮询与结果投递。
package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"cogvideo-bot-go/internal/config"
	"cogvideo-bot-go/internal/model"
	"cogvideo-bot-go/internal/repository"
	"cogvideo-bot-go/internal/session"
	"cogvideo-bot-go/pkg/cogvideo"
	"cogvideo-bot-go/pkg/events"
	"cogvideo-bot-go/pkg/kafka"
	"cogvideo-bot-go/pkg/log"
	"cogvideo-bot-go/pkg/storage"
	"cogvideo-bot-go/pkg/wechat"
)

// Poller 是每个已提交任务的后台轮询器与投递管道。
// 每个被接受的提交对应一次独立 goroutine 中的 Watch 调用；
// 轮询不可取消，只会因到达终态或尝试预算耗尽而结束。
type Poller struct {
	provider  cogvideo.Client
	transport wechat.Transport
	fetcher   MediaFetcher
	sessions  *session.Store
	records   repository.GenerationRepository
	cfg       config.BotConfig
}

// NewPoller 创建一个新的 Poller 实例。
func NewPoller(
	provider cogvideo.Client,
	transport wechat.Transport,
	fetcher MediaFetcher,
	sessions *session.Store,
	records repository.GenerationRepository,
	cfg config.BotConfig,
) *Poller {
	return &Poller{
		provider:  provider,
		transport: transport,
		fetcher:   fetcher,
		sessions:  sessions,
		records:   records,
		cfg:       cfg,
	}
}

// Watch 以固定间隔轮询任务状态，直到终态或预算耗尽，然后投递结果。
// 新提交覆盖会话中的任务引用后，旧任务的 Watch 仍会跑完并把结果发给
// 用户——用户可能因此乱序收到两个视频，这是沿用原设计的既定行为。
func (p *Poller) Watch(fromWxid, senderWxid, taskID, kind string) {
	key := session.Key{FromWxid: fromWxid, SenderWxid: senderWxid}
	ctx := context.Background()

	interval := time.Duration(p.cfg.PollIntervalSeconds) * time.Second
	maxAttempts := p.cfg.PollMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 60
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := p.provider.RetrieveResult(ctx, taskID)
		if err != nil {
			// 查询失败即终止并上报用户，与原插件一致（不做有界重试）。
			log.Errorf("[Poller] 任务 %s 状态查询失败: %v", taskID, err)
			p.notify(ctx, key, fmt.Sprintf("\n任务 %s 查询失败！", taskID))
			p.finish(ctx, key, taskID, kind, model.TaskStatusFail, model.RecordStatusFailed, "", "")
			return
		}

		switch result.Status {
		case model.TaskStatusSuccess:
			p.deliver(ctx, key, taskID, kind, result)
			return
		case model.TaskStatusFail:
			log.Warnf("[Poller] 任务 %s 远端生成失败", taskID)
			p.notify(ctx, key, fmt.Sprintf("\n任务 %s 生成失败！", taskID))
			p.finish(ctx, key, taskID, kind, model.TaskStatusFail, model.RecordStatusFailed, "", "")
			return
		default:
			time.Sleep(interval)
		}
	}

	// 预算耗尽：提示用户手动查询，不再自动重试。
	log.Warnf("[Poller] 任务 %s 轮询超时（%d 次尝试）", taskID, maxAttempts)
	p.notify(ctx, key, fmt.Sprintf("\n任务 %s 处理超时，请使用'#查询视频 %s'手动检查！", taskID, taskID))
	p.finish(ctx, key, taskID, kind, model.TaskStatusProcessing, model.RecordStatusTimeout, "", "")
}

// deliver 下载并发送生成结果。封面下载失败不阻塞视频投递；
// 视频下载失败时退化为把 URL 以文本形式发给用户。
func (p *Poller) deliver(ctx context.Context, key session.Key, taskID, kind string, task *model.VideoTask) {
	result, ok := task.FirstResult()
	if !ok {
		log.Errorf("[Poller] 任务 %s 状态为 SUCCESS 但没有结果", taskID)
		p.notify(ctx, key, fmt.Sprintf("\n任务 %s 生成失败！", taskID))
		p.finish(ctx, key, taskID, kind, model.TaskStatusFail, model.RecordStatusFailed, "", "")
		return
	}

	videoTimeout := time.Duration(p.cfg.VideoTimeoutSeconds) * time.Second
	coverTimeout := time.Duration(p.cfg.CoverTimeoutSeconds) * time.Second

	videoData, err := p.fetcher.Fetch(ctx, result.URL, videoTimeout)
	if err != nil || len(videoData) == 0 {
		log.Errorf("[Poller] 任务 %s 视频下载失败: %v", taskID, err)
		p.notify(ctx, key, fmt.Sprintf("\n视频生成完成，但下载失败！\n视频URL: %s\n封面URL: %s",
			result.URL, result.CoverImageURL))
		p.finish(ctx, key, taskID, kind, model.TaskStatusSuccess, model.RecordStatusFallback, result.URL, result.CoverImageURL)
		return
	}
	log.Debugf("[Poller] 任务 %s 视频下载完成, %d bytes", taskID, len(videoData))

	// 封面为尽力而为：失败只损失封面，不影响视频投递。
	var coverBase64 string
	if result.CoverImageURL != "" {
		coverData, coverErr := p.fetcher.Fetch(ctx, result.CoverImageURL, coverTimeout)
		if coverErr != nil || len(coverData) == 0 {
			log.Warnf("[Poller] 任务 %s 封面下载失败: %v", taskID, coverErr)
		} else {
			coverBase64 = base64.StdEncoding.EncodeToString(coverData)
		}
	}

	videoBase64 := base64.StdEncoding.EncodeToString(videoData)
	if err := p.transport.SendVideo(ctx, key.FromWxid, videoBase64, coverBase64); err != nil {
		log.Errorf("[Poller] 任务 %s 视频发送失败: %v", taskID, err)
		p.notify(ctx, key, fmt.Sprintf("\n视频发送失败: %v", err))
		p.finish(ctx, key, taskID, kind, model.TaskStatusSuccess, model.RecordStatusFallback, result.URL, result.CoverImageURL)
		return
	}
	log.Infof("[Poller] 成功发送视频到 %s, 任务 %s, 封面: %t", key.FromWxid, taskID, coverBase64 != "")

	// 归档到对象存储，尽力而为。
	if objectName, archiveErr := storage.ArchiveVideo(ctx, taskID, videoData); archiveErr != nil {
		log.Warnf("[Poller] 任务 %s 视频归档失败: %v", taskID, archiveErr)
	} else if objectName != "" {
		log.Infof("[Poller] 任务 %s 视频已归档: %s", taskID, objectName)
	}

	p.finish(ctx, key, taskID, kind, model.TaskStatusSuccess, model.RecordStatusDelivered, result.URL, result.CoverImageURL)
}

// notify 给会话所在聊天发送一条文本并 @ 发送者，失败只记日志。
func (p *Poller) notify(ctx context.Context, key session.Key, text string) {
	if err := p.transport.SendText(ctx, key.FromWxid, text, []string{key.SenderWxid}); err != nil {
		log.Errorf("[Poller] 发送通知失败: %v", err)
	}
}

// finish 统一处理终态副作用：回写会话状态（仅当任务未被新提交取代）、
// 更新持久化记录、发出结果事件。
func (p *Poller) finish(ctx context.Context, key session.Key, taskID, kind, taskStatus, recordStatus, videoURL, coverURL string) {
	p.sessions.CompleteTask(key, taskID, taskStatus)

	if err := p.records.UpdateOutcome(taskID, recordStatus, videoURL, coverURL); err != nil {
		log.Errorf("[Poller] 更新生成记录失败, 任务 %s: %v", taskID, err)
	}

	if err := kafka.ProduceGenerationEvent(events.GenerationEvent{
		TaskID:     taskID,
		FromWxid:   key.FromWxid,
		SenderWxid: key.SenderWxid,
		Kind:       kind,
		Status:     recordStatus,
		VideoURL:   videoURL,
		Timestamp:  time.Now().Unix(),
	}); err != nil {
		log.Errorf("[Poller] 发送生成结果事件失败, 任务 %s: %v", taskID, err)
	}
}
