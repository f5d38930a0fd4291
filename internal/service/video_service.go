// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"

	"cogvideo-bot-go/internal/command"
	"cogvideo-bot-go/internal/config"
	"cogvideo-bot-go/internal/model"
	"cogvideo-bot-go/internal/repository"
	"cogvideo-bot-go/internal/session"
	"cogvideo-bot-go/pkg/cogvideo"
	"cogvideo-bot-go/pkg/log"
	"cogvideo-bot-go/pkg/wechat"
)

// TaskWatcher 在后台跟踪一个已提交的任务直到投递完成。
// 由 pipeline.Poller 实现，抽成接口便于测试。
type TaskWatcher interface {
	Watch(fromWxid, senderWxid, taskID, kind string)
}

// VideoService 定义了视频生成机器人的入站消息处理接口。
type VideoService interface {
	HandleMessage(ctx context.Context, msg model.Message)
}

type videoService struct {
	sessions  *session.Store
	provider  cogvideo.Client
	transport wechat.Transport
	points    repository.PointsRepository
	records   repository.GenerationRepository
	watcher   TaskWatcher
	cfg       config.BotConfig
	hasAPIKey bool
}

// NewVideoService 创建一个新的 VideoService 实例。
func NewVideoService(
	sessions *session.Store,
	provider cogvideo.Client,
	transport wechat.Transport,
	points repository.PointsRepository,
	records repository.GenerationRepository,
	watcher TaskWatcher,
	cfg config.BotConfig,
	hasAPIKey bool,
) VideoService {
	return &videoService{
		sessions:  sessions,
		provider:  provider,
		transport: transport,
		points:    points,
		records:   records,
		watcher:   watcher,
		cfg:       cfg,
		hasAPIKey: hasAPIKey,
	}
}

// HandleMessage 处理一条入站消息。所有失败都在这里转化为
// 用户可见的聊天回复，不向上传播。
func (s *videoService) HandleMessage(ctx context.Context, msg model.Message) {
	// 顺带清理过期会话，O(活跃会话数)。
	s.sessions.SweepExpired()

	key := session.Key{FromWxid: msg.FromWxid, SenderWxid: msg.SenderWxid}

	switch msg.Type {
	case model.MessageTypeImage:
		// 静默缓存图片，不发提示。
		if msg.Content == "" {
			return
		}
		s.sessions.UpdateImage(key, msg.Content)
	case model.MessageTypeText:
		s.handleText(ctx, key, strings.TrimSpace(msg.Content))
	}
}

func (s *videoService) handleText(ctx context.Context, key session.Key, content string) {
	for _, cmd := range s.cfg.ExitCommands {
		if content == cmd {
			s.handleExit(ctx, key)
			return
		}
	}

	for _, cmd := range s.cfg.GenerateCommands {
		if strings.HasPrefix(content, cmd) {
			s.handleSubmit(ctx, key, model.GenerationKindText, strings.TrimSpace(content[len(cmd):]))
			return
		}
	}

	for _, cmd := range s.cfg.ImageGenerateCommands {
		if strings.HasPrefix(content, cmd) {
			s.handleSubmit(ctx, key, model.GenerationKindImage, strings.TrimSpace(content[len(cmd):]))
			return
		}
	}

	for _, cmd := range s.cfg.QueryCommands {
		if strings.HasPrefix(content, cmd) {
			s.handleQuery(ctx, key, strings.TrimSpace(content[len(cmd):]))
			return
		}
	}
}

// handleExit 清除会话；回复文案区分会话是否存在。
func (s *videoService) handleExit(ctx context.Context, key session.Key) {
	if s.sessions.Clear(key) {
		s.reply(ctx, key, "\n已结束CogVideoX视频生成对话")
	} else {
		s.reply(ctx, key, "\n您当前没有活跃的CogVideoX对话")
	}
}

// handleSubmit 处理文生视频与图生视频两种提交。
// 积分只有在远端确认 PROCESSING 之后才扣，提交失败不扣积分。
func (s *videoService) handleSubmit(ctx context.Context, key session.Key, kind, rest string) {
	prompt, size, ratio := command.Parse(rest, s.cfg.DefaultSize, s.cfg.DefaultRatio)
	if prompt == "" {
		if kind == model.GenerationKindText {
			s.reply(ctx, key, "\n请提供视频描述，格式：#生成视频 [描述] [--size 宽度x高度] [--ratio 宽:高]")
		} else {
			s.reply(ctx, key, "\n请提供提示词，格式：#图生视频 [描述] [--size 宽度x高度] [--ratio 宽:高]")
		}
		return
	}

	if !s.hasAPIKey {
		s.reply(ctx, key, "\n请先在配置文件中设置CogVideoX API密钥")
		return
	}

	var lastImage string
	if kind == model.GenerationKindImage {
		var ok bool
		lastImage, ok = s.sessions.LastImage(key)
		if !ok {
			s.reply(ctx, key, "\n请先发送一张图片后再使用此命令")
			return
		}
	}

	// 积分门槛：管理员绕过，余额不足直接拒绝。
	charging := s.cfg.EnablePoints && !s.isAdmin(key.SenderWxid)
	var balance int64
	if charging {
		var err error
		balance, err = s.points.GetPoints(ctx, key.SenderWxid)
		if err != nil {
			log.Errorf("查询积分失败, 用户 %s: %v", key.SenderWxid, err)
			s.reply(ctx, key, "\n生成视频失败: 积分查询异常，请稍后再试")
			return
		}
		if balance < s.cfg.GenerateCost {
			s.reply(ctx, key, fmt.Sprintf("\n您的积分不足，生成视频需要%d积分，您当前有%d积分",
				s.cfg.GenerateCost, balance))
			return
		}
	}

	if kind == model.GenerationKindText {
		s.reply(ctx, key, "\n正在提交视频生成任务，请稍候...")
	} else {
		s.reply(ctx, key, "\n正在基于图片生成视频，请稍候...")
	}

	var task *model.VideoTask
	var err error
	if kind == model.GenerationKindText {
		task, err = s.provider.GenerateFromText(ctx, prompt, size)
	} else {
		task, err = s.provider.GenerateFromImage(ctx, lastImage, prompt, size)
	}
	if err != nil {
		log.Errorf("提交生成任务失败, 用户 %s: %v", key.SenderWxid, err)
		s.reply(ctx, key, fmt.Sprintf("\n生成视频失败: %v", err))
		return
	}
	if task.Status != model.TaskStatusProcessing {
		// 初始状态不是 PROCESSING 一律当作提交失败处理。
		log.Warnf("生成任务初始状态异常, 任务 %s 状态 %s", task.ID, task.Status)
		if kind == model.GenerationKindText {
			s.reply(ctx, key, "\n视频生成任务提交失败，请稍后再试")
		} else {
			s.reply(ctx, key, "\n图生视频任务提交失败，请稍后再试")
		}
		return
	}

	// 远端已确认 PROCESSING，此时才扣积分。生成失败不退款（沿用原设计）。
	pointsMsg := ""
	if charging {
		if _, err := s.points.AddPoints(ctx, key.SenderWxid, -s.cfg.GenerateCost); err != nil {
			log.Errorf("扣除积分失败, 用户 %s: %v", key.SenderWxid, err)
		} else {
			pointsMsg = fmt.Sprintf("已扣除%d积分，剩余%d积分", s.cfg.GenerateCost, balance-s.cfg.GenerateCost)
		}
	}

	s.sessions.RecordSubmission(key, task.ID)

	if err := s.records.Create(&model.GenerationRecord{
		TaskID:     task.ID,
		RequestID:  task.RequestID,
		FromWxid:   key.FromWxid,
		SenderWxid: key.SenderWxid,
		Kind:       kind,
		Prompt:     prompt,
		Size:       size,
		Ratio:      ratio,
		Status:     model.RecordStatusProcessing,
	}); err != nil {
		log.Errorf("保存生成记录失败, 任务 %s: %v", task.ID, err)
	}

	requestID := task.RequestID
	if requestID == "" {
		requestID = "N/A"
	}
	title := "视频生成任务已提交！"
	if kind == model.GenerationKindImage {
		title = "图生视频任务已提交！"
	}
	s.reply(ctx, key, fmt.Sprintf("\n%s\n任务ID: %s\n请求ID: %s\n分辨率: %s\n比例: %s\n%s\n任务处理中，将自动发送视频。",
		title, task.ID, requestID, size, ratio, pointsMsg))

	go s.watcher.Watch(key.FromWxid, key.SenderWxid, task.ID, kind)
}

// handleQuery 执行一次性状态查询，不触碰会话中的活跃任务。
func (s *videoService) handleQuery(ctx context.Context, key session.Key, taskID string) {
	if taskID == "" {
		s.reply(ctx, key, "\n请提供任务ID，格式：#查询视频 [任务ID]")
		return
	}

	result, err := s.provider.RetrieveResult(ctx, taskID)
	if err != nil {
		log.Errorf("查询任务 %s 失败: %v", taskID, err)
		s.reply(ctx, key, fmt.Sprintf("\n查询失败: %v", err))
		return
	}

	switch result.Status {
	case model.TaskStatusSuccess:
		res, ok := result.FirstResult()
		if !ok {
			s.reply(ctx, key, "\n查询失败，请检查任务ID")
			return
		}
		s.reply(ctx, key, fmt.Sprintf("\n视频生成完成！\n视频URL: %s\n封面URL: %s", res.URL, res.CoverImageURL))
	case model.TaskStatusFail:
		s.reply(ctx, key, "\n视频生成失败！")
	default:
		s.reply(ctx, key, "\n任务仍在处理中，请稍后再试")
	}
}

func (s *videoService) isAdmin(wxid string) bool {
	for _, admin := range s.cfg.Admins {
		if admin == wxid {
			return true
		}
	}
	return false
}

// reply 发送一条 @ 发送者的文本回复，失败只记日志。
func (s *videoService) reply(ctx context.Context, key session.Key, text string) {
	if err := s.transport.SendText(ctx, key.FromWxid, text, []string{key.SenderWxid}); err != nil {
		log.Errorf("发送回复失败, 聊天 %s: %v", key.FromWxid, err)
	}
}
