// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cogvideo-bot-go/internal/config"
	"cogvideo-bot-go/internal/handler"
	"cogvideo-bot-go/internal/middleware"
	"cogvideo-bot-go/internal/pipeline"
	"cogvideo-bot-go/internal/repository"
	"cogvideo-bot-go/internal/service"
	"cogvideo-bot-go/internal/session"
	"cogvideo-bot-go/pkg/cogvideo"
	"cogvideo-bot-go/pkg/database"
	"cogvideo-bot-go/pkg/kafka"
	"cogvideo-bot-go/pkg/log"
	"cogvideo-bot-go/pkg/storage"
	"cogvideo-bot-go/pkg/token"
	"cogvideo-bot-go/pkg/wechat"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	if cfg.CogVideo.APIKey == "" {
		log.Warnf("未配置 CogVideoX API 密钥，生成命令将提示用户先完成配置")
	}

	// 3. 初始化数据库、Redis 与可选外部服务
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	pointsRepo := repository.NewPointsRepository(database.RDB)
	generationRepo := repository.NewGenerationRepository(database.DB)

	// 5. 初始化核心组件 (依赖注入)
	sessions := session.NewStore(time.Duration(cfg.Bot.SessionExpireSeconds) * time.Second)
	providerClient := cogvideo.NewClient(cfg.CogVideo)
	transport := wechat.NewClient(cfg.Wechat)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	poller := pipeline.NewPoller(providerClient, transport, pipeline.NewMediaFetcher(),
		sessions, generationRepo, cfg.Bot)
	videoService := service.NewVideoService(sessions, providerClient, transport,
		pointsRepo, generationRepo, poller, cfg.Bot, cfg.CogVideo.APIKey != "")

	// 6. 启动网关事件监听（入站消息主通道）
	listenCtx, cancelListen := context.WithCancel(context.Background())
	defer cancelListen()
	if cfg.Wechat.WSURL != "" {
		go wechat.StartListener(listenCtx, cfg.Wechat, videoService)
	} else {
		log.Warnf("未配置网关 WebSocket 地址，仅通过 HTTP 回调接收消息")
	}

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	{
		// 网关 HTTP 回调（备用入站通道）
		apiV1.POST("/webhook/message", handler.NewWebhookHandler(videoService).ReceiveMessage)

		adminHandler := handler.NewAdminHandler(sessions, generationRepo, pointsRepo, jwtManager, cfg.Admin)
		apiV1.POST("/admin/login", adminHandler.Login)

		admin := apiV1.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware(jwtManager))
		{
			admin.GET("/sessions", adminHandler.ListSessions)
			admin.GET("/records", adminHandler.ListRecords)
			admin.POST("/points", adminHandler.AdjustPoints)
		}
	}

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 先停止接收新消息，再关闭 HTTP 服务器。
	// 仍在跑的后台轮询 goroutine 随进程退出终止，会话状态本就不跨重启。
	cancelListen()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
