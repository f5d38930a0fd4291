package wechat

import (
	"context"
	"time"

	"cogvideo-bot-go/internal/config"
	"cogvideo-bot-go/internal/model"
	"cogvideo-bot-go/pkg/log"

	"github.com/gorilla/websocket"
)

// MessageHandler 是入站消息的处理方。
// 该接口把监听器与具体的业务服务解耦。
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg model.Message)
}

// StartListener 连接网关的事件 WebSocket 并把消息逐条分发给 handler。
// 连接断开后按固定间隔重连，ctx 取消时退出。
func StartListener(ctx context.Context, cfg config.WechatConfig, handler MessageHandler) {
	const reconnectDelay = 5 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		if err := listenOnce(ctx, cfg, handler); err != nil {
			log.Errorf("网关 WebSocket 连接中断: %v, %s 后重连", err, reconnectDelay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func listenOnce(ctx context.Context, cfg config.WechatConfig, handler MessageHandler) error {
	header := map[string][]string{}
	if cfg.Token != "" {
		header["Authorization"] = []string{"Bearer " + cfg.Token}
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.WSURL, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Infof("已连接网关事件通道: %s", cfg.WSURL)

	// ctx 取消时主动关闭连接，使 ReadJSON 解除阻塞。
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var msg model.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		// 每条消息独立处理，慢命令（提交远端任务）不阻塞读循环。
		go handler.HandleMessage(context.Background(), msg)
	}
}
