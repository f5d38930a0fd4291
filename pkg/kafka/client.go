// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"

	"cogvideo-bot-go/internal/config"
	"cogvideo-bot-go/pkg/events"
	"cogvideo-bot-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。未启用时保持 nil，发送时静默跳过。
func InitProducer(cfg config.KafkaConfig) {
	if !cfg.Enable {
		log.Info("Kafka 未启用，跳过生产者初始化")
		return
	}
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// ProduceGenerationEvent 发送一条生成结果事件。
// 生产者未初始化（未启用或测试环境）时为 no-op。
func ProduceGenerationEvent(evt events.GenerationEvent) error {
	if producer == nil {
		return nil
	}

	evtBytes, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	return producer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(evt.TaskID),
			Value: evtBytes,
		},
	)
}
