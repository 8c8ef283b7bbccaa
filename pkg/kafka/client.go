// Package kafka 把被搜索引擎拒绝的文档投递到 Kafka 死信主题。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"note-search-go/internal/config"
	"note-search-go/pkg/es"
	"note-search-go/pkg/log"
)

// MessageWriter 是 kafka.Writer 中用到的部分，测试时可替换。
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RejectionPublisher 实现 es.RejectionReporter，每条被拒文档写成一条消息，消息键为文档 ID。
type RejectionPublisher struct {
	writer MessageWriter
	topic  string
}

// NewRejectionPublisher 根据配置创建 Kafka 生产者。
func NewRejectionPublisher(cfg config.KafkaConfig) (*RejectionPublisher, error) {
	if cfg.Brokers == "" || cfg.RejectTopic == "" {
		return nil, fmt.Errorf("%w: kafka.brokers 与 kafka.reject_topic 不能为空", config.ErrInvalid)
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:        cfg.RejectTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	log.Infof("[Kafka] 被拒文档将投递到主题 '%s'", cfg.RejectTopic)
	return NewRejectionPublisherWithWriter(writer, cfg.RejectTopic), nil
}

// NewRejectionPublisherWithWriter 使用给定的 writer 创建 RejectionPublisher。
func NewRejectionPublisherWithWriter(w MessageWriter, topic string) *RejectionPublisher {
	return &RejectionPublisher{writer: w, topic: topic}
}

// Report 实现 es.RejectionReporter。
func (p *RejectionPublisher) Report(ctx context.Context, r es.Rejection) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("序列化被拒文档失败: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(r.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "index", Value: []byte(r.Index)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("写入主题 '%s' 失败: %w", p.topic, err)
	}
	return nil
}

// Close 刷新并关闭生产者。
func (p *RejectionPublisher) Close() error {
	return p.writer.Close()
}
