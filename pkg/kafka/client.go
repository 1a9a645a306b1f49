// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"linebot-relay-go/internal/config"
	"linebot-relay-go/pkg/log"
	"linebot-relay-go/pkg/tasks"
)

// maxAttempts 是同一事件允许的最大处理次数。
const maxAttempts = 3

// EventProcessor 是能够处理入站事件的服务。
type EventProcessor interface {
	Process(ctx context.Context, event tasks.InboundEvent) error
}

// Producer 将入站事件写入 Kafka，以用户 ID 作为 key 保证同一用户的消息有序。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 创建 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.BrokerList()...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

func encodeEvent(event tasks.InboundEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Key: []byte(event.UserID), Value: value}, nil
}

// Dispatch 发送一个入站事件到 Kafka。
func (p *Producer) Dispatch(ctx context.Context, event tasks.InboundEvent) error {
	msg, err := encodeEvent(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close 关闭生产者并刷新缓冲区。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer 从 Kafka 读取入站事件并交给 EventProcessor 同步处理。
type Consumer struct {
	reader    *kafka.Reader
	processor EventProcessor
	backoff   time.Duration
}

// NewConsumer 创建消费者。
func NewConsumer(cfg config.KafkaConfig, processor EventProcessor) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.BrokerList(),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: r, processor: processor, backoff: time.Second}
}

// Run 持续消费直到 ctx 被取消。
func (c *Consumer) Run(ctx context.Context) {
	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", c.reader.Config().Topic)
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}

		var event tasks.InboundEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			c.commit(m)
			continue
		}

		if err := c.process(ctx, event); err != nil {
			if ctx.Err() != nil {
				// 停机时不提交 offset，重启后从这条消息继续
				log.Infow("Kafka 消费者停止，事件未处理完", "eventID", event.EventID, "offset", m.Offset)
				return
			}
			log.Errorf("入站事件多次失败(%d)，提交 offset 放弃处理: eventID=%s, userID=%s, error: %v",
				maxAttempts, event.EventID, event.UserID, err)
		}
		c.commit(m)
	}
}

// process 在同一条消息上最多尝试 maxAttempts 次，间隔按尝试次数线性增长。
// 重试依赖 EventProcessor 按 EventID 幂等。
func (c *Consumer) process(ctx context.Context, event tasks.InboundEvent) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = c.processor.Process(ctx, event); err == nil {
			return nil
		}
		log.Warnw("入站事件处理失败", "eventID", event.EventID, "userID", event.UserID, "attempt", attempt, "error", err)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
	return err
}

func (c *Consumer) commit(m kafka.Message) {
	if err := c.reader.CommitMessages(context.Background(), m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
