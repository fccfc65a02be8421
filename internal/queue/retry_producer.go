package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nsqio/go-nsq"
)

// RetryProducer 基于 NSQ 延迟发布的重试注册器
// 同步残留待办时发布一条带标签的延迟消息,到期后由消费端再次触发同步
type RetryProducer struct {
	producer *nsq.Producer
	topic    string
	delay    time.Duration
}

// NewRetryProducer 创建重试注册器
func NewRetryProducer(addr string, topic string, delay time.Duration) (*RetryProducer, error) {
	producer, err := nsq.NewProducer(addr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create retry producer: %w", err)
	}

	return &RetryProducer{
		producer: producer,
		topic:    topic,
		delay:    delay,
	}, nil
}

// Register 注册一次带标签的延迟重试
// nsqio/go-nsq 的 DeferredPublish 不接收 context,这里保留 ctx 以满足接口规范
func (producer *RetryProducer) Register(ctx context.Context, tag string) error {
	if tag == "" {
		return fmt.Errorf("empty retry tag")
	}

	return producer.producer.DeferredPublish(producer.topic, producer.delay, []byte(tag))
}

// Close 关闭重试注册器
func (producer *RetryProducer) Close() {
	if producer.producer != nil {
		producer.producer.Stop()
	}
}
