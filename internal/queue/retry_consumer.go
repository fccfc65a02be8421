package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nsqio/go-nsq"
)

const (
	// 默认超时时间
	defaultMessageHandleTimeout = 30 * time.Second

	// 用户代理标识
	defaultUserAgent = "offline-gateway"

	// 日志前缀
	logPrefix = "[nsq] "
)

// HandlerFunc 重试消息处理函数类型
type HandlerFunc func(ctx context.Context, tag string) error

// RetryConsumer 重试触发消费者
// 延迟重试消息到期后回调处理函数,重新驱动一轮同步
type RetryConsumer struct {
	config  *nsq.Config
	topic   string
	channel string

	nsqdAddresses    []string
	lookupdAddresses []string

	consumer *nsq.Consumer
	handler  HandlerFunc

	concurrency          int
	messageHandleTimeout time.Duration
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Topic                string
	Channel              string
	MaxInFlight          int
	Concurrency          int
	NsqdAddresses        []string
	LookupdAddresses     []string
	MessageHandleTimeout time.Duration
	Handler              HandlerFunc
}

// NewRetryConsumer 从配置创建重试消费者
func NewRetryConsumer(config ConsumerConfig) (*RetryConsumer, error) {
	if err := validateConsumerConfig(config); err != nil {
		return nil, err
	}

	nsqConfig := createNSQConfig(config.MaxInFlight)

	consumer, err := nsq.NewConsumer(config.Topic, config.Channel, nsqConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create NSQ consumer: %w", err)
	}

	setupConsumerLogger(consumer)

	timeout := config.MessageHandleTimeout
	if timeout == 0 {
		timeout = defaultMessageHandleTimeout
	}

	return &RetryConsumer{
		config:               nsqConfig,
		topic:                config.Topic,
		channel:              config.Channel,
		nsqdAddresses:        config.NsqdAddresses,
		lookupdAddresses:     config.LookupdAddresses,
		consumer:             consumer,
		handler:              config.Handler,
		concurrency:          config.Concurrency,
		messageHandleTimeout: timeout,
	}, nil
}

// validateConsumerConfig 验证消费者配置
func validateConsumerConfig(config ConsumerConfig) error {
	if config.Topic == "" {
		return errors.New("topic is required")
	}

	if config.Channel == "" {
		return errors.New("channel is required")
	}

	if config.Handler == nil {
		return errors.New("handler is required")
	}

	if len(config.NsqdAddresses) == 0 && len(config.LookupdAddresses) == 0 {
		return errors.New("no nsqd address or lookupd configured")
	}

	return nil
}

// createNSQConfig 创建 NSQ 配置
func createNSQConfig(maxInFlight int) *nsq.Config {
	config := nsq.NewConfig()

	if maxInFlight > 0 {
		config.MaxInFlight = maxInFlight
	}

	config.UserAgent = defaultUserAgent

	return config
}

// setupConsumerLogger 设置消费者日志
func setupConsumerLogger(consumer *nsq.Consumer) {
	logger := log.New(os.Stdout, logPrefix, log.LstdFlags)
	consumer.SetLogger(logger, nsq.LogLevelInfo)
}

// Run 启动消费者并阻塞到停止
func (consumer *RetryConsumer) Run() error {
	consumer.consumer.AddConcurrentHandlers(consumer.createMessageHandler(), consumer.concurrency)

	if err := consumer.connectToNSQ(); err != nil {
		return err
	}

	<-consumer.consumer.StopChan
	return nil
}

// createMessageHandler 创建消息处理器
func (consumer *RetryConsumer) createMessageHandler() nsq.Handler {
	return nsq.HandlerFunc(func(message *nsq.Message) error {
		ctx, cancel := context.WithTimeout(context.Background(), consumer.messageHandleTimeout)
		defer cancel()

		return consumer.handler(ctx, string(message.Body))
	})
}

// connectToNSQ 连接到 NSQ
func (consumer *RetryConsumer) connectToNSQ() error {
	for _, address := range consumer.nsqdAddresses {
		if err := consumer.consumer.ConnectToNSQD(address); err != nil {
			return fmt.Errorf("failed to connect to nsqd %s: %w", address, err)
		}
		log.Printf("Connected to nsqd: %s", address)
	}

	for _, address := range consumer.lookupdAddresses {
		if err := consumer.consumer.ConnectToNSQLookupd(address); err != nil {
			return fmt.Errorf("failed to connect to lookupd %s: %w", address, err)
		}
		log.Printf("Connected to lookupd: %s", address)
	}

	return nil
}

// Stop 停止消费者
func (consumer *RetryConsumer) Stop() {
	if consumer.consumer != nil {
		log.Printf("Stopping NSQ consumer for topic: %s", consumer.topic)
		consumer.consumer.Stop()
	}
}
