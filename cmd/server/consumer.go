package main

import (
	"context"
	"log"

	"offline-gateway/internal/queue"
)

// ConsumerManager 重试消费者管理器
// 延迟重试消息到期后驱动核心执行一轮同步
type ConsumerManager struct {
	consumer *queue.RetryConsumer
}

// StartRetryConsumer 启动重试消息消费者
// 未启用消费时返回 nil,重试注册仍然可用,由其他部署消费
func StartRetryConsumer(app *AppContext) *ConsumerManager {
	nsqConfig := app.Config.NSQ
	if !nsqConfig.ConsumerEnabled {
		log.Println("[Consumer] 重试消费未启用")
		return nil
	}

	consumer, err := queue.NewRetryConsumer(queue.ConsumerConfig{
		Topic:            nsqConfig.Topic,
		Channel:          nsqConfig.Channel,
		MaxInFlight:      nsqConfig.MaxInFlight,
		Concurrency:      nsqConfig.Concurrency,
		NsqdAddresses:    nsqConfig.NsqdTCPAddrs,
		LookupdAddresses: nsqConfig.LookupdHTTPAddrs,
		Handler:          createSyncHandler(app),
	})
	if err != nil {
		log.Printf("[Consumer] 重试消费者创建失败: %v", err)
		return nil
	}

	go func() {
		if err := consumer.Run(); err != nil {
			log.Printf("[Consumer] 重试消费者退出: %v", err)
		}
	}()

	log.Println("[Consumer] 重试消费者启动完成")
	return &ConsumerManager{consumer: consumer}
}

// createSyncHandler 创建重试消息处理函数
// 消息体即同步标签,处理失败会让 NSQ 按自身策略重投
func createSyncHandler(app *AppContext) queue.HandlerFunc {
	return func(ctx context.Context, tag string) error {
		outcome, err := app.Core.HandleSync(ctx, tag)
		if err != nil {
			return err
		}

		log.Printf(
			"[Consumer] 重试触发的同步完成: delivered=%d remaining=%d rescheduled=%v",
			outcome.Delivered,
			outcome.Remaining,
			outcome.Rescheduled,
		)
		return nil
	}
}

// Stop 停止重试消费者
func (manager *ConsumerManager) Stop() {
	if manager.consumer != nil {
		manager.consumer.Stop()
	}
}
