package syncer

import (
	"context"
	"fmt"
	"log"

	"offline-gateway/internal/store"
)

// Notifier 同步完成通知接口
// 成功集合非空时向所有在线 UI 实例广播 {type: "synced", count}
type Notifier interface {
	NotifySynced(ctx context.Context, count int)
}

// RetryScheduler 平台重试设施接口
// 注册一次带标签的延迟重试;注册失败不致命
type RetryScheduler interface {
	Register(ctx context.Context, tag string) error
}

// Outcome 一轮同步的结果
type Outcome struct {
	Delivered   int  // 本轮确认成功的记录数
	Remaining   int  // 同步后仍为 pending 的记录数
	Rescheduled bool // 是否注册了延迟重试
}

// Coordinator 同步协调器
// 单轮流程:捞取 -> 逐条投递 -> 回写状态 -> 残留则请求重试
// 入口可被并发触发:重复投递同一条 pending 记录是可容忍的冗余工作
type Coordinator struct {
	store     store.Store
	deliverer Deliverer
	notifier  Notifier
	scheduler RetryScheduler
	retryTag  string
}

// NewCoordinator 创建同步协调器
func NewCoordinator(
	entryStore store.Store,
	deliverer Deliverer,
	notifier Notifier,
	scheduler RetryScheduler,
	retryTag string,
) *Coordinator {
	return &Coordinator{
		store:     entryStore,
		deliverer: deliverer,
		notifier:  notifier,
		scheduler: scheduler,
		retryTag:  retryTag,
	}
}

// SyncEntries 执行一轮同步
func (coordinator *Coordinator) SyncEntries(ctx context.Context) (Outcome, error) {
	pending, err := coordinator.store.ListByStatus(ctx, store.StatusPending)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to drain pending entries: %w", err)
	}

	if len(pending) == 0 {
		return Outcome{}, nil
	}

	log.Printf("[Syncer] 开始同步,待投递记录数: %d", len(pending))

	syncedIDs := coordinator.deliverAll(ctx, pending)

	if err := coordinator.reconcile(ctx, syncedIDs); err != nil {
		return Outcome{Delivered: len(syncedIDs)}, err
	}

	return coordinator.reschedule(ctx, len(syncedIDs))
}

// deliverAll 逐条顺序投递并累积成功ID集合
// 顺序投递限制了对远端的并发压力,也让成功集合的累积无需共享状态
// 单条失败只影响自身,不阻断同批其他记录
func (coordinator *Coordinator) deliverAll(ctx context.Context, pending []store.Entry) []int64 {
	syncedIDs := make([]int64, 0, len(pending))

	for _, entry := range pending {
		if err := coordinator.deliverer.Deliver(ctx, entry); err != nil {
			log.Printf("[Syncer] 记录 %d 投递失败: %v", entry.ID, err)
			continue
		}

		syncedIDs = append(syncedIDs, entry.ID)
	}

	return syncedIDs
}

// reconcile 回写成功记录状态并通知在线 UI
// 只有远端对该记录的投递返回过确认,才允许将其置为 synced
func (coordinator *Coordinator) reconcile(ctx context.Context, syncedIDs []int64) error {
	if len(syncedIDs) == 0 {
		return nil
	}

	if err := coordinator.store.MarkSynced(ctx, syncedIDs); err != nil {
		return fmt.Errorf("failed to mark entries synced: %w", err)
	}

	if coordinator.notifier != nil {
		coordinator.notifier.NotifySynced(ctx, len(syncedIDs))
	}

	return nil
}

// reschedule 重查残留待办,仍有 pending 则注册一次延迟重试
// 注册失败被吞掉:下一次外部触发(如网络恢复)会兜底
func (coordinator *Coordinator) reschedule(ctx context.Context, delivered int) (Outcome, error) {
	outcome := Outcome{Delivered: delivered}

	remaining, err := coordinator.store.ListByStatus(ctx, store.StatusPending)
	if err != nil {
		log.Printf("[Syncer] 重查待办失败: %v", err)
		return outcome, nil
	}

	outcome.Remaining = len(remaining)
	if outcome.Remaining == 0 {
		log.Printf("[Syncer] 同步完成,无残留待办")
		return outcome, nil
	}

	if coordinator.scheduler == nil {
		return outcome, nil
	}

	if err := coordinator.scheduler.Register(ctx, coordinator.retryTag); err != nil {
		log.Printf("[Syncer] 注册延迟重试失败: %v", err)
		return outcome, nil
	}

	outcome.Rescheduled = true
	log.Printf("[Syncer] 残留 %d 条待办,已注册延迟重试", outcome.Remaining)
	return outcome, nil
}
