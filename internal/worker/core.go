package worker

import (
	"context"
	"log"

	"offline-gateway/internal/cache"
	"offline-gateway/internal/notify"
	"offline-gateway/internal/router"
	"offline-gateway/internal/syncer"
)

// 消息类型常量
const MessageTrySyncNow = "try-sync-now"

// Core 工作进程核心
// 每类平台事件对应一个显式方法,HTTP 层与队列消费端只做事件搬运
type Core struct {
	lifecycle   *router.Lifecycle
	router      *router.Router
	coordinator *syncer.Coordinator
	bridge      *notify.Bridge
	syncTag     string
}

// NewCore 创建工作进程核心
func NewCore(
	lifecycle *router.Lifecycle,
	requestRouter *router.Router,
	coordinator *syncer.Coordinator,
	bridge *notify.Bridge,
	syncTag string,
) *Core {
	return &Core{
		lifecycle:   lifecycle,
		router:      requestRouter,
		coordinator: coordinator,
		bridge:      bridge,
		syncTag:     syncTag,
	}
}

// Install 安装阶段:原子预缓存 App Shell
func (core *Core) Install(ctx context.Context) error {
	return core.lifecycle.Install(ctx)
}

// Activate 激活阶段:回收过期分区
func (core *Core) Activate(ctx context.Context) error {
	return core.lifecycle.Activate(ctx)
}

// HandleFetch 处理一次被拦截的读请求
func (core *Core) HandleFetch(ctx context.Context, request router.Request) (*cache.Response, error) {
	return core.router.Handle(ctx, request)
}

// HandleSync 处理一次同步触发
// 标签不匹配的触发被忽略,重复触发是可容忍的冗余工作
func (core *Core) HandleSync(ctx context.Context, tag string) (syncer.Outcome, error) {
	if tag != core.syncTag {
		log.Printf("[Worker] 忽略未知同步标签: %s", tag)
		return syncer.Outcome{}, nil
	}

	return core.coordinator.SyncEntries(ctx)
}

// HandleMessage 处理 UI 实例上行消息
func (core *Core) HandleMessage(ctx context.Context, messageType string) {
	if messageType != MessageTrySyncNow {
		return
	}

	if _, err := core.HandleSync(ctx, core.syncTag); err != nil {
		log.Printf("[Worker] UI 触发的同步失败: %v", err)
	}
}

// HandlePush 处理一次推送事件
func (core *Core) HandlePush(ctx context.Context, payload []byte) notify.Notification {
	return core.bridge.HandlePush(ctx, payload)
}

// HandleNotificationClick 处理通知点击
func (core *Core) HandleNotificationClick(ctx context.Context, notification notify.Notification) error {
	return core.bridge.HandleClick(ctx, notification)
}

// HandleSubscriptionChange 处理订阅轮换事件
func (core *Core) HandleSubscriptionChange(ctx context.Context) {
	core.bridge.HandleSubscriptionChange(ctx)
}
