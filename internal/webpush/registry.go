package webpush

import "sync"

// Registry 会话内订阅登记表
// 仅服务接口边界的 subscribe/inspect/unsubscribe,不做持久化
type Registry struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
}

// NewRegistry 创建订阅登记表
func NewRegistry() *Registry {
	return &Registry{
		subscriptions: make(map[string]*Subscription),
	}
}

// Save 登记(或覆盖)一个订阅,按端点去重
func (registry *Registry) Save(subscription *Subscription) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.subscriptions[subscription.Endpoint] = subscription
}

// Endpoints 返回已登记的全部订阅端点
func (registry *Registry) Endpoints() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	endpoints := make([]string, 0, len(registry.subscriptions))
	for endpoint := range registry.subscriptions {
		endpoints = append(endpoints, endpoint)
	}

	return endpoints
}

// Remove 注销指定端点的订阅,返回其是否存在
func (registry *Registry) Remove(endpoint string) bool {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.subscriptions[endpoint]; !exists {
		return false
	}

	delete(registry.subscriptions, endpoint)
	return true
}
