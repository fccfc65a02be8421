package notify

import (
	"context"
	"encoding/json"
	"log"

	"offline-gateway/internal/clients"
	"offline-gateway/internal/config"
)

const defaultClickURL = "/"

// Notification 展示给用户的通知内容
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	Badge string `json:"badge"`
	URL   string `json:"url"`
}

// pushPayload 推送服务下发的负载约定
type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Gateway 在线 UI 实例网关
// 通知展示与点击路由都经由它触达 UI 实例
type Gateway interface {
	Instances(ctx context.Context) []clients.Instance
	Focus(ctx context.Context, id string) error
	OpenWindow(ctx context.Context, url string) error
	Broadcast(ctx context.Context, event clients.Event)
}

// Bridge 异步通知桥
// 负责推送负载解析、通知展示以及通知点击后的实例路由
type Bridge struct {
	gateway Gateway
	config  config.Push
}

// NewBridge 创建通知桥
func NewBridge(gateway Gateway, pushConfig config.Push) *Bridge {
	return &Bridge{
		gateway: gateway,
		config:  pushConfig,
	}
}

// ParsePayload 解析推送负载
// 负载损坏时降级为默认标题加原始文本正文,保证通知总能展示
func (bridge *Bridge) ParsePayload(data []byte) (Notification, error) {
	notification := Notification{
		Title: bridge.config.DefaultTitle,
		Body:  bridge.config.DefaultBody,
		Icon:  bridge.config.Icon,
		Badge: bridge.config.Badge,
		URL:   defaultClickURL,
	}

	if len(data) == 0 {
		return notification, nil
	}

	var payload pushPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		notification.Body = string(data)
		return notification, ErrPushPayloadMalformed
	}

	if payload.Title != "" {
		notification.Title = payload.Title
	}
	if payload.Body != "" {
		notification.Body = payload.Body
	}
	if payload.URL != "" {
		notification.URL = payload.URL
	}

	return notification, nil
}

// HandlePush 处理一次推送事件
// 解析失败只记录日志,降级后的通知照常展示
func (bridge *Bridge) HandlePush(ctx context.Context, data []byte) Notification {
	notification, err := bridge.ParsePayload(data)
	if err != nil {
		log.Printf("[Notify] 推送负载解析失败,使用默认文案: %v", err)
	}

	bridge.gateway.Broadcast(ctx, clients.Event{
		Type:  clients.EventNotification,
		Title: notification.Title,
		Body:  notification.Body,
		Icon:  notification.Icon,
		Badge: notification.Badge,
		URL:   notification.URL,
	})

	return notification
}

// HandleClick 处理通知点击
// 已有实例停留在目标路径时聚焦它,否则指示打开新实例
func (bridge *Bridge) HandleClick(ctx context.Context, notification Notification) error {
	targetURL := notification.URL
	if targetURL == "" {
		targetURL = defaultClickURL
	}

	for _, instance := range bridge.gateway.Instances(ctx) {
		if instance.Location == targetURL {
			log.Printf("[Notify] 聚焦实例 %s (location=%s)", instance.ID, instance.Location)
			return bridge.gateway.Focus(ctx, instance.ID)
		}
	}

	log.Printf("[Notify] 无匹配实例,打开新窗口: %s", targetURL)
	return bridge.gateway.OpenWindow(ctx, targetURL)
}

// HandleSubscriptionChange 处理订阅轮换事件
// 仅确认收到;重新订阅由 UI 侧自行发起
func (bridge *Bridge) HandleSubscriptionChange(ctx context.Context) {
	log.Printf("[Notify] 收到订阅轮换事件")
}
