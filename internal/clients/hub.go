package clients

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// 下行事件类型常量
const (
	EventSynced       = "synced"
	EventNotification = "notification"
	EventFocus        = "focus"
	EventOpenWindow   = "open-window"
)

// 上行消息类型常量
const (
	messageTrySyncNow = "try-sync-now"
	messageNavigate   = "navigate"
)

const writeTimeout = 5 * time.Second

// Event 推送给 UI 实例的事件
type Event struct {
	Type  string `json:"type"`
	Count int    `json:"count,omitempty"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Badge string `json:"badge,omitempty"`
}

// inboundMessage UI 实例上行消息
type inboundMessage struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

// Instance 在线 UI 实例的快照
type Instance struct {
	ID       string
	Location string
}

// SyncTrigger UI 请求立即同步时的回调
type SyncTrigger func(ctx context.Context)

// client 单个已连接的 UI 实例
// 写操作串行化:websocket 连接不允许并发写
type client struct {
	id       string
	conn     *websocket.Conn
	writeMu  sync.Mutex
	location string
}

// Hub 在线 UI 实例集线器
// 工作进程是唯一的事件广播方;多个标签页可同时挂在一个集线器上
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	onSync  SyncTrigger
}

// NewHub 创建集线器实例
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
	}
}

// SetSyncTrigger 设置"立即同步"回调
func (hub *Hub) SetSyncTrigger(trigger SyncTrigger) {
	hub.onSync = trigger
}

// Attach 接受一个 UI 实例的 websocket 连接并阻塞处理其上行消息
// location 为该实例连接时上报的当前页面路径
func (hub *Hub) Attach(w http.ResponseWriter, r *http.Request, location string) error {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return err
	}

	attached := &client{
		id:       uuid.NewString(),
		conn:     conn,
		location: location,
	}

	hub.register(attached)
	defer hub.unregister(attached.id)

	log.Printf("[Hub] UI 实例已连接: %s (location=%s)", attached.id, location)

	hub.readLoop(r.Context(), attached)
	return nil
}

// Broadcast 向所有在线 UI 实例广播事件
func (hub *Hub) Broadcast(ctx context.Context, event Event) {
	for _, target := range hub.snapshot() {
		hub.send(ctx, target, event)
	}
}

// NotifySynced 广播同步完成事件
func (hub *Hub) NotifySynced(ctx context.Context, count int) {
	hub.Broadcast(ctx, Event{Type: EventSynced, Count: count})
}

// Instances 返回在线 UI 实例快照
func (hub *Hub) Instances(ctx context.Context) []Instance {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	instances := make([]Instance, 0, len(hub.clients))
	for _, attached := range hub.clients {
		instances = append(instances, Instance{
			ID:       attached.id,
			Location: attached.location,
		})
	}

	return instances
}

// Focus 将焦点指令发给指定实例
func (hub *Hub) Focus(ctx context.Context, id string) error {
	hub.mu.RLock()
	target, exists := hub.clients[id]
	hub.mu.RUnlock()

	if !exists {
		return nil
	}

	hub.send(ctx, target, Event{Type: EventFocus})
	return nil
}

// OpenWindow 广播打开新实例的指令
func (hub *Hub) OpenWindow(ctx context.Context, url string) error {
	hub.Broadcast(ctx, Event{Type: EventOpenWindow, URL: url})
	return nil
}

// register 登记客户端
func (hub *Hub) register(attached *client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.clients[attached.id] = attached
}

// unregister 注销客户端
func (hub *Hub) unregister(id string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	delete(hub.clients, id)
}

// snapshot 拷贝当前客户端列表,避免广播期间持锁
func (hub *Hub) snapshot() []*client {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	targets := make([]*client, 0, len(hub.clients))
	for _, attached := range hub.clients {
		targets = append(targets, attached)
	}

	return targets
}

// readLoop 处理单个实例的上行消息直到连接关闭
func (hub *Hub) readLoop(ctx context.Context, attached *client) {
	for {
		_, data, err := attached.conn.Read(ctx)
		if err != nil {
			attached.conn.Close(websocket.StatusNormalClosure, "")
			return
		}

		hub.handleInbound(ctx, attached, data)
	}
}

// handleInbound 处理一条上行消息
// try-sync-now 触发一轮同步;navigate 更新实例的当前位置
func (hub *Hub) handleInbound(ctx context.Context, attached *client, data []byte) {
	var message inboundMessage
	if err := json.Unmarshal(data, &message); err != nil {
		// 兼容裸字符串形式的 "try-sync-now"
		if string(data) == `"`+messageTrySyncNow+`"` || string(data) == messageTrySyncNow {
			hub.triggerSync(ctx)
		}
		return
	}

	switch message.Type {
	case messageTrySyncNow:
		hub.triggerSync(ctx)

	case messageNavigate:
		hub.mu.Lock()
		attached.location = message.URL
		hub.mu.Unlock()
	}
}

// triggerSync 回调同步触发器
func (hub *Hub) triggerSync(ctx context.Context) {
	if hub.onSync == nil {
		return
	}

	hub.onSync(ctx)
}

// send 向单个实例发送事件,失败只记录日志
func (hub *Hub) send(ctx context.Context, target *client, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	target.writeMu.Lock()
	defer target.writeMu.Unlock()

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := target.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		log.Printf("[Hub] 向实例 %s 发送事件失败: %v", target.id, err)
	}
}
