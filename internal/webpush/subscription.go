package webpush

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Subscription 浏览器推送订阅的描述符
// endpoint 指向推送服务;p256dh 和 auth 来自订阅对象的 keys 字段
type Subscription struct {
	// Endpoint 推送服务接收消息的 URL
	Endpoint string

	// Key 客户端的 P-256 公钥,来自 keys.p256dh
	Key []byte

	// Auth 客户端的认证密钥,来自 keys.auth
	Auth []byte
}

// SubscriptionFromJSON 从浏览器导出的 JSON 订阅对象解析描述符
// 兼容带填充的 base64 编码(部分旧版浏览器会多出 '=')
func SubscriptionFromJSON(data []byte) (*Subscription, error) {
	var raw struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse subscription: %w", err)
	}

	if raw.Endpoint == "" {
		return nil, fmt.Errorf("subscription endpoint is empty")
	}

	decoder := base64.URLEncoding.WithPadding(base64.NoPadding)

	key, err := decoder.DecodeString(strings.TrimRight(raw.Keys.P256dh, "="))
	if err != nil {
		return nil, fmt.Errorf("failed to decode p256dh key: %w", err)
	}

	auth, err := decoder.DecodeString(strings.TrimRight(raw.Keys.Auth, "="))
	if err != nil {
		return nil, fmt.Errorf("failed to decode auth secret: %w", err)
	}

	return &Subscription{
		Endpoint: raw.Endpoint,
		Key:      key,
		Auth:     auth,
	}, nil
}
