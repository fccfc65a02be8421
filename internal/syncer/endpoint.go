package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"offline-gateway/internal/store"
)

// 公共错误变量
var (
	// ErrDeliveryRejected 远端返回非成功状态
	// 与网络失败同等对待:记录保持 pending,等待下一轮同步
	ErrDeliveryRejected = errors.New("remote rejected delivery")
)

// Deliverer 单条记录投递接口
type Deliverer interface {
	Deliver(ctx context.Context, entry store.Entry) error
}

// entryPayload 远端同步端点约定的请求体
type entryPayload struct {
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

// Endpoint 远端同步端点客户端
// 固定地址接收 POST JSON {text, createdAt},2xx 即确认,响应体不作解释
type Endpoint struct {
	url    string
	client *http.Client
}

// NewEndpoint 创建远端同步端点客户端
func NewEndpoint(url string, timeout time.Duration) *Endpoint {
	return &Endpoint{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Deliver 投递单条记录
func (endpoint *Endpoint) Deliver(ctx context.Context, entry store.Entry) error {
	payload, err := json.Marshal(entryPayload{
		Text:      entry.Text,
		CreatedAt: entry.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal entry payload: %w", err)
	}

	request, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		endpoint.url,
		bytes.NewReader(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to build sync request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := endpoint.client.Do(request)
	if err != nil {
		return fmt.Errorf("sync endpoint unreachable: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrDeliveryRejected, response.StatusCode)
	}

	return nil
}
