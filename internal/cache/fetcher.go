package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// 公共错误变量
var (
	// ErrNetworkFailure 上游网络请求失败
	// 属于预期内的瞬态错误,驱动回退与重试,不作为硬错误上抛给用户
	ErrNetworkFailure = errors.New("upstream network failure")
)

// Response 一次上游抓取的结果
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Fetcher 上游抓取接口
// key 为相对上游源站的路径,或指向外部 API 主机的绝对地址
type Fetcher interface {
	Fetch(ctx context.Context, key string) (*Response, error)
}

// HTTPFetcher 基于 net/http 的上游抓取实现
type HTTPFetcher struct {
	origin string
	client *http.Client
}

// NewHTTPFetcher 创建上游抓取实例
func NewHTTPFetcher(origin string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		origin: strings.TrimRight(origin, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch 抓取一个上游资源
// 网络层失败返回 ErrNetworkFailure;非 2xx 响应照常返回,由调用方决定取舍
func (fetcher *HTTPFetcher) Fetch(ctx context.Context, key string) (*Response, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, fetcher.buildURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}

	response, err := fetcher.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}

	return &Response{
		Status:      response.StatusCode,
		ContentType: response.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// buildURL 将请求键解析为完整地址
func (fetcher *HTTPFetcher) buildURL(key string) string {
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key
	}
	return fetcher.origin + key
}
