package router

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"offline-gateway/internal/cache"
	"offline-gateway/internal/config"
)

// Strategy 缓存策略标识
type Strategy string

const (
	StrategyCacheFirst           Strategy = "cache-first"
	StrategyNetworkFirst         Strategy = "network-first"
	StrategyStaleWhileRevalidate Strategy = "stale-while-revalidate"
)

// 资源目标类型常量,对应 Sec-Fetch-Dest 取值
const (
	destImage    = "image"
	destScript   = "script"
	destStyle    = "style"
	destFont     = "font"
	destManifest = "manifest"
)

// Request 一次被拦截的读请求
// 分类所需的全部属性在进入分类器前抽取完毕
type Request struct {
	Method      string // HTTP 方法
	Host        string // 目标主机,跨源请求时与源站不同
	SameOrigin  bool   // 是否同源请求
	Path        string // 请求路径
	RawQuery    string // 查询串
	Mode        string // Sec-Fetch-Mode
	Destination string // Sec-Fetch-Dest,缺失时按扩展名推断
}

// Decision 分类结果
type Decision struct {
	Strategy        Strategy // 选用的缓存策略
	Partition       string   // 逻辑分区名
	OfflineFallback bool     // 网络失败时是否回退到离线页
}

// Router 请求路由器
// 按固定次序分类读请求并分发到对应的策略与分区
type Router struct {
	engine       *cache.Engine
	shell        *cache.Partition
	runtime      *cache.Partition
	image        *cache.Partition
	shellPaths   map[string]bool
	apiHosts     map[string]bool
	apiPrefix    string
	offlineURL   string
	partitionFor map[string]*cache.Partition
}

// New 创建请求路由器
func New(
	engine *cache.Engine,
	shell *cache.Partition,
	runtime *cache.Partition,
	image *cache.Partition,
	cacheConfig config.Cache,
	apiConfig config.API,
) *Router {
	shellPaths := make(map[string]bool, len(cacheConfig.AppShell))
	for _, shellPath := range cacheConfig.AppShell {
		shellPaths[shellPath] = true
	}

	apiHosts := make(map[string]bool, len(apiConfig.Hosts))
	for _, host := range apiConfig.Hosts {
		apiHosts[strings.ToLower(host)] = true
	}

	return &Router{
		engine:     engine,
		shell:      shell,
		runtime:    runtime,
		image:      image,
		shellPaths: shellPaths,
		apiHosts:   apiHosts,
		apiPrefix:  apiConfig.PathPrefix,
		offlineURL: cacheConfig.OfflineURL,
		partitionFor: map[string]*cache.Partition{
			config.PartitionShell:   shell,
			config.PartitionRuntime: runtime,
			config.PartitionImage:   image,
		},
	}
}

// Classify 对请求做总排序分类,首个命中即生效
// 给定相同请求必须得到相同结果,分类过程无副作用
func (router *Router) Classify(request Request) Decision {
	if request.Mode == "navigate" {
		return Decision{
			Strategy:        StrategyNetworkFirst,
			Partition:       config.PartitionShell,
			OfflineFallback: true,
		}
	}

	if request.SameOrigin && router.shellPaths[request.Path] {
		return Decision{
			Strategy:  StrategyCacheFirst,
			Partition: config.PartitionShell,
		}
	}

	if router.isAPIRequest(request) {
		return Decision{
			Strategy:  StrategyNetworkFirst,
			Partition: config.PartitionRuntime,
		}
	}

	destination := resolveDestination(request)

	if destination == destImage {
		return Decision{
			Strategy:  StrategyStaleWhileRevalidate,
			Partition: config.PartitionImage,
		}
	}

	// script/style/font/manifest 与兜底分支策略相同,合并处理
	return Decision{
		Strategy:  StrategyStaleWhileRevalidate,
		Partition: config.PartitionRuntime,
	}
}

// Handle 处理一次被拦截的读请求
// 非读方法不在此处理,调用方直接透传上游
func (router *Router) Handle(ctx context.Context, request Request) (*cache.Response, error) {
	if request.Method != http.MethodGet {
		return nil, fmt.Errorf("router only handles GET requests, got %s", request.Method)
	}

	decision := router.Classify(request)
	partition := router.partitionFor[decision.Partition]
	key := requestKey(request)

	switch decision.Strategy {
	case StrategyCacheFirst:
		return router.engine.CacheFirst(ctx, partition, key)

	case StrategyNetworkFirst:
		var fallback *cache.Response
		if decision.OfflineFallback {
			fallback = router.offlineFallback(ctx)
		}
		return router.engine.NetworkFirst(ctx, partition, key, fallback)

	default:
		return router.engine.StaleWhileRevalidate(ctx, partition, key)
	}
}

// isAPIRequest 判断请求是否命中 API 白名单
// 跨源请求匹配外部主机列表,同源请求匹配路径前缀
func (router *Router) isAPIRequest(request Request) bool {
	if !request.SameOrigin {
		return router.apiHosts[strings.ToLower(request.Host)]
	}

	return router.apiPrefix != "" && strings.HasPrefix(request.Path, router.apiPrefix)
}

// offlineFallback 从 shell 分区读取预缓存的离线页
// 离线页缺失时返回 nil,交由策略给出显式网络错误
func (router *Router) offlineFallback(ctx context.Context) *cache.Response {
	entry, found, err := router.shell.Match(ctx, router.offlineURL)
	if err != nil || !found {
		return nil
	}

	return &cache.Response{
		Status:      entry.Status,
		ContentType: entry.ContentType,
		Body:        entry.Body,
	}
}

// resolveDestination 解析资源目标类型
// 优先使用请求头携带的目标,缺失时按扩展名推断
func resolveDestination(request Request) string {
	if request.Destination != "" {
		return request.Destination
	}

	switch strings.ToLower(path.Ext(request.Path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico", ".avif":
		return destImage
	case ".js", ".mjs":
		return destScript
	case ".css":
		return destStyle
	case ".woff", ".woff2", ".ttf", ".otf":
		return destFont
	case ".webmanifest":
		return destManifest
	default:
		return ""
	}
}

// requestKey 构建缓存请求键
// 同源请求使用路径,跨源请求使用绝对地址;查询串参与键值
func requestKey(request Request) string {
	key := request.Path
	if request.RawQuery != "" {
		key += "?" + request.RawQuery
	}

	if !request.SameOrigin {
		return "https://" + request.Host + key
	}

	return key
}
