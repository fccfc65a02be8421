package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 默认配置常量
const (
	// NSQ 重试队列默认配置
	DefaultNSQTopic       = "offline-sync"
	DefaultNSQChannel     = "sync-workers"
	DefaultNSQMaxInFlight = 16
	DefaultNSQConcurrency = 1
	DefaultRetryTag       = "sync-entries"
	DefaultRetryDelay     = time.Minute

	// 应用默认配置
	DefaultHTTPAddress    = ":8080"
	DefaultRequestTimeout = 15 * time.Second

	// 存储默认配置
	DefaultRedisNamespace = "offline"

	// 缓存默认配置
	DefaultEpoch      = "v3"
	DefaultOfflineURL = "/offline.html"

	// 通知默认配置
	DefaultNotificationTitle = "Notification"
	DefaultNotificationBody  = "You have a new message"
	DefaultNotificationIcon  = "/icons/icon-192.png"
)

// 逻辑分区名常量
// 分区实际名称为 {逻辑名}-{epoch}
const (
	PartitionShell   = "static"
	PartitionRuntime = "runtime"
	PartitionImage   = "images"
)

// App 应用全局配置
type App struct {
	Addr           string        `yaml:"Addr"`           // HTTP 监听地址
	RequestTimeout time.Duration `yaml:"RequestTimeout"` // 上游请求超时
}

// Storage 存储配置
// Redis 承载缓存分区,MySQL 承载待同步记录
type Storage struct {
	RedisAddr string      `yaml:"RedisAddr"` // Redis 地址
	Namespace string      `yaml:"Namespace"` // Redis 键前缀
	MySQL     MySQLConfig `yaml:"MySQL"`     // MySQL 配置
}

// MySQLConfig MySQL 数据库连接配置
type MySQLConfig struct {
	DSN             string        `yaml:"DSN"`             // 数据源配置
	MaxOpenConns    int           `yaml:"MaxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int           `yaml:"MaxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `yaml:"ConnMaxLifetime"` // 连接最大生命周期
}

// NSQ 重试调度配置
// 平台重试设施:同步残留待办时通过延迟发布注册一次重试
type NSQ struct {
	Topic            string        `yaml:"Topic"`            // 重试主题
	Channel          string        `yaml:"Channel"`          // 消费者通道
	NsqdTCPAddrs     []string      `yaml:"NsqdTCPAddrs"`     // NSQD TCP 地址列表
	LookupdHTTPAddrs []string      `yaml:"LookupdHTTPAddrs"` // Lookupd HTTP 地址列表
	ProducerAddr     string        `yaml:"ProducerAddr"`     // 生产者地址
	ConsumerEnabled  bool          `yaml:"ConsumerEnabled"`  // 是否启用消费
	MaxInFlight      int           `yaml:"MaxInFlight"`      // 最大并发消息数
	Concurrency      int           `yaml:"Concurrency"`      // 处理并发数
	RetryTag         string        `yaml:"RetryTag"`         // 重试标签
	RetryDelay       time.Duration `yaml:"RetryDelay"`       // 延迟重试间隔
}

// Cache 缓存分层配置
type Cache struct {
	Epoch          string   `yaml:"Epoch"`          // 部署纪元,变更后旧分区被回收
	UpstreamOrigin string   `yaml:"UpstreamOrigin"` // 上游源站地址
	OfflineURL     string   `yaml:"OfflineURL"`     // 离线回退页路径
	AppShell       []string `yaml:"AppShell"`       // App Shell 预缓存清单
}

// Sync 远端同步配置
type Sync struct {
	EndpointURL string `yaml:"EndpointURL"` // 接收 {text, createdAt} 的远端地址
}

// API 请求分类配置
// 命中的请求按 network-first/runtime 处理
type API struct {
	Hosts      []string `yaml:"Hosts"`      // 外部 API 主机白名单
	PathPrefix string   `yaml:"PathPrefix"` // 同源 API 路径前缀
}

// Push 通知展示配置
type Push struct {
	DefaultTitle string `yaml:"DefaultTitle"` // 默认标题
	DefaultBody  string `yaml:"DefaultBody"`  // 默认正文
	Icon         string `yaml:"Icon"`         // 通知图标
	Badge        string `yaml:"Badge"`        // 通知徽标
}

// Config 应用完整配置
type Config struct {
	App     App     `yaml:"App"`
	Storage Storage `yaml:"Storage"`
	NSQ     NSQ     `yaml:"NSQ"`
	Cache   Cache   `yaml:"Cache"`
	Sync    Sync    `yaml:"Sync"`
	API     API     `yaml:"API"`
	Push    Push    `yaml:"Push"`
}

// MustLoad 加载 YAML 配置文件
// 加载失败时直接 panic(用于应用启动阶段)
func MustLoad(configPath string) Config {
	fileContent, err := os.ReadFile(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to read config file: %v", err))
	}

	var config Config
	if err := yaml.Unmarshal(fileContent, &config); err != nil {
		panic(fmt.Sprintf("failed to unmarshal config: %v", err))
	}

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}

	return config
}

// validate 校验配置并设置默认值
func (config *Config) validate() error {
	if err := config.validateAppConfig(); err != nil {
		return err
	}

	if err := config.validateStorageConfig(); err != nil {
		return err
	}

	if err := config.validateNSQConfig(); err != nil {
		return err
	}

	if err := config.validateCacheConfig(); err != nil {
		return err
	}

	if err := config.validateSyncConfig(); err != nil {
		return err
	}

	config.applyPushDefaults()
	return nil
}

// validateAppConfig 校验应用配置并设置默认值
func (config *Config) validateAppConfig() error {
	if config.App.Addr == "" {
		config.App.Addr = DefaultHTTPAddress
	}

	if config.App.RequestTimeout <= 0 {
		config.App.RequestTimeout = DefaultRequestTimeout
	}

	return nil
}

// validateStorageConfig 校验存储配置并设置默认值
func (config *Config) validateStorageConfig() error {
	if config.Storage.Namespace == "" {
		config.Storage.Namespace = DefaultRedisNamespace
	}

	return nil
}

// validateNSQConfig 校验 NSQ 配置并设置默认值
func (config *Config) validateNSQConfig() error {
	if config.NSQ.Topic == "" {
		config.NSQ.Topic = DefaultNSQTopic
	}

	if config.NSQ.Channel == "" {
		config.NSQ.Channel = DefaultNSQChannel
	}

	if config.NSQ.MaxInFlight <= 0 {
		config.NSQ.MaxInFlight = DefaultNSQMaxInFlight
	}

	if config.NSQ.Concurrency <= 0 {
		config.NSQ.Concurrency = DefaultNSQConcurrency
	}

	if config.NSQ.RetryTag == "" {
		config.NSQ.RetryTag = DefaultRetryTag
	}

	if config.NSQ.RetryDelay <= 0 {
		config.NSQ.RetryDelay = DefaultRetryDelay
	}

	return nil
}

// validateCacheConfig 校验缓存配置并设置默认值
// 离线回退页必须包含在预缓存清单中,否则断网时无页可退
func (config *Config) validateCacheConfig() error {
	if config.Cache.Epoch == "" {
		config.Cache.Epoch = DefaultEpoch
	}

	if config.Cache.UpstreamOrigin == "" {
		return fmt.Errorf("cache upstream origin is required")
	}

	if config.Cache.OfflineURL == "" {
		config.Cache.OfflineURL = DefaultOfflineURL
	}

	if !containsPath(config.Cache.AppShell, config.Cache.OfflineURL) {
		config.Cache.AppShell = append(config.Cache.AppShell, config.Cache.OfflineURL)
	}

	return nil
}

// validateSyncConfig 校验同步配置
func (config *Config) validateSyncConfig() error {
	if config.Sync.EndpointURL == "" {
		return fmt.Errorf("sync endpoint url is required")
	}

	return nil
}

// applyPushDefaults 为通知展示配置设置默认值
func (config *Config) applyPushDefaults() {
	if config.Push.DefaultTitle == "" {
		config.Push.DefaultTitle = DefaultNotificationTitle
	}

	if config.Push.DefaultBody == "" {
		config.Push.DefaultBody = DefaultNotificationBody
	}

	if config.Push.Icon == "" {
		config.Push.Icon = DefaultNotificationIcon
	}

	if config.Push.Badge == "" {
		config.Push.Badge = config.Push.Icon
	}
}

// PartitionName 返回逻辑分区在当前纪元下的实际名称
func (config *Cache) PartitionName(logical string) string {
	return logical + "-" + config.Epoch
}

// AllowedPartitions 返回当前纪元允许保留的分区名集合
func (config *Cache) AllowedPartitions() []string {
	return []string{
		config.PartitionName(PartitionShell),
		config.PartitionName(PartitionRuntime),
		config.PartitionName(PartitionImage),
	}
}

// containsPath 检查路径清单中是否包含指定路径
func containsPath(paths []string, target string) bool {
	for _, path := range paths {
		if strings.EqualFold(path, target) {
			return true
		}
	}
	return false
}
