package main

import (
	"context"
	"log"

	"offline-gateway/internal/cache"
	"offline-gateway/internal/clients"
	"offline-gateway/internal/config"
	"offline-gateway/internal/database"
	"offline-gateway/internal/notify"
	"offline-gateway/internal/queue"
	"offline-gateway/internal/router"
	"offline-gateway/internal/store"
	"offline-gateway/internal/syncer"
	"offline-gateway/internal/webpush"
	"offline-gateway/internal/worker"

	redis "github.com/redis/go-redis/v9"
)

// AppContext 应用运行时上下文
// 聚合所有运行期依赖,统一管理生命周期
type AppContext struct {
	Config        config.Config
	RedisClient   *redis.Client
	MySQL         *database.MySQLDB
	EntryStore    store.Store
	Partitions    *cache.Partitions
	Router        *router.Router
	Lifecycle     *router.Lifecycle
	Hub           *clients.Hub
	Bridge        *notify.Bridge
	Coordinator   *syncer.Coordinator
	RetryProducer *queue.RetryProducer
	Subscriptions *webpush.Registry
	Core          *worker.Core
}

// Close 释放应用上下文持有的所有资源
// 按照依赖关系倒序释放,避免资源泄漏
func (context *AppContext) Close() {
	context.closeRetryProducer()
	context.closeMySQLConnection()
	context.closeRedisClient()
}

// closeRetryProducer 关闭重试注册器
func (context *AppContext) closeRetryProducer() {
	if context.RetryProducer != nil {
		context.RetryProducer.Close()
	}
}

// closeMySQLConnection 关闭 MySQL 连接
func (context *AppContext) closeMySQLConnection() {
	if context.MySQL != nil {
		context.MySQL.Close()
	}
}

// closeRedisClient 关闭 Redis 客户端
func (context *AppContext) closeRedisClient() {
	if context.RedisClient != nil {
		context.RedisClient.Close()
	}
}

//
// 应用初始化器
//

// ApplicationInitializer 应用初始化器
// 负责构建完整的应用运行上下文
type ApplicationInitializer struct {
	configuration config.Config
	redisClient   *redis.Client
	mysqlDatabase *database.MySQLDB
	entryStore    store.Store
}

// NewApplicationInitializer 创建应用初始化器实例
func NewApplicationInitializer(configuration config.Config) *ApplicationInitializer {
	return &ApplicationInitializer{
		configuration: configuration,
	}
}

// InitAppContext 初始化应用上下文
func InitAppContext(configuration config.Config) *AppContext {
	return NewApplicationInitializer(configuration).Initialize()
}

// Initialize 初始化应用上下文
// 按照依赖关系依次初始化各个组件
func (initializer *ApplicationInitializer) Initialize() *AppContext {
	initializer.initializeRedis()
	initializer.initializeMySQLStore()

	backend := initializer.createCacheBackend()
	partitions := cache.NewPartitions(backend)
	shell, runtime, image := initializer.openPartitions(partitions)

	fetcher := initializer.createFetcher()
	engine := cache.NewEngine(fetcher)

	requestRouter := router.New(
		engine,
		shell,
		runtime,
		image,
		initializer.configuration.Cache,
		initializer.configuration.API,
	)

	lifecycle := router.NewLifecycle(
		fetcher,
		partitions,
		shell,
		initializer.configuration.Cache.AppShell,
		initializer.configuration.Cache.AllowedPartitions(),
	)

	hub := clients.NewHub()
	bridge := notify.NewBridge(hub, initializer.configuration.Push)

	retryProducer := initializer.createRetryProducer()
	coordinator := initializer.createCoordinator(hub, retryProducer)

	core := worker.NewCore(
		lifecycle,
		requestRouter,
		coordinator,
		bridge,
		initializer.configuration.NSQ.RetryTag,
	)

	// UI 实例的 try-sync-now 经由集线器回流到核心
	hub.SetSyncTrigger(func(ctx context.Context) {
		core.HandleMessage(ctx, worker.MessageTrySyncNow)
	})

	return &AppContext{
		Config:        initializer.configuration,
		RedisClient:   initializer.redisClient,
		MySQL:         initializer.mysqlDatabase,
		EntryStore:    initializer.entryStore,
		Partitions:    partitions,
		Router:        requestRouter,
		Lifecycle:     lifecycle,
		Hub:           hub,
		Bridge:        bridge,
		Coordinator:   coordinator,
		RetryProducer: retryProducer,
		Subscriptions: webpush.NewRegistry(),
		Core:          core,
	}
}

// initializeRedis 初始化 Redis 客户端
func (initializer *ApplicationInitializer) initializeRedis() {
	initializer.redisClient = redis.NewClient(&redis.Options{
		Addr: initializer.configuration.Storage.RedisAddr,
	})

	log.Println("[Initializer] Redis 客户端初始化完成")
}

// initializeMySQLStore 初始化 MySQL 和待办记录存储
func (initializer *ApplicationInitializer) initializeMySQLStore() {
	mysqlDatabase, err := database.NewMySQLDB(initializer.configuration.Storage.MySQL)
	if err != nil {
		log.Fatalf("[Initializer] MySQL 连接失败: %v", err)
	}

	entryStore, err := store.NewMySQLStore(mysqlDatabase)
	if err != nil {
		log.Fatalf("[Initializer] 待办记录存储初始化失败: %v", err)
	}

	initializer.mysqlDatabase = mysqlDatabase
	initializer.entryStore = entryStore
	log.Println("[Initializer] MySQL 连接成功")
}

// createCacheBackend 创建缓存后端
func (initializer *ApplicationInitializer) createCacheBackend() cache.Backend {
	return cache.NewRedisBackend(
		initializer.redisClient,
		initializer.configuration.Storage.Namespace,
	)
}

// openPartitions 打开当前纪元的三个命名分区
// 打开失败意味着 Redis 不可用,此时服务没有继续启动的意义
func (initializer *ApplicationInitializer) openPartitions(
	partitions *cache.Partitions,
) (*cache.Partition, *cache.Partition, *cache.Partition) {
	ctx := context.Background()
	cacheConfig := &initializer.configuration.Cache

	shell := initializer.mustOpenPartition(ctx, partitions, cacheConfig.PartitionName(config.PartitionShell))
	runtime := initializer.mustOpenPartition(ctx, partitions, cacheConfig.PartitionName(config.PartitionRuntime))
	image := initializer.mustOpenPartition(ctx, partitions, cacheConfig.PartitionName(config.PartitionImage))

	return shell, runtime, image
}

// mustOpenPartition 打开单个分区,失败即终止
func (initializer *ApplicationInitializer) mustOpenPartition(
	ctx context.Context,
	partitions *cache.Partitions,
	name string,
) *cache.Partition {
	partition, err := partitions.Open(ctx, name)
	if err != nil {
		log.Fatalf("[Initializer] 打开分区 %s 失败: %v", name, err)
	}

	return partition
}

// createFetcher 创建上游抓取器
func (initializer *ApplicationInitializer) createFetcher() cache.Fetcher {
	return cache.NewHTTPFetcher(
		initializer.configuration.Cache.UpstreamOrigin,
		initializer.configuration.App.RequestTimeout,
	)
}

// createRetryProducer 创建重试注册器
// 未配置生产者地址时跳过,同步残留只能依赖外部再次触发
func (initializer *ApplicationInitializer) createRetryProducer() *queue.RetryProducer {
	nsqConfig := initializer.configuration.NSQ
	if nsqConfig.ProducerAddr == "" {
		log.Println("[Initializer] 未配置 NSQ 生产者,跳过重试注册器")
		return nil
	}

	producer, err := queue.NewRetryProducer(
		nsqConfig.ProducerAddr,
		nsqConfig.Topic,
		nsqConfig.RetryDelay,
	)
	if err != nil {
		log.Printf("[Initializer] 重试注册器创建失败: %v", err)
		return nil
	}

	log.Println("[Initializer] 重试注册器初始化完成")
	return producer
}

// createCoordinator 创建同步协调器
func (initializer *ApplicationInitializer) createCoordinator(
	notifier syncer.Notifier,
	retryProducer *queue.RetryProducer,
) *syncer.Coordinator {
	endpoint := syncer.NewEndpoint(
		initializer.configuration.Sync.EndpointURL,
		initializer.configuration.App.RequestTimeout,
	)

	// 类型化 nil 不能直接塞进接口,显式留空
	var scheduler syncer.RetryScheduler
	if retryProducer != nil {
		scheduler = retryProducer
	}

	return syncer.NewCoordinator(
		initializer.entryStore,
		endpoint,
		notifier,
		scheduler,
		initializer.configuration.NSQ.RetryTag,
	)
}
