package main

import (
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"offline-gateway/internal/notify"
	"offline-gateway/internal/router"
	"offline-gateway/internal/store"
	"offline-gateway/internal/webpush"

	"github.com/gin-gonic/gin"
)

//
// 数据模型定义
//

// UnifiedResponse 统一的 API 响应格式
type UnifiedResponse struct {
	Code int         `json:"code"`
	Data interface{} `json:"data,omitempty"`
	Msg  string      `json:"msg"`
}

// EntryCreateRequest 新建待办记录请求
type EntryCreateRequest struct {
	Text      string `json:"text" binding:"required"`
	CreatedAt int64  `json:"createdAt"`
}

// NotificationClickRequest 通知点击上报
type NotificationClickRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

//
// 辅助函数 - 响应处理
//

// sendSuccessResponse 发送成功响应
func sendSuccessResponse(context *gin.Context, data interface{}) {
	context.JSON(http.StatusOK, UnifiedResponse{
		Code: http.StatusOK,
		Data: data,
		Msg:  "success",
	})
}

// sendErrorResponse 发送错误响应
func sendErrorResponse(context *gin.Context, httpStatus int, message string) {
	context.JSON(httpStatus, UnifiedResponse{
		Code: httpStatus,
		Data: nil,
		Msg:  message,
	})
}

//
// 中间件
//

// corsMiddleware 跨域资源共享中间件
// 允许所有来源访问,便于前端开发和集成
// 生产环境建议根据需求配置白名单
func corsMiddleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		context.Header("Access-Control-Allow-Origin", "*")
		context.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		context.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if context.Request.Method == "OPTIONS" {
			context.AbortWithStatus(http.StatusNoContent)
			return
		}

		context.Next()
	}
}

//
// 处理器 - 待办记录相关
//

// EntryHandler 待办记录业务处理器
type EntryHandler struct {
	store store.Store
}

// NewEntryHandler 创建待办记录处理器实例
func NewEntryHandler(entryStore store.Store) *EntryHandler {
	return &EntryHandler{store: entryStore}
}

// handleCreateEntry 处理新建待办记录请求
// 未带时间戳时以服务端毫秒时间补齐
func (handler *EntryHandler) handleCreateEntry(context *gin.Context) {
	var request EntryCreateRequest

	if err := context.ShouldBindJSON(&request); err != nil {
		sendErrorResponse(context, http.StatusBadRequest, "参数验证失败: "+err.Error())
		return
	}

	if request.CreatedAt == 0 {
		request.CreatedAt = time.Now().UnixMilli()
	}

	entry, err := handler.store.InsertPending(
		context.Request.Context(),
		request.Text,
		request.CreatedAt,
	)
	if err != nil {
		log.Printf("[EntryHandler] 写入失败: %v", err)
		sendErrorResponse(context, http.StatusInternalServerError, "写入待办记录失败")
		return
	}

	sendSuccessResponse(context, entry)
}

// handleListEntries 处理待办记录查询请求
// status 参数默认查询 pending
func (handler *EntryHandler) handleListEntries(context *gin.Context) {
	status := context.DefaultQuery("status", store.StatusPending)
	if status != store.StatusPending && status != store.StatusSynced {
		sendErrorResponse(context, http.StatusBadRequest, "未知状态: "+status)
		return
	}

	entries, err := handler.store.ListByStatus(context.Request.Context(), status)
	if err != nil {
		log.Printf("[EntryHandler] 查询失败: %v", err)
		sendErrorResponse(context, http.StatusInternalServerError, "查询待办记录失败")
		return
	}

	sendSuccessResponse(context, entries)
}

// handleClearEntries 处理清空记录请求
func (handler *EntryHandler) handleClearEntries(context *gin.Context) {
	if err := handler.store.ClearAll(context.Request.Context()); err != nil {
		log.Printf("[EntryHandler] 清空失败: %v", err)
		sendErrorResponse(context, http.StatusInternalServerError, "清空待办记录失败")
		return
	}

	sendSuccessResponse(context, nil)
}

//
// 处理器 - 同步与推送相关
//

// WorkerHandler 工作进程事件处理器
// 把 HTTP 请求搬运成核心的平台事件
type WorkerHandler struct {
	app *AppContext
}

// NewWorkerHandler 创建工作进程事件处理器实例
func NewWorkerHandler(app *AppContext) *WorkerHandler {
	return &WorkerHandler{app: app}
}

// handleTriggerSync 处理手动触发同步请求
func (handler *WorkerHandler) handleTriggerSync(context *gin.Context) {
	outcome, err := handler.app.Core.HandleSync(
		context.Request.Context(),
		handler.app.Config.NSQ.RetryTag,
	)
	if err != nil {
		log.Printf("[WorkerHandler] 同步失败: %v", err)
		sendErrorResponse(context, http.StatusInternalServerError, "同步失败")
		return
	}

	sendSuccessResponse(context, outcome)
}

// handleInboundPush 处理推送服务下发的事件
// 负载损坏也会降级展示,响应里回显实际使用的通知内容
func (handler *WorkerHandler) handleInboundPush(context *gin.Context) {
	payload, err := context.GetRawData()
	if err != nil {
		sendErrorResponse(context, http.StatusBadRequest, "读取推送负载失败")
		return
	}

	notification := handler.app.Core.HandlePush(context.Request.Context(), payload)
	sendSuccessResponse(context, notification)
}

// handleNotificationClick 处理通知点击上报
func (handler *WorkerHandler) handleNotificationClick(context *gin.Context) {
	var request NotificationClickRequest
	if err := context.ShouldBindJSON(&request); err != nil {
		sendErrorResponse(context, http.StatusBadRequest, "参数验证失败: "+err.Error())
		return
	}

	err := handler.app.Core.HandleNotificationClick(context.Request.Context(), notify.Notification{
		Title: request.Title,
		Body:  request.Body,
		URL:   request.URL,
	})
	if err != nil {
		log.Printf("[WorkerHandler] 通知点击处理失败: %v", err)
		sendErrorResponse(context, http.StatusInternalServerError, "通知点击处理失败")
		return
	}

	sendSuccessResponse(context, nil)
}

// handleSubscriptionChange 处理订阅轮换上报
func (handler *WorkerHandler) handleSubscriptionChange(context *gin.Context) {
	handler.app.Core.HandleSubscriptionChange(context.Request.Context())
	sendSuccessResponse(context, nil)
}

// handleSubscribe 处理订阅登记请求
// 校验订阅描述符并登记到会话内登记表,不做持久化
func (handler *WorkerHandler) handleSubscribe(context *gin.Context) {
	payload, err := context.GetRawData()
	if err != nil {
		sendErrorResponse(context, http.StatusBadRequest, "读取订阅对象失败")
		return
	}

	subscription, err := webpush.SubscriptionFromJSON(payload)
	if err != nil {
		sendErrorResponse(context, http.StatusBadRequest, "订阅对象不合法: "+err.Error())
		return
	}

	handler.app.Subscriptions.Save(subscription)
	sendSuccessResponse(context, gin.H{"endpoint": subscription.Endpoint})
}

// handleListSubscriptions 处理订阅查询请求
func (handler *WorkerHandler) handleListSubscriptions(context *gin.Context) {
	sendSuccessResponse(context, gin.H{"endpoints": handler.app.Subscriptions.Endpoints()})
}

// handleUnsubscribe 处理订阅注销请求
func (handler *WorkerHandler) handleUnsubscribe(context *gin.Context) {
	endpoint := context.Query("endpoint")
	if endpoint == "" {
		sendErrorResponse(context, http.StatusBadRequest, "缺少 endpoint 参数")
		return
	}

	if !handler.app.Subscriptions.Remove(endpoint) {
		sendErrorResponse(context, http.StatusNotFound, "订阅不存在")
		return
	}

	sendSuccessResponse(context, nil)
}

// handleConnect 处理 UI 实例的 websocket 接入
func (handler *WorkerHandler) handleConnect(context *gin.Context) {
	location := context.DefaultQuery("location", "/")

	if err := handler.app.Hub.Attach(context.Writer, context.Request, location); err != nil {
		log.Printf("[WorkerHandler] websocket 接入失败: %v", err)
	}
}

//
// 处理器 - 网关透传与读请求
//

// GatewayHandler 网关请求处理器
// 读请求走策略引擎,其余方法原样透传上游
type GatewayHandler struct {
	app   *AppContext
	proxy *httputil.ReverseProxy
}

// NewGatewayHandler 创建网关请求处理器实例
func NewGatewayHandler(app *AppContext) *GatewayHandler {
	origin, err := url.Parse(app.Config.Cache.UpstreamOrigin)
	if err != nil {
		log.Fatalf("[Gateway] 上游源站地址不合法: %v", err)
	}

	return &GatewayHandler{
		app:   app,
		proxy: httputil.NewSingleHostReverseProxy(origin),
	}
}

// handleRequest 处理所有未匹配路由的请求
func (handler *GatewayHandler) handleRequest(context *gin.Context) {
	if context.Request.Method != http.MethodGet {
		// 写路径不经过缓存层,成败由上游决定
		handler.proxy.ServeHTTP(context.Writer, context.Request)
		return
	}

	request := extractRequest(context)

	response, err := handler.app.Core.HandleFetch(context.Request.Context(), request)
	if err != nil {
		sendErrorResponse(context, http.StatusBadGateway, "上游不可达且无可用缓存")
		return
	}

	context.Data(response.Status, response.ContentType, response.Body)
}

// extractRequest 从 HTTP 请求抽取分类所需属性
// 绝对形式的请求行表示跨源代理,其余视为同源
func extractRequest(context *gin.Context) router.Request {
	requestURL := context.Request.URL
	sameOrigin := requestURL.Host == ""

	host := context.Request.Host
	if !sameOrigin {
		host = requestURL.Host
	}

	return router.Request{
		Method:      context.Request.Method,
		Host:        host,
		SameOrigin:  sameOrigin,
		Path:        requestURL.Path,
		RawQuery:    requestURL.RawQuery,
		Mode:        context.GetHeader("Sec-Fetch-Mode"),
		Destination: context.GetHeader("Sec-Fetch-Dest"),
	}
}

//
// 路由构建主函数
//

// BuildGinRouter 构建 Gin 路由器
// 集中管理所有 HTTP 路由,包括记录接口、工作进程事件和网关透传
func BuildGinRouter(app *AppContext) *gin.Engine {
	router := gin.Default()

	// 应用全局中间件
	router.Use(corsMiddleware())

	// 初始化处理器
	entryHandler := NewEntryHandler(app.EntryStore)
	workerHandler := NewWorkerHandler(app)
	gatewayHandler := NewGatewayHandler(app)

	// API 路由组
	api := router.Group("/api")
	{
		registerEntryRoutes(api, entryHandler)
		registerWorkerRoutes(api, workerHandler)
	}

	// UI 实例接入
	router.GET("/ws", workerHandler.handleConnect)

	// 其余请求全部交给网关处理
	router.NoRoute(gatewayHandler.handleRequest)

	return router
}

// registerEntryRoutes 注册待办记录路由
func registerEntryRoutes(group *gin.RouterGroup, handler *EntryHandler) {
	group.POST("/entries", handler.handleCreateEntry)
	group.GET("/entries", handler.handleListEntries)
	group.DELETE("/entries", handler.handleClearEntries)
}

// registerWorkerRoutes 注册工作进程事件路由
func registerWorkerRoutes(group *gin.RouterGroup, handler *WorkerHandler) {
	group.POST("/sync", handler.handleTriggerSync)
	group.POST("/push", handler.handleInboundPush)
	group.POST("/push/click", handler.handleNotificationClick)
	group.POST("/push/subscription-change", handler.handleSubscriptionChange)
	group.POST("/subscribe", handler.handleSubscribe)
	group.GET("/subscribe", handler.handleListSubscriptions)
	group.DELETE("/subscribe", handler.handleUnsubscribe)
}
