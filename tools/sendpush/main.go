package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"offline-gateway/internal/webpush"
)

var (
	vapidFile        = flag.String("vapid", "vapid.json", "VAPID 密钥对文件路径")
	subscriptionFile = flag.String("sub", "subscription.json", "订阅对象文件路径")
	title            = flag.String("title", "测试推送", "通知标题")
	body             = flag.String("body", "这是一条测试推送", "通知正文")
	clickURL         = flag.String("url", "/", "点击通知打开的路径")
	subject          = flag.String("subject", "mailto:admin@example.com", "VAPID sub 声明")
	ttl              = flag.String("ttl", "60", "推送服务保留秒数")
)

// vapidKeys vapid.json 的文件格式,与生成工具的输出一致
type vapidKeys struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

func main() {
	flag.Parse()

	keys := loadVapidKeys(*vapidFile)
	subscription := loadSubscription(*subscriptionFile)

	signer, err := webpush.NewVapid(keys.PrivateKey, keys.PublicKey, *subject)
	if err != nil {
		log.Fatalf("VAPID 签名器创建失败: %v", err)
	}

	authorization, err := signer.Authorization(subscription.Endpoint)
	if err != nil {
		log.Fatalf("生成授权头失败: %v", err)
	}

	status, err := sendPush(subscription.Endpoint, authorization)
	if err != nil {
		log.Fatalf("推送发送失败: %v", err)
	}

	fmt.Printf("推送已发送: %s -> %d\n", subscription.Endpoint, status)
}

// loadVapidKeys 读取 VAPID 密钥对文件
func loadVapidKeys(path string) vapidKeys {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("读取 VAPID 密钥文件失败: %v", err)
	}

	var keys vapidKeys
	if err := json.Unmarshal(data, &keys); err != nil {
		log.Fatalf("解析 VAPID 密钥文件失败: %v", err)
	}

	if keys.PublicKey == "" || keys.PrivateKey == "" {
		log.Fatalf("VAPID 密钥文件缺少 publicKey 或 privateKey")
	}

	return keys
}

// loadSubscription 读取并解析订阅对象文件
func loadSubscription(path string) *webpush.Subscription {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("读取订阅文件失败: %v", err)
	}

	subscription, err := webpush.SubscriptionFromJSON(data)
	if err != nil {
		log.Fatalf("解析订阅文件失败: %v", err)
	}

	return subscription
}

// sendPush 向订阅端点发送一条推送并返回 HTTP 状态码
func sendPush(endpoint string, authorization string) (int, error) {
	payload, err := json.Marshal(map[string]string{
		"title": *title,
		"body":  *body,
		"url":   *clickURL,
	})
	if err != nil {
		return 0, fmt.Errorf("序列化推送负载失败: %w", err)
	}

	request, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("构建推送请求失败: %w", err)
	}

	request.Header.Set("Authorization", authorization)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("TTL", *ttl)

	client := &http.Client{Timeout: 10 * time.Second}
	response, err := client.Do(request)
	if err != nil {
		return 0, fmt.Errorf("推送端点不可达: %w", err)
	}
	defer response.Body.Close()

	return response.StatusCode, nil
}
