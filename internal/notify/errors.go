package notify

import "errors"

// 公共错误变量
var (
	// ErrPushPayloadMalformed 推送负载不是合法 JSON
	// 负载损坏时通知降级为默认文案,不会被丢弃
	ErrPushPayloadMalformed = errors.New("push payload malformed")
)
