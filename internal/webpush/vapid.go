package webpush

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"time"
)

// 编码后的 {"typ":"JWT","alg":"ES256"}
const jwtHeaderES256 = "eyJ0eXAiOiJKV1QiLCJhbGciOiJFUzI1NiJ9"

const tokenLifetime = time.Hour

// Vapid VAPID 签名器 (RFC 8292)
// 持有 EC P-256 密钥对,为推送请求生成 Authorization 头
type Vapid struct {
	privateKey      *ecdsa.PrivateKey
	publicKeyBase64 string
	subject         string
}

// vapidClaims JWT 声明体
type vapidClaims struct {
	Aud string `json:"aud"`
	Exp int64  `json:"exp"`
	Sub string `json:"sub,omitempty"`
}

// NewVapid 从 base64url 编码的裸密钥对创建签名器
// 私钥为 32 字节标量,公钥为 65 字节未压缩点(推送服务要求原样回传)
func NewVapid(privateKeyBase64, publicKeyBase64, subject string) (*Vapid, error) {
	decoder := base64.RawURLEncoding

	scalar, err := decoder.DecodeString(privateKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vapid private key: %w", err)
	}
	if len(scalar) != 32 {
		return nil, fmt.Errorf("vapid private key must be 32 bytes, got %d", len(scalar))
	}

	curve := elliptic.P256()
	privateKey := new(ecdsa.PrivateKey)
	privateKey.Curve = curve
	privateKey.D = new(big.Int).SetBytes(scalar)
	privateKey.X, privateKey.Y = curve.ScalarBaseMult(scalar)

	return &Vapid{
		privateKey:      privateKey,
		publicKeyBase64: publicKeyBase64,
		subject:         subject,
	}, nil
}

// Authorization 为订阅端点生成 "vapid t=..., k=..." 授权头
// aud 取端点的 scheme+host,令牌有效期一小时
func (vapid *Vapid) Authorization(endpoint string) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("invalid push endpoint: %s", endpoint)
	}

	claims, err := json.Marshal(vapidClaims{
		Aud: parsed.Scheme + "://" + parsed.Host,
		Exp: time.Now().Add(tokenLifetime).Unix(),
		Sub: vapid.subject,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal vapid claims: %w", err)
	}

	encoder := base64.RawURLEncoding
	signingInput := jwtHeaderES256 + "." + encoder.EncodeToString(claims)

	signature, err := vapid.sign([]byte(signingInput))
	if err != nil {
		return "", err
	}

	token := signingInput + "." + encoder.EncodeToString(signature)
	return "vapid t=" + token + ", k=" + vapid.publicKeyBase64, nil
}

// sign 对输入做 SHA-256 后用 ES256 签名,输出定长 r||s 各 32 字节
func (vapid *Vapid) sign(input []byte) ([]byte, error) {
	hasher := crypto.SHA256.New()
	hasher.Write(input)

	r, s, err := ecdsa.Sign(rand.Reader, vapid.privateKey, hasher.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to sign vapid token: %w", err)
	}

	signature := make([]byte, 64)
	r.FillBytes(signature[:32])
	s.FillBytes(signature[32:])

	return signature, nil
}
