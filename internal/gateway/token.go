// Package gateway 实时事件网关：订阅令牌签发 + WebSocket 事件推送
//
// 网关是构建事件流的唯一读出口。客户端先换取一个限定在单个
// Run 频道上的短期 JWT，再用它打开 WebSocket 连接；令牌里的
// channel 声明把订阅范围钉死在 run:<runId> 上，拿到令牌的
// 客户端看不到任何其他 Run 的事件。
package gateway

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vibebuild/internal/shared/eventbus"
)

// TokenConfig 订阅令牌配置
type TokenConfig struct {
	Secret string        // HMAC 签名密钥，空则禁用令牌校验
	TTL    time.Duration // 令牌有效期，零值用 DefaultTokenTTL
}

// DefaultTokenTTL 订阅令牌默认有效期
const DefaultTokenTTL = 15 * time.Minute

// Enabled 是否启用令牌校验
func (c TokenConfig) Enabled() bool {
	return c.Secret != ""
}

// ttl 零值回退默认有效期；负值保留原样，签出的令牌立即过期
func (c TokenConfig) ttl() time.Duration {
	if c.TTL != 0 {
		return c.TTL
	}
	return DefaultTokenTTL
}

// RunChannel 单个 Run 的订阅频道名
func RunChannel(runID string) string {
	return "run:" + runID
}

// SubscriptionClaims 订阅令牌声明
//
// Channel 限定可订阅的频道，Topics 列出频道内可见的主题
type SubscriptionClaims struct {
	jwt.RegisteredClaims
	Channel string   `json:"channel"`
	Topics  []string `json:"topics"`
}

// IssueSubscriptionToken 为单个 Run 签发订阅令牌
func IssueSubscriptionToken(cfg TokenConfig, runID string) (string, error) {
	topics := make([]string, len(eventbus.Topics))
	for i, t := range eventbus.Topics {
		topics[i] = string(t)
	}

	claims := SubscriptionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   runID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.ttl())),
		},
		Channel: RunChannel(runID),
		Topics:  topics,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ParseSubscriptionToken 解析令牌并校验频道声明
//
// 签名有效但 channel 不匹配目标 Run 的令牌同样拒绝：
// 令牌只对签发时指定的那一个 Run 有效
func ParseSubscriptionToken(cfg TokenConfig, tokenString, runID string) (*SubscriptionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SubscriptionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*SubscriptionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Channel != RunChannel(runID) {
		return nil, fmt.Errorf("token not valid for channel %s", RunChannel(runID))
	}
	return claims, nil
}
