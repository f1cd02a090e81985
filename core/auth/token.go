package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpired 在凭证是带 exp 的 JWT 且已过期时返回 true。
// 不校验签名，仅用于跳过注定失败的网络请求；非 JWT 凭证一律返回 false。
func tokenExpired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
