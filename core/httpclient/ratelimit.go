package httpclient

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter 按 host/路由限流。
type RateLimiter interface {
	Wait(ctx context.Context, req *http.Request) error
}

// TokenBucketLimiter 基于令牌桶的限流实现，每个 key 独立计数。
type TokenBucketLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	keyFn    func(*http.Request) string
	limit    rate.Limit
	burst    int
}

// NewTokenBucketLimiter 创建按 key（host/路由）区分的限流器。
func NewTokenBucketLimiter(qps float64, burst int, keyFn func(*http.Request) string) *TokenBucketLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketLimiter{
		limiters: make(map[string]*rate.Limiter),
		keyFn:    keyFn,
		limit:    rate.Limit(qps),
		burst:    burst,
	}
}

// Wait 在发起请求前阻塞，直到当前 key 拿到令牌或上下文取消。
func (l *TokenBucketLimiter) Wait(ctx context.Context, req *http.Request) error {
	if l == nil || l.limit <= 0 {
		return nil
	}
	return l.getLimiter(req).Wait(ctx)
}

// PathKey 按请求路径区分限流桶，登录与查询互不影响。
func PathKey(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	return req.URL.Host + req.URL.Path
}

func (l *TokenBucketLimiter) getLimiter(req *http.Request) *rate.Limiter {
	key := ""
	if req != nil && req.URL != nil {
		key = req.URL.Host
	}
	if l.keyFn != nil {
		if k := l.keyFn(req); k != "" {
			key = k
		}
	}
	if key == "" {
		key = "default"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[key]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	l.limiters[key] = limiter
	return limiter
}
