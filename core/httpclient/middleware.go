package httpclient

import (
	"net/http"

	"github.com/google/uuid"
)

// Middleware 是请求预处理钩子，用于注入鉴权、UA、Content-Type 等。
type Middleware func(req *http.Request) error

// PrepareChain 代表按顺序执行的中间件集合。
type PrepareChain []Middleware

// Apply 依次执行链路中的中间件，遇到错误立即返回。
func (c PrepareChain) Apply(req *http.Request) error {
	for _, mw := range c {
		if mw == nil {
			continue
		}
		if err := mw(req); err != nil {
			return err
		}
	}
	return nil
}

// WithHeader 设置请求头。
func WithHeader(key, value string) Middleware {
	return func(req *http.Request) error {
		req.Header.Set(key, value)
		return nil
	}
}

// WithUserAgent 设置 User-Agent。
func WithUserAgent(ua string) Middleware {
	return WithHeader("User-Agent", ua)
}

// RequestIDHeader 为请求关联 ID 使用的请求头。
const RequestIDHeader = "X-Request-ID"

// WithRequestID 为未携带关联 ID 的请求生成一个。
func WithRequestID() Middleware {
	return func(req *http.Request) error {
		if req.Header.Get(RequestIDHeader) == "" {
			req.Header.Set(RequestIDHeader, uuid.NewString())
		}
		return nil
	}
}

// TokenProvider 在发送时提供当前凭证。
type TokenProvider interface {
	Token() string
}

// TokenFunc 将函数适配为 TokenProvider。
type TokenFunc func() string

// Token 实现 TokenProvider。
func (f TokenFunc) Token() string {
	return f()
}

// BearerAuth 每次请求时读取当前凭证并附加 Authorization 头。
// 凭证为空时移除该头，已显式设置的头不会被覆盖。
func BearerAuth(provider TokenProvider) Middleware {
	return func(req *http.Request) error {
		if provider == nil || req.Header.Get("Authorization") != "" {
			return nil
		}
		token := provider.Token()
		if token == "" {
			req.Header.Del("Authorization")
			return nil
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	}
}
