package identity

import (
	"strings"

	"github.com/dnslin/authsession/core/httpclient"
)

// Endpoints 允许替换身份服务的接口路径，便于测试或适配不同部署。
type Endpoints struct {
	Login    string
	Me       string
	Register string
}

// DefaultEndpoints 返回默认接口路径。
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:    "/login",
		Me:       "/users/me",
		Register: "/register",
	}
}

// Client 封装身份服务的 HTTP 调用。
type Client struct {
	http      *httpclient.Client
	tokens    httpclient.TokenProvider
	logger    httpclient.Logger
	baseURL   string
	endpoints Endpoints
}

// Option 自定义客户端配置。
type Option func(*Client)

// WithHTTPClient 注入自定义 httpclient.Client。
func WithHTTPClient(cli *httpclient.Client) Option {
	return func(c *Client) {
		if cli != nil {
			c.http = cli
		}
	}
}

// WithLogger 注入日志接口。
func WithLogger(logger httpclient.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEndpoints 替换接口路径，空字段保持默认值。
func WithEndpoints(ep Endpoints) Option {
	return func(c *Client) {
		if ep.Login != "" {
			c.endpoints.Login = ep.Login
		}
		if ep.Me != "" {
			c.endpoints.Me = ep.Me
		}
		if ep.Register != "" {
			c.endpoints.Register = ep.Register
		}
	}
}

// WithTokenProvider 设置凭证来源，每次请求时读取并附加 Bearer 头。
func WithTokenProvider(tp httpclient.TokenProvider) Option {
	return func(c *Client) {
		c.tokens = tp
	}
}

// NewClient 创建身份服务客户端。
func NewClient(baseURL string, opts ...Option) *Client {
	cli := &Client{
		logger:    httpclient.NopLogger{},
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		endpoints: DefaultEndpoints(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cli)
		}
	}
	if cli.http == nil {
		cli.http = httpclient.NewClient(httpclient.WithLogger(cli.logger))
	}
	cli.http.Use(httpclient.WithRequestID(), httpclient.BearerAuth(cli))
	return cli
}

// SetTokenProvider 在创建后绑定凭证来源，用于与 SessionStore 互相引用的场景，
// 需在发起请求前调用。
func (c *Client) SetTokenProvider(tp httpclient.TokenProvider) {
	c.tokens = tp
}

// Token 实现 httpclient.TokenProvider，将调用委托给当前绑定的来源。
func (c *Client) Token() string {
	if c == nil || c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// BaseURL 返回身份服务地址。
func (c *Client) BaseURL() string {
	return c.baseURL
}
