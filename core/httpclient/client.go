package httpclient

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// Logger 由外部注入，core 层自身不直接输出。
type Logger interface {
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger 默认空日志实现。
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Errorf(string, ...any) {}

// Client 在 http.Client 之上附加中间件、限流与统一的错误映射。
// 任何失败都原样返回，不会自动重试。
type Client struct {
	HTTP    *http.Client
	Prepare PrepareChain
	Limiter RateLimiter
	Logger  Logger
}

// Option 配置客户端。
type Option func(*Client)

// WithHTTPClient 自定义 http.Client。
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.HTTP = httpClient
		}
	}
}

// WithTimeout 设置单次请求的超时，0 表示不限制。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if c.HTTP == nil {
			c.HTTP = &http.Client{}
		}
		c.HTTP.Timeout = d
	}
}

// WithRateLimiter 设置限流。
func WithRateLimiter(limiter RateLimiter) Option {
	return func(c *Client) {
		c.Limiter = limiter
	}
}

// WithLogger 注入日志。
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.Logger = logger
	}
}

// WithMiddlewares 追加请求中间件。
func WithMiddlewares(mw ...Middleware) Option {
	return func(c *Client) {
		c.Prepare = append(c.Prepare, mw...)
	}
}

// NewClient 创建客户端，未指定 http.Client 时使用不带超时的默认实例。
func NewClient(opts ...Option) *Client {
	client := &Client{Logger: NopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.HTTP == nil {
		client.HTTP = &http.Client{}
	}
	if client.Logger == nil {
		client.Logger = NopLogger{}
	}
	return client
}

// Use 追加中间件。
func (c *Client) Use(mw ...Middleware) {
	c.Prepare = append(c.Prepare, mw...)
}

// Do 发送请求并按需把 JSON 响应解码到 out。
//
// 非 2xx 响应返回 *ErrCode，网络层或限流等待失败返回 *NetworkError，
// 2xx 但无法解码返回 *DecodeError。out 为 nil 时丢弃响应体。
func (c *Client) Do(req *http.Request, out any) error {
	if req == nil {
		return errors.New("httpclient: 请求为空")
	}
	if c.HTTP == nil {
		return errors.New("httpclient: http.Client 未配置")
	}
	// 中间件只作用于副本，调用方的请求头保持不变。
	r := req.Clone(req.Context())
	r.Body = req.Body
	r.GetBody = req.GetBody
	r.ContentLength = req.ContentLength

	start := time.Now()
	status, err := c.send(r, out)
	if err != nil {
		c.Logger.Debugf("%s %s -> %d (%s, id=%s): %v",
			r.Method, r.URL.Path, status, time.Since(start), r.Header.Get(RequestIDHeader), err)
		return err
	}
	c.Logger.Debugf("%s %s -> %d (%s)", r.Method, r.URL.Path, status, time.Since(start))
	return nil
}

// send 返回响应状态码（未收到响应时为 0）与错误。
func (c *Client) send(req *http.Request, out any) (int, error) {
	if err := c.Prepare.Apply(req); err != nil {
		return 0, err
	}
	if c.Limiter != nil {
		// 等待令牌超出截止时间与连接超时同属传输层失败。
		if err := c.Limiter.Wait(req.Context(), req); err != nil {
			return 0, &NetworkError{Err: err}
		}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, parseErrCode(resp.StatusCode, body)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			// 空响应体视为成功
			return resp.StatusCode, nil
		}
		return resp.StatusCode, &DecodeError{Status: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, nil
}
