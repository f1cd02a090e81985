package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func TestDoSuccess(t *testing.T) {
	client := NewClient(WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"access_token":"tok1","token_type":"bearer"}`), nil
		}),
	}))
	req, _ := http.NewRequest(http.MethodPost, "http://mock/login", nil)
	var rsp tokenResponse
	if err := client.Do(req, &rsp); err != nil {
		t.Fatalf("预期成功，得到错误: %v", err)
	}
	if rsp.AccessToken != "tok1" || rsp.TokenType != "bearer" {
		t.Fatalf("响应解析错误: %+v", rsp)
	}
}

func TestEmptyBodyIsSuccess(t *testing.T) {
	client := NewClient(WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusCreated, ""), nil
		}),
	}))
	req, _ := http.NewRequest(http.MethodPost, "http://mock/register", nil)
	var rsp tokenResponse
	if err := client.Do(req, &rsp); err != nil {
		t.Fatalf("空响应体应视为成功: %v", err)
	}
}

func TestClientErrorWithoutOutput(t *testing.T) {
	client := NewClient(WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusBadRequest, `{"detail":"Username already registered"}`), nil
		}),
	}))
	req, _ := http.NewRequest(http.MethodPost, "http://mock/register", nil)
	err := client.Do(req, nil)
	var ec *ErrCode
	if !errors.As(err, &ec) {
		t.Fatalf("4xx 应返回 ErrCode，实际: %v", err)
	}
	if ec.Status != http.StatusBadRequest {
		t.Fatalf("状态码不匹配: %d", ec.Status)
	}
	if ec.ServiceMessage() != "Username already registered" {
		t.Fatalf("应透传服务端消息，实际 %q", ec.ServiceMessage())
	}
}

func TestErrorPayloadVariants(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
		code    string
	}{
		{"detail 字符串", 401, `{"detail":"Incorrect username or password"}`, "Incorrect username or password", "HTTP_401"},
		{"detail 数组", 422, `{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address"}]}`, "value is not a valid email address", "HTTP_422"},
		{"message 与 code", 409, `{"message":"exists","code":"DUPLICATE"}`, "exists", "DUPLICATE"},
		{"数字 code", 400, `{"message":"bad","code":1001}`, "bad", "1001"},
		{"非 JSON", 500, `<html>oops</html>`, "", "HTTP_500"},
		{"空体", 403, ``, "", "HTTP_403"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ec := parseErrCode(tc.status, []byte(tc.body))
			if ec.ServiceMessage() != tc.message {
				t.Fatalf("消息不匹配，期望 %q 得到 %q", tc.message, ec.ServiceMessage())
			}
			if ec.Code != tc.code {
				t.Fatalf("错误码不匹配，期望 %q 得到 %q", tc.code, ec.Code)
			}
		})
	}
}

func TestNetworkErrorNotRetried(t *testing.T) {
	transport := &flakyTransport{
		failures: 1,
		inner: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"access_token":"tok1"}`), nil
		}),
	}
	client := NewClient(WithHTTPClient(&http.Client{Transport: transport}))
	req, _ := http.NewRequest(http.MethodGet, "http://mock/network", nil)
	err := client.Do(req, &tokenResponse{})
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("应返回 NetworkError，实际: %v", err)
	}
	if transport.attempts != 1 {
		t.Fatalf("不应重试，实际尝试 %d 次", transport.attempts)
	}
}

func TestMiddlewareErrorStopsRequest(t *testing.T) {
	called := false
	client := NewClient(
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			called = true
			return jsonResponse(http.StatusOK, `{}`), nil
		})}),
		WithMiddlewares(func(req *http.Request) error { return errors.New("拒绝") }),
	)
	req, _ := http.NewRequest(http.MethodGet, "http://mock/mw", nil)
	if err := client.Do(req, nil); err == nil || err.Error() != "拒绝" {
		t.Fatalf("中间件错误应直接返回，实际: %v", err)
	}
	if called {
		t.Fatal("中间件失败后不应发送请求")
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewTokenBucketLimiter(5, 1, nil)
	client := NewClient(
		WithRateLimiter(limiter),
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"access_token":"tok1"}`), nil
		})}),
	)
	start := time.Now()
	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, "http://mock/ratelimit", nil)
		var rsp tokenResponse
		if err := client.Do(req, &rsp); err != nil {
			t.Fatalf("限流请求失败: %v", err)
		}
	}
	elapsed := time.Since(start)
	if elapsed < 150*time.Millisecond {
		t.Fatalf("限流未生效，耗时过短: %v", elapsed)
	}
}

func TestRateLimiterDeadlineIsNetworkError(t *testing.T) {
	calls := 0
	client := NewClient(
		WithRateLimiter(NewTokenBucketLimiter(0.001, 1, nil)),
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			calls++
			return jsonResponse(http.StatusOK, `{"access_token":"tok1"}`), nil
		})}),
	)
	if err := client.Do(mustRequest(t, "http://mock/users/me"), nil); err != nil {
		t.Fatalf("首个请求应直接放行: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := client.Do(mustRequest(t, "http://mock/users/me").WithContext(ctx), nil)
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("限流等待失败应返回 NetworkError，实际 %v", err)
	}
	if calls != 1 {
		t.Fatalf("限流等待失败后不应发送请求，实际发送 %d 次", calls)
	}
}

func TestRateLimiterPathKeySeparatesBuckets(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 1, PathKey)
	a := limiter.getLimiter(mustRequest(t, "http://mock/login"))
	b := limiter.getLimiter(mustRequest(t, "http://mock/users/me"))
	if a == b {
		t.Fatal("不同路径应使用不同的令牌桶")
	}
	if limiter.getLimiter(mustRequest(t, "http://mock/login")) != a {
		t.Fatal("相同路径应复用令牌桶")
	}
}

func TestDecodeError(t *testing.T) {
	client := NewClient(WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `invalid json`), nil
		}),
	}))
	req, _ := http.NewRequest(http.MethodGet, "http://mock/decode", nil)
	var rsp tokenResponse
	err := client.Do(req, &rsp)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("错误类型应为 DecodeError，实际: %v", err)
	}
}

func TestBearerAuth(t *testing.T) {
	token := ""
	mw := BearerAuth(TokenFunc(func() string { return token }))

	req := mustRequest(t, "http://mock/users/me")
	if err := mw(req); err != nil {
		t.Fatalf("中间件失败: %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "" {
		t.Fatalf("无凭证时不应附加头，实际 %q", got)
	}

	token = "tok1"
	req = mustRequest(t, "http://mock/users/me")
	_ = mw(req)
	if got := req.Header.Get("Authorization"); got != "Bearer tok1" {
		t.Fatalf("应读取当前凭证，实际 %q", got)
	}

	req = mustRequest(t, "http://mock/users/me")
	req.Header.Set("Authorization", "Bearer explicit")
	_ = mw(req)
	if got := req.Header.Get("Authorization"); got != "Bearer explicit" {
		t.Fatalf("显式设置的头不应被覆盖，实际 %q", got)
	}
}

func TestRequestID(t *testing.T) {
	mw := WithRequestID()
	req := mustRequest(t, "http://mock/login")
	_ = mw(req)
	id := req.Header.Get(RequestIDHeader)
	if len(id) != 36 || strings.Count(id, "-") != 4 {
		t.Fatalf("应生成 UUID 关联 ID，实际 %q", id)
	}
	req.Header.Set(RequestIDHeader, "fixed")
	_ = mw(req)
	if req.Header.Get(RequestIDHeader) != "fixed" {
		t.Fatal("已有关联 ID 不应被替换")
	}
}

type flakyTransport struct {
	failures int
	inner    http.RoundTripper
	attempts int
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("模拟网络失败")
	}
	return f.inner.RoundTrip(req)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func mustRequest(t *testing.T, u string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		t.Fatalf("构造请求失败: %v", err)
	}
	return req
}

func jsonResponse(status int, body string) *http.Response {
	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Type", "application/json")
	rec.WriteHeader(status)
	rec.Body.WriteString(body)
	return rec.Result()
}

func TestNewClientTimeout(t *testing.T) {
	client := NewClient(WithTimeout(3 * time.Second))
	if client.HTTP == nil || client.HTTP.Timeout != 3*time.Second {
		t.Fatalf("超时未生效: %+v", client.HTTP)
	}
	if _, ok := client.Logger.(NopLogger); !ok {
		t.Fatalf("默认日志应为 NopLogger")
	}

	base := &http.Client{}
	client = NewClient(WithHTTPClient(base), WithTimeout(time.Second))
	if client.HTTP != base || base.Timeout != time.Second {
		t.Fatalf("应在注入的 http.Client 上设置超时")
	}
}
