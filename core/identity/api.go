package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dnslin/authsession/core/model"
)

// TokenResponse 为登录接口返回的凭证。
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// RegisterRequest 为注册请求体。
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login 以表单方式提交用户名密码，返回访问凭证。
func (c *Client) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	encoded := form.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.endpoints.Login), strings.NewReader(encoded))
	if err != nil {
		return nil, wrapError("login", err, "")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(encoded)), nil
	}

	var rsp TokenResponse
	if err := c.http.Do(req, &rsp); err != nil {
		return nil, wrapError("login", err, "用户名或密码错误")
	}
	if rsp.AccessToken == "" {
		return nil, &Error{Kind: KindDecode, Op: "login", Message: "响应缺少 access_token"}
	}
	return &rsp, nil
}

// Me 使用当前凭证查询登录用户。
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(c.endpoints.Me), nil)
	if err != nil {
		return nil, wrapError("me", err, "")
	}
	req.Header.Set("Accept", "application/json")

	var user model.User
	if err := c.http.Do(req, &user); err != nil {
		// 5xx 与网络失败不套用该描述，见 fallbackMessage。
		return nil, wrapError("me", err, "凭证无效或已过期")
	}
	if user.Username == "" {
		return nil, &Error{Kind: KindDecode, Op: "me", Message: "响应缺少 username"}
	}
	return &user, nil
}

// Register 以 JSON 方式提交注册信息。服务端回显用户时返回该用户，否则返回 nil。
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*model.User, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, wrapError("register", err, "")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.endpoints.Register), bytes.NewReader(body))
	if err != nil {
		return nil, wrapError("register", err, "")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	var user model.User
	if err := c.http.Do(req, &user); err != nil {
		return nil, wrapError("register", err, "注册失败")
	}
	if user.Username == "" {
		return nil, nil
	}
	return &user, nil
}

func (c *Client) url(path string) string {
	if c.baseURL == "" {
		return path
	}
	if path == "" {
		return c.baseURL
	}
	if strings.HasPrefix(path, "/") {
		return c.baseURL + path
	}
	return c.baseURL + "/" + path
}
