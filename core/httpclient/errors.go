package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// maxErrorBody 限制错误响应体的读取大小。
const maxErrorBody = 64 << 10

// ErrCode 表示服务端返回的错误，兼容 detail/message/code 字段。
type ErrCode struct {
	Code    string
	Message string
	Status  int
}

func (e *ErrCode) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Code != "":
		return e.Code
	case e.Message != "":
		return e.Message
	default:
		return fmt.Sprintf("http 状态码: %d", e.Status)
	}
}

// ServiceMessage 返回服务端提供的原始错误描述，没有时返回空串。
func (e *ErrCode) ServiceMessage() string {
	if e == nil || e.Message == http.StatusText(e.Status) {
		return ""
	}
	return e.Message
}

// NetworkError 包装底层网络错误。
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("网络错误: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError 表示响应解码失败。
type DecodeError struct {
	Status int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("解码失败(status=%d): %v", e.Status, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// errorPayload 覆盖常见的错误响应结构：
// {"detail": "..."}、{"detail": [{"msg": "..."}]}、{"message": "...", "code": "..."}。
type errorPayload struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    json.RawMessage `json:"code"`
}

func (p *errorPayload) message() string {
	if len(p.Detail) > 0 {
		var s string
		if err := json.Unmarshal(p.Detail, &s); err == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(p.Detail, &items); err == nil {
			for _, item := range items {
				if item.Msg != "" {
					return item.Msg
				}
			}
		}
	}
	if p.Message != "" {
		return p.Message
	}
	return p.Error
}

func (p *errorPayload) code() string {
	if len(p.Code) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Code, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(p.Code, &n); err == nil {
		return n.String()
	}
	return ""
}

// parseErrCode 从错误响应体中提取服务端消息与错误码。
func parseErrCode(status int, body []byte) *ErrCode {
	ec := statusErr(status)
	if len(strings.TrimSpace(string(body))) == 0 {
		return ec
	}
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return ec
	}
	if msg := payload.message(); msg != "" {
		ec.Message = msg
	}
	if code := payload.code(); code != "" {
		ec.Code = code
	}
	return ec
}

// statusErr 为没有可解析响应体时的兜底错误，Message 取标准状态描述。
func statusErr(status int) *ErrCode {
	return &ErrCode{Status: status, Code: "HTTP_" + strconv.Itoa(status), Message: http.StatusText(status)}
}
