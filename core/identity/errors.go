package identity

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dnslin/authsession/core/httpclient"
)

// Kind 对身份服务错误进行分类。
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransport 网络不可达、超时等，请求可能未到达服务端。
	KindTransport
	// KindUnauthorized 凭证错误、过期或被吊销。
	KindUnauthorized
	// KindRejected 参数校验失败或资源冲突（如重复注册）。
	KindRejected
	// KindServer 服务端 5xx。
	KindServer
	// KindDecode 响应无法解析或缺少必要字段。
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindRejected:
		return "rejected"
	case KindServer:
		return "server"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error 表示身份服务调用失败。
type Error struct {
	Kind       Kind
	Op         string
	Message    string
	HTTPStatus int
	Raw        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Message != "" && e.HTTPStatus > 0:
		return fmt.Sprintf("identity: %s 失败(%d): %s", e.Op, e.HTTPStatus, e.Message)
	case e.Message != "":
		return fmt.Sprintf("identity: %s 失败: %s", e.Op, e.Message)
	case e.Raw != nil:
		return fmt.Sprintf("identity: %s 失败: %v", e.Op, e.Raw)
	default:
		return fmt.Sprintf("identity: %s 失败", e.Op)
	}
}

// Unwrap 允许 errors.Is/As 解构底层错误。
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Raw
}

// IsKind 判断错误链中是否存在指定类型的身份服务错误。
func IsKind(err error, kind Kind) bool {
	var ie *Error
	return errors.As(err, &ie) && ie.Kind == kind
}

func kindFromStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status >= http.StatusInternalServerError:
		return KindServer
	case status >= http.StatusBadRequest:
		return KindRejected
	default:
		return KindUnknown
	}
}

// fallbackMessage 为服务端未给出消息时的描述，fallback 只用于 4xx。
func fallbackMessage(kind Kind, ec *httpclient.ErrCode, fallback string) string {
	switch kind {
	case KindUnauthorized, KindRejected:
		if fallback != "" {
			return fallback
		}
	case KindServer:
		return "身份服务暂不可用"
	}
	return ec.Message
}

// wrapError 将 httpclient 错误转换为 *Error，fallback 为服务端未给出消息时的描述。
func wrapError(op string, err error, fallback string) error {
	if err == nil {
		return nil
	}
	var ie *Error
	if errors.As(err, &ie) {
		return ie
	}
	var ec *httpclient.ErrCode
	if errors.As(err, &ec) {
		kind := kindFromStatus(ec.Status)
		msg := ec.ServiceMessage()
		if msg == "" {
			msg = fallbackMessage(kind, ec, fallback)
		}
		return &Error{Kind: kind, Op: op, Message: msg, HTTPStatus: ec.Status, Raw: err}
	}
	var de *httpclient.DecodeError
	if errors.As(err, &de) {
		return &Error{Kind: KindDecode, Op: op, Message: "响应格式错误", HTTPStatus: de.Status, Raw: err}
	}
	var ne *httpclient.NetworkError
	if errors.As(err, &ne) {
		return &Error{Kind: KindTransport, Op: op, Raw: err}
	}
	return &Error{Kind: KindUnknown, Op: op, Raw: err}
}
