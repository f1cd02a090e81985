package errors

import stderrors "errors"

// Code 为会话核心的错误分类。
type Code string

const (
	ErrCodeUnknown         Code = "UNKNOWN"
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodeInvalidArgument Code = "INVALID_ARGUMENT"
	// ErrCodeInvalidConfig 依赖缺失或配置非法。
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	// ErrCodeInvalidState 持久化数据或服务响应不符合预期。
	ErrCodeInvalidState Code = "INVALID_STATE"
	// ErrCodeUnauthenticated 凭证缺失、无效或已过期。
	ErrCodeUnauthenticated Code = "UNAUTHENTICATED"
	// ErrCodeAborted 会话在操作进行中被替换，结果作废。
	ErrCodeAborted Code = "ABORTED"
)

// CoreError 携带错误码的结构化错误，errors.Is 按错误码匹配。
type CoreError struct {
	Code    Code
	Message string
	Raw     error
}

func (e *CoreError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Raw != nil {
		msg = e.Raw.Error()
	}
	if msg == "" {
		msg = "未知错误"
	}
	if e.Code == "" {
		return msg
	}
	if e.Raw != nil && e.Message != "" && e.Message != e.Raw.Error() {
		return "[" + string(e.Code) + "] " + msg + ": " + e.Raw.Error()
	}
	return "[" + string(e.Code) + "] " + msg
}

func (e *CoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Raw
}

// Is 同一实例或错误码相同即视为匹配。
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e == t || (e.Code != "" && e.Code == t.Code)
}

func New(code Code, message string) *CoreError {
	return &CoreError{Code: code, Message: message}
}

// Wrap 保留底层错误，message 为空时沿用底层错误文本。
func Wrap(code Code, message string, raw error) *CoreError {
	if message == "" && raw != nil {
		message = raw.Error()
	}
	return &CoreError{Code: code, Message: message, Raw: raw}
}

// CodeOf 返回错误链上第一个带错误码的 CoreError 的错误码。
func CodeOf(err error) Code {
	var ce *CoreError
	if stderrors.As(err, &ce) && ce.Code != "" {
		return ce.Code
	}
	return ErrCodeUnknown
}
