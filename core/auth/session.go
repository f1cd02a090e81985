package auth

// Status 描述会话所处阶段。
type Status int

const (
	// StatusAnonymous 未登录。
	StatusAnonymous Status = iota
	// StatusPending 已持有凭证但身份尚未确认，界面可乐观渲染，但路由守卫视为未登录。
	StatusPending
	// StatusAuthenticated 凭证已通过身份服务验证。
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Session 记录当前会话的凭证与身份，空字符串表示缺失。
//
// Identity 非空时 Credential 必然非空。
type Session struct {
	Credential string `json:"credential,omitempty"`
	Identity   string `json:"identity,omitempty"`
	Status     Status `json:"status"`
	// Epoch 在登录提交凭证、登出、恢复开始时递增，用于丢弃过期的异步结果。
	Epoch uint64 `json:"epoch"`
}

// Authenticated 仅在凭证已验证时返回 true。
func (s *Session) Authenticated() bool {
	if s == nil {
		return false
	}
	return s.Status == StatusAuthenticated && s.Credential != "" && s.Identity != ""
}

// Consistent 检查凭证与身份的一致性。
func (s *Session) Consistent() bool {
	if s == nil {
		return true
	}
	if s.Identity != "" && s.Credential == "" {
		return false
	}
	switch s.Status {
	case StatusAnonymous:
		return s.Credential == "" && s.Identity == ""
	case StatusPending:
		return s.Credential != "" && s.Identity == ""
	case StatusAuthenticated:
		return s.Credential != "" && s.Identity != ""
	}
	return false
}
