package model

// User 描述身份服务返回的用户信息。
type User struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	IsActive bool   `json:"is_active,omitempty"`
}

// DisplayName 返回用于界面展示的身份标识。
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	return u.Username
}
