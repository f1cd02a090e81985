package auth

import coreerrors "github.com/dnslin/authsession/core/errors"

var (
	// ErrSessionStoreNil 在未注入凭证存储时返回。
	ErrSessionStoreNil = coreerrors.New(coreerrors.ErrCodeInvalidConfig, "auth: 凭证存储未设置")
	// ErrIdentityNil 在未注入身份服务时返回。
	ErrIdentityNil = coreerrors.New(coreerrors.ErrCodeInvalidConfig, "auth: 身份服务未设置")
	// ErrMissingCredentials 标记缺少用户名或密码。
	ErrMissingCredentials = coreerrors.New(coreerrors.ErrCodeInvalidArgument, "auth: 缺少登录凭证")
	// ErrSessionSuperseded 异步结果返回时会话已被登出或新的登录替换，结果被丢弃。
	ErrSessionSuperseded = coreerrors.New(coreerrors.ErrCodeAborted, "auth: 会话已变更，结果已丢弃")
	// ErrCredentialExpired 持久化的凭证已过期。
	ErrCredentialExpired = coreerrors.New(coreerrors.ErrCodeUnauthenticated, "auth: 凭证已过期")
)
