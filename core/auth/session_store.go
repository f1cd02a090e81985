package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	coreerrors "github.com/dnslin/authsession/core/errors"
	"github.com/dnslin/authsession/core/httpclient"
	"github.com/dnslin/authsession/core/identity"
	"github.com/dnslin/authsession/core/model"
	"github.com/dnslin/authsession/core/store"
)

// IdentityService 为会话所依赖的身份服务调用。Me 需携带当前凭证。
type IdentityService interface {
	Login(ctx context.Context, username, password string) (*identity.TokenResponse, error)
	Me(ctx context.Context) (*model.User, error)
	Register(ctx context.Context, in identity.RegisterRequest) (*model.User, error)
}

type tokenBinder interface {
	SetTokenProvider(tp httpclient.TokenProvider)
}

// SessionStore 是会话状态的唯一写入方，同时独占持久化凭证。
// 其余组件通过 Snapshot/Subscribe 只读观察。
type SessionStore struct {
	mu      sync.RWMutex
	session Session
	// loginSeq 每次登录开始时递增，只用于判定较早发起的登录在提交凭证前已被替换。
	loginSeq uint64

	// persistMu 串行化“校验 epoch + 读写持久化记录”，持有顺序为 persistMu -> mu。
	persistMu sync.Mutex

	identity IdentityService
	tokens   store.TokenStore[string]
	logger   httpclient.Logger
	now      func() time.Time

	subMu     sync.Mutex
	subs      map[int]func(Session)
	nextSubID int
}

// Option 自定义 SessionStore。
type Option func(*SessionStore)

// WithLogger 注入日志。
func WithLogger(logger httpclient.Logger) Option {
	return func(s *SessionStore) {
		s.logger = logger
	}
}

// WithNow 替换时间来源，便于测试。
func WithNow(now func() time.Time) Option {
	return func(s *SessionStore) {
		s.now = now
	}
}

// NewSessionStore 创建会话。若 svc 支持 SetTokenProvider（如 *identity.Client），
// 会把自身绑定为其凭证来源，之后每次请求都按当前凭证附加 Authorization。
func NewSessionStore(svc IdentityService, tokens store.TokenStore[string], opts ...Option) *SessionStore {
	s := &SessionStore{
		identity: svc,
		tokens:   tokens,
		logger:   httpclient.NopLogger{},
		now:      time.Now,
		subs:     make(map[int]func(Session)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.logger == nil {
		s.logger = httpclient.NopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if b, ok := svc.(tokenBinder); ok {
		b.SetTokenProvider(s)
	}
	return s
}

// Token 实现 httpclient.TokenProvider，返回当前凭证（含待验证状态）。
func (s *SessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Credential
}

// Snapshot 返回当前会话的拷贝。
func (s *SessionStore) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Authenticated 仅在凭证已验证时返回 true，待验证视为未登录。
func (s *SessionStore) Authenticated() bool {
	snap := s.Snapshot()
	return snap.Authenticated()
}

// Subscribe 注册状态变更回调，返回取消函数。
// 回调在状态锁外同步执行，但不得在回调内同步调用 Login/Logout 等修改操作。
func (s *SessionStore) Subscribe(fn func(Session)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Login 提交用户名密码换取凭证，再通过 /users/me 解析身份。
// 两步均成功才会写入持久化存储；身份解析失败时回滚为未登录。
func (s *SessionStore) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return ErrMissingCredentials
	}
	if s.identity == nil {
		return ErrIdentityNil
	}
	if s.tokens == nil {
		return ErrSessionStoreNil
	}
	epoch, seq := s.startLogin()

	rsp, err := s.identity.Login(ctx, username, password)
	if err != nil {
		// 失败的登录不触碰 epoch，进行中的恢复仍可正常落定。
		s.logger.Debugf("登录失败: %v", err)
		if !s.loginCurrent(epoch, seq) {
			return ErrSessionSuperseded
		}
		return err
	}

	epoch, ok := s.commitCredential(epoch, seq, rsp.AccessToken)
	if !ok {
		return ErrSessionSuperseded
	}

	user, err := s.identity.Me(ctx)
	if err != nil {
		s.logger.Debugf("登录后解析身份失败，回滚: %v", err)
		if !s.rollback(ctx, epoch) {
			return ErrSessionSuperseded
		}
		return err
	}
	return s.persistLogin(ctx, epoch, rsp.AccessToken, user.DisplayName())
}

// persistLogin 写入持久化记录并把会话标记为已验证，两者对其他持久化操作原子可见。
func (s *SessionStore) persistLogin(ctx context.Context, epoch uint64, token, name string) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if !s.epochCurrent(epoch) {
		return ErrSessionSuperseded
	}
	if err := s.tokens.SaveTokens(ctx, token); err != nil {
		s.logger.Errorf("持久化凭证失败，回滚: %v", err)
		s.resetLocked(ctx, epoch, true)
		return coreerrors.Wrap(coreerrors.ErrCodeInvalidState, "auth: 持久化凭证失败", err)
	}
	if !s.commit(epoch, func(sess *Session) {
		sess.Identity = name
		sess.Status = StatusAuthenticated
	}) {
		// 持久化后被登出，按登出语义清理记录。
		if clearErr := s.tokens.ClearTokens(ctx); clearErr != nil {
			s.logger.Errorf("清理被替换的凭证失败: %v", clearErr)
		}
		return ErrSessionSuperseded
	}
	return nil
}

// Register 注册新账号。不会建立会话，需要随后显式登录。
func (s *SessionStore) Register(ctx context.Context, email, username, password string) (*model.User, error) {
	if s.identity == nil {
		return nil, ErrIdentityNil
	}
	return s.identity.Register(ctx, identity.RegisterRequest{
		Email:    email,
		Username: username,
		Password: password,
	})
}

// Logout 清空凭证与身份并删除持久化记录，重复调用无副作用。
// 进行中的登录/恢复结果会因 epoch 变化被丢弃。
func (s *SessionStore) Logout(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.Lock()
	s.session.Epoch++
	changed := s.session.Credential != "" || s.session.Identity != "" || s.session.Status != StatusAnonymous
	s.session.Credential = ""
	s.session.Identity = ""
	s.session.Status = StatusAnonymous
	snap := s.session
	s.mu.Unlock()
	if changed {
		s.notify(snap)
	}
	if s.tokens == nil {
		return nil
	}
	if err := s.tokens.ClearTokens(ctx); err != nil && !errors.Is(err, store.ErrTokenNotFound) {
		return err
	}
	return nil
}

// RestoreSession 在启动时读取持久化凭证。
//
// 无记录时直接返回已关闭的通道，不发起网络请求。有记录时立即进入 StatusPending，
// 并在后台调用 /users/me 验证；验证结果写入返回的通道（至多一个值）后关闭。
// 身份服务拒绝凭证时清除持久化记录；网络失败时仅重置内存状态，保留记录以便下次启动重试。
func (s *SessionStore) RestoreSession(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	finish := func(err error) <-chan error {
		done <- err
		close(done)
		return done
	}
	if s.tokens == nil {
		return finish(ErrSessionStoreNil)
	}
	if s.identity == nil {
		return finish(ErrIdentityNil)
	}

	token, err := s.tokens.LoadTokens(ctx)
	if errors.Is(err, store.ErrTokenNotFound) {
		return finish(nil)
	}
	if err != nil {
		s.logger.Errorf("读取持久化凭证失败: %v", err)
		return finish(err)
	}
	token = strings.TrimSpace(token)
	if token == "" || tokenExpired(token, s.now()) {
		s.logger.Debugf("持久化凭证为空或已过期，清除")
		s.persistMu.Lock()
		if clearErr := s.tokens.ClearTokens(ctx); clearErr != nil {
			s.logger.Errorf("清除持久化凭证失败: %v", clearErr)
		}
		s.persistMu.Unlock()
		return finish(ErrCredentialExpired)
	}

	epoch := s.begin(token)
	go func() {
		user, err := s.identity.Me(ctx)
		if err != nil {
			done <- s.restoreFailed(ctx, epoch, err)
			close(done)
			return
		}
		if !s.commit(epoch, func(sess *Session) {
			sess.Identity = user.DisplayName()
			sess.Status = StatusAuthenticated
		}) {
			done <- ErrSessionSuperseded
		}
		close(done)
	}()
	return done
}

// restoreFailed 只有身份服务明确拒绝凭证时才清除持久化记录，
// 网络、限流、5xx 与解码失败都保留记录以便下次启动重试。
func (s *SessionStore) restoreFailed(ctx context.Context, epoch uint64, err error) error {
	purge := credentialRejected(err)
	if purge {
		s.logger.Debugf("持久化凭证验证失败，清除: %v", err)
	} else {
		s.logger.Debugf("恢复会话未能完成验证，保留持久化凭证: %v", err)
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if !s.resetLocked(ctx, epoch, purge) {
		return ErrSessionSuperseded
	}
	return err
}

func credentialRejected(err error) bool {
	return identity.IsKind(err, identity.KindUnauthorized) || identity.IsKind(err, identity.KindRejected)
}

// begin 递增 epoch 并以待验证状态持有凭证。
func (s *SessionStore) begin(token string) uint64 {
	s.mu.Lock()
	s.session.Epoch++
	s.session.Credential = token
	s.session.Identity = ""
	s.session.Status = StatusPending
	snap := s.session
	s.mu.Unlock()
	s.notify(snap)
	return snap.Epoch
}

// startLogin 记录登录开始时的 epoch，并让更早发起且尚未提交凭证的登录失效。
func (s *SessionStore) startLogin() (epoch, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginSeq++
	return s.session.Epoch, s.loginSeq
}

func (s *SessionStore) loginCurrent(epoch, seq uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Epoch == epoch && s.loginSeq == seq
}

// commitCredential 在登录未被替换时递增 epoch，并以待验证状态持有新凭证。
func (s *SessionStore) commitCredential(epoch, seq uint64, token string) (uint64, bool) {
	s.mu.Lock()
	if s.session.Epoch != epoch || s.loginSeq != seq {
		s.mu.Unlock()
		return 0, false
	}
	s.session.Epoch++
	s.session.Credential = token
	s.session.Identity = ""
	s.session.Status = StatusPending
	snap := s.session
	s.mu.Unlock()
	s.notify(snap)
	return snap.Epoch, true
}

func (s *SessionStore) epochCurrent(epoch uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Epoch == epoch
}

// commit 仅在 epoch 未变化时应用修改，返回是否生效。
func (s *SessionStore) commit(epoch uint64, apply func(*Session)) bool {
	s.mu.Lock()
	if s.session.Epoch != epoch {
		s.mu.Unlock()
		return false
	}
	apply(&s.session)
	snap := s.session
	s.mu.Unlock()
	s.notify(snap)
	return true
}

// rollback 将会话重置为未登录并删除持久化记录。
func (s *SessionStore) rollback(ctx context.Context, epoch uint64) bool {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return s.resetLocked(ctx, epoch, true)
}

// resetLocked 要求调用方持有 persistMu。
func (s *SessionStore) resetLocked(ctx context.Context, epoch uint64, purge bool) bool {
	if !s.commit(epoch, func(sess *Session) {
		sess.Credential = ""
		sess.Identity = ""
		sess.Status = StatusAnonymous
	}) {
		return false
	}
	if !purge {
		return true
	}
	if err := s.tokens.ClearTokens(ctx); err != nil {
		s.logger.Errorf("清除持久化凭证失败: %v", err)
	}
	return true
}

func (s *SessionStore) notify(snap Session) {
	s.subMu.Lock()
	fns := make([]func(Session), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}
