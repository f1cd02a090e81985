package route

import (
	"context"
	"testing"

	"github.com/dnslin/authsession/core/auth"
	"github.com/dnslin/authsession/core/identity"
	"github.com/dnslin/authsession/core/model"
	"github.com/dnslin/authsession/core/store"
	"github.com/stretchr/testify/require"
)

type staticSession bool

func (s staticSession) Authenticated() bool { return bool(s) }

func testTable() Table {
	return Table{
		{Name: "login", Path: "/login"},
		{Name: "input", Path: "/input", RequiresAuth: true},
		{Name: "settings", Path: "/settings/*", RequiresAuth: true},
		{Name: "about", Path: "/about"},
	}
}

func TestGuardRedirectsAnonymous(t *testing.T) {
	g := NewGuard(testTable(), staticSession(false))

	d := g.Check("/input")
	require.Equal(t, Redirected, d.Outcome)
	require.Equal(t, DefaultLoginPath, d.Destination)
	require.Equal(t, "/input", d.From)
	require.NotNil(t, d.Route)
	require.Equal(t, "input", d.Route.Name)

	d = g.Check("/settings/profile?tab=1")
	require.Equal(t, Redirected, d.Outcome)
	require.Equal(t, "/settings/profile?tab=1", d.From)
}

func TestGuardAllowsPublicRoutesRegardlessOfSession(t *testing.T) {
	for _, authed := range []bool{false, true} {
		g := NewGuard(testTable(), staticSession(authed))
		for _, p := range []string{"/about", "/login", "/unknown"} {
			d := g.Check(p)
			require.Equal(t, Allowed, d.Outcome, "path=%s authed=%v", p, authed)
			require.Equal(t, p, d.Destination)
			require.Empty(t, d.From)
		}
	}
}

func TestGuardAllowsAuthenticated(t *testing.T) {
	g := NewGuard(testTable(), staticSession(true))
	d := g.Check("/input/")
	require.Equal(t, Allowed, d.Outcome)
	require.Equal(t, "/input/", d.Destination)
}

func TestGuardNilSessionFailsClosed(t *testing.T) {
	g := NewGuard(testTable(), nil, WithLoginPath("/signin"))
	d := g.Check("/input")
	require.Equal(t, Redirected, d.Outcome)
	require.Equal(t, "/signin", d.Destination)
	require.Equal(t, "/signin", g.LoginPath())
}

func TestTableMatch(t *testing.T) {
	table := Table{
		{Path: "/a/*", RequiresAuth: true},
		{Path: "/a/b"},
	}
	r, ok := table.Match("/a/b")
	require.True(t, ok)
	require.True(t, r.RequiresAuth, "先定义的路由优先")

	r, ok = table.Match("/a")
	require.True(t, ok)
	require.Equal(t, "/a/*", r.Path)

	_, ok = table.Match("/ab")
	require.False(t, ok, "前缀匹配必须以路径段为界")
}

func TestTableValidate(t *testing.T) {
	require.NoError(t, testTable().Validate())
	require.Error(t, Table{{Path: "input"}}.Validate())
	require.Error(t, Table{{Path: "/x"}, {Path: "/x"}}.Validate())
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "allowed", Allowed.String())
	require.Equal(t, "redirected", Redirected.String())
}

// sessionService 供守卫与真实 SessionStore 联调。
type sessionService struct {
	meErr error
}

func (s *sessionService) Login(ctx context.Context, username, password string) (*identity.TokenResponse, error) {
	return &identity.TokenResponse{AccessToken: "tok1"}, nil
}

func (s *sessionService) Me(ctx context.Context) (*model.User, error) {
	if s.meErr != nil {
		return nil, s.meErr
	}
	return &model.User{Username: "alice"}, nil
}

func (s *sessionService) Register(ctx context.Context, in identity.RegisterRequest) (*model.User, error) {
	return nil, nil
}

func TestGuardWithSessionStore(t *testing.T) {
	ctx := context.Background()
	ss := auth.NewSessionStore(&sessionService{}, store.NewMemoryStore[string]())
	g := NewGuard(testTable(), ss)

	require.Equal(t, Redirected, g.Check("/input").Outcome)

	require.NoError(t, ss.Login(ctx, "alice", "correctpw"))
	require.Equal(t, Allowed, g.Check("/input").Outcome)

	require.NoError(t, ss.Logout(ctx))
	require.Equal(t, Redirected, g.Check("/input").Outcome)
}

func TestGuardRedirectsWhileRestorePending(t *testing.T) {
	ctx := context.Background()
	tokens := store.NewMemoryStore[string]()
	require.NoError(t, tokens.SaveTokens(ctx, "tok1"))

	release := make(chan struct{})
	svc := &blockingService{release: release}
	ss := auth.NewSessionStore(svc, tokens)
	g := NewGuard(testTable(), ss)

	done := ss.RestoreSession(ctx)
	require.Equal(t, auth.StatusPending, ss.Snapshot().Status)
	require.Equal(t, Redirected, g.Check("/input").Outcome, "验证未完成时应拒绝进入受保护路由")

	close(release)
	require.NoError(t, <-done)
	require.Equal(t, Allowed, g.Check("/input").Outcome)
}

type blockingService struct {
	sessionService
	release chan struct{}
}

func (s *blockingService) Me(ctx context.Context) (*model.User, error) {
	<-s.release
	return &model.User{Username: "alice"}, nil
}
