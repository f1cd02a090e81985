package route

// DefaultLoginPath 为未登录用户被重定向到的路径。
const DefaultLoginPath = "/login"

// Authenticator 为守卫读取的会话状态，只读。
type Authenticator interface {
	Authenticated() bool
}

// Outcome 为一次导航的最终结果。
type Outcome int

const (
	Allowed Outcome = iota
	Redirected
)

func (o Outcome) String() string {
	if o == Redirected {
		return "redirected"
	}
	return "allowed"
}

// Decision 描述守卫的裁决。
type Decision struct {
	Outcome Outcome
	// Destination 为实际前往的路径，放行时等于请求路径。
	Destination string
	// From 为被重定向前请求的路径，登录成功后可据此返回。
	From string
	// Route 为命中的路由，未命中时为 nil。
	Route *Route
}

// Guard 在每次导航前检查目标路由是否需要登录。
type Guard struct {
	table     Table
	session   Authenticator
	loginPath string
}

// GuardOption 自定义守卫。
type GuardOption func(*Guard)

// WithLoginPath 替换登录页路径。
func WithLoginPath(path string) GuardOption {
	return func(g *Guard) {
		if path != "" {
			g.loginPath = path
		}
	}
}

// NewGuard 创建守卫。
func NewGuard(table Table, session Authenticator, opts ...GuardOption) *Guard {
	g := &Guard{
		table:     append(Table(nil), table...),
		session:   session,
		loginPath: DefaultLoginPath,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Check 同步裁决一次导航，不等待任何进行中的登录或恢复。
// 需要登录的路由在会话未验证时一律重定向。
func (g *Guard) Check(path string) Decision {
	r, ok := g.table.Match(path)
	if !ok {
		return Decision{Outcome: Allowed, Destination: path}
	}
	matched := r
	if !r.RequiresAuth || g.authenticated() {
		return Decision{Outcome: Allowed, Destination: path, Route: &matched}
	}
	return Decision{
		Outcome:     Redirected,
		Destination: g.loginPath,
		From:        path,
		Route:       &matched,
	}
}

// LoginPath 返回登录页路径。
func (g *Guard) LoginPath() string {
	return g.loginPath
}

func (g *Guard) authenticated() bool {
	if g.session == nil {
		return false
	}
	return g.session.Authenticated()
}
