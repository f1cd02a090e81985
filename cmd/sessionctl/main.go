// 会话客户端命令行入口
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dnslin/authsession/core/auth"
	"github.com/dnslin/authsession/core/config"
	"github.com/dnslin/authsession/core/httpclient"
	"github.com/dnslin/authsession/core/identity"
	"github.com/dnslin/authsession/core/route"
	"github.com/dnslin/authsession/core/store"
	"golang.org/x/term"
)

const usage = `用法: sessionctl [-config 文件] [-v] <命令> [参数]

命令:
  status              恢复并验证已保存的会话
  login [用户名]      登录并保存凭证
  register [用户名]   注册新账号（不会自动登录）
  logout              登出并删除已保存的凭证
  navigate <路径>     检查导航到指定路径的结果
`

type logger struct{ l *log.Logger }

func (g logger) Debugf(f string, a ...any) { g.l.Printf("[DEBUG] "+f, a...) }
func (g logger) Errorf(f string, a ...any) { g.l.Printf("[ERROR] "+f, a...) }

type app struct {
	cfg     config.Config
	session *auth.SessionStore
	guard   *route.Guard
	in      *bufio.Reader
}

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "TOML 配置文件路径")
	verbose := flag.Bool("v", false, "输出调试日志")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configPath, *verbose, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, verbose bool, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var lg httpclient.Logger = httpclient.NopLogger{}
	if verbose {
		lg = logger{l: log.New(os.Stderr, "", log.LstdFlags)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	tokens, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return err
	}
	defer tokens.Close()

	a := &app{
		cfg: cfg,
		in:  bufio.NewReader(os.Stdin),
	}
	a.session = auth.NewSessionStore(newIdentityClient(cfg, lg), tokens, auth.WithLogger(lg))
	a.guard = route.NewGuard(cfg.RouteTable(), a.session, route.WithLoginPath(cfg.LoginPath))
	if verbose {
		cancelSub := a.session.Subscribe(func(s auth.Session) {
			lg.Debugf("会话变更: status=%s identity=%q epoch=%d", s.Status, s.Identity, s.Epoch)
		})
		defer cancelSub()
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "status":
		return a.status(ctx)
	case "login":
		return a.login(ctx, rest)
	case "register":
		return a.register(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "navigate":
		return a.navigate(ctx, rest)
	default:
		return fmt.Errorf("未知命令 %q\n\n%s", cmd, usage)
	}
}

func newIdentityClient(cfg config.Config, lg httpclient.Logger) *identity.Client {
	opts := []httpclient.Option{
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithLogger(lg),
		httpclient.WithMiddlewares(httpclient.WithUserAgent("sessionctl/1.0")),
	}
	if cfg.RateLimit.QPS > 0 {
		opts = append(opts, httpclient.WithRateLimiter(
			httpclient.NewTokenBucketLimiter(cfg.RateLimit.QPS, cfg.RateLimit.Burst, httpclient.PathKey),
		))
	}
	return identity.NewClient(cfg.BaseURL,
		identity.WithHTTPClient(httpclient.NewClient(opts...)),
		identity.WithEndpoints(cfg.IdentityEndpoints()),
		identity.WithLogger(lg),
	)
}

// restore 等待启动时的会话恢复完成。恢复失败时会话已回退为未登录，
// 只提示原因，命令照常执行。
func (a *app) restore(ctx context.Context) {
	var err error
	select {
	case err = <-a.session.RestoreSession(ctx):
	case <-ctx.Done():
		err = ctx.Err()
	}
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrCredentialExpired),
		identity.IsKind(err, identity.KindUnauthorized),
		identity.IsKind(err, identity.KindRejected):
		fmt.Println("已保存的凭证已失效，请重新登录")
	default:
		fmt.Fprintf(os.Stderr, "警告: 无法验证已保存的会话，按未登录处理: %v\n", err)
	}
}

func (a *app) status(ctx context.Context) error {
	a.restore(ctx)
	printSession(a.session.Snapshot())
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	username := firstArg(args)
	if username == "" {
		username = a.prompt("用户名: ")
	}
	password := a.promptSecret("密码: ")
	if err := a.session.Login(ctx, username, password); err != nil {
		return fmt.Errorf("登录失败: %w", err)
	}
	fmt.Println("登录成功!")
	printSession(a.session.Snapshot())
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	username := firstArg(args)
	if username == "" {
		username = a.prompt("用户名: ")
	}
	email := a.prompt("邮箱: ")
	password := a.promptSecret("密码: ")
	user, err := a.session.Register(ctx, email, username, password)
	if err != nil {
		return fmt.Errorf("注册失败: %w", err)
	}
	if user != nil {
		fmt.Printf("注册成功: %s\n", user.DisplayName())
	} else {
		fmt.Println("注册成功")
	}
	fmt.Println("请使用 login 命令登录")
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("已登出")
	return nil
}

func (a *app) navigate(ctx context.Context, args []string) error {
	path := firstArg(args)
	if path == "" {
		return errors.New("navigate 需要目标路径")
	}
	a.restore(ctx)
	d := a.guard.Check(path)
	switch d.Outcome {
	case route.Redirected:
		fmt.Printf("%s -> 重定向到 %s（登录后返回 %s）\n", path, d.Destination, d.From)
	default:
		fmt.Printf("%s -> 允许\n", d.Destination)
	}
	return nil
}

func (a *app) prompt(label string) string {
	fmt.Print(label)
	line, _ := a.in.ReadString('\n')
	return strings.TrimSpace(line)
}

// promptSecret 在终端上读取密码时不回显，管道输入按普通行读取。
func (a *app) promptSecret(label string) string {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return a.prompt(label)
	}
	fmt.Print(label)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.TrimSpace(args[0])
}

func printSession(s auth.Session) {
	fmt.Printf("状态: %s\n", s.Status)
	if s.Identity != "" {
		fmt.Printf("用户: %s\n", s.Identity)
	}
}
