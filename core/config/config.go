package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	coreerrors "github.com/dnslin/authsession/core/errors"
	"github.com/dnslin/authsession/core/identity"
	"github.com/dnslin/authsession/core/route"
	"github.com/dnslin/authsession/core/store"
)

// EnvPrefix 为环境变量覆盖的统一前缀。
const EnvPrefix = "AUTHSESSION_"

// Config 汇总会话客户端的全部配置。
// Timeout 为单次请求超时，0 表示不限制；Routes 仅来自配置文件。
type Config struct {
	BaseURL   string          `toml:"base_url" env:"BASE_URL"`
	Endpoints EndpointsConfig `toml:"endpoints" envPrefix:"ENDPOINT_"`
	Timeout   time.Duration   `toml:"timeout" env:"TIMEOUT"`
	RateLimit RateLimitConfig `toml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Store     StoreConfig     `toml:"store" envPrefix:"STORE_"`
	LoginPath string          `toml:"login_path" env:"LOGIN_PATH"`
	Routes    []route.Route   `toml:"routes"`
}

// EndpointsConfig 为身份服务接口路径，留空使用默认值。
type EndpointsConfig struct {
	Login    string `toml:"login" env:"LOGIN"`
	Me       string `toml:"me" env:"ME"`
	Register string `toml:"register" env:"REGISTER"`
}

// RateLimitConfig 控制客户端令牌桶，QPS<=0 表示关闭。
type RateLimitConfig struct {
	QPS   float64 `toml:"qps" env:"QPS"`
	Burst int     `toml:"burst" env:"BURST"`
}

// StoreConfig 选择凭证持久化后端。
type StoreConfig struct {
	Backend       store.Backend `toml:"backend" env:"BACKEND"`
	Path          string        `toml:"path" env:"PATH"`
	Key           string        `toml:"key" env:"KEY"`
	RedisAddr     string        `toml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `toml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `toml:"redis_db" env:"REDIS_DB"`
	RedisPrefix   string        `toml:"redis_prefix" env:"REDIS_PREFIX"`
	TTL           time.Duration `toml:"ttl" env:"TTL"`
}

// Default 返回默认配置。
func Default() Config {
	eps := identity.DefaultEndpoints()
	return Config{
		BaseURL: "http://127.0.0.1:8000",
		Endpoints: EndpointsConfig{
			Login:    eps.Login,
			Me:       eps.Me,
			Register: eps.Register,
		},
		Timeout: 10 * time.Second,
		Store: StoreConfig{
			Backend: store.BackendFile,
			Path:    defaultStorePath(),
			Key:     store.DefaultKey,
		},
		LoginPath: route.DefaultLoginPath,
		Routes: []route.Route{
			{Name: "login", Path: "/login"},
			{Name: "register", Path: "/register"},
			{Name: "input", Path: "/input", RequiresAuth: true},
		},
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "session.json"
	}
	return filepath.Join(dir, "authsession", "session.json")
}

// Load 依次应用默认值、配置文件与环境变量。path 为空时跳过配置文件。
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, coreerrors.Wrap(coreerrors.ErrCodeInvalidConfig, "config: 解析环境变量失败", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	// 文件中的路由表整体替换默认值，而非逐项合并。
	defaults := cfg.Routes
	cfg.Routes = nil
	md, err := toml.DecodeFile(path, cfg)
	if !md.IsDefined("routes") {
		cfg.Routes = defaults
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return coreerrors.Wrap(coreerrors.ErrCodeNotFound, "config: 配置文件不存在", err)
		}
		return coreerrors.Wrap(coreerrors.ErrCodeInvalidConfig, "config: 解析配置文件失败", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return coreerrors.New(coreerrors.ErrCodeInvalidConfig, "config: 未知配置项: "+strings.Join(keys, ", "))
	}
	return nil
}

// Validate 校验配置。
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return coreerrors.New(coreerrors.ErrCodeInvalidConfig, fmt.Sprintf("config: base_url 非法: %q", c.BaseURL))
	}
	if c.Timeout < 0 {
		return coreerrors.New(coreerrors.ErrCodeInvalidConfig, "config: timeout 不能为负")
	}
	switch store.Backend(strings.ToLower(string(c.Store.Backend))) {
	case "", store.BackendMemory, store.BackendRedis:
	case store.BackendFile, store.BackendSQLite:
		if c.Store.Path == "" {
			return coreerrors.New(coreerrors.ErrCodeInvalidConfig, "config: store.path 不能为空")
		}
	default:
		return coreerrors.New(coreerrors.ErrCodeInvalidConfig, fmt.Sprintf("config: 未知存储后端 %q", c.Store.Backend))
	}
	if !strings.HasPrefix(c.LoginPath, "/") {
		return coreerrors.New(coreerrors.ErrCodeInvalidConfig, fmt.Sprintf("config: login_path 必须以 / 开头: %q", c.LoginPath))
	}
	if err := route.Table(c.Routes).Validate(); err != nil {
		return coreerrors.Wrap(coreerrors.ErrCodeInvalidConfig, "config: 路由表非法", err)
	}
	return nil
}

// IdentityEndpoints 转换为身份服务接口路径。
func (c Config) IdentityEndpoints() identity.Endpoints {
	return identity.Endpoints{
		Login:    c.Endpoints.Login,
		Me:       c.Endpoints.Me,
		Register: c.Endpoints.Register,
	}
}

// StoreOptions 转换为 store.Open 的参数。
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Backend:       c.Store.Backend,
		Path:          c.Store.Path,
		Key:           c.Store.Key,
		RedisAddr:     c.Store.RedisAddr,
		RedisPassword: c.Store.RedisPassword,
		RedisDB:       c.Store.RedisDB,
		RedisPrefix:   c.Store.RedisPrefix,
		TTL:           c.Store.TTL,
	}
}

// RouteTable 返回路由表的拷贝。
func (c Config) RouteTable() route.Table {
	return append(route.Table(nil), c.Routes...)
}
