package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	coreerrors "github.com/dnslin/authsession/core/errors"
)

// DefaultKey 为持久化凭证使用的固定键名。
const DefaultKey = "token"

// ErrTokenNotFound 在存储中不存在凭证时返回。
var ErrTokenNotFound = coreerrors.New(coreerrors.ErrCodeNotFound, "store: 未找到凭证")

// TokenStore 抽象凭证的持久化，由业务方约定具体结构。
// ClearTokens 在记录不存在时也应返回 nil。
type TokenStore[T any] interface {
	SaveTokens(ctx context.Context, tokens T) error
	LoadTokens(ctx context.Context) (T, error)
	ClearTokens(ctx context.Context) error
}

// Backend 选择持久化实现。
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
)

// Options 描述 Open 所需的参数。
type Options struct {
	Backend Backend
	// Path 为 file/sqlite 后端的文件路径。
	Path string
	// Key 为记录键名，默认 DefaultKey。
	Key string
	// RedisAddr、RedisPassword、RedisDB 仅 redis 后端使用。
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// RedisPrefix 为 redis 键前缀。
	RedisPrefix string
	// TTL 为 redis 记录的过期时间，0 表示不过期。
	TTL time.Duration
}

// CloseableTokenStore 为需要释放资源的凭证存储。
type CloseableTokenStore interface {
	TokenStore[string]
	Close() error
}

// Open 按配置创建凭证存储。
func Open(ctx context.Context, opts Options) (CloseableTokenStore, error) {
	key := strings.TrimSpace(opts.Key)
	if key == "" {
		key = DefaultKey
	}
	switch Backend(strings.ToLower(string(opts.Backend))) {
	case "", BackendMemory:
		return nopCloser{NewMemoryStore[string]()}, nil
	case BackendFile:
		s, err := NewFileTokenStore(opts.Path, key)
		if err != nil {
			return nil, err
		}
		return nopCloser{s}, nil
	case BackendSQLite:
		s, err := OpenSQLite(ctx, opts.Path, key)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendRedis:
		s, err := OpenRedis(ctx, RedisOptions{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
			Prefix:   opts.RedisPrefix,
			Key:      key,
			TTL:      opts.TTL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, coreerrors.New(coreerrors.ErrCodeInvalidConfig, fmt.Sprintf("store: 不支持的后端 %q", opts.Backend))
	}
}

type nopCloser struct {
	TokenStore[string]
}

func (nopCloser) Close() error { return nil }
