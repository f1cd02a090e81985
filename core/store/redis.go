package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	coreerrors "github.com/dnslin/authsession/core/errors"
	"github.com/redis/go-redis/v9"
)

// RedisOptions 描述 redis 后端参数。
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Key      string
	TTL      time.Duration
}

// RedisTokenStore 将凭证保存在 redis 字符串键中。
type RedisTokenStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// OpenRedis 连接 redis 并确认可用。
func OpenRedis(ctx context.Context, opts RedisOptions) (*RedisTokenStore, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, coreerrors.New(coreerrors.ErrCodeInvalidConfig, "store: redis 地址不能为空")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("store: 连接 redis 失败: %w", err)
	}
	return NewRedisTokenStore(rdb, opts.Prefix, opts.Key, opts.TTL), nil
}

// NewRedisTokenStore 基于已有客户端创建存储。
func NewRedisTokenStore(rdb *redis.Client, prefix, key string, ttl time.Duration) *RedisTokenStore {
	if key == "" {
		key = DefaultKey
	}
	if prefix == "" {
		prefix = "authsession:"
	}
	return &RedisTokenStore{rdb: rdb, key: prefix + key, ttl: ttl}
}

func (s *RedisTokenStore) SaveTokens(ctx context.Context, token string) error {
	if err := s.rdb.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("store: 写入凭证失败: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) LoadTokens(ctx context.Context) (string, error) {
	token, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: 读取凭证失败: %w", err)
	}
	return token, nil
}

func (s *RedisTokenStore) ClearTokens(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("store: 删除凭证失败: %w", err)
	}
	return nil
}

// Close 关闭 redis 连接。
func (s *RedisTokenStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
