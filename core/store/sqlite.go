package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	coreerrors "github.com/dnslin/authsession/core/errors"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv_records (
	record_key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteTokenStore 基于 SQLite 的凭证存储，一条记录对应一个键。
type SQLiteTokenStore struct {
	db  *sql.DB
	key string
	now func() time.Time
}

// OpenSQLite 打开数据库并建表。
func OpenSQLite(ctx context.Context, path, key string) (*SQLiteTokenStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, coreerrors.New(coreerrors.ErrCodeInvalidConfig, "store: sqlite 路径不能为空")
	}
	if key == "" {
		key = DefaultKey
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: 打开 sqlite 失败: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: 连接 sqlite 失败: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: 初始化表失败: %w", err)
	}
	return &SQLiteTokenStore{db: db, key: key, now: time.Now}, nil
}

func (s *SQLiteTokenStore) SaveTokens(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_records (record_key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(record_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.key, token, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: 写入凭证失败: %w", err)
	}
	return nil
}

func (s *SQLiteTokenStore) LoadTokens(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_records WHERE record_key = ?`, s.key).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: 读取凭证失败: %w", err)
	}
	return token, nil
}

func (s *SQLiteTokenStore) ClearTokens(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_records WHERE record_key = ?`, s.key); err != nil {
		return fmt.Errorf("store: 删除凭证失败: %w", err)
	}
	return nil
}

// Close 释放数据库连接。
func (s *SQLiteTokenStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
