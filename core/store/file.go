package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	coreerrors "github.com/dnslin/authsession/core/errors"
)

// FileTokenStore 将凭证写入本地 JSON 文件，文件内容为 {key: value}。
type FileTokenStore struct {
	mu   sync.Mutex
	path string
	key  string
}

// NewFileTokenStore 创建文件存储，目录不存在时自动创建。
func NewFileTokenStore(path, key string) (*FileTokenStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, coreerrors.New(coreerrors.ErrCodeInvalidConfig, "store: 文件路径不能为空")
	}
	if key == "" {
		key = DefaultKey
	}
	clean := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(clean), 0o700); err != nil {
		return nil, fmt.Errorf("store: 创建目录失败: %w", err)
	}
	return &FileTokenStore{path: clean, key: key}, nil
}

func (s *FileTokenStore) SaveTokens(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		return err
	}
	records[s.key] = token
	return s.write(records)
}

func (s *FileTokenStore) LoadTokens(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		return "", err
	}
	token, ok := records[s.key]
	if !ok {
		return "", ErrTokenNotFound
	}
	return token, nil
}

func (s *FileTokenStore) ClearTokens(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := records[s.key]; !ok {
		return nil
	}
	delete(records, s.key)
	if len(records) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("store: 删除文件失败: %w", err)
		}
		return nil
	}
	return s.write(records)
}

func (s *FileTokenStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: 读取文件失败: %w", err)
	}
	records := map[string]string{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrCodeInvalidState, "store: 凭证文件已损坏", err)
	}
	return records, nil
}

// write 先写临时文件再 rename，避免中途退出留下半截文件。
func (s *FileTokenStore) write(records map[string]string) error {
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".token-*")
	if err != nil {
		return fmt.Errorf("store: 创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: 写入失败: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: 设置权限失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: 替换文件失败: %w", err)
	}
	return nil
}
