package store

import (
	"context"
	"sync"
)

// MemoryStore 内存凭证存储，进程退出即丢失，适合测试与一次性会话。
type MemoryStore[T any] struct {
	mu        sync.RWMutex
	tokens    T
	hasTokens bool
}

// NewMemoryStore 创建空的内存存储。
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{}
}

func (m *MemoryStore[T]) SaveTokens(_ context.Context, tokens T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = tokens
	m.hasTokens = true
	return nil
}

func (m *MemoryStore[T]) LoadTokens(_ context.Context) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasTokens {
		var zero T
		return zero, ErrTokenNotFound
	}
	return m.tokens, nil
}

func (m *MemoryStore[T]) ClearTokens(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	m.tokens = zero
	m.hasTokens = false
	return nil
}
