// Package store persists small JSON values by key, organized into two
// scopes: a synced scope for user preferences, settings and custom reminder
// definitions, and a local scope for device-specific state such as
// last-shown timestamps and usage stats.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Scope names a key space.
type Scope string

const (
	ScopeSync  Scope = "sync"
	ScopeLocal Scope = "local"
)

// KV is a single scope of the store.
type KV interface {
	// Get decodes the value stored under key into out. It reports false
	// when the key has never been set.
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

// Store hands out its scopes.
type Store interface {
	Scope(s Scope) KV
	Close() error
}

// StorageError reports a failed read or write.
type StorageError struct {
	Op    string // "get" or "set"
	Scope Scope
	Key   string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s/%s: %v", e.Op, e.Scope, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Memory is an in-process Store for tests and dry runs.
type Memory struct {
	mu     sync.RWMutex
	data   map[Scope]map[string][]byte
	failOn map[Scope]error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data:   make(map[Scope]map[string][]byte),
		failOn: make(map[Scope]error),
	}
}

// FailScope makes every operation on scope fail with err; nil clears it.
func (m *Memory) FailScope(s Scope, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failOn, s)
		return
	}
	m.failOn[s] = err
}

func (m *Memory) Scope(s Scope) KV { return &memoryScope{m: m, scope: s} }

func (m *Memory) Close() error { return nil }

type memoryScope struct {
	m     *Memory
	scope Scope
}

func (s *memoryScope) Get(ctx context.Context, key string, out any) (bool, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	if err := s.m.failOn[s.scope]; err != nil {
		return false, &StorageError{Op: "get", Scope: s.scope, Key: key, Err: err}
	}
	raw, ok := s.m.data[s.scope][key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, &StorageError{Op: "get", Scope: s.scope, Key: key, Err: err}
	}
	return true, nil
}

func (s *memoryScope) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return &StorageError{Op: "set", Scope: s.scope, Key: key, Err: err}
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.failOn[s.scope]; err != nil {
		return &StorageError{Op: "set", Scope: s.scope, Key: key, Err: err}
	}
	if s.m.data[s.scope] == nil {
		s.m.data[s.scope] = make(map[string][]byte)
	}
	s.m.data[s.scope][key] = raw
	return nil
}
