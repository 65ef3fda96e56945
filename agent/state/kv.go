package state

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var ErrKeyNotFound = errors.New("key not found")

// Namespaces used by the orchestrator. Each thread's checkpoint keys and
// each customer's memory key are disjoint, so concurrent threads never
// contend on the same entry.
const (
	NamespaceCheckpoint = "checkpoint"
	NamespaceMemory     = "memory_profile"
	NamespacePrompt     = "prompts"
)

// KV is the namespaced key-value persistence contract shared by the
// checkpoint log, the memory profile store, and the prompt store.
type KV interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Put(ctx context.Context, namespace, key string, value []byte) error
	List(ctx context.Context, namespace, prefix string) ([]string, error)
}

// MemoryKV is an in-process KV used by tests and local runs without a
// Redis endpoint. Safe for concurrent use.
type MemoryKV struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, namespace, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[namespace+":"+key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryKV) Put(_ context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.items[namespace+":"+key] = stored
	return nil
}

func (m *MemoryKV) List(_ context.Context, namespace, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	full := namespace + ":" + prefix
	keys := make([]string, 0, 8)
	for k := range m.items {
		if strings.HasPrefix(k, full) {
			keys = append(keys, strings.TrimPrefix(k, namespace+":"))
		}
	}
	sort.Strings(keys)
	return keys, nil
}
