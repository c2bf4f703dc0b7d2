package mem

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warriorguo/canvasflow/store"
)

var (
	_ store.Store = &memStore{}
)

const keySeparator = "|"

func NewMemStore() store.Store {
	return NewMemStoreWithErrHandler(defaultNoErr)
}

// NewMemStoreWithErrHandler returns errHandler's error from every call, the
// operation itself is still applied.
func NewMemStoreWithErrHandler(errHandler func() error) store.Store {
	return &memStore{
		records:        make(map[string][]byte),
		mockErrHandler: errHandler,
	}
}

func defaultNoErr() error {
	return nil
}

/**
 * memStore keeps execution records in memory, for local runs and tests.
 * Records are lost on restart.
 */
type memStore struct {
	mu sync.RWMutex

	mockErrHandler func() error

	records map[string][]byte
}

func storeKey(prefix, key string) string {
	return prefix + keySeparator + key
}

func (m *memStore) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.records))
	for key := range m.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("\n----------\n")
	for _, key := range keys {
		fmt.Fprintf(&sb, "%s: %s\n", key, string(m.records[key]))
	}
	sb.WriteString("----------\n")
	return sb.String()
}

func (m *memStore) Get(ctx context.Context, prefix, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.records[storeKey(prefix, key)]
	if !ok {
		return nil, m.mockErrHandler()
	}
	return append([]byte(nil), value...), m.mockErrHandler()
}

func (m *memStore) Set(ctx context.Context, prefix, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[storeKey(prefix, key)] = append([]byte(nil), value...)
	return m.mockErrHandler()
}

func (m *memStore) Remove(ctx context.Context, prefix, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, storeKey(prefix, key))
	return m.mockErrHandler()
}

func (m *memStore) List(ctx context.Context, prefix string, iterator func(key string) bool) error {
	m.mu.RLock()
	prefix += keySeparator
	matched := make([]string, 0)
	for key := range m.records {
		if rest, ok := strings.CutPrefix(key, prefix); ok {
			matched = append(matched, rest)
		}
	}
	m.mu.RUnlock()

	sort.Strings(matched)
	for _, key := range matched {
		if !iterator(key) {
			break
		}
	}
	return m.mockErrHandler()
}
