package blob

import (
	"context"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore keeps objects in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]memoryObject
}

// NewMemoryStore creates an empty MemoryStore whose URLs start with baseURL
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: baseURL,
		objects: make(map[string]memoryObject),
	}
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := cleanKey(key); err != nil {
		return err
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	m.objects[key] = memoryObject{data: cp, contentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, "", ErrObjectNotFound
	}
	return obj.data, obj.contentType, nil
}

func (m *MemoryStore) URL(key string) string {
	return joinURL(m.baseURL, key)
}

func (m *MemoryStore) Ensure(ctx context.Context) error {
	return nil
}

// Keys returns the stored object keys
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
