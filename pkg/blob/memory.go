package blob

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/agentstation/rostersync/pkg/errors"
)

// Memory is an in-process Store.
type Memory struct {
	mu      sync.Mutex
	bucket  bool
	objects map[string][]byte
	types   map[string]string

	// Puts counts successful Put calls; Ensures counts bucket creations.
	Puts    int
	Ensures int
}

// NewMemory returns a store with no bucket.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte), types: make(map[string]string)}
}

// Name implements Store.
func (m *Memory) Name() string {
	return "memory"
}

// EnsureBucket implements Store.
func (m *Memory) EnsureBucket(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.bucket {
		m.bucket = true
		m.Ensures++
	}
	return nil
}

// List implements Store, sorted by name.
func (m *Memory) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.bucket {
		return nil, errors.NewNotFoundError("bucket", "memory")
	}
	names := make([]string, 0, len(m.objects))
	for name := range m.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, name string, r io.Reader, _ int64, contentType string, upsert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return errors.WrapIO("read", name, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.bucket {
		return errors.NewNotFoundError("bucket", "memory")
	}
	if _, exists := m.objects[name]; exists && !upsert {
		return &errors.ResourceError{Operation: "put", Resource: "object", ID: name, Message: "object exists", Err: errors.ErrAlreadyExists}
	}
	m.objects[name] = buf.Bytes()
	m.types[name] = contentType
	m.Puts++
	return nil
}

// Object returns a stored object's bytes and content type.
func (m *Memory) Object(name string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[name]
	return data, m.types[name], ok
}

// Len is the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
