package remote

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/roster"
)

// Memory is an in-process Store. Ids are assigned sequentially from 1.
type Memory struct {
	mu      sync.Mutex
	keyCol  string
	nextID  int
	records map[string]map[string]any
	order   []string

	// Creates and Updates count successful mutating calls.
	Creates int
	Updates int
}

// NewMemory returns an empty store that reads natural keys from keyColumn.
func NewMemory(keyColumn string) *Memory {
	return &Memory{keyCol: keyColumn, nextID: 1, records: make(map[string]map[string]any)}
}

// Seed inserts records directly, bypassing the counters.
func (m *Memory) Seed(records ...map[string]any) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, m.insert(r))
	}
	return ids
}

func (m *Memory) insert(payload map[string]any) string {
	id := strconv.Itoa(m.nextID)
	m.nextID++
	rec := make(map[string]any, len(payload))
	for k, v := range payload {
		rec[k] = v
	}
	m.records[id] = rec
	m.order = append(m.order, id)
	return id
}

// Name implements Store.
func (m *Memory) Name() string {
	return "memory"
}

// ListKeys implements Store, ordered by id.
func (m *Memory) ListKeys(ctx context.Context, offset, limit int) ([]KeyRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset >= len(m.order) {
		return []KeyRow{}, nil
	}
	end := offset + limit
	if end > len(m.order) {
		end = len(m.order)
	}
	rows := make([]KeyRow, 0, end-offset)
	for _, id := range m.order[offset:end] {
		rows = append(rows, KeyRow{NaturalKey: roster.Stringify(m.records[id][m.keyCol]), RemoteID: id})
	}
	return rows, nil
}

// Create implements Store.
func (m *Memory) Create(ctx context.Context, payload map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Creates++
	return m.insert(payload), nil
}

// Update implements Store.
func (m *Memory) Update(ctx context.Context, remoteID string, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[remoteID]
	if !ok {
		return errors.NewNotFoundError("record", remoteID)
	}
	for k, v := range patch {
		rec[k] = v
	}
	m.Updates++
	return nil
}

// Get returns a copy of the record with the given id.
func (m *Memory) Get(remoteID string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[remoteID]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, true
}

// Keys returns every natural key, sorted.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.records))
	for _, rec := range m.records {
		keys = append(keys, roster.Stringify(rec[m.keyCol]))
	}
	sort.Strings(keys)
	return keys
}

// Len is the number of records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
