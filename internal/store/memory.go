package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/JonMunkholm/gridedit/internal/core"
)

// Memory keeps records in process memory. Updates apply atomically per record.
type Memory struct {
	mu       sync.RWMutex
	records  map[string]map[string]map[string]any // entity -> record id -> column name -> value
	failures map[string]error                      // record id -> injected update error
	updates  int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records:  make(map[string]map[string]map[string]any),
		failures: make(map[string]error),
	}
}

// FailUpdates makes every update of recordID fail with err until cleared
// with a nil err. Used to exercise the save failure path.
func (m *Memory) FailUpdates(recordID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, recordID)
		return
	}
	m.failures[recordID] = err
}

// UpdateCount returns the number of successful updates applied.
func (m *Memory) UpdateCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updates
}

// UpdateRecord implements core.RecordUpdater.
func (m *Memory) UpdateRecord(ctx context.Context, entity, recordID string, fields map[string]core.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	def, err := definition(entity)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("update %s %s: no fields", entity, recordID)
	}

	// Validate everything before touching the record
	staged := make(map[string]any, len(fields))
	for name, v := range fields {
		// Undeclared columns arrive as opaque text and are stored under their own name
		col := resolveColumn(def, name)
		if v.IsUnsupported() {
			return fmt.Errorf("update %s %s: column %s: %w", entity, recordID, name, core.ErrUnsupportedColumn)
		}
		staged[col.Name] = v.Interface()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[recordID]; err != nil {
		return fmt.Errorf("update %s %s: %w", entity, recordID, err)
	}
	rec, ok := m.records[entity][recordID]
	if !ok {
		return notFound(entity, recordID)
	}
	maps.Copy(rec, staged)
	m.updates++
	return nil
}

// InsertRecord adds a new record.
func (m *Memory) InsertRecord(ctx context.Context, entity, recordID string, fields map[string]core.Value) error {
	def, err := definition(entity)
	if err != nil {
		return err
	}

	rec := make(map[string]any, len(def.Columns))
	for _, col := range def.Columns {
		rec[col.Name] = nil
	}
	for name, v := range fields {
		col := resolveColumn(def, name)
		rec[col.Name] = v.Interface()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	table, ok := m.records[entity]
	if !ok {
		table = make(map[string]map[string]any)
		m.records[entity] = table
	}
	if _, exists := table[recordID]; exists {
		return fmt.Errorf("insert %s %s: duplicate key", entity, recordID)
	}
	table[recordID] = rec
	return nil
}

// ListRecords implements core.RecordLister.
func (m *Memory) ListRecords(ctx context.Context, entity string, limit, offset int) ([]core.Record, error) {
	if _, err := definition(entity); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	table := m.records[entity]
	ids := slices.Sorted(maps.Keys(table))
	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	records := make([]core.Record, len(ids))
	for i, id := range ids {
		records[i] = core.Record{ID: id, Fields: maps.Clone(table[id])}
	}
	return records, nil
}

// Get returns a copy of one stored record.
func (m *Memory) Get(entity, recordID string) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[entity][recordID]
	return maps.Clone(rec), ok
}

// EnsureSchema is a no-op; tables are created on first insert.
func (m *Memory) EnsureSchema(ctx context.Context) error { return nil }

// Close implements core.RecordStore.
func (m *Memory) Close() error { return nil }
