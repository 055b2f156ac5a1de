package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultPageSize is the number of rows a dataset shows when none is configured.
const DefaultPageSize = 50

// Dataset binds one entity's metadata to the rows currently shown in the grid.
// It resolves columns for normalization and re-reads its page on Refresh.
type Dataset struct {
	def    EntityDefinition
	lister RecordLister

	mu          sync.RWMutex
	limit       int
	offset      int
	rows        []Record
	refreshedAt time.Time
}

// NewDataset creates a dataset showing pageSize rows of def.
func NewDataset(def EntityDefinition, lister RecordLister, pageSize int) *Dataset {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Dataset{def: def, lister: lister, limit: pageSize}
}

// Entity returns the entity name.
func (d *Dataset) Entity() string {
	return d.def.Info.Name
}

// Definition returns the entity metadata.
func (d *Dataset) Definition() EntityDefinition {
	return d.def
}

// Resolve implements ColumnResolver.
func (d *Dataset) Resolve(column string) (ColumnMetadata, bool) {
	return d.def.Resolve(column)
}

// Refresh re-reads the current page from the record store.
func (d *Dataset) Refresh(ctx context.Context) error {
	d.mu.RLock()
	limit, offset := d.limit, d.offset
	d.mu.RUnlock()

	_, err := d.load(ctx, limit, offset)
	return err
}

// Page moves the dataset to another page and returns its rows.
func (d *Dataset) Page(ctx context.Context, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return d.load(ctx, limit, offset)
}

// Rows returns the rows loaded by the last Refresh or Page.
func (d *Dataset) Rows() []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Record, len(d.rows))
	copy(out, d.rows)
	return out
}

// RefreshedAt returns when the rows were last loaded.
func (d *Dataset) RefreshedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.refreshedAt
}

func (d *Dataset) load(ctx context.Context, limit, offset int) ([]Record, error) {
	rows, err := d.lister.ListRecords(ctx, d.def.Info.Name, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", d.def.Info.Name, err)
	}

	d.mu.Lock()
	d.limit, d.offset = limit, offset
	d.rows = rows
	d.refreshedAt = time.Now()
	d.mu.Unlock()

	return rows, nil
}
