package core

import (
	"maps"
	"slices"
	"sync"
)

// ChangeSet holds the edits entered since the last successful save,
// keyed by record id and then column name.
//
// A record is present only while it has at least one pending column.
// Re-editing a cell overwrites it. Every write is stamped with a sequence
// number so a save can clear exactly the cells it drained and keep edits
// that arrived while it was in flight.
type ChangeSet struct {
	mu      sync.RWMutex
	seq     uint64
	records map[string]map[string]pendingCell
	closed  bool
}

type pendingCell struct {
	value Value
	seq   uint64
}

// PendingRecord is one record's pending edits as returned by Drain.
type PendingRecord struct {
	RecordID string           `json:"recordId"`
	Fields   map[string]Value `json:"fields"`

	seqs map[string]uint64
}

// NewChangeSet returns an empty ChangeSet.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{records: make(map[string]map[string]pendingCell)}
}

// Record inserts or overwrites the pending value for one cell.
// Unsupported values are refused and leave the set untouched.
func (cs *ChangeSet) Record(recordID, column string, v Value) error {
	if v.IsUnsupported() {
		return ErrUnsupportedColumn
	}
	if recordID == "" {
		return ErrInvalidRecordID
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.closed {
		return ErrControlClosed
	}
	cells, ok := cs.records[recordID]
	if !ok {
		cells = make(map[string]pendingCell)
		cs.records[recordID] = cells
	}
	cs.seq++
	cells[column] = pendingCell{value: v, seq: cs.seq}
	return nil
}

// Has reports whether the record has pending edits.
func (cs *ChangeSet) Has(recordID string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	_, ok := cs.records[recordID]
	return ok
}

// Get returns the pending value for one cell.
func (cs *ChangeSet) Get(recordID, column string) (Value, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	cell, ok := cs.records[recordID][column]
	return cell.value, ok
}

// Size returns the number of records with pending edits.
func (cs *ChangeSet) Size() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.records)
}

// CellCount returns the number of pending cells across all records.
func (cs *ChangeSet) CellCount() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	n := 0
	for _, cells := range cs.records {
		n += len(cells)
	}
	return n
}

// Drain returns a snapshot of every pending record, ordered by record id.
// It does not modify the set; two drains without a clear in between are equal.
func (cs *ChangeSet) Drain() []PendingRecord {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	ids := slices.Sorted(maps.Keys(cs.records))
	out := make([]PendingRecord, 0, len(ids))
	for _, id := range ids {
		cells := cs.records[id]
		rec := PendingRecord{
			RecordID: id,
			Fields:   make(map[string]Value, len(cells)),
			seqs:     make(map[string]uint64, len(cells)),
		}
		for col, cell := range cells {
			rec.Fields[col] = cell.value
			rec.seqs[col] = cell.seq
		}
		out = append(out, rec)
	}
	return out
}

// Clear removes every pending edit.
func (cs *ChangeSet) Clear() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.records = make(map[string]map[string]pendingCell)
}

// Close clears the set and refuses every later Record. It returns the number
// of cells that were discarded.
func (cs *ChangeSet) Close() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	n := 0
	for _, cells := range cs.records {
		n += len(cells)
	}
	cs.records = make(map[string]map[string]pendingCell)
	cs.closed = true
	return n
}

// Discard drops all pending edits of one record.
// It returns false if the record had none.
func (cs *ChangeSet) Discard(recordID string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, ok := cs.records[recordID]; !ok {
		return false
	}
	delete(cs.records, recordID)
	return true
}

// ClearSnapshot removes the cells captured by a previous Drain, except
// cells that were re-edited after the drain.
func (cs *ChangeSet) ClearSnapshot(snapshot []PendingRecord) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, rec := range snapshot {
		cs.clearRecordLocked(rec)
	}
}

// ClearRecords is ClearSnapshot restricted to the given record ids.
func (cs *ChangeSet) ClearRecords(snapshot []PendingRecord, recordIDs []string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, rec := range snapshot {
		if slices.Contains(recordIDs, rec.RecordID) {
			cs.clearRecordLocked(rec)
		}
	}
}

func (cs *ChangeSet) clearRecordLocked(rec PendingRecord) {
	cells, ok := cs.records[rec.RecordID]
	if !ok {
		return
	}
	for col, seq := range rec.seqs {
		if cell, ok := cells[col]; ok && cell.seq == seq {
			delete(cells, col)
		}
	}
	if len(cells) == 0 {
		delete(cs.records, rec.RecordID)
	}
}
