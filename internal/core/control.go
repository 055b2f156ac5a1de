package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/gridedit/internal/logging"
)

// Binding is what a control needs from the host dataset.
type Binding interface {
	ColumnResolver
	Refresher
	Entity() string
}

// WarningKind classifies a non-fatal problem reported for one cell edit.
type WarningKind string

const (
	WarnRejected            WarningKind = "normalization_rejected"
	WarnUnsupportedColumn   WarningKind = "unsupported_column"
	WarnMetadataUnavailable WarningKind = "metadata_unavailable"
)

// Warning is the per-cell signal the grid shows next to an edited cell.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	RecordID string      `json:"recordId"`
	Column   string      `json:"column"`
	Message  string      `json:"message"`
	Code     string      `json:"code"`
}

// CellResult is the outcome of one cell edit.
type CellResult struct {
	Accepted bool     `json:"accepted"`
	Value    *Value   `json:"value,omitempty"`
	Warning  *Warning `json:"warning,omitempty"`
	Pending  int      `json:"pending"` // Records with pending edits after this edit
}

// ControlOption customizes a Control.
type ControlOption func(*Control)

// WithWarningHandler registers a callback invoked for every cell warning.
func WithWarningHandler(fn func(Warning)) ControlOption {
	return func(c *Control) { c.onWarning = fn }
}

// WithSaveLimiter makes saves wait for a process-wide slot.
func WithSaveLimiter(l *SaveLimiter) ControlOption {
	return func(c *Control) { c.limiter = l }
}

// WithMetrics records edit outcomes and pending cells.
func WithMetrics(m *Metrics) ControlOption {
	return func(c *Control) { c.metrics = m }
}

// WithID sets the control id (used by the service to key sessions).
func WithID(id string) ControlOption {
	return func(c *Control) { c.id = id }
}

// Control is the host-facing edit control for one entity view.
//
// It owns its ChangeSet for its whole lifetime: edits are normalized and
// recorded synchronously, saves drain the set through the Saver, and Close
// discards whatever is still pending.
type Control struct {
	id      string
	binding Binding
	changes *ChangeSet
	saver   *Saver
	limiter *SaveLimiter
	metrics *Metrics

	onWarning func(Warning)

	saving   atomic.Bool
	closed   atomic.Bool
	lastUsed atomic.Int64 // unix nanos

	closeOnce sync.Once

	gaugeMu  sync.Mutex
	reported int // cells currently counted in the pending gauge
}

// NewControl creates a control over binding that saves through saver.
func NewControl(binding Binding, saver *Saver, opts ...ControlOption) *Control {
	c := &Control{
		binding: binding,
		changes: NewChangeSet(),
		saver:   saver,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.touch()
	return c
}

// ID returns the control id.
func (c *Control) ID() string { return c.id }

// Entity returns the bound entity name.
func (c *Control) Entity() string { return c.binding.Entity() }

// Saving reports whether a save batch is in flight.
func (c *Control) Saving() bool { return c.saving.Load() }

// LastUsed returns the time of the last edit, save, or query.
func (c *Control) LastUsed() time.Time { return time.Unix(0, c.lastUsed.Load()) }

func (c *Control) touch() { c.lastUsed.Store(time.Now().UnixNano()) }

// OnCellChange normalizes and records one cell edit.
//
// It never blocks on I/O and never fails: problems come back as a Warning
// (and through the warning handler), and a rejected edit leaves any earlier
// pending value of the cell untouched.
func (c *Control) OnCellChange(recordID, column string, raw RawValue) CellResult {
	c.touch()

	if c.closed.Load() {
		return c.warn(CellResult{}, WarnRejected, recordID, column, ErrControlClosed)
	}
	if recordID == "" {
		return c.warn(CellResult{}, WarnRejected, recordID, column, ErrInvalidRecordID)
	}

	var result CellResult
	col, ok := c.binding.Resolve(column)
	if !ok {
		// Stale grid state: keep the edit as opaque text rather than lose it
		col = opaqueTextColumn(column)
		result.Warning = c.warning(WarnMetadataUnavailable, recordID, column, ErrMetadataUnavailable)
	}

	v, err := Normalize(raw, col)
	if err != nil {
		c.metrics.edit("rejected")
		result.Pending = c.changes.Size()
		return c.warn(result, WarnRejected, recordID, column, err)
	}
	if v.IsUnsupported() {
		c.metrics.edit("unsupported")
		result.Pending = c.changes.Size()
		return c.warn(result, WarnUnsupportedColumn, recordID, column, ErrUnsupportedColumn)
	}

	if err := c.changes.Record(recordID, col.Name, v); err != nil {
		result.Pending = c.changes.Size()
		return c.warn(result, WarnRejected, recordID, column, err)
	}
	c.syncPending()
	c.metrics.edit("accepted")

	result.Accepted = true
	result.Value = &v
	result.Pending = c.changes.Size()
	if result.Warning != nil && c.onWarning != nil {
		c.onWarning(*result.Warning)
	}
	return result
}

// OnSave submits every pending record and returns the settled outcome.
//
// A save while another is in flight returns ErrSaveInProgress. Edits made
// while a save is running are kept for the next save.
func (c *Control) OnSave(ctx context.Context) (SaveResult, error) {
	c.touch()

	if c.closed.Load() {
		return SaveResult{Entity: c.Entity()}, ErrControlClosed
	}
	if !c.saving.CompareAndSwap(false, true) {
		return SaveResult{Entity: c.Entity(), Pending: c.changes.Size()}, ErrSaveInProgress
	}
	defer c.saving.Store(false)

	if c.limiter != nil && c.changes.Size() > 0 {
		if err := c.limiter.Acquire(ctx); err != nil {
			return SaveResult{Entity: c.Entity(), Pending: c.changes.Size()}, err
		}
		defer c.limiter.Release()
	}

	if c.id != "" {
		ctx = logging.WithControlID(ctx, c.id)
	}
	result, err := c.saver.Save(ctx, c.Entity(), c.changes, c.binding)
	c.syncPending()
	return result, err
}

// HasPendingChanges reports whether any edit awaits saving.
func (c *Control) HasPendingChanges() bool {
	return c.changes.Size() > 0
}

// PendingChangeCount returns the number of records with pending edits.
func (c *Control) PendingChangeCount() int {
	return c.changes.Size()
}

// PendingCellCount returns the number of pending cells.
func (c *Control) PendingCellCount() int {
	return c.changes.CellCount()
}

// Pending returns a snapshot of the pending edits.
func (c *Control) Pending() []PendingRecord {
	c.touch()
	return c.changes.Drain()
}

// Discard drops the pending edits of one record.
func (c *Control) Discard(recordID string) bool {
	c.touch()
	ok := c.changes.Discard(recordID)
	c.syncPending()
	return ok
}

// Close tears the control down and discards its pending edits.
func (c *Control) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		records := c.changes.Size()
		if n := c.changes.Close(); n > 0 {
			slog.Info("control closed with pending edits",
				"control_id", c.id,
				"entity", c.Entity(),
				"records", records,
				"cells", n,
			)
		}
		c.syncPending()
	})
}

// syncPending moves the pending-cells gauge to the current cell count, or to
// zero once the control is closed. A save settling after Close adds nothing.
func (c *Control) syncPending() {
	c.gaugeMu.Lock()
	defer c.gaugeMu.Unlock()
	n := 0
	if !c.closed.Load() {
		n = c.changes.CellCount()
	}
	c.metrics.pending(n - c.reported)
	c.reported = n
}

// Closed reports whether Close has been called.
func (c *Control) Closed() bool { return c.closed.Load() }

func (c *Control) warning(kind WarningKind, recordID, column string, err error) *Warning {
	msg := MapError(err)
	message := err.Error()
	var nerr *NormalizationError
	if errors.As(err, &nerr) {
		message = nerr.Reason
	}
	return &Warning{
		Kind:     kind,
		RecordID: recordID,
		Column:   column,
		Message:  message,
		Code:     msg.Code,
	}
}

// warn attaches a warning to result and notifies the handler.
func (c *Control) warn(result CellResult, kind WarningKind, recordID, column string, err error) CellResult {
	result.Accepted = false
	result.Value = nil
	result.Warning = c.warning(kind, recordID, column, err)
	slog.Debug("cell edit not recorded",
		"control_id", c.id,
		"record_id", recordID,
		"column", column,
		"kind", kind,
		"reason", result.Warning.Message,
	)
	if c.onWarning != nil {
		c.onWarning(*result.Warning)
	}
	return result
}
