package core

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of operation being audited.
type AuditAction string

const (
	ActionControlOpen  AuditAction = "control_open"
	ActionSave         AuditAction = "save"
	ActionSaveFailed   AuditAction = "save_failed"
	ActionDiscard      AuditAction = "discard"
	ActionControlClose AuditAction = "control_close"
)

// AuditSeverity indicates the importance level of an audit event.
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityCritical AuditSeverity = "critical"
)

// DefaultAuditCapacity is the number of entries an AuditLog retains.
const DefaultAuditCapacity = 1000

// AuditEntry is one recorded edit-lifecycle event.
type AuditEntry struct {
	ID        string        `json:"id"`
	Action    AuditAction   `json:"action"`
	Severity  AuditSeverity `json:"severity"`
	ControlID string        `json:"controlId"`
	Entity    string        `json:"entity"`
	BatchID   string        `json:"batchId,omitempty"`
	Records   int           `json:"records"`          // Records touched (saved, discarded or abandoned)
	Failed    int           `json:"failed,omitempty"` // Records whose update failed
	Reason    string        `json:"reason,omitempty"`
	IPAddress string        `json:"ipAddress,omitempty"`
	UserAgent string        `json:"userAgent,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// AuditFilter narrows List. Zero fields match everything.
type AuditFilter struct {
	ControlID string
	Entity    string
	Action    AuditAction
	Limit     int
}

// determineSeverity assigns severity based on action and what was lost.
func determineSeverity(e AuditEntry) AuditSeverity {
	switch e.Action {
	case ActionSaveFailed:
		if e.Failed > 0 && e.Failed == e.Records {
			return SeverityCritical
		}
		return SeverityWarning
	case ActionControlClose, ActionDiscard:
		if e.Records > 0 {
			return SeverityWarning
		}
	}
	return SeverityInfo
}

// AuditLog is a bounded, in-process trail of control and save events.
// Once full, the oldest entries are dropped.
type AuditLog struct {
	mu       sync.RWMutex
	entries  []AuditEntry
	capacity int
}

// NewAuditLog returns a log retaining up to capacity entries
// (default: DefaultAuditCapacity).
func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &AuditLog{capacity: capacity}
}

// Record stores e, filling in id, timestamp, severity and the client
// metadata carried by ctx.
func (l *AuditLog) Record(ctx context.Context, e AuditEntry) AuditEntry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Severity == "" {
		e.Severity = determineSeverity(e)
	}
	md := RequestMetadataFrom(ctx)
	if e.IPAddress == "" {
		e.IPAddress = md.IPAddress
	}
	if e.UserAgent == "" {
		e.UserAgent = md.UserAgent
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == l.capacity {
		l.entries = slices.Delete(l.entries, 0, 1)
	}
	l.entries = append(l.entries, e)
	return e
}

// List returns entries matching f, newest first.
func (l *AuditLog) List(f AuditFilter) []AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []AuditEntry
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if f.ControlID != "" && e.ControlID != f.ControlID {
			continue
		}
		if f.Entity != "" && e.Entity != f.Entity {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// Get returns the entry with the given id.
func (l *AuditLog) Get(id string) (AuditEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.ID == id {
			return e, true
		}
	}
	return AuditEntry{}, false
}

// Len returns the number of retained entries.
func (l *AuditLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
