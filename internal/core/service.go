package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// ServiceOptions configures a Service. Zero values fall back to defaults.
type ServiceOptions struct {
	Save               SaveOptions
	PageSize           int                   // Rows per dataset page (default: DefaultPageSize)
	MaxConcurrentSaves int                   // Process-wide save batches (default: DefaultMaxConcurrentSaves)
	SaveWaitTime       time.Duration         // Wait for a save slot (default: DefaultSaveWaitTime)
	Registerer         prometheus.Registerer // Metrics registry; nil disables registration
	AuditCapacity      int                   // Retained audit entries (default: DefaultAuditCapacity)
}

// Service owns the open edit controls of the process.
type Service struct {
	store    RecordStore
	saver    *Saver
	limiter  *SaveLimiter
	metrics  *Metrics
	audit    *AuditLog
	pageSize int

	mu       sync.RWMutex
	controls map[string]*session
}

// session is one open control and the dataset it is bound to.
type session struct {
	control   *Control
	dataset   *Dataset
	createdAt time.Time
}

// ControlInfo is a snapshot of one open control.
type ControlInfo struct {
	ID           string    `json:"id"`
	Entity       string    `json:"entity"`
	Pending      int       `json:"pending"`
	PendingCells int       `json:"pendingCells"`
	Saving       bool      `json:"saving"`
	CreatedAt    time.Time `json:"createdAt"`
	LastUsed     time.Time `json:"lastUsed"`
	RefreshedAt  time.Time `json:"refreshedAt"`
}

// NewService creates a Service that reads and writes records through store.
func NewService(store RecordStore, opts ServiceOptions) *Service {
	metrics := NewMetrics(opts.Registerer)
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{
		store:    store,
		saver:    NewSaver(store, opts.Save, metrics),
		limiter:  NewSaveLimiter(opts.MaxConcurrentSaves, opts.SaveWaitTime),
		metrics:  metrics,
		audit:    NewAuditLog(opts.AuditCapacity),
		pageSize: pageSize,
		controls: make(map[string]*session),
	}
}

// ListEntities returns information about all registered entities.
func (s *Service) ListEntities() []EntityInfo {
	defs := All()
	infos := make([]EntityInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// Entity returns the definition of a registered entity.
func (s *Service) Entity(name string) (EntityDefinition, error) {
	def, ok := Get(name)
	if !ok {
		return EntityDefinition{}, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return def, nil
}

// OpenControl binds a new control to entity and loads its first page.
func (s *Service) OpenControl(ctx context.Context, entity string, opts ...ControlOption) (*Control, error) {
	def, err := s.Entity(entity)
	if err != nil {
		return nil, err
	}

	dataset := NewDataset(def, s.store, s.pageSize)
	if err := dataset.Refresh(ctx); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	base := []ControlOption{WithID(id), WithSaveLimiter(s.limiter), WithMetrics(s.metrics)}
	control := NewControl(dataset, s.saver, append(base, opts...)...)

	s.mu.Lock()
	s.controls[id] = &session{control: control, dataset: dataset, createdAt: time.Now()}
	s.mu.Unlock()

	s.audit.Record(ctx, AuditEntry{Action: ActionControlOpen, ControlID: id, Entity: def.Info.Name})
	slog.Info("control opened", "control_id", id, "entity", def.Info.Name)
	return control, nil
}

func (s *Service) session(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.controls[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrControlNotFound, id)
	}
	return sess, nil
}

// Control returns an open control by id.
func (s *Service) Control(id string) (*Control, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return sess.control, nil
}

// ControlInfo returns a snapshot of an open control.
func (s *Service) ControlInfo(id string) (ControlInfo, error) {
	sess, err := s.session(id)
	if err != nil {
		return ControlInfo{}, err
	}
	return sess.info(), nil
}

// ListControls returns snapshots of every open control, oldest first.
func (s *Service) ListControls() []ControlInfo {
	s.mu.RLock()
	infos := make([]ControlInfo, 0, len(s.controls))
	for _, sess := range s.controls {
		infos = append(infos, sess.info())
	}
	s.mu.RUnlock()

	slices.SortFunc(infos, func(a, b ControlInfo) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return infos
}

// Rows returns a page of the control's dataset.
// limit <= 0 re-reads the page the dataset is currently on.
func (s *Service) Rows(ctx context.Context, id string, limit, offset int) ([]Record, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.control.touch()
	if limit <= 0 {
		if err := sess.dataset.Refresh(ctx); err != nil {
			return nil, err
		}
		return sess.dataset.Rows(), nil
	}
	return sess.dataset.Page(ctx, limit, offset)
}

// Save submits the control's pending edits as one batch and records the
// outcome in the audit log. A *SaveError is returned alongside the result
// when any record update failed.
func (s *Service) Save(ctx context.Context, id string) (SaveResult, error) {
	sess, err := s.session(id)
	if err != nil {
		return SaveResult{}, err
	}
	c := sess.control

	result, err := c.OnSave(ctx)
	var saveErr *SaveError
	switch {
	case err == nil:
		if result.Attempted > 0 {
			s.audit.Record(ctx, AuditEntry{
				Action:    ActionSave,
				ControlID: id,
				Entity:    c.Entity(),
				BatchID:   result.BatchID,
				Records:   result.Updated,
			})
		}
	case errors.As(err, &saveErr):
		s.audit.Record(ctx, AuditEntry{
			Action:    ActionSaveFailed,
			ControlID: id,
			Entity:    c.Entity(),
			BatchID:   saveErr.BatchID,
			Records:   saveErr.Attempted,
			Failed:    len(saveErr.Failures),
			Reason:    saveErr.Error(),
		})
	}
	return result, err
}

// Discard drops the pending edits of one record and returns whether any
// existed plus the number of records still pending.
func (s *Service) Discard(ctx context.Context, id, recordID string) (bool, int, error) {
	sess, err := s.session(id)
	if err != nil {
		return false, 0, err
	}
	c := sess.control
	discarded := c.Discard(recordID)
	if discarded {
		s.audit.Record(ctx, AuditEntry{
			Action:    ActionDiscard,
			ControlID: id,
			Entity:    c.Entity(),
			Records:   1,
			Reason:    "record " + recordID,
		})
	}
	return discarded, c.PendingChangeCount(), nil
}

// CloseControl tears a control down, discarding its pending edits.
func (s *Service) CloseControl(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.controls[id]
	delete(s.controls, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrControlNotFound, id)
	}
	s.closeSession(ctx, sess, "closed")
	return nil
}

// closeSession closes sess and records how many pending records were abandoned.
func (s *Service) closeSession(ctx context.Context, sess *session, reason string) {
	c := sess.control
	abandoned := c.PendingChangeCount()
	c.Close()
	s.audit.Record(ctx, AuditEntry{
		Action:    ActionControlClose,
		ControlID: c.ID(),
		Entity:    c.Entity(),
		Records:   abandoned,
		Reason:    reason,
	})
	slog.Info("control closed", "control_id", c.ID(), "entity", c.Entity(), "reason", reason, "abandoned", abandoned)
}

// Audit returns the service's audit log.
func (s *Service) Audit() *AuditLog {
	return s.audit
}

// SaveLimiterStatus returns the process-wide save limiter state.
func (s *Service) SaveLimiterStatus() SaveLimiterStatus {
	return s.limiter.Status()
}

// WaitForSaves blocks until no save batch is running or ctx is done.
func (s *Service) WaitForSaves(ctx context.Context) error {
	return s.limiter.Drain(ctx)
}

// Close closes every open control. The store is owned by the caller.
func (s *Service) Close() {
	s.mu.Lock()
	sessions := s.controls
	s.controls = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		s.closeSession(context.Background(), sess, "shutdown")
	}
}

func (sess *session) info() ControlInfo {
	c := sess.control
	return ControlInfo{
		ID:           c.ID(),
		Entity:       c.Entity(),
		Pending:      c.PendingChangeCount(),
		PendingCells: c.PendingCellCount(),
		Saving:       c.Saving(),
		CreatedAt:    sess.createdAt,
		LastUsed:     c.LastUsed(),
		RefreshedAt:  sess.dataset.RefreshedAt(),
	}
}
