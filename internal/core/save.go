package core

// save.go turns a ChangeSet into one remote update per record.
//
// All updates of a batch are dispatched together and the batch settles only
// when every one of them has returned: the first failure does not cancel the
// others. Each call runs under its own timeout, and cancelling the caller's
// context cancels every call still in flight.

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/gridedit/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// FailurePolicy decides what a failed batch does to the ChangeSet.
type FailurePolicy string

const (
	// PolicyBatch keeps every pending edit when any record fails.
	// Records that did succeed are submitted again on the next save.
	PolicyBatch FailurePolicy = "batch"

	// PolicyPerRecord clears the records whose update succeeded and keeps the rest.
	PolicyPerRecord FailurePolicy = "per-record"
)

// DefaultCallTimeout bounds a single record update when no timeout is configured.
const DefaultCallTimeout = 30 * time.Second

// SaveOptions configures a Saver.
type SaveOptions struct {
	CallTimeout time.Duration // Per-record update timeout (default: DefaultCallTimeout)
	MaxInFlight int           // Concurrent updates per batch; 0 means no cap
	Policy      FailurePolicy // Failure policy (default: PolicyBatch)
}

// SaveResult is the settled outcome of one save batch.
type SaveResult struct {
	BatchID      string          `json:"batchId,omitempty"`
	Entity       string          `json:"entity"`
	Attempted    int             `json:"attempted"`
	Updated      int             `json:"updated"`
	Failures     []RecordFailure `json:"failures,omitempty"`
	Pending      int             `json:"pending"` // Records still pending after the batch settled
	Refreshed    bool            `json:"refreshed"`
	RefreshError string          `json:"refreshError,omitempty"`
	Duration     time.Duration   `json:"durationNs"`
}

// Success reports whether every record update in the batch succeeded.
func (r SaveResult) Success() bool {
	return len(r.Failures) == 0
}

// Saver drains ChangeSets into concurrent record updates.
type Saver struct {
	updater RecordUpdater
	opts    SaveOptions
	metrics *Metrics
}

// NewSaver creates a Saver that applies updates through updater.
func NewSaver(updater RecordUpdater, opts SaveOptions, metrics *Metrics) *Saver {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.MaxInFlight < 0 {
		opts.MaxInFlight = 0
	}
	if opts.Policy == "" {
		opts.Policy = PolicyBatch
	}
	return &Saver{updater: updater, opts: opts, metrics: metrics}
}

// Policy returns the configured failure policy.
func (s *Saver) Policy() FailurePolicy {
	return s.opts.Policy
}

// Save submits every pending record of cs and reconciles the outcome.
//
// An empty ChangeSet is a successful no-op. When every update succeeds the
// drained edits are cleared and refresher (if non-nil) is invoked once.
// When any update fails the returned error is a *SaveError and, under
// PolicyBatch, cs is left exactly as it was.
func (s *Saver) Save(ctx context.Context, entity string, cs *ChangeSet, refresher Refresher) (SaveResult, error) {
	start := time.Now()
	result := SaveResult{Entity: entity}

	if cs.Size() == 0 {
		s.metrics.batch("empty", 0)
		return result, nil
	}

	result.BatchID = uuid.NewString()
	logger := logging.WithFields(ctx, "batch_id", result.BatchID, "entity", entity)

	snapshot := cs.Drain()
	result.Attempted = len(snapshot)
	logger.Info("save started", "records", result.Attempted, "policy", s.opts.Policy)

	errs := make([]error, len(snapshot))
	var g errgroup.Group
	if s.opts.MaxInFlight > 0 {
		g.SetLimit(s.opts.MaxInFlight)
	}
	for i, rec := range snapshot {
		g.Go(func() error {
			errs[i] = s.updateOne(ctx, entity, rec)
			return nil
		})
	}
	_ = g.Wait() // goroutines report through errs

	var succeeded []string
	for i, rec := range snapshot {
		s.metrics.update(errs[i] == nil)
		if errs[i] == nil {
			succeeded = append(succeeded, rec.RecordID)
			continue
		}
		logger.Warn("record update failed", "record_id", rec.RecordID, "error", errs[i])
		result.Failures = append(result.Failures, RecordFailure{
			RecordID: rec.RecordID,
			Reason:   errs[i].Error(),
			Err:      errs[i],
		})
	}

	if len(result.Failures) > 0 {
		if s.opts.Policy == PolicyPerRecord {
			cs.ClearRecords(snapshot, succeeded)
			result.Updated = len(succeeded)
		}
		result.Pending = cs.Size()
		result.Duration = time.Since(start)
		s.metrics.batch("failure", result.Duration)
		logger.Warn("save failed",
			"failed", len(result.Failures),
			"attempted", result.Attempted,
			"pending", result.Pending,
			"duration_ms", result.Duration.Milliseconds(),
		)
		return result, &SaveError{
			BatchID:   result.BatchID,
			Attempted: result.Attempted,
			Failures:  result.Failures,
		}
	}

	cs.ClearSnapshot(snapshot)
	result.Updated = len(snapshot)
	result.Pending = cs.Size()

	if refresher != nil {
		refreshCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
		err := refresher.Refresh(refreshCtx)
		cancel()
		if err != nil {
			// The records are durably saved; a stale view is not a save failure
			logger.Warn("refresh after save failed", "error", err)
			result.RefreshError = err.Error()
		} else {
			result.Refreshed = true
		}
	}

	result.Duration = time.Since(start)
	s.metrics.batch("success", result.Duration)
	logger.Info("save completed",
		"updated", result.Updated,
		"pending", result.Pending,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// updateOne runs a single record update under the per-call timeout.
func (s *Saver) updateOne(ctx context.Context, entity string, rec PendingRecord) (err error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("update %s panicked: %v", rec.RecordID, r)
		}
	}()

	return s.updater.UpdateRecord(callCtx, entity, rec.RecordID, rec.Fields)
}
