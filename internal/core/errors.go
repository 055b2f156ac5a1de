package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the edit and save paths. Use errors.Is to classify.
var (
	// ErrNormalizationRejected marks a cell value that could not be converted to its column type.
	ErrNormalizationRejected = errors.New("value rejected")

	// ErrUnsupportedColumn marks a column whose values cannot be patched from the grid.
	ErrUnsupportedColumn = errors.New("column cannot be edited here")

	// ErrMetadataUnavailable marks a column missing from the bound dataset.
	ErrMetadataUnavailable = errors.New("column metadata unavailable")

	// ErrRemoteUpdateFailed marks a save batch in which at least one record update failed.
	ErrRemoteUpdateFailed = errors.New("remote update failed")

	// ErrSaveInProgress is returned when a save is triggered while another is still settling.
	ErrSaveInProgress = errors.New("save already in progress")

	// ErrUnknownEntity is returned for entity names missing from the registry.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrControlNotFound is returned for control ids the service does not know.
	ErrControlNotFound = errors.New("control not found")

	// ErrControlClosed is returned by controls that have been torn down.
	ErrControlClosed = errors.New("control closed")

	// ErrInvalidRecordID is returned when an edit names no record.
	ErrInvalidRecordID = errors.New("record id is required")
)

// NormalizationError describes why one cell's raw value was rejected.
type NormalizationError struct {
	Column string   // Column name
	Type   DataType // Declared column type
	Raw    string   // Raw value as entered, for display
	Reason string   // Human-readable reason
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Column, e.Reason)
}

// Is makes errors.Is(err, ErrNormalizationRejected) hold.
func (e *NormalizationError) Is(target error) bool {
	return target == ErrNormalizationRejected
}

func reject(col ColumnMetadata, raw RawValue, format string, args ...any) error {
	return &NormalizationError{
		Column: col.Name,
		Type:   col.Type,
		Raw:    raw.String(),
		Reason: fmt.Sprintf(format, args...),
	}
}

// RecordFailure is the outcome of one failed record update in a batch.
type RecordFailure struct {
	RecordID string `json:"recordId"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

// SaveError is the aggregate failure of a save batch.
type SaveError struct {
	BatchID   string
	Attempted int
	Failures  []RecordFailure
}

func (e *SaveError) Error() string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.RecordID
	}
	return fmt.Sprintf("%s: %d of %d records failed (%s)",
		ErrRemoteUpdateFailed, len(e.Failures), e.Attempted, strings.Join(ids, ", "))
}

// Is makes errors.Is(err, ErrRemoteUpdateFailed) hold.
func (e *SaveError) Is(target error) bool {
	return target == ErrRemoteUpdateFailed
}

// Unwrap exposes the per-record causes so errors.Is can see context.DeadlineExceeded and friends.
func (e *SaveError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}
