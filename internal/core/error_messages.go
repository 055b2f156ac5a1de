// Package core error codes.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// The grid shows the code next to a rejected cell or a failed save so users can
// quote it to support staff.
//
// # Normalization Errors (NRM001-NRM099)
//
//	NRM001 - Value rejected: The value does not fit the column type
//	         Action: Check the value against the column format
//	         Match: ErrNormalizationRejected
//
//	NRM002 - Column not editable: The column cannot be changed from the grid
//	         Action: Edit this field in the record form instead
//	         Match: ErrUnsupportedColumn
//
// # Metadata Errors (MET001-MET099)
//
//	MET001 - Column unknown: The grid column has no metadata
//	         Action: Reload the view to pick up column changes
//	         Match: ErrMetadataUnavailable
//
// # Save Errors (SAV001-SAV099)
//
//	SAV001 - Save failed: One or more records could not be saved
//	         Action: Your edits are kept. Fix the failing records and save again
//	         Match: ErrRemoteUpdateFailed
//
//	SAV002 - Save in progress: A save is still running
//	         Action: Wait for the current save to finish
//	         Match: ErrSaveInProgress
//
//	SAV003 - System busy: Too many saves in progress
//	         Action: Please wait a moment and try again
//	         Match: ErrTooManySaves
//
//	SAV004 - Request cancelled
//	         Match: context.Canceled, "context canceled"
//
//	SAV005 - Request timeout
//	         Match: context.DeadlineExceeded, "context deadline exceeded"
//
// # Control Errors (CTL001-CTL099)
//
//	CTL001 - Session not found: The edit session does not exist
//	         Match: ErrControlNotFound
//
//	CTL002 - Session closed: The edit session has been closed
//	         Match: ErrControlClosed, ErrInvalidRecordID
//
//	ENT001 - Unknown entity: The entity is not configured
//	         Match: ErrUnknownEntity
//
// # Database Errors (DB001-DB099)
//
// Store errors carry no sentinel and are matched by message text:
//
//	DB001 - Duplicate key               "duplicate key"
//	DB002 - Unique constraint           "unique constraint", "violates unique"
//	DB003 - Foreign key                 "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused          "connection refused"
//	DB005 - Connection reset            "connection reset"
//	DB006 - Timeout                     "timeout"
//	DB007 - Deadlock or busy database   "deadlock", "database is locked"
//	DB008 - Record not found            "no rows", "record not found"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Support staff should check application logs
// for the original technical error when users report ERR000.
//
// # Matching
//
// Sentinels are checked first with errors.Is, in table order. Text patterns
// are then matched case-insensitively with strings.Contains; the first match
// wins, so specific patterns come before general ones.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorSentinel maps a sentinel error to its user message.
type errorSentinel struct {
	target error
	msg    UserMessage
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgRejected = UserMessage{
		Message: "The value does not fit the column type",
		Action:  "Check the value against the column format",
		Code:    "NRM001",
	}
	msgSaveFailed = UserMessage{
		Message: "One or more records could not be saved",
		Action:  "Your edits are kept. Fix the failing records and save again",
		Code:    "SAV001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "SAV004",
	}
	msgDeadline = UserMessage{
		Message: "Request timed out",
		Action:  "Please try again; your edits are kept",
		Code:    "SAV005",
	}
)

// errorSentinels is checked before the text patterns.
// SaveError unwraps to its per-record causes, so ErrRemoteUpdateFailed must
// come before the context errors to keep a failed batch reported as SAV001.
var errorSentinels = []errorSentinel{
	{ErrNormalizationRejected, msgRejected},
	{ErrUnsupportedColumn, UserMessage{
		Message: "This column cannot be changed from the grid",
		Action:  "Edit this field in the record form instead",
		Code:    "NRM002",
	}},
	{ErrMetadataUnavailable, UserMessage{
		Message: "The grid column has no metadata",
		Action:  "Reload the view to pick up column changes",
		Code:    "MET001",
	}},
	{ErrRemoteUpdateFailed, msgSaveFailed},
	{ErrSaveInProgress, UserMessage{
		Message: "A save is still running",
		Action:  "Wait for the current save to finish",
		Code:    "SAV002",
	}},
	{ErrTooManySaves, UserMessage{
		Message: "System is busy processing other saves",
		Action:  "Please wait a moment and try again",
		Code:    "SAV003",
	}},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgDeadline},
	{ErrControlNotFound, UserMessage{
		Message: "Edit session not found",
		Action:  "The session may have expired. Please reopen the view",
		Code:    "CTL001",
	}},
	{ErrControlClosed, UserMessage{
		Message: "Edit session has been closed",
		Action:  "Please reopen the view",
		Code:    "CTL002",
	}},
	{ErrInvalidRecordID, UserMessage{
		Message: "The edit does not name a record",
		Action:  "Reload the view and try again",
		Code:    "CTL002",
	}},
	{ErrUnknownEntity, UserMessage{
		Message: "Unknown entity",
		Action:  "This entity is not configured",
		Code:    "ENT001",
	}},
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Database Constraint Errors (DB001-DB003)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Review the record key and try again",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Choose a different value",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Choose a different value",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Pick an existing related record",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Pick an existing related record",
			Code:    "DB003",
		},
	},

	// =========================================================================
	// Database Connection Errors (DB004-DB008)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "context canceled",
		msg:     msgCancelled,
	},
	{
		pattern: "context deadline exceeded",
		msg:     msgDeadline,
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "no rows",
		msg: UserMessage{
			Message: "Record not found",
			Action:  "The record may have been deleted. Reload the view",
			Code:    "DB008",
		},
	},
	{
		pattern: "record not found",
		msg: UserMessage{
			Message: "Record not found",
			Action:  "The record may have been deleted. Reload the view",
			Code:    "DB008",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("save: %w", ErrSaveInProgress))
//	// msg.Code == "SAV002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, es := range errorSentinels {
		if errors.Is(err, es.target) {
			return es.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
