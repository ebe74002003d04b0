package errors

import (
	"errors"
	"fmt"
)

// Domain errors: aggregate invariant violations.
// Always recoverable and user-facing, never fatal to the process.
var (
	ErrEmptyMessage           = fmt.Errorf("message content is empty")
	ErrInvalidSenderType      = fmt.Errorf("invalid sender type")
	ErrConversationMismatch   = fmt.Errorf("message belongs to another conversation")
	ErrInvalidStateTransition = fmt.Errorf("invalid state transition")
)

// Repository errors.
var (
	ErrNotFound = fmt.Errorf("not found")
	ErrDatabase = fmt.Errorf("database failure")
)

// Delivery and replay errors.
var (
	// ErrCursorNotFound is returned when a replay cursor references an
	// event_id the log has never seen. Callers must not fall back to a
	// from-the-beginning replay: that would hide client/server desync.
	ErrCursorNotFound = fmt.Errorf("replay cursor not found")

	// ErrSlowConsumer is returned by an outbound handle whose bounded
	// buffer overflowed. The connection is disconnected and the client
	// recovers missed state through replay.
	ErrSlowConsumer = fmt.Errorf("outbound buffer full, consumer too slow")

	ErrConnectionClosed = fmt.Errorf("connection closed")
)

// Process errors.
var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
)

// InvalidTransition wraps ErrInvalidStateTransition with the refused transition.
func InvalidTransition(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidStateTransition, reason)
}

// Is mirrors the standard library so callers of this package never need
// a second errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsDomain reports whether err belongs to the domain taxonomy.
func IsDomain(err error) bool {
	return errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrInvalidSenderType) ||
		errors.Is(err, ErrConversationMismatch) ||
		errors.Is(err, ErrInvalidStateTransition)
}
