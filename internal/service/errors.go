package service

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Validation and state-machine errors. Callers match them with errors.Is;
// none of them leaves any state changed.
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidType          = errors.New("invalid operation type")
	ErrInvalidSession       = errors.New("invalid session")
	ErrNoActiveSession      = errors.New("no active session")
	ErrSessionAlreadyOpen   = errors.New("a cash session is already open")
	ErrSessionAlreadyActive = errors.New("an inventory session is already in progress for this store")
	ErrConfirmationRequired = errors.New("discrepancies must be previewed and confirmed before commit")
	ErrCommitInProgress     = errors.New("inventory commit already started")
	ErrUnknownProduct       = errors.New("unknown product")

	// ErrStorage marks any failure of an external collaborator (session
	// store, stock ledger, sales ledger). The original cause stays reachable.
	// Both the standard library and cockroachdb errors.Is match it.
	ErrStorage = errors.New("storage unavailable")
)

// storageError is what storageErr returns. Its Is method is visible to any
// errors.Is implementation, unlike an errors.Mark.
type storageError struct{ cause error }

func (e *storageError) Error() string        { return e.cause.Error() }
func (e *storageError) Unwrap() error        { return e.cause }
func (e *storageError) Is(target error) bool { return target == ErrStorage }

// storageErr wraps a collaborator failure with context and tags it ErrStorage.
func storageErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &storageError{cause: errors.Wrap(err, msg)}
}

// PartialCommitError is returned when a commit stopped after applying only some
// adjustments. The session stays in progress; committing again with the same
// digest resumes with Pending.
type PartialCommitError struct {
	SessionID uuid.UUID
	Applied   []uuid.UUID
	Pending   []uuid.UUID
	Cause     error
}

func (e *PartialCommitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "partial commit of inventory session %s: %d applied, %d pending",
		e.SessionID, len(e.Applied), len(e.Pending))
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *PartialCommitError) Unwrap() error { return e.Cause }
