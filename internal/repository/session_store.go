package repository

import (
	"context"
	"errors"

	"github.com/dyaogo/pos-superette-sub002/internal/model"
)

var (
	// ErrActiveSessionExists is returned by CreateActive when the slot is taken.
	ErrActiveSessionExists = errors.New("an active session already exists for this scope")
	// ErrActiveSessionNotFound is returned by PutActive when the slot is empty.
	ErrActiveSessionNotFound = errors.New("no active session for this scope")
	// ErrStaleSession is returned by PutActive when the stored version moved on.
	ErrStaleSession = errors.New("active session was modified concurrently")
	// ErrAuditExists is returned by AppendAudit for an already stored record id.
	ErrAuditExists = errors.New("audit record already exists")
)

// SessionStore persists at most one active session per (kind, scope) plus an
// append-only list of audit records.
//
// CreateActive is the atomic check-and-set used by open/start. PutActive
// replaces the stored envelope only if its version still equals s.Version,
// then bumps s.Version; a failed PutActive leaves the stored record untouched.
type SessionStore interface {
	GetActive(ctx context.Context, kind model.SessionKind, scopeID string) (*model.ActiveSession, error)
	CreateActive(ctx context.Context, s *model.ActiveSession) error
	PutActive(ctx context.Context, s *model.ActiveSession) error
	ClearActive(ctx context.Context, kind model.SessionKind, scopeID string) error
	AppendAudit(ctx context.Context, rec *model.AuditRecord) error
	ListAudits(ctx context.Context, kind model.AuditKind, scopeID string) ([]model.AuditRecord, error)
}
