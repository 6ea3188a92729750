package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/model"
)

type slotKey struct {
	kind  model.SessionKind
	scope string
}

// memorySessionStore keeps JSON snapshots so callers never share mutable
// state with the store, matching what the durable implementations return.
type memorySessionStore struct {
	mu     sync.Mutex
	active map[slotKey][]byte
	audits []model.AuditRecord
	seen   map[string]bool
}

// NewMemorySessionStore returns a process-local SessionStore for development and tests.
func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{
		active: make(map[slotKey][]byte),
		seen:   make(map[string]bool),
	}
}

func (m *memorySessionStore) GetActive(_ context.Context, kind model.SessionKind, scopeID string) (*model.ActiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.active[slotKey{kind, scopeID}]
	if !ok {
		return nil, nil
	}
	var s model.ActiveSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *memorySessionStore) CreateActive(_ context.Context, s *model.ActiveSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := slotKey{s.Kind, s.ScopeID}
	if _, ok := m.active[key]; ok {
		return ErrActiveSessionExists
	}
	s.Version = 1
	s.UpdatedAt = time.Now()
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.active[key] = raw
	return nil
}

func (m *memorySessionStore) PutActive(_ context.Context, s *model.ActiveSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := slotKey{s.Kind, s.ScopeID}
	raw, ok := m.active[key]
	if !ok {
		return ErrActiveSessionNotFound
	}
	var stored model.ActiveSession
	if err := json.Unmarshal(raw, &stored); err != nil {
		return err
	}
	if stored.Version != s.Version || stored.SessionID != s.SessionID {
		return ErrStaleSession
	}

	next := *s
	next.Version++
	next.UpdatedAt = time.Now()
	encoded, err := json.Marshal(&next)
	if err != nil {
		return err
	}
	m.active[key] = encoded
	*s = next
	return nil
}

func (m *memorySessionStore) ClearActive(_ context.Context, kind model.SessionKind, scopeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, slotKey{kind, scopeID})
	return nil
}

func (m *memorySessionStore) AppendAudit(_ context.Context, rec *model.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := rec.ID.String()
	if m.seen[id] {
		return ErrAuditExists
	}
	// Round-trip through JSON so the stored copy is detached from the caller.
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	var stored model.AuditRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		return err
	}
	m.audits = append(m.audits, stored)
	m.seen[id] = true
	return nil
}

func (m *memorySessionStore) ListAudits(_ context.Context, kind model.AuditKind, scopeID string) ([]model.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AuditRecord
	for _, r := range m.audits {
		if r.Kind == kind && r.ScopeID == scopeID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AppliedAt.Before(out[j].AppliedAt) })
	return out, nil
}
