package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// activeSessionRow: one row per (kind, scope_id). The primary key is what
// makes CreateActive an atomic check-and-set.
type activeSessionRow struct {
	Kind      string    `gorm:"type:varchar(20);primaryKey"`
	ScopeID   string    `gorm:"type:varchar(64);primaryKey"`
	SessionID uuid.UUID `gorm:"type:uuid;not null"`
	Version   int64     `gorm:"not null"`
	Payload   string    `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (activeSessionRow) TableName() string { return "active_sessions" }

// auditRecordRow is insert-only; no code path updates or deletes it.
type auditRecordRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind      string    `gorm:"type:varchar(30);not null;index:idx_audit_scope,priority:1"`
	ScopeID   string    `gorm:"type:varchar(64);not null;index:idx_audit_scope,priority:2"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index"`
	Payload   string    `gorm:"type:jsonb;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (auditRecordRow) TableName() string { return "audit_records" }

type sessionStoreRepo struct{ db *gorm.DB }

// NewSessionStore returns the Postgres-backed SessionStore.
func NewSessionStore(db *gorm.DB) SessionStore { return &sessionStoreRepo{db: db} }

func (r *sessionStoreRepo) GetActive(ctx context.Context, kind model.SessionKind, scopeID string) (*model.ActiveSession, error) {
	var row activeSessionRow
	err := r.db.WithContext(ctx).
		Where("kind = ? AND scope_id = ?", string(kind), scopeID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s model.ActiveSession
	if err := json.Unmarshal([]byte(row.Payload), &s); err != nil {
		return nil, err
	}
	s.Version = row.Version
	return &s, nil
}

func (r *sessionStoreRepo) CreateActive(ctx context.Context, s *model.ActiveSession) error {
	next := *s
	next.Version = 1
	next.UpdatedAt = time.Now()
	payload, err := json.Marshal(&next)
	if err != nil {
		return err
	}
	row := activeSessionRow{
		Kind:      string(next.Kind),
		ScopeID:   next.ScopeID,
		SessionID: next.SessionID,
		Version:   next.Version,
		Payload:   string(payload),
		UpdatedAt: next.UpdatedAt,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrActiveSessionExists
	}
	*s = next
	return nil
}

func (r *sessionStoreRepo) PutActive(ctx context.Context, s *model.ActiveSession) error {
	next := *s
	next.Version = s.Version + 1
	next.UpdatedAt = time.Now()
	payload, err := json.Marshal(&next)
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&activeSessionRow{}).
		Where("kind = ? AND scope_id = ? AND session_id = ? AND version = ?",
			string(s.Kind), s.ScopeID, s.SessionID, s.Version).
		Updates(map[string]interface{}{
			"payload":    string(payload),
			"version":    next.Version,
			"updated_at": next.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		*s = next
		return nil
	}

	// Nothing updated: tell "gone" apart from "moved on".
	var count int64
	if err := r.db.WithContext(ctx).Model(&activeSessionRow{}).
		Where("kind = ? AND scope_id = ?", string(s.Kind), s.ScopeID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrActiveSessionNotFound
	}
	return ErrStaleSession
}

func (r *sessionStoreRepo) ClearActive(ctx context.Context, kind model.SessionKind, scopeID string) error {
	return r.db.WithContext(ctx).
		Where("kind = ? AND scope_id = ?", string(kind), scopeID).
		Delete(&activeSessionRow{}).Error
}

func (r *sessionStoreRepo) AppendAudit(ctx context.Context, rec *model.AuditRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	row := auditRecordRow{
		ID:        rec.ID,
		Kind:      string(rec.Kind),
		ScopeID:   rec.ScopeID,
		SessionID: rec.SessionID,
		Payload:   string(payload),
		AppliedAt: rec.AppliedAt,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAuditExists
	}
	return nil
}

func (r *sessionStoreRepo) ListAudits(ctx context.Context, kind model.AuditKind, scopeID string) ([]model.AuditRecord, error) {
	var rows []auditRecordRow
	err := r.db.WithContext(ctx).
		Where("kind = ? AND scope_id = ?", string(kind), scopeID).
		Order("applied_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]model.AuditRecord, 0, len(rows))
	for _, row := range rows {
		var rec model.AuditRecord
		if err := json.Unmarshal([]byte(row.Payload), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
