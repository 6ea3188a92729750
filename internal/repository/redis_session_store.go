package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/model"

	"github.com/redis/go-redis/v9"
)

const (
	redisActivePrefix = "session:active:"
	redisAuditPrefix  = "session:audit:"
	redisAuditIDs     = "session:audit:ids"
)

// appendAuditScript marks the id and pushes the record in one atomic step.
var appendAuditScript = redis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('RPUSH', KEYS[2], ARGV[2])
return 1
`)

type redisSessionStore struct{ rdb *redis.Client }

// NewRedisSessionStore keeps each active envelope under its own key and
// audit records in one list per (kind, scope).
func NewRedisSessionStore(rdb *redis.Client) SessionStore { return &redisSessionStore{rdb: rdb} }

func activeKey(kind model.SessionKind, scopeID string) string {
	return redisActivePrefix + string(kind) + ":" + scopeID
}

func auditKey(kind model.AuditKind, scopeID string) string {
	return redisAuditPrefix + string(kind) + ":" + scopeID
}

func (r *redisSessionStore) GetActive(ctx context.Context, kind model.SessionKind, scopeID string) (*model.ActiveSession, error) {
	raw, err := r.rdb.Get(ctx, activeKey(kind, scopeID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s model.ActiveSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *redisSessionStore) CreateActive(ctx context.Context, s *model.ActiveSession) error {
	next := *s
	next.Version = 1
	next.UpdatedAt = time.Now()
	payload, err := json.Marshal(&next)
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, activeKey(next.Kind, next.ScopeID), payload, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrActiveSessionExists
	}
	*s = next
	return nil
}

func (r *redisSessionStore) PutActive(ctx context.Context, s *model.ActiveSession) error {
	key := activeKey(s.Kind, s.ScopeID)
	next := *s
	next.Version = s.Version + 1
	next.UpdatedAt = time.Now()
	payload, err := json.Marshal(&next)
	if err != nil {
		return err
	}

	err = r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrActiveSessionNotFound
		}
		if err != nil {
			return err
		}
		var stored model.ActiveSession
		if err := json.Unmarshal(raw, &stored); err != nil {
			return err
		}
		if stored.Version != s.Version || stored.SessionID != s.SessionID {
			return ErrStaleSession
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrStaleSession
	}
	if err != nil {
		return err
	}
	*s = next
	return nil
}

func (r *redisSessionStore) ClearActive(ctx context.Context, kind model.SessionKind, scopeID string) error {
	return r.rdb.Del(ctx, activeKey(kind, scopeID)).Err()
}

func (r *redisSessionStore) AppendAudit(ctx context.Context, rec *model.AuditRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	added, err := appendAuditScript.Run(ctx, r.rdb,
		[]string{redisAuditIDs, auditKey(rec.Kind, rec.ScopeID)},
		rec.ID.String(), payload).Int()
	if err != nil {
		return err
	}
	if added == 0 {
		return ErrAuditExists
	}
	return nil
}

func (r *redisSessionStore) ListAudits(ctx context.Context, kind model.AuditKind, scopeID string) ([]model.AuditRecord, error) {
	items, err := r.rdb.LRange(ctx, auditKey(kind, scopeID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.AuditRecord, 0, len(items))
	for _, item := range items {
		var rec model.AuditRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AppliedAt.Before(out[j].AppliedAt) })
	return out, nil
}
