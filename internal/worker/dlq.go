package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DLQPrefix namespaces the dead-letter list of each work queue: dlq:{queue}.
const DLQPrefix = "dlq:"

// DeadLetter is a job that is no longer retried automatically. Job keeps the
// original envelope so ReplayDLQ can push it back unchanged.
type DeadLetter struct {
	Queue    string    `json:"queue"`
	Job      Job       `json:"job"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// SendToDLQ parks job under dlq:{queue}. Failures are logged only; the job is
// already out of the work queue at this point.
func SendToDLQ(ctx context.Context, rdb pusher, queue string, job Job, reason string) {
	data, err := json.Marshal(DeadLetter{Queue: queue, Job: job, Reason: reason, FailedAt: time.Now().UTC()})
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: marshal dead letter")
		return
	}
	if err := rdb.LPush(ctx, DLQPrefix+queue, data).Err(); err != nil {
		log.Error().Err(err).Str("queue", queue).Str("job_type", job.Type).Msg("dlq: job lost")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", job.Type).
		Int("attempts", job.Attempts).
		Str("reason", reason).
		Msg("dlq: job dead-lettered")
}

// DLQLength reports the backlog of one dead-letter list.
func DLQLength(ctx context.Context, rdb redis.Cmdable, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}

type dlqMover interface {
	pusher
	RPop(ctx context.Context, key string) *redis.StringCmd
}

// ReplayDLQ moves up to limit dead letters of queue back onto it, oldest
// first, with a fresh attempt budget. Undecodable entries are dropped.
func ReplayDLQ(ctx context.Context, rdb dlqMover, queue string, limit int) (int, error) {
	d := &Dispatcher{rdb: rdb}
	moved := 0
	for moved < limit {
		raw, err := rdb.RPop(ctx, DLQPrefix+queue).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, errors.Wrap(err, "pop dead letter")
		}

		var dl DeadLetter
		if err := json.Unmarshal([]byte(raw), &dl); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("dlq: dropping undecodable entry")
			continue
		}
		dl.Job.Attempts = 0
		if err := d.push(ctx, queue, dl.Job); err != nil {
			if rerr := rdb.LPush(ctx, DLQPrefix+queue, []byte(raw)).Err(); rerr != nil {
				log.Error().Err(rerr).Str("queue", queue).Msg("dlq: job lost during replay")
			}
			return moved, errors.Wrap(err, "requeue dead letter")
		}
		moved++
	}
	if moved > 0 {
		log.Info().Str("queue", queue).Int("replayed", moved).Msg("dlq: jobs replayed")
	}
	return moved, nil
}
