package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/infra"
	"github.com/dyaogo/pos-superette-sub002/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueReportes = "jobs:reportes"
	QueueEmail    = "jobs:email"

	JobReport = "reporte"
	JobEmail  = "email"

	// MaxJobAttempts is how many times a job runs before it lands in the DLQ.
	MaxJobAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Handler processes one job payload. A returned error schedules a retry.
type Handler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// Handlers maps job types to their processors.
type Handlers map[string]Handler

// pusher is the slice of the redis client the producers need.
type pusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb pusher
}

func NewDispatcher(rdb pusher) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// ReportJobPayload carries the finalized audit record to render.
type ReportJobPayload struct {
	Record *model.AuditRecord `json:"record"`
}

// EnqueueReport pushes a report rendering job for a freshly appended audit record.
func (d *Dispatcher) EnqueueReport(ctx context.Context, rec *model.AuditRecord) error {
	return d.enqueue(ctx, QueueReportes, JobReport, ReportJobPayload{Record: rec})
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, JobEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return d.push(ctx, queue, Job{Type: jobType, Payload: data})
}

func (d *Dispatcher) push(ctx context.Context, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int, handlers Handlers) {
	p := &processor{rdb: rdb, handlers: handlers}
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, p, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, p *processor, id int) {
	queues := []string{QueueReportes, QueueEmail}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			p.processJob(ctx, result[0], result[1])
		}
	}
}

type processor struct {
	rdb      pusher
	handlers Handlers
}

// processJob runs one job. Failed jobs are pushed back with Attempts+1 until
// MaxJobAttempts, then moved to the DLQ.
func (p *processor) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		quoted, _ := json.Marshal(raw)
		SendToDLQ(ctx, p.rdb, queue, Job{Type: "unknown", Payload: quoted}, "malformed job envelope")
		infra.JobsProcessed.WithLabelValues(queue, "dead").Inc()
		return
	}

	h, ok := p.handlers[job.Type]
	if !ok {
		log.Error().Str("type", job.Type).Str("queue", queue).Msg("no handler for job type")
		SendToDLQ(ctx, p.rdb, queue, job, "no handler registered")
		infra.JobsProcessed.WithLabelValues(queue, "dead").Inc()
		return
	}

	job.Attempts++
	err := h.Process(ctx, job.Payload)
	if err == nil {
		infra.JobsProcessed.WithLabelValues(queue, "ok").Inc()
		return
	}

	if job.Attempts >= MaxJobAttempts {
		SendToDLQ(ctx, p.rdb, queue, job, err.Error())
		infra.JobsProcessed.WithLabelValues(queue, "dead").Inc()
		return
	}

	log.Warn().
		Err(err).
		Str("type", job.Type).
		Int("attempt", job.Attempts).
		Msg("job failed, requeueing")
	infra.JobsProcessed.WithLabelValues(queue, "retry").Inc()
	if perr := (&Dispatcher{rdb: p.rdb}).push(ctx, queue, job); perr != nil {
		log.Error().Err(perr).Str("queue", queue).Msg("failed to requeue job")
	}
}
