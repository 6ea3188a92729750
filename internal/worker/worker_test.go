package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Fakes ────────────────────────────────────────────────────────────────────

type pushed struct {
	key  string
	data []byte
}

type fakePusher struct {
	mu     sync.Mutex
	pushes []pushed
}

func (f *fakePusher) LPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.pushes = append(f.pushes, pushed{key: key, data: v.([]byte)})
	}
	return redis.NewIntResult(int64(len(f.pushes)), nil)
}

// RPop pops the oldest push for key, like RPOP on an LPUSH-fed list.
func (f *fakePusher) RPop(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.pushes {
		if p.key == key {
			f.pushes = append(f.pushes[:i], f.pushes[i+1:]...)
			return redis.NewStringResult(string(p.data), nil)
		}
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakePusher) on(key string) []pushed {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []pushed
	for _, p := range f.pushes {
		if p.key == key {
			out = append(out, p)
		}
	}
	return out
}

type handlerFunc func(ctx context.Context, raw json.RawMessage) error

func (h handlerFunc) Process(ctx context.Context, raw json.RawMessage) error { return h(ctx, raw) }

type fakeSender struct {
	err   error
	calls []EmailJobPayload
}

func (f *fakeSender) SendReport(to, subject, body, path string) error {
	f.calls = append(f.calls, EmailJobPayload{ToEmail: to, Subject: subject, Body: body, AttachmentPath: path})
	return f.err
}

type countingFlusher struct{ calls atomic.Int32 }

func (f *countingFlusher) FlushAll(context.Context) error {
	f.calls.Add(1)
	return nil
}

// ── Dispatcher / processor ───────────────────────────────────────────────────

func TestDispatcher_EnqueueReport(t *testing.T) {
	q := &fakePusher{}
	d := NewDispatcher(q)
	rec := closingRecord()

	require.NoError(t, d.EnqueueReport(context.Background(), rec))

	jobs := q.on(QueueReportes)
	require.Len(t, jobs, 1)
	var job Job
	require.NoError(t, json.Unmarshal(jobs[0].data, &job))
	assert.Equal(t, JobReport, job.Type)

	var payload ReportJobPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, rec.ID, payload.Record.ID)
	assert.True(t, payload.Record.Closing.Difference.Equal(rec.Closing.Difference))
}

func TestProcessJob_RetriesThenDeadLetters(t *testing.T) {
	q := &fakePusher{}
	var calls int
	p := &processor{rdb: q, handlers: Handlers{
		JobEmail: handlerFunc(func(context.Context, json.RawMessage) error {
			calls++
			return errors.New("smtp down")
		}),
	}}
	ctx := context.Background()

	raw, err := json.Marshal(Job{Type: JobEmail, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	p.processJob(ctx, QueueEmail, string(raw))

	// Each retry is pushed back onto the source queue; feed it through again.
	for i := 1; i < MaxJobAttempts; i++ {
		requeued := q.on(QueueEmail)
		require.Len(t, requeued, i)
		p.processJob(ctx, QueueEmail, string(requeued[i-1].data))
	}

	assert.Equal(t, MaxJobAttempts, calls)
	dead := q.on(DLQPrefix + QueueEmail)
	require.Len(t, dead, 1)
	var entry DeadLetter
	require.NoError(t, json.Unmarshal(dead[0].data, &entry))
	assert.Equal(t, MaxJobAttempts, entry.Job.Attempts)
	assert.Equal(t, JobEmail, entry.Job.Type)
	assert.Equal(t, "smtp down", entry.Reason)
}

func TestProcessJob_UnknownTypeGoesToDLQ(t *testing.T) {
	q := &fakePusher{}
	p := &processor{rdb: q, handlers: Handlers{}}

	raw, _ := json.Marshal(Job{Type: "invoice", Payload: json.RawMessage(`{}`)})
	p.processJob(context.Background(), QueueReportes, string(raw))

	assert.Len(t, q.on(DLQPrefix+QueueReportes), 1)
	assert.Empty(t, q.on(QueueReportes))
}

func TestReplayDLQ_RequeuesWithFreshAttempts(t *testing.T) {
	q := &fakePusher{}
	ctx := context.Background()
	SendToDLQ(ctx, q, QueueEmail, Job{Type: JobEmail, Payload: json.RawMessage(`{"to_email":"a@b.c"}`), Attempts: MaxJobAttempts}, "smtp down")
	SendToDLQ(ctx, q, QueueEmail, Job{Type: JobEmail, Payload: json.RawMessage(`{}`), Attempts: MaxJobAttempts}, "smtp down")
	q.LPush(ctx, DLQPrefix+QueueEmail, []byte("not json"))

	moved, err := ReplayDLQ(ctx, q, QueueEmail, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)
	assert.Empty(t, q.on(DLQPrefix+QueueEmail))

	requeued := q.on(QueueEmail)
	require.Len(t, requeued, 2)
	var first Job
	require.NoError(t, json.Unmarshal(requeued[0].data, &first))
	assert.Equal(t, 0, first.Attempts)
	assert.JSONEq(t, `{"to_email":"a@b.c"}`, string(first.Payload), "oldest dead letter first")
}

func TestReplayDLQ_RespectsLimit(t *testing.T) {
	q := &fakePusher{}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		SendToDLQ(ctx, q, QueueReportes, Job{Type: JobReport, Payload: json.RawMessage(`{}`)}, "boom")
	}

	moved, err := ReplayDLQ(ctx, q, QueueReportes, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)
	assert.Len(t, q.on(DLQPrefix+QueueReportes), 1)
}

// ── Report worker ────────────────────────────────────────────────────────────

func TestReportWorker_ClosingRendersPDFAndEnqueuesEmail(t *testing.T) {
	dir := t.TempDir()
	q := &fakePusher{}
	w := NewReportWorker(dir, "gerencia@example.com", NewDispatcher(q))

	raw, err := json.Marshal(ReportJobPayload{Record: closingRecord()})
	require.NoError(t, err)
	require.NoError(t, w.Process(context.Background(), raw))

	emails := q.on(QueueEmail)
	require.Len(t, emails, 1)
	var job Job
	require.NoError(t, json.Unmarshal(emails[0].data, &job))
	var payload EmailJobPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, "gerencia@example.com", payload.ToEmail)
	assert.Contains(t, payload.Body, "-2000.00")
	_, err = os.Stat(payload.AttachmentPath)
	assert.NoError(t, err)
}

func TestReportWorker_AdjustmentWithoutRecipient(t *testing.T) {
	dir := t.TempDir()
	q := &fakePusher{}
	w := NewReportWorker(dir, "", NewDispatcher(q))

	sessionID := uuid.New()
	rec := &model.AuditRecord{
		ID:        uuid.New(),
		Kind:      model.AuditInventoryAdjustment,
		SessionID: sessionID,
		ScopeID:   "store-1",
		AppliedAt: time.Now().UTC(),
		Adjustment: &model.InventoryAdjustment{
			SessionID: sessionID,
			StoreID:   "store-1",
			Name:      "Mensual",
			Note:      "sin diferencias",
		},
	}
	raw, err := json.Marshal(ReportJobPayload{Record: rec})
	require.NoError(t, err)
	require.NoError(t, w.Process(context.Background(), raw))

	assert.Empty(t, q.on(QueueEmail))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), sessionID.String())
}

// ── Email worker ─────────────────────────────────────────────────────────────

func TestEmailWorker(t *testing.T) {
	sender := &fakeSender{}
	w := NewEmailWorker(sender)
	ctx := context.Background()

	raw, _ := json.Marshal(EmailJobPayload{ToEmail: "a@example.com", Subject: "s", AttachmentPath: "/tmp/x.pdf"})
	require.NoError(t, w.Process(ctx, raw))
	require.Len(t, sender.calls, 1)
	assert.Equal(t, "/tmp/x.pdf", sender.calls[0].AttachmentPath)

	empty, _ := json.Marshal(EmailJobPayload{})
	require.NoError(t, w.Process(ctx, empty))
	assert.Len(t, sender.calls, 1, "no recipient, nothing sent")

	sender.err = errors.New("smtp down")
	assert.Error(t, w.Process(ctx, raw))
}

// ── Draft flusher ────────────────────────────────────────────────────────────

func TestDraftFlusher_TicksAndFlushesOnShutdown(t *testing.T) {
	f := &countingFlusher{}
	ctx, cancel := context.WithCancel(context.Background())

	done := StartDraftFlusher(ctx, f, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return f.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	before := f.calls.Load()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("flusher did not stop")
	}
	assert.Greater(t, f.calls.Load(), before, "final flush on shutdown")
}

func closingRecord() *model.AuditRecord {
	sessionID := uuid.New()
	now := time.Now().UTC()
	return &model.AuditRecord{
		ID:        uuid.New(),
		Kind:      model.AuditCashClosing,
		SessionID: sessionID,
		ScopeID:   "main",
		AppliedAt: now,
		Closing: &model.ClosingReport{
			SessionID:      sessionID,
			RegisterID:     "main",
			OpenedAt:       now.Add(-time.Hour),
			ClosedAt:       now,
			OpeningAmount:  decimal.NewFromInt(25000),
			ExpectedAmount: decimal.NewFromInt(42000),
			ActualAmount:   decimal.NewFromInt(40000),
			Difference:     decimal.NewFromInt(-2000),
			DifferencePct:  decimal.RequireFromString("-4.76"),
			VarianceLevel:  model.VarianceWarning,
		},
	}
}
