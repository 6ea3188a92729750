package worker

// draft_flusher.go
// Background goroutine that periodically persists staged inventory counts.
// On shutdown it runs one last flush so buffered counts survive a clean stop.

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const finalFlushTimeout = 5 * time.Second

// DraftFlusher is satisfied by service.InventoryService.
type DraftFlusher interface {
	FlushAll(ctx context.Context) error
}

// StartDraftFlusher ticks every interval until ctx is cancelled. The returned
// channel is closed after the final flush.
func StartDraftFlusher(ctx context.Context, flusher DraftFlusher, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("draft_flusher: started")

		for {
			select {
			case <-ctx.Done():
				fctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
				if err := flusher.FlushAll(fctx); err != nil {
					log.Error().Err(err).Msg("draft_flusher: final flush failed")
				}
				cancel()
				log.Info().Msg("draft_flusher: shutting down")
				return
			case <-ticker.C:
				if err := flusher.FlushAll(ctx); err != nil {
					log.Warn().Err(err).Msg("draft_flusher: flush failed")
				}
			}
		}
	}()
	return done
}
