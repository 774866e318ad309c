// Package outbox delivers stored publish results to the backend.
package outbox

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/ecociel/autopublish/domain"
	"github.com/emicklei/go-restful/v3/log"
)

const (
	baseDelay = 30 * time.Second
	maxDelay  = 5 * time.Minute
)

type Runner struct {
	limit    int
	interval time.Duration
	store    store
	reporter reporter
	now      func() time.Time
}

type reporter interface {
	ReportResult(ctx context.Context, result domain.PublishResult) error
}

type store interface {
	ClaimDue(ctx context.Context, limit int) ([]domain.OutboxEntry, error)
	Delete(ctx context.Context, id int64) error
	Reschedule(ctx context.Context, entry domain.OutboxEntry) error
}

func New(limit int, interval time.Duration, store store, reporter reporter) *Runner {
	return &Runner{
		limit:    limit,
		interval: interval,
		store:    store,
		reporter: reporter,
		now:      time.Now,
	}
}

func (r *Runner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.interval):
			if err := r.process(ctx); err != nil {
				log.Printf("outbox process error: %v", err)
			}
		}
	}
}

func (r *Runner) process(ctx context.Context) error {
	entries, err := r.store.ClaimDue(ctx, r.limit)
	if err != nil {
		return fmt.Errorf("fetching due results: %w", err)
	}
	if len(entries) > 0 {
		log.Printf("claimed %d due results", len(entries))
	}

	for _, entry := range entries {
		if err := r.reporter.ReportResult(ctx, entry.Result); err != nil {
			log.Printf("report failed for %s (entry %d): %v", entry.Result.DraftID, entry.ID, err)
			setReschedule(&entry, r.now(), err)
			if err := r.store.Reschedule(ctx, entry); err != nil {
				return fmt.Errorf("reschedule failed for %d: %w", entry.ID, err)
			}
			continue
		}
		if err := r.store.Delete(ctx, entry.ID); err != nil {
			return fmt.Errorf("deletion failed for %d: %w", entry.ID, err)
		}
	}
	return nil
}

func setReschedule(entry *domain.OutboxEntry, now time.Time, err error) {
	entry.Attempts++
	entry.LastError = err.Error()
	entry.Due = now.Add(calculateBackoff(entry.Attempts, baseDelay, maxDelay))
}

// calculateBackoff returns a full-jitter exponential delay capped at maxDelay.
func calculateBackoff(attempts uint16, baseDelay, maxDelay time.Duration) time.Duration {
	delay := float64(baseDelay) * math.Pow(2, float64(attempts))
	if maxDelay > 0 && delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	return time.Duration(rand.Float64() * delay)
}
