package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper is implemented by stores that can purge expired sessions
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) ([]string, error)
}

// Janitor sweeps a store on a fixed interval
type Janitor struct {
	store     Sweeper
	interval  time.Duration
	onRemoved func(ids []string)
}

// NewJanitor returns a janitor calling onRemoved (which may be nil) with
// the ids deleted by each sweep.
func NewJanitor(store Sweeper, interval time.Duration, onRemoved func(ids []string)) *Janitor {
	return &Janitor{store: store, interval: interval, onRemoved: onRemoved}
}

// Run blocks until ctx is cancelled
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.SweepOnce(ctx, now)
		}
	}
}

func (j *Janitor) SweepOnce(ctx context.Context, now time.Time) []string {
	removed, err := j.store.Sweep(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("Session sweep failed")
	}
	if len(removed) > 0 {
		log.Info().Strs("session_ids", removed).Msg("Removed expired sessions")
		if j.onRemoved != nil {
			j.onRemoved(removed)
		}
	}
	return removed
}
