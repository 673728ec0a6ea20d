// Package sweeper runs the periodic subscription status sweep:
// activating paid-up draft subscriptions whose window has opened and
// expiring those past their end date.
package sweeper

import (
	"context"
	"log"
	"time"

	"kidsclub-backend/config"
	"kidsclub-backend/internal/store"
)

// Service drives the sweep on a fixed interval.
type Service struct {
	cfg   *config.Config
	store store.Store
	now   func() time.Time
}

// NewService creates a sweeper bound to the store.
func NewService(cfg *config.Config, st store.Store) *Service {
	return &Service{
		cfg:   cfg,
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Run starts the sweep loop. Blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Sweeper.Enabled {
		log.Println("Subscription sweeper is disabled. Not starting.")
		return
	}
	log.Println("Starting subscription sweeper...")

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.cfg.Sweeper.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Subscription sweeper shutting down.")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.Sweeper.Interval)
		}
	}
}

// SweepOnce performs a single sweep. Both batch transitions are
// guarded UPDATEs, so the sweep is idempotent and safe to run
// concurrently with user actions.
func (s *Service) SweepOnce(ctx context.Context) {
	today := s.now()

	activated, err := s.store.ActivateDueSubscriptions(ctx, today)
	if err != nil {
		log.Printf("Error activating due subscriptions: %v", err)
	} else if activated > 0 {
		log.Printf("Activated %d subscriptions", activated)
	}

	expired, err := s.store.ExpireLapsedSubscriptions(ctx, today)
	if err != nil {
		log.Printf("Error expiring lapsed subscriptions: %v", err)
	} else if expired > 0 {
		log.Printf("Expired %d subscriptions", expired)
	}
}
