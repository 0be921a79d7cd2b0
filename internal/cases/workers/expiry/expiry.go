// Package expiry runs the time-driven transition of overdue cases to Expired.
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Expirer expires every case whose due date has passed without a decision.
type Expirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

// Service periodically sweeps overdue cases.
type Service struct {
	expirer  Expirer
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service sweeping every minute unless configured otherwise.
func New(expirer Expirer, opts ...Option) (*Service, error) {
	if expirer == nil {
		return nil, fmt.Errorf("expirer is required")
	}
	svc := &Service{
		expirer:  expirer,
		interval: time.Minute,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start sweeps on every tick until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep and returns how many cases were expired.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	n, err := s.expirer.ExpireOverdue(ctx, s.now())
	if err != nil {
		return n, fmt.Errorf("expire overdue cases: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired overdue cases", "count", n)
	}
	return n, nil
}
