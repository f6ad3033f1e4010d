package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultIdleTimeout     = 2 * time.Hour
	DefaultTimeoutSchedule = "@every 5m"
)

// InterviewTimeoutService periodically marks abandoned interviews as timed out
type InterviewTimeoutService struct {
	interviews  *InterviewService
	cron        *cron.Cron
	schedule    string
	idleTimeout time.Duration
	now         func() time.Time
}

func NewInterviewTimeoutService(interviews *InterviewService, schedule string, idleTimeout time.Duration) *InterviewTimeoutService {
	if schedule == "" {
		schedule = DefaultTimeoutSchedule
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &InterviewTimeoutService{
		interviews:  interviews,
		cron:        cron.New(),
		schedule:    schedule,
		idleTimeout: idleTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules the sweep
func (s *InterviewTimeoutService) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			slog.Error("Interview timeout sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule timeout sweep: %w", err)
	}

	s.cron.Start()
	slog.Info("Interview timeout checker started", "schedule", s.schedule, "idle_timeout", s.idleTimeout)
	return nil
}

// Stop waits for a running sweep to finish
func (s *InterviewTimeoutService) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		slog.Info("Interview timeout checker stopped")
	}
}

// Sweep times out every in-progress interview idle for longer than the idle timeout
func (s *InterviewTimeoutService) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.idleTimeout)
	count, err := s.interviews.ExpireInterviews(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		interviewTurns.WithLabelValues("timeout").Add(float64(count))
		slog.Info("Interviews timed out", "count", count, "cutoff", cutoff)
	}
	return count, nil
}
