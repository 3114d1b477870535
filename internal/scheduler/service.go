package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dwizi/chat-runtime/internal/heartbeat"
)

const componentName = "scheduler"

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Pruner deletes journal rows created before the cutoff.
type Pruner interface {
	PrunePipelineRuns(ctx context.Context, before time.Time) (int64, error)
}

// Service prunes the dispatch journal on a cron schedule.
type Service struct {
	pruner    Pruner
	schedule  cron.Schedule
	expr      string
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
	reporter  heartbeat.Reporter
}

func New(pruner Pruner, cronExpr string, retention time.Duration, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	expr := strings.Join(strings.Fields(cronExpr), " ")
	if expr == "" {
		return nil, errors.New("prune schedule is required")
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression: %w", err)
	}
	if retention <= 0 {
		retention = 14 * 24 * time.Hour
	}
	return &Service{
		pruner:    pruner,
		schedule:  schedule,
		expr:      expr,
		retention: retention,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

// Next reports when the following prune is due.
func (s *Service) Next() time.Time {
	return s.schedule.Next(s.now()).UTC()
}

func (s *Service) Start(ctx context.Context) error {
	if s.pruner == nil {
		if s.reporter != nil {
			s.reporter.Disabled(componentName, "journal unavailable")
		}
		<-ctx.Done()
		return nil
	}
	if s.reporter != nil {
		s.reporter.Starting(componentName, "started")
		s.reporter.Beat(componentName, "waiting for next prune")
	}
	s.logger.Info("scheduler started", "schedule", s.expr, "retention", s.retention.String())
	for {
		next := s.Next()
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			if s.reporter != nil {
				s.reporter.Stopped(componentName, "stopped")
			}
			s.logger.Info("scheduler stopped")
			return nil
		case <-timer.C:
		}
		if _, err := s.RunOnce(ctx); err != nil {
			if s.reporter != nil {
				s.reporter.Degrade(componentName, "journal prune failed", err)
			}
			s.logger.Error("journal prune failed", "error", err)
		} else if s.reporter != nil {
			s.reporter.Beat(componentName, "journal pruned")
		}
	}
}

// RunOnce prunes everything older than the retention window.
func (s *Service) RunOnce(ctx context.Context) (int64, error) {
	if s.pruner == nil {
		return 0, errors.New("journal unavailable")
	}
	cutoff := s.now().Add(-s.retention)
	removed, err := s.pruner.PrunePipelineRuns(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("journal pruned", "removed", removed, "cutoff", cutoff.Format(time.RFC3339))
	return removed, nil
}
