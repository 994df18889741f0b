package catalog

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/justtherip/packvault/internal/logger"
)

// DefaultSchedule runs the daily sync at 20:30, after the upstream
// publishes its daily price files
const DefaultSchedule = "30 20 * * *"

// Scheduler owns the in-process cron that triggers the daily sync
type Scheduler struct {
	cron   *cron.Cron
	logger logger.Logger
}

func NewScheduler(syncer *Syncer, schedule string, l logger.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		stats, err := syncer.Run(context.Background())
		if err != nil {
			l.Error("Scheduled catalog sync failed", "error", err)
			return
		}
		l.Info("Scheduled catalog sync completed",
			"duration_ms", stats.DurationMS, "errors", len(stats.Errors))
	})
	if err != nil {
		return nil, err
	}

	return &Scheduler{cron: c, logger: l}, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("Catalog sync scheduler started")
	s.cron.Start()
}

// Stop halts scheduling and returns a context that closes once any
// in-flight run finishes
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("Catalog sync scheduler stopping")
	return s.cron.Stop()
}
