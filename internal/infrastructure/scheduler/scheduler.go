package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the hygiene jobs on a cron schedule
type Scheduler struct {
	cron     *cron.Cron
	jobs     *Jobs
	schedule string
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler instance
func NewScheduler(jobs *Jobs, schedule string, logger *zap.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:     c,
		jobs:     jobs,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the jobs and starts the cron scheduler
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.jobs.PurgeExpiredProcesses); err != nil {
		return fmt.Errorf("schedule process sweep: %w", err)
	}
	if _, err := s.cron.AddFunc(s.schedule, s.jobs.PurgeOldIncidents); err != nil {
		return fmt.Errorf("schedule incident sweep: %w", err)
	}

	s.logger.Info("scheduled storage sweep", zap.String("schedule", s.schedule))
	s.cron.Start()
	return nil
}

// Stop stops the scheduler. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
