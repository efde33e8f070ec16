package scheduler

import (
	"context"
	"time"

	"github.com/manorfm/recoveryM/internal/domain"
	"go.uber.org/zap"
)

const jobTimeout = 30 * time.Second

// Jobs holds the storage hygiene tasks run by the scheduler
type Jobs struct {
	processes domain.ProcessStore
	incidents domain.IncidentRepository
	retention time.Duration
	clock     domain.Clock
	logger    *zap.Logger
}

// NewJobs creates the job set. incidents may be nil when incidents are not
// persisted.
func NewJobs(processes domain.ProcessStore, incidents domain.IncidentRepository, retention time.Duration, clock domain.Clock, logger *zap.Logger) *Jobs {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Jobs{
		processes: processes,
		incidents: incidents,
		retention: retention,
		clock:     clock,
		logger:    logger,
	}
}

// PurgeExpiredProcesses drops expired and ended recovery processes
func (j *Jobs) PurgeExpiredProcesses() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := j.processes.PurgeExpired(ctx, j.clock.Now())
	if err != nil {
		j.logger.Error("failed to purge expired recovery processes", zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("purged expired recovery processes", zap.Int("count", n))
	}
}

// PurgeOldIncidents drops incidents older than the retention window
func (j *Jobs) PurgeOldIncidents() {
	if j.incidents == nil || j.retention <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := j.incidents.DeleteBefore(ctx, j.clock.Now().Add(-j.retention))
	if err != nil {
		j.logger.Error("failed to purge old incidents", zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("purged old incidents", zap.Int64("count", n))
	}
}
