package repository

import (
	"context"
	"sync"
	"time"

	"github.com/manorfm/recoveryM/internal/domain"
	"go.uber.org/zap"
)

// MemoryProcessRepository keeps processes in process memory. It is meant for
// tests and single-instance deployments.
type MemoryProcessRepository struct {
	mu        sync.Mutex
	processes map[string]*domain.RecoveryProcess
	clock     domain.Clock
	logger    *zap.Logger
}

// NewMemoryProcessRepository creates a new in-memory process repository
func NewMemoryProcessRepository(clock domain.Clock, logger *zap.Logger) *MemoryProcessRepository {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &MemoryProcessRepository{
		processes: make(map[string]*domain.RecoveryProcess),
		clock:     clock,
		logger:    logger,
	}
}

// Create stores a new process
func (r *MemoryProcessRepository) Create(ctx context.Context, process *domain.RecoveryProcess) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.processes[process.Token]; ok {
		return domain.ErrProcessConflict
	}
	process.Version = 1
	r.processes[process.Token] = process.Clone()
	return nil
}

// Get returns a copy of an active process
func (r *MemoryProcessRepository) Get(ctx context.Context, token string) (*domain.RecoveryProcess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.processes[token]
	if !ok || !stored.IsActive(r.clock.Now()) {
		return nil, domain.ErrProcessNotFound
	}
	return stored.Clone(), nil
}

// Update writes process if its version still matches the stored one
func (r *MemoryProcessRepository) Update(ctx context.Context, process *domain.RecoveryProcess) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.processes[process.Token]
	if !ok {
		return domain.ErrProcessNotFound
	}
	if stored.Version != process.Version {
		return domain.ErrProcessConflict
	}
	process.Version++
	r.processes[process.Token] = process.Clone()
	return nil
}

// Delete removes a process
func (r *MemoryProcessRepository) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.processes, token)
	return nil
}

// PurgeExpired removes every process that is no longer active at now
func (r *MemoryProcessRepository) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for token, p := range r.processes {
		if !p.IsActive(now) {
			delete(r.processes, token)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("purged recovery processes", zap.Int("count", removed))
	}
	return removed, nil
}

// Len returns the number of stored processes, active or not
func (r *MemoryProcessRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.processes)
}
