// Package progress exposes per-job import state to polling callers and
// enforces the at-most-one-active-import-per-key invariant.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/rpattn/sheetimport/internal/domain"
)

// Store is the keyed job state shared between the executor (single
// writer per job) and polling callers (concurrent readers).
type Store interface {
	// Create registers a pending job. It fails with domain.ErrConflict
	// when the job id or its source identity is still owned by an
	// active import.
	Create(ctx context.Context, job domain.ImportJob) error
	// Update overwrites progress state for a job id. Updates are
	// idempotent per job id so durable backends can retry safely.
	Update(ctx context.Context, jobID string, progressPct int, step string, completed bool, result *domain.ImportResult) error
	// Get returns a snapshot of the job, or domain.ErrJobNotFound.
	Get(ctx context.Context, jobID string) (domain.ImportJob, error)
	// Release drops an uncompleted job without recording a result so its
	// id and source keys can be reused.
	Release(ctx context.Context, jobID string) error
}

// MemoryStore keeps job state in a mutex-guarded map. Completed jobs
// are retained for a bounded window so pollers can still fetch results,
// then swept.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]domain.ImportJob
	retention time.Duration
	now       func() time.Time
}

// NewMemoryStore builds a store retaining completed jobs for the given
// window (default one hour).
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = time.Hour
	}
	return &MemoryStore{
		jobs:      make(map[string]domain.ImportJob),
		retention: retention,
		now:       time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, job domain.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	if existing, ok := s.jobs[job.ID]; ok && !existing.Completed {
		return domain.ErrConflict
	}
	for _, other := range s.jobs {
		if other.ID != job.ID && !other.Completed && other.SourceName == job.SourceName {
			return domain.ErrConflict
		}
	}

	now := s.now()
	job.CreatedAt = now
	job.UpdatedAt = now
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, jobID string, progressPct int, step string, completed bool, result *domain.ImportResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}

	// Progress is monotonic across polls; never step backwards.
	if progressPct > job.Progress {
		job.Progress = progressPct
	}
	job.Step = step
	job.Completed = completed
	if result != nil {
		job.Result = result
	}
	job.UpdatedAt = s.now()
	s.jobs[jobID] = job
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, jobID string) (domain.ImportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ImportJob{}, domain.ErrJobNotFound
	}
	return job, nil
}

func (s *MemoryStore) Release(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
	return nil
}

func (s *MemoryStore) sweepLocked() {
	cutoff := s.now().Add(-s.retention)
	for id, job := range s.jobs {
		if job.Completed && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
