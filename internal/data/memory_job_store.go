package data

import (
	"context"
	"sort"
	"sync"

	"github.com/target/marketlens/internal/domain/model"
)

// MemoryJobStore is an in-process JobStore. Jobs are cloned on the way in and out so callers
// never share maps with the store.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
	time TimeProvider
}

// MemoryJobStoreOptions configures a MemoryJobStore.
type MemoryJobStoreOptions struct {
	TimeProvider TimeProvider
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore(opts MemoryJobStoreOptions) *MemoryJobStore {
	tp := opts.TimeProvider
	if tp == nil {
		tp = RealTimeProvider{}
	}
	return &MemoryJobStore{jobs: make(map[string]*model.Job), time: tp}
}

// Get returns a copy of the job or a not_found error.
func (s *MemoryJobStore) Get(ctx context.Context, id string) (*model.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrJobIDRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, jobNotFound(id)
	}
	return job.Clone(), nil
}

// Put stores the job, replacing any job with the same ID.
func (s *MemoryJobStore) Put(ctx context.Context, job *model.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job == nil {
		return ErrNilJob
	}
	if job.ID == "" {
		return ErrJobIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Update merges the patch into the stored job under the write lock.
func (s *MemoryJobStore) Update(ctx context.Context, patch model.JobPatch) (*model.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if patch.ID == "" {
		return nil, ErrJobIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[patch.ID]
	if !ok {
		return nil, jobNotFound(patch.ID)
	}
	job.Apply(patch, s.time.Now())
	return job.Clone(), nil
}

// Delete removes the job and reports whether it existed.
func (s *MemoryJobStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false, nil
	}
	delete(s.jobs, id)
	return true, nil
}

// ListExpired returns IDs of jobs last updated before q.Before, least recently updated first.
func (s *MemoryJobStore) ListExpired(ctx context.Context, q model.ExpiredJobsQuery) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matches := make([]*model.Job, 0)
	for _, job := range s.jobs {
		if !job.UpdatedAt.Before(q.Before) {
			continue
		}
		if q.Status != "" && job.Status != q.Status {
			continue
		}
		matches = append(matches, job)
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].UpdatedAt.Equal(matches[j].UpdatedAt) {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].UpdatedAt.Before(matches[j].UpdatedAt)
	})
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	ids := make([]string, len(matches))
	for i, job := range matches {
		ids[i] = job.ID
	}
	return ids, nil
}

// Len returns the number of stored jobs.
func (s *MemoryJobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
