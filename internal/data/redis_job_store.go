package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/target/marketlens/internal/domain/model"
)

const (
	defaultJobKeyPrefix = "marketlens:"
	maxUpdateAttempts   = 10
)

// RedisJobStore keeps each job as a JSON string and indexes it in sorted sets: one over every
// job and one per status, both scored by updated_at in unix milliseconds.
type RedisJobStore struct {
	client redis.UniversalClient
	prefix string
	time   TimeProvider
}

// RedisJobStoreOptions configures a RedisJobStore.
type RedisJobStoreOptions struct {
	Client       redis.UniversalClient
	KeyPrefix    string
	TimeProvider TimeProvider
}

// NewRedisJobStore creates a Redis-backed job store.
func NewRedisJobStore(opts RedisJobStoreOptions) *RedisJobStore {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultJobKeyPrefix
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = RealTimeProvider{}
	}
	return &RedisJobStore{client: opts.Client, prefix: prefix, time: tp}
}

func (s *RedisJobStore) jobKey(id string) string { return s.prefix + "job:" + id }

func (s *RedisJobStore) updatedIndex() string { return s.prefix + "jobs:updated" }

func (s *RedisJobStore) statusIndex(status model.JobStatus) string {
	return s.prefix + "jobs:status:" + string(status)
}

// Get loads a job by ID.
func (s *RedisJobStore) Get(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, ErrJobIDRequired
	}
	return s.load(ctx, s.client, id)
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisJobStore) load(ctx context.Context, c stringGetter, id string) (*model.Job, error) {
	raw, err := c.Get(ctx, s.jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, jobNotFound(id)
		}
		return nil, fmt.Errorf("redis get job %s: %w", id, err)
	}

	var job model.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// Put writes the job and its index entries in one MULTI block.
func (s *RedisJobStore) Put(ctx context.Context, job *model.Job) error {
	if job == nil {
		return ErrNilJob
	}
	if job.ID == "" {
		return ErrJobIDRequired
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}

	score := float64(job.UpdatedAt.UnixMilli())
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.jobKey(job.ID), raw, 0)
		pipe.ZAdd(ctx, s.updatedIndex(), redis.Z{Score: score, Member: job.ID})
		for _, st := range []model.JobStatus{model.JobStatusProcessing, model.JobStatusComplete, model.JobStatusFailed} {
			if st != job.Status {
				pipe.ZRem(ctx, s.statusIndex(st), job.ID)
			}
		}
		if job.Status != "" {
			pipe.ZAdd(ctx, s.statusIndex(job.Status), redis.Z{Score: score, Member: job.ID})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put job %s: %w", job.ID, err)
	}
	return nil
}

// Update applies the patch with optimistic locking (WATCH on the job key), retrying when a
// concurrent writer touched the job between read and write.
func (s *RedisJobStore) Update(ctx context.Context, patch model.JobPatch) (*model.Job, error) {
	if patch.ID == "" {
		return nil, ErrJobIDRequired
	}

	key := s.jobKey(patch.ID)
	var merged *model.Job

	txf := func(tx *redis.Tx) error {
		job, err := s.load(ctx, tx, patch.ID)
		if err != nil {
			return err
		}
		prevStatus := job.Status
		job.Apply(patch, s.time.Now())

		raw, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("encode job %s: %w", job.ID, err)
		}

		score := float64(job.UpdatedAt.UnixMilli())
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			pipe.ZAdd(ctx, s.updatedIndex(), redis.Z{Score: score, Member: job.ID})
			if job.Status != prevStatus {
				pipe.ZRem(ctx, s.statusIndex(prevStatus), job.ID)
			}
			pipe.ZAdd(ctx, s.statusIndex(job.Status), redis.Z{Score: score, Member: job.ID})
			return nil
		})
		if err != nil {
			return err
		}
		merged = job
		return nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return merged, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("redis update job %s: too much contention after %d attempts", patch.ID, maxUpdateAttempts)
}

// Delete removes the job and its index entries.
func (s *RedisJobStore) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, ErrJobIDRequired
	}

	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.jobKey(id))
		pipe.ZRem(ctx, s.updatedIndex(), id)
		for _, st := range []model.JobStatus{model.JobStatusProcessing, model.JobStatusComplete, model.JobStatusFailed} {
			pipe.ZRem(ctx, s.statusIndex(st), id)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis delete job %s: %w", id, err)
	}
	return del.Val() > 0, nil
}

// ListExpired reads the updated_at index (or the status index when q.Status is set)
// for members scored strictly before q.Before.
func (s *RedisJobStore) ListExpired(ctx context.Context, q model.ExpiredJobsQuery) ([]string, error) {
	index := s.updatedIndex()
	if q.Status != "" {
		index = s.statusIndex(q.Status)
	}

	by := &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(q.Before.UnixMilli(), 10),
	}
	if q.Limit > 0 {
		by.Count = int64(q.Limit)
	}

	ids, err := s.client.ZRangeByScore(ctx, index, by).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list expired jobs: %w", err)
	}
	return ids, nil
}

// Health pings Redis.
func (s *RedisJobStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
