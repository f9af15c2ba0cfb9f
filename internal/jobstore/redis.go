package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultQueue  = "evaluation-tasks"
	defaultJobTTL = 24 * time.Hour

	jobKeyPrefix = "job:"

	fieldStatus   = "status"
	fieldProgress = "progress"
	fieldPayload  = "payload"
	fieldEnqueued = "enqueued_at"

	statusQueued = "queued"

	// defaultProgress is what a job reports before the evaluator has
	// run any test.
	defaultProgress = "0/0"
)

// RedisConfig configures the Redis-backed job store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Queue is the list the evaluator pops from. Default "evaluation-tasks".
	Queue string

	// JobTTL bounds how long job metadata survives. Default 24h.
	JobTTL time.Duration
}

// RedisJobStore implements JobStore on a Redis list plus a per-job
// metadata hash, the layout the evaluator's worker consumes.
type RedisJobStore struct {
	client *redis.Client
	queue  string
	jobTTL time.Duration
}

// NewRedisJobStore connects to Redis and verifies the connection.
func NewRedisJobStore(cfg RedisConfig) (*RedisJobStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("addr cannot be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedisJobStoreWithClient(client, cfg), nil
}

// NewRedisJobStoreWithClient wraps an existing client. Used by tests.
func NewRedisJobStoreWithClient(client *redis.Client, cfg RedisConfig) *RedisJobStore {
	queue := cfg.Queue
	if queue == "" {
		queue = defaultQueue
	}
	jobTTL := cfg.JobTTL
	if jobTTL <= 0 {
		jobTTL = defaultJobTTL
	}
	return &RedisJobStore{client: client, queue: queue, jobTTL: jobTTL}
}

// Enqueue writes the job metadata hash and pushes the handle onto the
// queue list in one round trip. The handle is only returned once both
// writes succeeded.
func (s *RedisJobStore) Enqueue(ctx context.Context, job EvaluationJob) (string, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	jobID := uuid.NewString()
	key := s.jobKey(jobID)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		fieldStatus:   statusQueued,
		fieldProgress: defaultProgress,
		fieldPayload:  payload,
		fieldEnqueued: time.Now().UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, s.jobTTL)
	pipe.LPush(ctx, s.queue, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	return jobID, nil
}

// FetchStatus reads the job metadata hash. An empty hash means the job
// is unknown or already expired.
func (s *RedisJobStore) FetchStatus(ctx context.Context, jobID string) (JobStatus, error) {
	fields, err := s.client.HGetAll(ctx, s.jobKey(jobID)).Result()
	if err != nil {
		return JobStatus{}, fmt.Errorf("fetch job status: %w", err)
	}
	if len(fields) == 0 {
		return JobStatus{}, ErrJobNotFound
	}

	status := JobStatus{
		Status:   fields[fieldStatus],
		Progress: fields[fieldProgress],
	}
	if status.Progress == "" {
		status.Progress = defaultProgress
	}
	return status, nil
}

// Close releases the underlying client.
func (s *RedisJobStore) Close() error {
	return s.client.Close()
}

func (s *RedisJobStore) jobKey(jobID string) string {
	return jobKeyPrefix + jobID
}
