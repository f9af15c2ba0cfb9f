package jobstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"arbiter/internal/jobstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, cfg jobstore.RedisConfig) (*miniredis.Miniredis, *jobstore.RedisJobStore) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, jobstore.NewRedisJobStoreWithClient(client, cfg)
}

func TestEnqueueWritesMetadataAndQueueEntry(t *testing.T) {
	t.Parallel()
	server, store := newTestStore(t, jobstore.RedisConfig{})

	registrationID := int64(11)
	job := jobstore.EvaluationJob{
		SubmissionID:     42,
		Language:         "cpp",
		SourceCode:       "int main() {}",
		MemoryLimitBytes: 256 << 20,
		TimeLimitMS:      2000,
		ProblemID:        7,
		RegistrationID:   &registrationID,
		Points:           300,
	}
	jobID, err := store.Enqueue(context.Background(), job)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if jobID == "" {
		t.Fatal("expected a job handle")
	}

	queued, err := server.List("evaluation-tasks")
	if err != nil {
		t.Fatalf("read queue failed: %v", err)
	}
	if len(queued) != 1 || queued[0] != jobID {
		t.Fatalf("queue = %v, want [%s]", queued, jobID)
	}

	if got := server.HGet("job:"+jobID, "status"); got != "queued" {
		t.Fatalf("status = %q, want queued", got)
	}
	if got := server.HGet("job:"+jobID, "progress"); got != "0/0" {
		t.Fatalf("progress = %q, want 0/0", got)
	}

	var stored jobstore.EvaluationJob
	if err := json.Unmarshal([]byte(server.HGet("job:"+jobID, "payload")), &stored); err != nil {
		t.Fatalf("decode payload failed: %v", err)
	}
	if stored.SubmissionID != 42 || stored.MemoryLimitBytes != 256<<20 || stored.TimeLimitMS != 2000 {
		t.Fatalf("unexpected payload %+v", stored)
	}
	if stored.RegistrationID == nil || *stored.RegistrationID != 11 {
		t.Fatalf("registration id = %v, want 11", stored.RegistrationID)
	}

	ttl := server.TTL("job:" + jobID)
	if ttl <= 0 {
		t.Fatalf("expected a ttl on job metadata, got %v", ttl)
	}
}

func TestEnqueueUsesConfiguredQueue(t *testing.T) {
	t.Parallel()
	server, store := newTestStore(t, jobstore.RedisConfig{Queue: "priority-tasks"})

	jobID, err := store.Enqueue(context.Background(), jobstore.EvaluationJob{SubmissionID: 1})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	queued, err := server.List("priority-tasks")
	if err != nil {
		t.Fatalf("read queue failed: %v", err)
	}
	if len(queued) != 1 || queued[0] != jobID {
		t.Fatalf("queue = %v, want [%s]", queued, jobID)
	}
}

func TestFetchStatusReadsLiveMetadata(t *testing.T) {
	t.Parallel()
	server, store := newTestStore(t, jobstore.RedisConfig{})

	jobID, err := store.Enqueue(context.Background(), jobstore.EvaluationJob{SubmissionID: 1})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	server.HSet("job:"+jobID, "status", "started")
	server.HSet("job:"+jobID, "progress", "4/10")

	status, err := store.FetchStatus(context.Background(), jobID)
	if err != nil {
		t.Fatalf("fetch status failed: %v", err)
	}
	if status.Status != "started" || status.Progress != "4/10" {
		t.Fatalf("status = %+v, want started 4/10", status)
	}
}

func TestFetchStatusDefaultsEmptyProgress(t *testing.T) {
	t.Parallel()
	server, store := newTestStore(t, jobstore.RedisConfig{})

	server.HSet("job:abc", "status", "started")
	status, err := store.FetchStatus(context.Background(), "abc")
	if err != nil {
		t.Fatalf("fetch status failed: %v", err)
	}
	if status.Progress != "0/0" {
		t.Fatalf("progress = %q, want default 0/0", status.Progress)
	}
}

func TestFetchStatusUnknownJob(t *testing.T) {
	t.Parallel()
	_, store := newTestStore(t, jobstore.RedisConfig{})

	_, err := store.FetchStatus(context.Background(), "missing")
	if !errors.Is(err, jobstore.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestFetchStatusExpiredJob(t *testing.T) {
	t.Parallel()
	server, store := newTestStore(t, jobstore.RedisConfig{})

	jobID, err := store.Enqueue(context.Background(), jobstore.EvaluationJob{SubmissionID: 1})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	server.FastForward(25 * time.Hour)

	_, err = store.FetchStatus(context.Background(), jobID)
	if !errors.Is(err, jobstore.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound after expiry, got %v", err)
	}
}
