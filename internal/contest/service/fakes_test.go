package service_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"arbiter/internal/common/db"
	"arbiter/internal/common/storage"
	"arbiter/internal/contest/model"
	"arbiter/internal/contest/repository"
	"arbiter/internal/jobstore"
)

type fakeSubmissionRepo struct {
	mu          sync.Mutex
	nextID      int64
	byID        map[int64]*model.Submission
	createErr   error
	setJobErr   error
	acceptErr   error
	earliest    map[int64][]*repository.AcceptedSubmission
	earliestErr map[int64]error
	applyCalls  int
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{
		nextID:      1,
		byID:        make(map[int64]*model.Submission),
		earliest:    make(map[int64][]*repository.AcceptedSubmission),
		earliestErr: make(map[int64]error),
	}
}

func (r *fakeSubmissionRepo) Create(ctx context.Context, tx db.Transaction, submission *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	copy := *submission
	copy.ID = r.nextID
	r.nextID++
	r.byID[copy.ID] = &copy
	submission.ID = copy.ID
	return nil
}

func (r *fakeSubmissionRepo) GetByID(ctx context.Context, tx db.Transaction, id int64) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	submission, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	copy := *submission
	return &copy, nil
}

func (r *fakeSubmissionRepo) SetJobID(ctx context.Context, tx db.Transaction, id int64, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setJobErr != nil {
		return r.setJobErr
	}
	submission, ok := r.byID[id]
	if !ok {
		return repository.ErrSubmissionNotFound
	}
	if submission.JobID != "" {
		return repository.ErrJobIDAlreadySet
	}
	submission.JobID = jobID
	return nil
}

func (r *fakeSubmissionRepo) HasAcceptedSubmission(ctx context.Context, userID, problemID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.acceptErr != nil {
		return false, r.acceptErr
	}
	for _, submission := range r.byID {
		if submission.UserID == userID && submission.ProblemID == problemID && submission.Status == model.StatusAccepted {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSubmissionRepo) ApplyFinalResult(ctx context.Context, tx db.Transaction, result *model.EvaluationResult) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyCalls++
	submission, ok := r.byID[result.SubmissionID]
	if !ok {
		return false, nil
	}
	if submission.Status.Terminal() {
		return false, nil
	}
	submission.Status = result.Status
	submission.Progress = result.Progress
	submission.TestcaseResults = result.TestcaseResults
	return true, nil
}

func (r *fakeSubmissionRepo) ListByProblem(ctx context.Context, problemID int64, limit int) ([]*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var submissions []*model.Submission
	for _, submission := range r.byID {
		if submission.ProblemID != problemID {
			continue
		}
		copy := *submission
		submissions = append(submissions, &copy)
		if len(submissions) >= limit {
			break
		}
	}
	return submissions, nil
}

func (r *fakeSubmissionRepo) EarliestAcceptedByProblem(ctx context.Context, problemID int64) ([]*repository.AcceptedSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.earliestErr[problemID]; err != nil {
		return nil, err
	}
	return r.earliest[problemID], nil
}

func (r *fakeSubmissionRepo) put(submission *model.Submission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *submission
	r.byID[copy.ID] = &copy
	if copy.ID >= r.nextID {
		r.nextID = copy.ID + 1
	}
}

type fakeProblemRepo struct {
	mu        sync.Mutex
	byID      map[int64]*model.Problem
	byContest map[int64][]*model.Problem
}

func newFakeProblemRepo() *fakeProblemRepo {
	return &fakeProblemRepo{
		byID:      make(map[int64]*model.Problem),
		byContest: make(map[int64][]*model.Problem),
	}
}

func (r *fakeProblemRepo) GetByID(ctx context.Context, id int64) (*model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	problem, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrProblemNotFound
	}
	copy := *problem
	return &copy, nil
}

func (r *fakeProblemRepo) ListByContest(ctx context.Context, contestID int64) ([]*model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byContest[contestID], nil
}

func (r *fakeProblemRepo) put(problem *model.Problem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *problem
	r.byID[copy.ID] = &copy
	if copy.ContestID != nil {
		r.byContest[*copy.ContestID] = append(r.byContest[*copy.ContestID], &copy)
	}
}

type fakeContestRepo struct {
	mu   sync.Mutex
	byID map[int64]*model.Contest
}

func newFakeContestRepo() *fakeContestRepo {
	return &fakeContestRepo{byID: make(map[int64]*model.Contest)}
}

func (r *fakeContestRepo) GetByID(ctx context.Context, id int64) (*model.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	contest, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrContestNotFound
	}
	copy := *contest
	return &copy, nil
}

func (r *fakeContestRepo) put(contest *model.Contest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *contest
	r.byID[copy.ID] = &copy
}

type scoreCall struct {
	registrationID int64
	points         int
	lastSubmission time.Time
}

type fakeRegistrationRepo struct {
	mu            sync.Mutex
	byID          map[int64]*model.Registration
	byUserContest map[string]*model.Registration
	scoreCalls    []scoreCall
	scoreErr      error
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{
		byID:          make(map[int64]*model.Registration),
		byUserContest: make(map[string]*model.Registration),
	}
}

func registrationKey(userID, contestID int64) string {
	return fmt.Sprintf("%d/%d", userID, contestID)
}

func (r *fakeRegistrationRepo) GetByID(ctx context.Context, id int64) (*model.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	registration, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrRegistrationNotFound
	}
	copy := *registration
	return &copy, nil
}

func (r *fakeRegistrationRepo) GetByUserAndContest(ctx context.Context, userID, contestID int64) (*model.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	registration, ok := r.byUserContest[registrationKey(userID, contestID)]
	if !ok {
		return nil, repository.ErrRegistrationNotFound
	}
	copy := *registration
	return &copy, nil
}

func (r *fakeRegistrationRepo) ListByContest(ctx context.Context, contestID int64) ([]*model.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var registrations []*model.Registration
	for _, registration := range r.byID {
		if registration.ContestID == contestID {
			copy := *registration
			registrations = append(registrations, &copy)
		}
	}
	return registrations, nil
}

func (r *fakeRegistrationRepo) ApplyScore(ctx context.Context, tx db.Transaction, id int64, points int, lastSubmission time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scoreErr != nil {
		return r.scoreErr
	}
	r.scoreCalls = append(r.scoreCalls, scoreCall{registrationID: id, points: points, lastSubmission: lastSubmission})
	if registration, ok := r.byID[id]; ok {
		registration.Score += points
		// Mirrors the repository contract: the timestamp never rewinds.
		if registration.LastSubmission == nil || registration.LastSubmission.Before(lastSubmission) {
			ts := lastSubmission
			registration.LastSubmission = &ts
		}
	}
	return nil
}

func (r *fakeRegistrationRepo) put(registration *model.Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *registration
	r.byID[copy.ID] = &copy
	r.byUserContest[registrationKey(copy.UserID, copy.ContestID)] = &copy
}

type fakeJobStore struct {
	mu         sync.Mutex
	nextJob    int
	enqueueErr error
	statusErr  error
	statuses   map[string]jobstore.JobStatus
	jobs       []jobstore.EvaluationJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		nextJob:  1,
		statuses: make(map[string]jobstore.JobStatus),
	}
}

func (s *fakeJobStore) Enqueue(ctx context.Context, job jobstore.EvaluationJob) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueueErr != nil {
		return "", s.enqueueErr
	}
	jobID := fmt.Sprintf("job-%d", s.nextJob)
	s.nextJob++
	s.jobs = append(s.jobs, job)
	s.statuses[jobID] = jobstore.JobStatus{Status: "queued", Progress: model.DefaultProgress}
	return jobID, nil
}

func (s *fakeJobStore) FetchStatus(ctx context.Context, jobID string) (jobstore.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statusErr != nil {
		return jobstore.JobStatus{}, s.statusErr
	}
	status, ok := s.statuses[jobID]
	if !ok {
		return jobstore.JobStatus{}, jobstore.ErrJobNotFound
	}
	return status, nil
}

func (s *fakeJobStore) lastJob() (jobstore.EvaluationJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		return jobstore.EvaluationJob{}, false
	}
	return s.jobs[len(s.jobs)-1], true
}

type fakeStorage struct {
	mu      sync.Mutex
	putErr  error
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.objects[bucket+"/"+objectKey] = data
	return nil
}

func (s *fakeStorage) GetObject(ctx context.Context, bucket, objectKey string) (storage.ObjectReader, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *fakeStorage) StatObject(ctx context.Context, bucket, objectKey string) (storage.ObjectStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[bucket+"/"+objectKey]
	if !ok {
		return storage.ObjectStat{}, fmt.Errorf("object not found")
	}
	return storage.ObjectStat{SizeBytes: int64(len(data))}, nil
}

// fakeDatabase implements just enough of db.Database for the result
// consumer: Transaction runs the callback with a nil transaction, which
// the fake repositories ignore.
type fakeDatabase struct {
	txErr error
}

func (d *fakeDatabase) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	return nil, fmt.Errorf("not implemented")
}

func (d *fakeDatabase) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	return nil
}

func (d *fakeDatabase) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	return nil, fmt.Errorf("not implemented")
}

func (d *fakeDatabase) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	if d.txErr != nil {
		return d.txErr
	}
	return fn(nil)
}

func (d *fakeDatabase) BeginTx(ctx context.Context, opts *db.TxOptions) (db.Transaction, error) {
	return nil, fmt.Errorf("not implemented")
}

func (d *fakeDatabase) Ping(ctx context.Context) error { return nil }

func (d *fakeDatabase) Close() error { return nil }

func (d *fakeDatabase) Stats() db.Stats { return db.Stats{} }
