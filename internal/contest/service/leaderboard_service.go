package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"arbiter/internal/common/cache"
	"arbiter/internal/contest/repository"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultStandingsTTL      = 30 * time.Second
	standingsCacheKeyPrefix  = "leaderboard:"
	standingsCacheEmptyShare = 2
)

// LeaderboardService aggregates contest standings from the persisted
// submission history. Standings are recomputed on demand and cached
// briefly; readers may see a slightly stale snapshot.
type LeaderboardService struct {
	contestRepo      repository.ContestRepository
	problemRepo      repository.ProblemRepository
	registrationRepo repository.RegistrationRepository
	submissionRepo   repository.SubmissionRepository
	cache            cache.Cache
	cacheTTL         time.Duration
	timeouts         TimeoutConfig
}

// LeaderboardConfig holds leaderboard service dependencies.
type LeaderboardConfig struct {
	ContestRepo      repository.ContestRepository
	ProblemRepo      repository.ProblemRepository
	RegistrationRepo repository.RegistrationRepository
	SubmissionRepo   repository.SubmissionRepository
	Cache            cache.Cache
	CacheTTL         time.Duration
	Timeouts         TimeoutConfig
}

// Standings is one computed leaderboard snapshot.
type Standings struct {
	ContestID   int64           `json:"contest_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Problems    []ProblemColumn `json:"problems"`
	Rows        []RankedRow     `json:"rows"`
}

// ProblemColumn is one problem of the contest, in ascending point
// order.
type ProblemColumn struct {
	ProblemID int64  `json:"problem_id"`
	Title     string `json:"title"`
	Points    int    `json:"points"`
}

// QualifyingSubmission is a contestant's earliest accepted submission
// for a problem, shown only when it landed inside the contest window.
type QualifyingSubmission struct {
	SubmissionID int64     `json:"submission_id"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// RankedRow is one contestant's standing. Solved maps problem id to
// the qualifying submission, absent for unsolved problems.
type RankedRow struct {
	Rank           int                             `json:"rank"`
	RegistrationID int64                           `json:"registration_id"`
	UserID         int64                           `json:"user_id"`
	Score          int                             `json:"score"`
	LastSubmission *time.Time                      `json:"last_submission,omitempty"`
	Solved         map[int64]*QualifyingSubmission `json:"solved,omitempty"`
}

// NewLeaderboardService creates a leaderboard service.
func NewLeaderboardService(cfg LeaderboardConfig) (*LeaderboardService, error) {
	if cfg.ContestRepo == nil {
		return nil, fmt.Errorf("contest repository is required")
	}
	if cfg.ProblemRepo == nil {
		return nil, fmt.Errorf("problem repository is required")
	}
	if cfg.RegistrationRepo == nil {
		return nil, fmt.Errorf("registration repository is required")
	}
	if cfg.SubmissionRepo == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultStandingsTTL
	}
	return &LeaderboardService{
		contestRepo:      cfg.ContestRepo,
		problemRepo:      cfg.ProblemRepo,
		registrationRepo: cfg.RegistrationRepo,
		submissionRepo:   cfg.SubmissionRepo,
		cache:            cfg.Cache,
		cacheTTL:         cfg.CacheTTL,
		timeouts:         cfg.Timeouts,
	}, nil
}

// Standings returns the leaderboard for a contest, serving a cached
// snapshot when one is fresh enough.
func (s *LeaderboardService) Standings(ctx context.Context, contestID int64) (*Standings, error) {
	if contestID <= 0 {
		return nil, appErr.ValidationError("contest_id", "required")
	}
	if s.cache == nil {
		return s.compute(ctx, contestID)
	}
	standings, err := cache.GetWithCached[*Standings](
		ctx,
		s.cache,
		standingsCacheKey(contestID),
		s.cacheTTL,
		s.cacheTTL/standingsCacheEmptyShare,
		func(st *Standings) bool { return st == nil },
		marshalStandings,
		unmarshalStandings,
		func(ctx context.Context) (*Standings, error) {
			return s.compute(ctx, contestID)
		},
	)
	if err != nil {
		return nil, err
	}
	if standings == nil {
		return nil, appErr.New(appErr.LeaderboardUnavailable)
	}
	return standings, nil
}

// compute builds a snapshot from scratch. A failing per-problem query
// drops that column rather than failing the whole board.
func (s *LeaderboardService) compute(ctx context.Context, contestID int64) (*Standings, error) {
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()

	contest, err := s.contestRepo.GetByID(ctxDB.ctx, contestID)
	if err != nil {
		if errors.Is(err, repository.ErrContestNotFound) {
			return nil, appErr.New(appErr.ContestNotFound)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "get contest failed")
	}

	problems, err := s.problemRepo.ListByContest(ctxDB.ctx, contestID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list contest problems failed")
	}

	registrations, err := s.registrationRepo.ListByContest(ctxDB.ctx, contestID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list registrations failed")
	}

	standings := &Standings{
		ContestID:   contestID,
		GeneratedAt: time.Now().UTC(),
	}

	solvedByUser := make(map[int64]map[int64]*QualifyingSubmission)
	for _, problem := range problems {
		accepted, err := s.submissionRepo.EarliestAcceptedByProblem(ctxDB.ctx, problem.ID)
		if err != nil {
			logger.Warn(ctx, "omit problem column from standings",
				zap.Int64("contest_id", contestID),
				zap.Int64("problem_id", problem.ID),
				zap.Error(err),
			)
			continue
		}
		standings.Problems = append(standings.Problems, ProblemColumn{
			ProblemID: problem.ID,
			Title:     problem.Title,
			Points:    problem.Points,
		})
		for _, row := range accepted {
			// The earliest accepted submission is picked first and only
			// then window-checked: an out-of-window first solve is not
			// replaced by a later in-window one.
			if !contest.Contains(row.SubmittedAt) {
				continue
			}
			cells := solvedByUser[row.UserID]
			if cells == nil {
				cells = make(map[int64]*QualifyingSubmission)
				solvedByUser[row.UserID] = cells
			}
			cells[problem.ID] = &QualifyingSubmission{
				SubmissionID: row.SubmissionID,
				SubmittedAt:  row.SubmittedAt,
			}
		}
	}

	standings.Rows = make([]RankedRow, 0, len(registrations))
	for _, registration := range registrations {
		standings.Rows = append(standings.Rows, RankedRow{
			RegistrationID: registration.ID,
			UserID:         registration.UserID,
			Score:          registration.Score,
			LastSubmission: registration.LastSubmission,
			Solved:         solvedByUser[registration.UserID],
		})
	}
	rankRows(standings.Rows)
	return standings, nil
}

// rankRows orders by score descending, then earlier last submission
// first. A registration that never scored has no last submission and
// wins ties against any that did.
func rankRows(rows []RankedRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		ti, tj := rows[i].LastSubmission, rows[j].LastSubmission
		switch {
		case ti == nil && tj == nil:
			return rows[i].RegistrationID < rows[j].RegistrationID
		case ti == nil:
			return true
		case tj == nil:
			return false
		case !ti.Equal(*tj):
			return ti.Before(*tj)
		}
		return rows[i].RegistrationID < rows[j].RegistrationID
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
}

func standingsCacheKey(contestID int64) string {
	return fmt.Sprintf("%s%d", standingsCacheKeyPrefix, contestID)
}

func marshalStandings(standings *Standings) string {
	if standings == nil {
		return ""
	}
	data, err := json.Marshal(standings)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalStandings(data string) (*Standings, error) {
	if data == "" || data == cache.NullCacheValue {
		return nil, nil
	}
	var standings Standings
	if err := json.Unmarshal([]byte(data), &standings); err != nil {
		return nil, err
	}
	return &standings, nil
}
