package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"arbiter/internal/common/cache"
	"arbiter/internal/common/db"
	"arbiter/internal/contest/model"
)

const (
	defaultProblemCacheTTL      = 30 * time.Minute
	defaultProblemCacheEmptyTTL = 5 * time.Minute
	problemCacheKeyPrefix       = "problem:"
)

var ErrProblemNotFound = errors.New("problem not found")

// ProblemRepository defines problem read access. Problems are managed
// elsewhere; this service only reads them.
type ProblemRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Problem, error)

	// ListByContest returns the contest's problems ordered by ascending
	// point value, ties broken by id.
	ListByContest(ctx context.Context, contestID int64) ([]*model.Problem, error)
}

// MySQLProblemRepository implements ProblemRepository with MySQL.
type MySQLProblemRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewProblemRepository creates a problem repository with default cache TTLs.
func NewProblemRepository(database db.Database, cacheClient cache.Cache) ProblemRepository {
	return &MySQLProblemRepository{
		db:       database,
		cache:    cacheClient,
		ttl:      defaultProblemCacheTTL,
		emptyTTL: defaultProblemCacheEmptyTTL,
	}
}

const problemColumns = "id, contest_id, title, points, time_limit_sec, memory_limit_mb"

// GetByID retrieves a problem by id, cache-aside.
func (r *MySQLProblemRepository) GetByID(ctx context.Context, id int64) (*model.Problem, error) {
	if id <= 0 {
		return nil, errors.New("id is required")
	}
	if r.cache != nil {
		problem, err := cache.GetWithCached[*model.Problem](
			ctx,
			r.cache,
			problemCacheKey(id),
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(problem *model.Problem) bool { return problem == nil },
			marshalProblem,
			unmarshalProblem,
			func(ctx context.Context) (*model.Problem, error) {
				problem, err := r.getByIDFromDB(ctx, id)
				if err != nil {
					if errors.Is(err, ErrProblemNotFound) {
						return nil, nil
					}
					return nil, err
				}
				return problem, nil
			},
		)
		if err != nil {
			return nil, err
		}
		if problem == nil {
			return nil, ErrProblemNotFound
		}
		return problem, nil
	}
	return r.getByIDFromDB(ctx, id)
}

// ListByContest retrieves problems for a contest in scoring-column order.
func (r *MySQLProblemRepository) ListByContest(ctx context.Context, contestID int64) ([]*model.Problem, error) {
	if contestID <= 0 {
		return nil, errors.New("contestID is required")
	}
	query := "SELECT " + problemColumns + " FROM problems WHERE contest_id = ? ORDER BY points ASC, id ASC"
	rows, err := r.db.Query(ctx, query, contestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var problems []*model.Problem
	for rows.Next() {
		problem, err := scanProblem(rows)
		if err != nil {
			return nil, err
		}
		problems = append(problems, problem)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return problems, nil
}

func (r *MySQLProblemRepository) getByIDFromDB(ctx context.Context, id int64) (*model.Problem, error) {
	query := "SELECT " + problemColumns + " FROM problems WHERE id = ? LIMIT 1"
	row := r.db.QueryRow(ctx, query, id)
	problem, err := scanProblem(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrProblemNotFound
		}
		return nil, err
	}
	return problem, nil
}

func scanProblem(row rowScanner) (*model.Problem, error) {
	problem := &model.Problem{}
	if err := row.Scan(
		&problem.ID,
		&problem.ContestID,
		&problem.Title,
		&problem.Points,
		&problem.TimeLimitSec,
		&problem.MemoryLimitMB,
	); err != nil {
		return nil, err
	}
	return problem, nil
}

func problemCacheKey(id int64) string {
	return problemCacheKeyPrefix + formatID(id)
}

func marshalProblem(problem *model.Problem) string {
	if problem == nil {
		return ""
	}
	data, err := json.Marshal(problem)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalProblem(data string) (*model.Problem, error) {
	if data == "" || data == cache.NullCacheValue {
		return nil, nil
	}
	var problem model.Problem
	if err := json.Unmarshal([]byte(data), &problem); err != nil {
		return nil, err
	}
	return &problem, nil
}
