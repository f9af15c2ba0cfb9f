package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"arbiter/internal/common/cache"
	"arbiter/internal/common/db"
	"arbiter/internal/contest/model"
)

const (
	defaultContestCacheTTL      = 30 * time.Minute
	defaultContestCacheEmptyTTL = 5 * time.Minute
	contestCacheKeyPrefix       = "contest:"
)

var ErrContestNotFound = errors.New("contest not found")

// ContestRepository defines contest read access.
type ContestRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Contest, error)
}

// MySQLContestRepository implements ContestRepository with MySQL.
type MySQLContestRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewContestRepository creates a contest repository with default cache TTLs.
func NewContestRepository(database db.Database, cacheClient cache.Cache) ContestRepository {
	return &MySQLContestRepository{
		db:       database,
		cache:    cacheClient,
		ttl:      defaultContestCacheTTL,
		emptyTTL: defaultContestCacheEmptyTTL,
	}
}

const contestColumns = "id, name, start_time, end_time"

// GetByID retrieves a contest by id, cache-aside.
func (r *MySQLContestRepository) GetByID(ctx context.Context, id int64) (*model.Contest, error) {
	if id <= 0 {
		return nil, errors.New("id is required")
	}
	if r.cache != nil {
		contest, err := cache.GetWithCached[*model.Contest](
			ctx,
			r.cache,
			contestCacheKey(id),
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(contest *model.Contest) bool { return contest == nil },
			marshalContest,
			unmarshalContest,
			func(ctx context.Context) (*model.Contest, error) {
				contest, err := r.getByIDFromDB(ctx, id)
				if err != nil {
					if errors.Is(err, ErrContestNotFound) {
						return nil, nil
					}
					return nil, err
				}
				return contest, nil
			},
		)
		if err != nil {
			return nil, err
		}
		if contest == nil {
			return nil, ErrContestNotFound
		}
		return contest, nil
	}
	return r.getByIDFromDB(ctx, id)
}

func (r *MySQLContestRepository) getByIDFromDB(ctx context.Context, id int64) (*model.Contest, error) {
	query := "SELECT " + contestColumns + " FROM contests WHERE id = ? LIMIT 1"
	row := r.db.QueryRow(ctx, query, id)
	contest := &model.Contest{}
	if err := row.Scan(
		&contest.ID,
		&contest.Name,
		&contest.StartTime,
		&contest.EndTime,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrContestNotFound
		}
		return nil, err
	}
	return contest, nil
}

func contestCacheKey(id int64) string {
	return contestCacheKeyPrefix + formatID(id)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func marshalContest(contest *model.Contest) string {
	if contest == nil {
		return ""
	}
	data, err := json.Marshal(contest)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalContest(data string) (*model.Contest, error) {
	if data == "" || data == cache.NullCacheValue {
		return nil, nil
	}
	var contest model.Contest
	if err := json.Unmarshal([]byte(data), &contest); err != nil {
		return nil, err
	}
	return &contest, nil
}
