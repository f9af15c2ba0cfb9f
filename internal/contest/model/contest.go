package model

import "time"

// Contest is a scoring window over a set of problems.
type Contest struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Contains reports whether ts falls inside the contest window, both
// bounds inclusive.
func (c *Contest) Contains(ts time.Time) bool {
	return !ts.Before(c.StartTime) && !ts.After(c.EndTime)
}

// Problem is an evaluation target. ContestID is nil for practice
// problems, which never contribute to any leaderboard.
type Problem struct {
	ID            int64  `json:"id"`
	ContestID     *int64 `json:"contest_id,omitempty"`
	Title         string `json:"title"`
	Points        int    `json:"points"`
	TimeLimitSec  int64  `json:"time_limit_sec"`
	MemoryLimitMB int64  `json:"memory_limit_mb"`
}

// Registration ties a user to a contest and accumulates their score.
type Registration struct {
	ID        int64 `json:"id"`
	UserID    int64 `json:"user_id"`
	ContestID int64 `json:"contest_id"`
	Score     int   `json:"score"`

	// LastSubmission is the submission time of the last accepted scored
	// submission. Nil until the first one lands.
	LastSubmission *time.Time `json:"last_submission,omitempty"`
}
