package repository

import (
	"context"
	"errors"
	"time"

	"arbiter/internal/common/db"
	"arbiter/internal/contest/model"
)

var ErrRegistrationNotFound = errors.New("registration not found")

// RegistrationRepository defines registration persistence interfaces.
type RegistrationRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Registration, error)
	GetByUserAndContest(ctx context.Context, userID, contestID int64) (*model.Registration, error)
	ListByContest(ctx context.Context, contestID int64) ([]*model.Registration, error)

	// ApplyScore adds points and advances the last-submission timestamp.
	// The timestamp only moves forward: completion events arriving out of
	// submission order cannot rewind it.
	ApplyScore(ctx context.Context, tx db.Transaction, id int64, points int, lastSubmission time.Time) error
}

// MySQLRegistrationRepository implements RegistrationRepository with MySQL.
type MySQLRegistrationRepository struct {
	db db.Database
}

// NewRegistrationRepository creates a registration repository.
func NewRegistrationRepository(database db.Database) RegistrationRepository {
	return &MySQLRegistrationRepository{db: database}
}

const registrationColumns = "id, user_id, contest_id, score, last_submission"

// GetByID retrieves a registration by id.
func (r *MySQLRegistrationRepository) GetByID(ctx context.Context, id int64) (*model.Registration, error) {
	if id <= 0 {
		return nil, errors.New("id is required")
	}
	query := "SELECT " + registrationColumns + " FROM registrations WHERE id = ? LIMIT 1"
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByUserAndContest retrieves a user's registration for a contest.
func (r *MySQLRegistrationRepository) GetByUserAndContest(ctx context.Context, userID, contestID int64) (*model.Registration, error) {
	if userID <= 0 {
		return nil, errors.New("userID is required")
	}
	if contestID <= 0 {
		return nil, errors.New("contestID is required")
	}
	query := "SELECT " + registrationColumns + " FROM registrations WHERE user_id = ? AND contest_id = ? LIMIT 1"
	return r.scanOne(r.db.QueryRow(ctx, query, userID, contestID))
}

// ListByContest returns every registration for a contest.
func (r *MySQLRegistrationRepository) ListByContest(ctx context.Context, contestID int64) ([]*model.Registration, error) {
	if contestID <= 0 {
		return nil, errors.New("contestID is required")
	}
	query := "SELECT " + registrationColumns + " FROM registrations WHERE contest_id = ? ORDER BY id ASC"
	rows, err := r.db.Query(ctx, query, contestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var registrations []*model.Registration
	for rows.Next() {
		registration, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		registrations = append(registrations, registration)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return registrations, nil
}

// ApplyScore accumulates points for an accepted scored submission.
func (r *MySQLRegistrationRepository) ApplyScore(ctx context.Context, tx db.Transaction, id int64, points int, lastSubmission time.Time) error {
	if id <= 0 {
		return errors.New("id is required")
	}
	query := "UPDATE registrations SET score = score + ?, last_submission = GREATEST(COALESCE(last_submission, ?), ?) WHERE id = ?"
	// RowsAffected is unreliable here: MySQL reports 0 for a no-op
	// update (points = 0 and an unchanged timestamp), so existence is
	// not checked through it.
	_, err := db.GetQuerier(r.db, tx).Exec(ctx, query, points, lastSubmission, lastSubmission, id)
	return err
}

func (r *MySQLRegistrationRepository) scanOne(row db.Row) (*model.Registration, error) {
	registration, err := scanRegistration(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	return registration, nil
}

func scanRegistration(row rowScanner) (*model.Registration, error) {
	registration := &model.Registration{}
	if err := row.Scan(
		&registration.ID,
		&registration.UserID,
		&registration.ContestID,
		&registration.Score,
		&registration.LastSubmission,
	); err != nil {
		return nil, err
	}
	return registration, nil
}
