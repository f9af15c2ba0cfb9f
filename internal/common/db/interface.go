package db

import (
	"context"
	"database/sql"
)

// Database abstracts a relational database with connection pooling.
// MySQL and PostgreSQL implementations share the same surface so the
// repositories stay driver-agnostic.
type Database interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)

	// Transaction runs fn inside a transaction, rolling back on error.
	Transaction(ctx context.Context, fn func(tx Transaction) error) error
	// BeginTx starts a transaction the caller must commit or roll back.
	BeginTx(ctx context.Context, opts *TxOptions) (Transaction, error)

	Ping(ctx context.Context) error
	Close() error
	Stats() Stats
}

// Transaction abstracts an open database transaction.
type Transaction interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
	Commit() error
	Rollback() error
}

// Rows is the result of a multi-row query.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Row is the result of a single-row query. Scan returns sql.ErrNoRows
// when the query matched nothing.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result summarizes an executed statement.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// TxOptions holds transaction options.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// ConvertTxOptions converts TxOptions to the stdlib form. Nil maps to nil
// so drivers use their defaults.
func ConvertTxOptions(opts *TxOptions) *sql.TxOptions {
	if opts == nil {
		return nil
	}
	return &sql.TxOptions{
		Isolation: opts.Isolation,
		ReadOnly:  opts.ReadOnly,
	}
}

// Stats reports connection pool statistics.
type Stats struct {
	OpenConnections   int
	InUse             int
	Idle              int
	WaitCount         int64
	MaxIdleClosed     int64
	MaxLifetimeClosed int64
}

// ConvertSQLStats converts sql.DBStats into Stats.
func ConvertSQLStats(s sql.DBStats) Stats {
	return Stats{
		OpenConnections:   s.OpenConnections,
		InUse:             s.InUse,
		Idle:              s.Idle,
		WaitCount:         s.WaitCount,
		MaxIdleClosed:     s.MaxIdleClosed,
		MaxLifetimeClosed: s.MaxLifetimeClosed,
	}
}
