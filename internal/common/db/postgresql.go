package db

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// PostgreSQL implements the Database interface using the pq driver.
type PostgreSQL struct {
	*conn
	config *PoolConfig
}

// NewPostgreSQL creates a new PostgreSQL database connection with the default pool.
// DSN format: "user=postgres password=password host=localhost port=5432 dbname=dbname sslmode=disable"
func NewPostgreSQL(dsn string) (*PostgreSQL, error) {
	return NewPostgreSQLWithConfig(&PoolConfig{DSN: dsn})
}

// NewPostgreSQLWithConfig creates a new PostgreSQL database connection with custom pool settings.
func NewPostgreSQLWithConfig(config *PoolConfig) (*PostgreSQL, error) {
	c, err := open("postgres", config)
	if err != nil {
		return nil, err
	}
	return &PostgreSQL{conn: c, config: config}, nil
}

// NewPostgreSQLWithDB creates a PostgreSQL instance from an existing sql.DB.
func NewPostgreSQLWithDB(sqlDB *sql.DB) (*PostgreSQL, error) {
	c, err := wrap(sqlDB)
	if err != nil {
		return nil, err
	}
	return &PostgreSQL{conn: c, config: &PoolConfig{}}, nil
}

// GetConfig returns the pool configuration this connection was opened with.
func (p *PostgreSQL) GetConfig() *PoolConfig {
	return p.config
}
