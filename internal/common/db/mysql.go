package db

import (
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
)

// MySQL implements the Database interface using the MySQL driver.
type MySQL struct {
	*conn
	config *PoolConfig
}

// NewMySQL creates a new MySQL database connection with the default pool.
// DSN format: "user:password@tcp(host:port)/dbname?parseTime=true&loc=Local"
func NewMySQL(dsn string) (*MySQL, error) {
	return NewMySQLWithConfig(&PoolConfig{DSN: dsn})
}

// NewMySQLWithConfig creates a new MySQL database connection with custom pool settings.
func NewMySQLWithConfig(config *PoolConfig) (*MySQL, error) {
	c, err := open("mysql", config)
	if err != nil {
		return nil, err
	}
	return &MySQL{conn: c, config: config}, nil
}

// NewMySQLWithDB creates a MySQL instance from an existing sql.DB.
func NewMySQLWithDB(sqlDB *sql.DB) (*MySQL, error) {
	c, err := wrap(sqlDB)
	if err != nil {
		return nil, err
	}
	return &MySQL{conn: c, config: &PoolConfig{}}, nil
}

// GetConfig returns the pool configuration this connection was opened with.
func (m *MySQL) GetConfig() *PoolConfig {
	return m.config
}
