package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS decoys (
			decoy_email VARCHAR(320) PRIMARY KEY,
			customer_email VARCHAR(320) NOT NULL,
			use_case VARCHAR(255),
			created_at VARCHAR(40) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			decoy_email VARCHAR(320) NOT NULL,
			sender TEXT NOT NULL,
			ip VARCHAR(64) NOT NULL,
			subject TEXT NOT NULL,
			created_at VARCHAR(40) NOT NULL,
			INDEX idx_events_decoy_email (decoy_email)
		)`,
	},
	upsertDecoy: `
		INSERT INTO decoys (decoy_email, customer_email, use_case, created_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			customer_email = VALUES(customer_email),
			use_case = VALUES(use_case),
			created_at = VALUES(created_at)
	`,
}

// NewMySQLStore connects to MySQL and creates the tables if they don't exist
func NewMySQLStore(dsn string, maxOpenConns int, logger *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewMySQLStoreFromDB(db, logger)
}

// NewMySQLStoreFromDB wraps an existing MySQL handle
func NewMySQLStoreFromDB(db *sql.DB, logger *zap.Logger) (*SQLStore, error) {
	s, err := newSQLStore(db, mysqlDialect, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
