package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS decoys (
			decoy_email TEXT PRIMARY KEY,
			customer_email TEXT NOT NULL,
			use_case TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			decoy_email TEXT NOT NULL,
			sender TEXT NOT NULL,
			ip TEXT NOT NULL,
			subject TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_decoy_email ON events(decoy_email)`,
	},
	upsertDecoy: `
		INSERT OR REPLACE INTO decoys (decoy_email, customer_email, use_case, created_at)
		VALUES (?, ?, ?, ?)
	`,
}

// NewSQLiteStore opens (and if needed creates) the SQLite database at dbPath
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite allows a single writer; concurrent calls queue on one connection
	db.SetMaxOpenConns(1)

	s, err := newSQLStore(db, sqliteDialect, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
}
