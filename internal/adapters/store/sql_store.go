package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/decoy-alerts/internal/core"
	"go.uber.org/zap"
)

// dialect holds the statements that differ between database engines
type dialect struct {
	name        string
	schema      []string
	upsertDecoy string
}

const (
	lookupDecoyQuery = `
		SELECT customer_email, use_case, created_at
		FROM decoys
		WHERE decoy_email = ?
	`
	listDecoysQuery = `
		SELECT d.decoy_email, d.customer_email, d.use_case, d.created_at, COUNT(e.id)
		FROM decoys d
		LEFT JOIN events e ON d.decoy_email = LOWER(e.decoy_email)
		GROUP BY d.decoy_email, d.customer_email, d.use_case, d.created_at
		ORDER BY d.created_at DESC
	`
	insertEventQuery = `
		INSERT INTO events (decoy_email, sender, ip, subject, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	recentEventsQuery = `
		SELECT id, decoy_email, sender, ip, subject, created_at
		FROM events
		ORDER BY id DESC
		LIMIT ?
	`
)

// SQLStore is a database/sql implementation of the decoy registry and the
// event log. Every method runs exactly one statement, so each call borrows
// a pooled connection only for its own duration.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
}

func newSQLStore(db *sql.DB, d dialect, logger *zap.Logger) (*SQLStore, error) {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create %s schema: %w", d.name, err)
		}
	}
	return &SQLStore{db: db, dialect: d, logger: logger}, nil
}

// NormalizeAddress is the registry key form of an address
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// LookupDecoy returns the decoy registered for address
func (s *SQLStore) LookupDecoy(ctx context.Context, address string) (*core.Decoy, error) {
	key := NormalizeAddress(address)
	if key == "" {
		return nil, core.ErrDecoyNotFound
	}

	var customer string
	var useCase sql.NullString
	var createdAt string

	err := s.db.QueryRowContext(ctx, lookupDecoyQuery, key).Scan(&customer, &useCase, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrDecoyNotFound
		}
		return nil, fmt.Errorf("failed to query decoy: %w", err)
	}

	return &core.Decoy{
		Address:       key,
		CustomerEmail: customer,
		UseCase:       useCase.String,
		CreatedAt:     s.parseTime(createdAt),
	}, nil
}

// UpsertDecoy creates or replaces a decoy
func (s *SQLStore) UpsertDecoy(ctx context.Context, decoy *core.Decoy) error {
	key := NormalizeAddress(decoy.Address)
	if key == "" {
		return fmt.Errorf("decoy address is required")
	}
	createdAt := decoy.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var useCase sql.NullString
	if decoy.UseCase != "" {
		useCase = sql.NullString{String: decoy.UseCase, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.dialect.upsertDecoy,
		key, strings.TrimSpace(decoy.CustomerEmail), useCase, formatTime(createdAt))
	if err != nil {
		return fmt.Errorf("failed to upsert decoy: %w", err)
	}
	return nil
}

// ListDecoys returns every decoy with its event count, newest first
func (s *SQLStore) ListDecoys(ctx context.Context) ([]*core.DecoyStats, error) {
	rows, err := s.db.QueryContext(ctx, listDecoysQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list decoys: %w", err)
	}
	defer rows.Close()

	var decoys []*core.DecoyStats
	for rows.Next() {
		var d core.DecoyStats
		var useCase sql.NullString
		var createdAt string
		if err := rows.Scan(&d.Address, &d.CustomerEmail, &useCase, &createdAt, &d.Alerts); err != nil {
			return nil, fmt.Errorf("failed to scan decoy: %w", err)
		}
		d.UseCase = useCase.String
		d.CreatedAt = s.parseTime(createdAt)
		decoys = append(decoys, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decoys: %w", err)
	}
	return decoys, nil
}

// RecordEvent appends an event and returns its id
func (s *SQLStore) RecordEvent(ctx context.Context, event *core.Event) (int64, error) {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, insertEventQuery,
		event.DecoyAddress, event.Sender, event.IP, event.Subject, formatTime(createdAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		// The row is committed; only the id is unknown
		s.logger.Warn("Failed to read event id", zap.Error(err))
		return 0, nil
	}
	event.ID = id
	return id, nil
}

// RecentEvents returns up to limit events, newest first
func (s *SQLStore) RecentEvents(ctx context.Context, limit int) ([]*core.Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, recentEventsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*core.Event
	for rows.Next() {
		var e core.Event
		var createdAt string
		if err := rows.Scan(&e.ID, &e.DecoyAddress, &e.Sender, &e.IP, &e.Subject, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.CreatedAt = s.parseTime(createdAt)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close %s database: %w", s.dialect.name, err)
	}
	return nil
}

func (s *SQLStore) parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		s.logger.Debug("Failed to parse stored timestamp", zap.String("value", value), zap.Error(err))
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
