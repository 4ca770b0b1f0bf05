package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mikey/decoy-alerts/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockMySQLStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS decoys").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS events").WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := NewMySQLStoreFromDB(db, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return s, mock
}

func TestMySQLStore_SchemaFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS decoys").WillReturnError(errors.New("access denied"))
	mock.ExpectClose()

	_, err = NewMySQLStoreFromDB(db, zap.NewNop())
	assert.ErrorContains(t, err, "failed to create mysql schema")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_UpsertUsesOnDuplicateKey(t *testing.T) {
	s, mock := newMockMySQLStore(t)

	mock.ExpectExec("INSERT INTO decoys .* ON DUPLICATE KEY UPDATE").
		WithArgs("jane@decoy.test", "owner@company.test", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertDecoy(context.Background(), &core.Decoy{
		Address:       "Jane@decoy.test",
		CustomerEmail: "owner@company.test",
		UseCase:       "legal",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_LookupDecoy(t *testing.T) {
	s, mock := newMockMySQLStore(t)

	mock.ExpectQuery("SELECT customer_email, use_case, created_at FROM decoys").
		WithArgs("jane@decoy.test").
		WillReturnRows(sqlmock.NewRows([]string{"customer_email", "use_case", "created_at"}).
			AddRow("owner@company.test", nil, "2026-10-14T09:00:00Z"))
	mock.ExpectQuery("SELECT customer_email, use_case, created_at FROM decoys").
		WithArgs("unknown@nowhere.test").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT customer_email, use_case, created_at FROM decoys").
		WithArgs("jane@decoy.test").
		WillReturnError(errors.New("connection reset"))

	d, err := s.LookupDecoy(context.Background(), "jane@decoy.test")
	require.NoError(t, err)
	assert.Equal(t, "owner@company.test", d.CustomerEmail)
	assert.Equal(t, "", d.UseCase)
	assert.Equal(t, 2026, d.CreatedAt.Year())

	_, err = s.LookupDecoy(context.Background(), "unknown@nowhere.test")
	assert.ErrorIs(t, err, core.ErrDecoyNotFound)

	_, err = s.LookupDecoy(context.Background(), "jane@decoy.test")
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrDecoyNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_RecordEvent(t *testing.T) {
	s, mock := newMockMySQLStore(t)

	mock.ExpectExec("INSERT INTO events").
		WithArgs("jane@decoy.test", "attacker@evil.test", "203.0.113.5", "Confidential Contract", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec("INSERT INTO events").
		WillReturnError(errors.New("table is read only"))

	event := &core.Event{
		DecoyAddress: "jane@decoy.test",
		Sender:       "attacker@evil.test",
		IP:           "203.0.113.5",
		Subject:      "Confidential Contract",
	}
	id, err := s.RecordEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int64(42), event.ID)

	_, err = s.RecordEvent(context.Background(), &core.Event{DecoyAddress: "jane@decoy.test"})
	assert.ErrorContains(t, err, "failed to insert event")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_RecordEventUnknownID(t *testing.T) {
	s, mock := newMockMySQLStore(t)

	mock.ExpectExec("INSERT INTO events").
		WillReturnResult(sqlmock.NewErrorResult(errors.New("LastInsertId is not supported")))

	event := &core.Event{DecoyAddress: "jane@decoy.test", Sender: "attacker@evil.test"}
	id, err := s.RecordEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.Zero(t, event.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
