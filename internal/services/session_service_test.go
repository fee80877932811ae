package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionCols = []string{"id", "player_id", "started_at", "ended_at", "last_active_at", "is_active", "created_at", "updated_at"}

func TestIsOnline(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	threshold := 5 * time.Minute

	tests := []struct {
		name   string
		last   time.Time
		active bool
		want   bool
	}{
		{"fresh heartbeat", now.Add(-time.Minute), true, true},
		{"exactly at threshold", now.Add(-threshold), true, true},
		{"stale heartbeat", now.Add(-threshold - time.Second), true, false},
		{"ended session", now, false, false},
		{"no heartbeat", time.Time{}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOnline(tt.last, tt.active, now, threshold))
		})
	}
}

func TestSessionDurationSec(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)
	end := now.Add(-30 * time.Minute)
	last := now.Add(-40 * time.Minute)

	assert.EqualValues(t, 3600, SessionDurationSec(&start, nil, &last, true, now))
	assert.EqualValues(t, 1800, SessionDurationSec(&start, &end, &last, false, now))
	assert.EqualValues(t, 1200, SessionDurationSec(&start, nil, &last, false, now))
	assert.EqualValues(t, 0, SessionDurationSec(nil, &end, &last, false, now))
	assert.EqualValues(t, 0, SessionDurationSec(&end, &start, nil, false, now))
}

func newSessionService(t *testing.T, now time.Time) (*SessionService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	svc := NewSessionService(db, nil, 5*time.Minute, zerolog.Nop())
	svc.now = func() time.Time { return now }
	return svc, mock
}

func expectLockPlayer(mock sqlmock.Sqlmock, code string, id int64) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM players WHERE device_code = $1 FOR UPDATE")).
		WithArgs(code).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
}

func TestStartCreatesSession(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc, mock := newSessionService(t, now)

	mock.ExpectBegin()
	expectLockPlayer(mock, "abc", 3)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY started_at DESC")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(sessionCols))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO player_sessions")).
		WithArgs(3, now).
		WillReturnRows(sqlmock.NewRows(sessionCols).AddRow(20, 3, now, nil, now, true, now, now))
	mock.ExpectCommit()

	result, err := svc.Start(context.Background(), "abc", false)

	require.NoError(t, err)
	assert.Equal(t, "Session started", result.Message)
	assert.EqualValues(t, 20, result.Session.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartKeepsLiveSession(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc, mock := newSessionService(t, now)
	started := now.Add(-time.Hour)
	last := now.Add(-time.Minute)

	mock.ExpectBegin()
	expectLockPlayer(mock, "abc", 3)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY started_at DESC")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(sessionCols).AddRow(11, 3, started, nil, last, true, started, last))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE player_sessions SET last_active_at = $2")).
		WithArgs(11, now).
		WillReturnRows(sqlmock.NewRows(sessionCols).AddRow(11, 3, started, nil, now, true, started, now))
	mock.ExpectCommit()

	result, err := svc.Start(context.Background(), "abc", false)

	require.NoError(t, err)
	assert.Equal(t, "Session already active", result.Message)
	assert.Equal(t, now, result.Session.LastActiveAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartClosesStaleSessionAtLastHeartbeat(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc, mock := newSessionService(t, now)
	started := now.Add(-2 * time.Hour)
	last := now.Add(-time.Hour)

	mock.ExpectBegin()
	expectLockPlayer(mock, "abc", 3)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY started_at DESC")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(sessionCols).AddRow(11, 3, started, nil, last, true, started, last))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE player_sessions SET ended_at = $2, is_active = FALSE, updated_at = $3")).
		WithArgs(11, last, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO player_sessions")).
		WithArgs(3, now).
		WillReturnRows(sqlmock.NewRows(sessionCols).AddRow(12, 3, now, nil, now, true, now, now))
	mock.ExpectCommit()

	result, err := svc.Start(context.Background(), "abc", false)

	require.NoError(t, err)
	assert.Equal(t, "Session started", result.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartForceNewEndsLiveSessionNow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc, mock := newSessionService(t, now)
	started := now.Add(-time.Hour)
	last := now.Add(-time.Minute)

	mock.ExpectBegin()
	expectLockPlayer(mock, "abc", 3)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY started_at DESC")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(sessionCols).AddRow(11, 3, started, nil, last, true, started, last))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE player_sessions SET ended_at = $2")).
		WithArgs(11, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO player_sessions")).
		WithArgs(3, now).
		WillReturnRows(sqlmock.NewRows(sessionCols).AddRow(12, 3, now, nil, now, true, now, now))
	mock.ExpectCommit()

	_, err := svc.Start(context.Background(), "abc", true)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartUnknownDevice(t *testing.T) {
	svc, mock := newSessionService(t, time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM players WHERE device_code = $1 FOR UPDATE")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := svc.Start(context.Background(), "nope", false)

	svcErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "Player not found", svcErr.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEndAllSessions(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc, mock := newSessionService(t, now)

	mock.ExpectBegin()
	expectLockPlayer(mock, "abc", 3)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE player_id = $1 AND is_active AND ended_at IS NULL\n\t\t\t\tRETURNING id")).
		WithArgs(3, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4).AddRow(5))
	mock.ExpectCommit()

	n, err := svc.End(context.Background(), "abc", true)

	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileStaleUsesThresholdCutoff(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc, mock := newSessionService(t, now)

	mock.ExpectQuery(regexp.QuoteMeta("SET ended_at = last_active_at, is_active = FALSE")).
		WithArgs(now.Add(-5 * time.Minute)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "player_id"}).AddRow(1, 3).AddRow(2, 4))

	n, err := svc.ReconcileStale(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
