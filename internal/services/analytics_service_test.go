package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brandonhuynh1/signage-api/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortLogRows(t *testing.T) {
	early := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	rows := func() []models.LogRow {
		return []models.LogRow{
			{ID: 1, Name: "beta", LastPlayedAt: &early, TotalRunTimeSec: 30, Devices: 2, Plays: 9},
			{ID: 2, Name: "alpha", LastPlayedAt: nil, TotalRunTimeSec: 90, Devices: 1, Plays: 3},
			{ID: 3, Name: "gamma", LastPlayedAt: &late, TotalRunTimeSec: 10, Devices: 3, Plays: 6},
		}
	}
	ids := func(rs []models.LogRow) []int64 {
		out := make([]int64, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}

	tests := []struct {
		sortBy string
		order  SortOrder
		want   []int64
	}{
		{"", "", []int64{3, 1, 2}},
		{"lastPlayed", Asc, []int64{2, 1, 3}},
		{"totalRunTime", Desc, []int64{2, 1, 3}},
		{"devices", Asc, []int64{2, 1, 3}},
		{"plays", Desc, []int64{1, 3, 2}},
		{"name", Asc, []int64{2, 1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.sortBy+"/"+string(tt.order), func(t *testing.T) {
			rs := rows()
			SortLogRows(rs, tt.sortBy, tt.order)
			assert.Equal(t, tt.want, ids(rs))
		})
	}
}

func TestSummary(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	db, mock := newMockDB(t)
	mock.MatchExpectationsInOrder(false)

	sessions := NewSessionService(db, nil, 5*time.Minute, zerolog.Nop())
	sessions.now = func() time.Time { return now }
	svc := NewAnalyticsService(db, sessions, nil, zerolog.Nop())

	mock.ExpectQuery(regexp.QuoteMeta("SET ended_at = last_active_at")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "player_id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM folders WHERE NOT is_deleted")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM players")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT player_id) FROM player_sessions")).
		WithArgs(now.Add(-5 * time.Minute)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	summary, err := svc.Summary(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.AnalyticsSummary{TotalFolders: 4, Players: 7, Online: 5, Offline: 2}, *summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDayBounds(t *testing.T) {
	from, to := dayBounds("2024-03-05")
	require.NotNil(t, from)
	require.NotNil(t, to)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), from.UTC())
	assert.Equal(t, 24*time.Hour, to.Sub(*from))

	from, to = dayBounds("")
	assert.Nil(t, from)
	assert.Nil(t, to)
}
