package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/brandonhuynh1/signage-api/internal/models"
	"github.com/brandonhuynh1/signage-api/internal/utils"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Page sizes for analytics listings
const (
	DefaultLogLimit    = 20
	MaxLogLimit        = 100
	TopLimit           = 5
	RecentSessionLimit = 50
)

// playsCTE expands play logs with the run time of each play: the slot
// duration, else the matching slot inside the sub-playlist, else the file's
// own duration. $1 and $2 bound created_at and may be NULL.
const playsCTE = `
	WITH plays AS (
		SELECT pl.id, pl.player_id, pl.file_id, pl.playlist_id, pl.playlist_file_id, pl.created_at,
			COALESCE(pf.duration, spf.duration, f.duration, 0)::double precision AS run_time
		FROM play_logs pl
		LEFT JOIN playlist_files pf ON pf.id = pl.playlist_file_id AND NOT pl.is_sub_playlist
		LEFT JOIN LATERAL (
			SELECT s.duration FROM playlist_files s
			WHERE pl.is_sub_playlist AND s.playlist_id = pl.sub_playlist_id AND s.file_id = pl.file_id
			ORDER BY s.play_order
			LIMIT 1
		) spf ON TRUE
		LEFT JOIN files f ON f.id = pl.file_id
		WHERE ($1::timestamptz IS NULL OR pl.created_at >= $1)
			AND ($2::timestamptz IS NULL OR pl.created_at < $2)
	)`

// latestSessionJoin attaches the most recent session of player alias pr
const latestSessionJoin = `
	LEFT JOIN LATERAL (
		SELECT started_at, ended_at, last_active_at, is_active
		FROM player_sessions lps
		WHERE lps.player_id = pr.id
		ORDER BY lps.started_at DESC
		LIMIT 1
	) ls ON TRUE`

// AnalyticsService aggregates play logs and sessions for the dashboard
type AnalyticsService struct {
	db       *sqlx.DB
	sessions *SessionService
	signer   URLSigner
	logger   zerolog.Logger
	now      func() time.Time
	loc      *time.Location
}

// LogQuery selects, filters and pages a play-log view
type LogQuery struct {
	Range      utils.DayRange
	Search     string
	SortBy     string
	SortOrder  SortOrder
	Offset     int
	Limit      int
	FolderID   *int64
	PlaylistID *int64
}

// LogPage is one page of a play-log view
type LogPage struct {
	Items      []models.LogRow   `json:"items"`
	Pagination models.Pagination `json:"pagination"`
}

// PlayerStatsPage is one page of per-player stats for a folder
type PlayerStatsPage struct {
	Items      []models.PlayerStat `json:"items"`
	Pagination models.Pagination   `json:"pagination"`
	Meta       PlayerStatsMeta     `json:"meta"`
}

// PlayerStatsMeta describes a player stats page
type PlayerStatsMeta struct {
	TotalPlayers int    `json:"totalPlayers"`
	Date         string `json:"date,omitempty"`
}

// PlayerLogPage is one page of per-player session activity
type PlayerLogPage struct {
	Items      []models.PlayerLogRow `json:"items"`
	Pagination models.Pagination     `json:"pagination"`
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(db *sqlx.DB, sessions *SessionService, signer URLSigner, logger zerolog.Logger) *AnalyticsService {
	return &AnalyticsService{
		db:       db,
		sessions: sessions,
		signer:   signer,
		logger:   logger.With().Str("service", "analytics").Logger(),
		now:      time.Now,
		loc:      time.Local,
	}
}

// LocalRange parses inclusive local-day bounds, defaulting to this month
func (s *AnalyticsService) LocalRange(startDate, endDate string) utils.DayRange {
	return utils.ParseLocalRange(startDate, endDate, s.now(), s.loc)
}

// Summary counts folders and players after closing stale sessions
func (s *AnalyticsService) Summary(ctx context.Context) (*models.AnalyticsSummary, error) {
	if _, err := s.sessions.ReconcileStale(ctx); err != nil {
		return nil, err
	}

	var summary models.AnalyticsSummary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.db.GetContext(gctx, &summary.TotalFolders, `SELECT COUNT(*) FROM folders WHERE NOT is_deleted`); err != nil {
			return fmt.Errorf("failed to count folders: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.db.GetContext(gctx, &summary.Players, `SELECT COUNT(*) FROM players`); err != nil {
			return fmt.Errorf("failed to count players: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		n, err := s.sessions.CountOnline(gctx)
		summary.Online = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.Offline = summary.Players - summary.Online
	if summary.Offline < 0 {
		summary.Offline = 0
	}
	return &summary, nil
}

func dayBounds(date string) (*time.Time, *time.Time) {
	day, ok := utils.ParseUTCDay(date)
	if !ok {
		return nil, nil
	}
	return &day.Start, &day.End
}

// TopClients ranks live folders by plays on a UTC day, or all time
func (s *AnalyticsService) TopClients(ctx context.Context, date string) ([]models.TopClient, error) {
	from, to := dayBounds(date)
	items := []models.TopClient{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT fo.id AS folder_id, fo.name AS folder_name, COUNT(*) AS ads_played
		FROM play_logs pl
		JOIN files f ON f.id = pl.file_id
		JOIN folders fo ON fo.id = f.folder_id
		WHERE NOT fo.is_deleted
			AND ($1::timestamptz IS NULL OR pl.created_at >= $1)
			AND ($2::timestamptz IS NULL OR pl.created_at < $2)
		GROUP BY fo.id, fo.name
		ORDER BY ads_played DESC, fo.id
		LIMIT $3
	`, from, to, TopLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top clients: %w", err)
	}
	return items, nil
}

// TopPlayers ranks players by plays on a UTC day, or all time
func (s *AnalyticsService) TopPlayers(ctx context.Context, date string) ([]models.TopPlayer, error) {
	from, to := dayBounds(date)
	items := []models.TopPlayer{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT pl.player_id, COALESCE(p.name, 'Unknown') AS player_name, COUNT(*) AS ads_played
		FROM play_logs pl
		LEFT JOIN players p ON p.id = pl.player_id
		WHERE pl.player_id IS NOT NULL
			AND ($1::timestamptz IS NULL OR pl.created_at >= $1)
			AND ($2::timestamptz IS NULL OR pl.created_at < $2)
		GROUP BY pl.player_id, p.name
		ORDER BY ads_played DESC, pl.player_id
		LIMIT $3
	`, from, to, TopLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top players: %w", err)
	}
	return items, nil
}

func (s *AnalyticsService) decorateSessions(rows []models.SessionRow) {
	now := s.now()
	for i := range rows {
		r := &rows[i]
		online := IsOnline(r.LastActive, r.IsActive && r.SessionEnd == nil, now, s.sessions.Threshold())
		r.Status = StatusLabel(online)
		last := r.LastActive
		r.SessionDurationSec = SessionDurationSec(&r.SessionStart, r.SessionEnd, &last, online, now)
	}
}

// RecentSessions returns the latest sessions that touch a UTC day, or the
// latest overall
func (s *AnalyticsService) RecentSessions(ctx context.Context, date, sortBy string, order SortOrder) ([]models.SessionRow, error) {
	from, to := dayBounds(date)
	rows := []models.SessionRow{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT ps.id, ps.player_id, p.name, ps.started_at, ps.ended_at, ps.last_active_at, ps.is_active
		FROM player_sessions ps
		JOIN players p ON p.id = ps.player_id
		WHERE $1::timestamptz IS NULL
			OR (ps.started_at >= $1 AND ps.started_at < $2::timestamptz)
			OR (ps.last_active_at >= $1 AND ps.last_active_at < $2::timestamptz)
			OR (ps.ended_at >= $1 AND ps.ended_at < $2::timestamptz)
		ORDER BY ps.started_at DESC
		LIMIT $3
	`, from, to, RecentSessionLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent sessions: %w", err)
	}
	s.decorateSessions(rows)

	if order == "" {
		order = Desc
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch sortBy {
		case "name":
			return cmpString(a.Name, b.Name, order)
		case "status":
			return cmpString(a.Status, b.Status, order)
		default:
			return cmpTime(a.LastActive, b.LastActive, order)
		}
	})
	return rows, nil
}

// FolderLogs aggregates plays per live folder
func (s *AnalyticsService) FolderLogs(ctx context.Context, q LogQuery) (*LogPage, error) {
	var rows []models.LogRow
	err := s.db.SelectContext(ctx, &rows, playsCTE+`
		SELECT fo.id, fo.name,
			MAX(p.created_at) AS last_played_at,
			COALESCE(SUM(p.run_time), 0) AS total_run_time_sec,
			COUNT(DISTINCT p.player_id) AS devices,
			COUNT(p.id) AS plays
		FROM folders fo
		LEFT JOIN files f ON f.folder_id = fo.id
		LEFT JOIN plays p ON p.file_id = f.id
		WHERE NOT fo.is_deleted
		GROUP BY fo.id, fo.name
	`, q.Range.Start, q.Range.End)
	if err != nil {
		return nil, fmt.Errorf("failed to get folder logs: %w", err)
	}
	return s.logPage(ctx, rows, q), nil
}

// FileLogs aggregates plays per live file, optionally within one folder
func (s *AnalyticsService) FileLogs(ctx context.Context, q LogQuery) (*LogPage, error) {
	var rows []models.LogRow
	err := s.db.SelectContext(ctx, &rows, playsCTE+`
		SELECT f.id, f.name, f.file_type, f.file_key,
			MAX(p.created_at) AS last_played_at,
			COALESCE(SUM(p.run_time), 0) AS total_run_time_sec,
			COUNT(DISTINCT p.player_id) AS devices,
			COUNT(p.id) AS plays
		FROM files f
		LEFT JOIN plays p ON p.file_id = f.id
		WHERE NOT f.is_deleted AND ($3::bigint IS NULL OR f.folder_id = $3)
		GROUP BY f.id, f.name, f.file_type, f.file_key
	`, q.Range.Start, q.Range.End, q.FolderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file logs: %w", err)
	}
	return s.logPage(ctx, rows, q), nil
}

// PlaylistFileLogs aggregates plays per slot of one playlist
func (s *AnalyticsService) PlaylistFileLogs(ctx context.Context, q LogQuery) (*LogPage, error) {
	if q.PlaylistID == nil {
		return nil, BadRequest("playlistId is required")
	}
	var found bool
	if err := s.db.GetContext(ctx, &found, `SELECT EXISTS (SELECT 1 FROM playlists WHERE id = $1)`, *q.PlaylistID); err != nil {
		return nil, fmt.Errorf("failed to check playlist: %w", err)
	}
	if !found {
		return nil, NotFound("Playlist not found")
	}

	var rows []models.LogRow
	err := s.db.SelectContext(ctx, &rows, playsCTE+`
		SELECT COALESCE(pf.file_id, pf.sub_playlist_id) AS id,
			COALESCE(f.name, sp.name, '') AS name,
			CASE WHEN pf.sub_playlist_id IS NOT NULL THEN 'subPlaylist' ELSE f.file_type END AS file_type,
			f.file_key,
			pf.id AS playlist_file_id,
			MAX(p.created_at) AS last_played_at,
			COALESCE(SUM(p.run_time), 0) AS total_run_time_sec,
			COUNT(DISTINCT p.player_id) AS devices,
			COUNT(p.id) AS plays
		FROM playlist_files pf
		LEFT JOIN files f ON f.id = pf.file_id
		LEFT JOIN playlists sp ON sp.id = pf.sub_playlist_id
		LEFT JOIN plays p ON p.playlist_file_id = pf.id
		WHERE pf.playlist_id = $3
		GROUP BY pf.id, pf.file_id, pf.sub_playlist_id, f.name, sp.name, f.file_type, f.file_key
	`, q.Range.Start, q.Range.End, *q.PlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist file logs: %w", err)
	}
	return s.logPage(ctx, rows, q), nil
}

// PlaylistLogs aggregates plays per playlist
func (s *AnalyticsService) PlaylistLogs(ctx context.Context, q LogQuery) (*LogPage, error) {
	var rows []models.LogRow
	err := s.db.SelectContext(ctx, &rows, playsCTE+`
		SELECT pl.id, pl.name,
			MAX(p.created_at) AS last_played_at,
			COALESCE(SUM(p.run_time), 0) AS total_run_time_sec,
			COUNT(DISTINCT p.player_id) AS devices,
			COUNT(p.id) AS plays
		FROM playlists pl
		LEFT JOIN plays p ON p.playlist_id = pl.id
		GROUP BY pl.id, pl.name
	`, q.Range.Start, q.Range.End)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist logs: %w", err)
	}
	return s.logPage(ctx, rows, q), nil
}

// logPage filters, sorts and pages rows, then signs the page's files
func (s *AnalyticsService) logPage(ctx context.Context, rows []models.LogRow, q LogQuery) *LogPage {
	filtered := make([]models.LogRow, 0, len(rows))
	for _, r := range rows {
		if containsFold(r.Name, q.Search) {
			r.TotalRunTimeSec = round2(r.TotalRunTimeSec)
			filtered = append(filtered, r)
		}
	}
	SortLogRows(filtered, q.SortBy, q.SortOrder)

	limit := ClampLimit(q.Limit, DefaultLogLimit, MaxLogLimit)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	items := page(filtered, offset, limit)
	for i := range items {
		if items[i].FileKey != nil {
			items[i].SignedURL = signedURL(ctx, s.signer, s.logger, *items[i].FileKey)
		}
	}
	return &LogPage{Items: items, Pagination: models.NewPagination(len(filtered), limit, offset)}
}

// SortLogRows orders rows by lastPlayed (default), totalRunTime, devices,
// plays or name
func SortLogRows(rows []models.LogRow, sortBy string, order SortOrder) {
	if order == "" {
		order = Desc
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch sortBy {
		case "totalRunTime":
			return cmpFloat(a.TotalRunTimeSec, b.TotalRunTimeSec, order)
		case "devices":
			return cmpInt64(a.Devices, b.Devices, order)
		case "plays":
			return cmpInt64(a.Plays, b.Plays, order)
		case "name":
			return cmpString(a.Name, b.Name, order)
		default:
			return cmpTime(timeOrZero(a.LastPlayedAt), timeOrZero(b.LastPlayedAt), order)
		}
	})
}

// PlayerStats reports per-player plays of one folder's files on a UTC day,
// or all time
func (s *AnalyticsService) PlayerStats(ctx context.Context, folderID int64, date string, offset, limit int) (*PlayerStatsPage, error) {
	var found bool
	if err := s.db.GetContext(ctx, &found, `SELECT EXISTS (SELECT 1 FROM folders WHERE id = $1 AND NOT is_deleted)`, folderID); err != nil {
		return nil, fmt.Errorf("failed to check folder: %w", err)
	}
	if !found {
		return nil, NotFound("Folder not found")
	}

	from, to := dayBounds(date)
	var rows []models.PlayerStat
	err := s.db.SelectContext(ctx, &rows, playsCTE+`
		SELECT pr.id AS player_id, pr.name, ls.last_active_at AS last_active,
			COALESCE(ls.is_active AND ls.ended_at IS NULL, FALSE) AS session_live,
			COUNT(p.id) AS plays,
			COALESCE(SUM(p.run_time), 0) AS run_time_sec,
			MAX(p.created_at) AS last_played_at
		FROM plays p
		JOIN files f ON f.id = p.file_id
		JOIN players pr ON pr.id = p.player_id
		`+latestSessionJoin+`
		WHERE f.folder_id = $3
		GROUP BY pr.id, pr.name, ls.last_active_at, ls.is_active, ls.ended_at
		ORDER BY plays DESC, pr.id
	`, from, to, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player stats: %w", err)
	}

	now := s.now()
	for i := range rows {
		r := &rows[i]
		r.TotalHours = round2(r.RunTimeSec / 3600)
		r.Status = StatusLabel(IsOnline(timeOrZero(r.LastActive), r.SessionLive, now, s.sessions.Threshold()))
	}

	limit = ClampLimit(limit, DefaultLogLimit, MaxLogLimit)
	if offset < 0 {
		offset = 0
	}
	result := &PlayerStatsPage{
		Items:      page(rows, offset, limit),
		Pagination: models.NewPagination(len(rows), limit, offset),
		Meta:       PlayerStatsMeta{TotalPlayers: len(rows)},
	}
	if from != nil {
		result.Meta.Date = from.Format("2006-01-02")
	}
	return result, nil
}

// PlayerLogs reports each player's latest session in the range and the
// session time that falls inside it
func (s *AnalyticsService) PlayerLogs(ctx context.Context, q LogQuery) (*PlayerLogPage, error) {
	var rows []models.PlayerLogRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT pr.id, pr.name,
			ls.started_at AS session_start, ls.ended_at AS session_end, ls.last_active_at AS last_active,
			COALESCE(ls.is_active AND ls.ended_at IS NULL, FALSE) AS session_live,
			COALESCE((
				SELECT SUM(GREATEST(0, EXTRACT(EPOCH FROM (
					LEAST(COALESCE(s.ended_at, s.last_active_at), $2::timestamptz) - GREATEST(s.started_at, $1::timestamptz)
				))))
				FROM player_sessions s
				WHERE s.player_id = pr.id AND s.started_at < $2 AND COALESCE(s.ended_at, s.last_active_at) >= $1
			), 0)::double precision AS total_run_time_sec
		FROM players pr
		LEFT JOIN LATERAL (
			SELECT started_at, ended_at, last_active_at, is_active
			FROM player_sessions s
			WHERE s.player_id = pr.id AND s.started_at < $2 AND COALESCE(s.ended_at, s.last_active_at) >= $1
			ORDER BY s.started_at DESC
			LIMIT 1
		) ls ON TRUE
		ORDER BY pr.name, pr.id
	`, q.Range.Start, q.Range.End)
	if err != nil {
		return nil, fmt.Errorf("failed to get player logs: %w", err)
	}

	now := s.now()
	filtered := make([]models.PlayerLogRow, 0, len(rows))
	for _, r := range rows {
		if !containsFold(r.Name, q.Search) {
			continue
		}
		r.Status = StatusLabel(IsOnline(timeOrZero(r.LastActive), r.SessionLive, now, s.sessions.Threshold()))
		r.TotalRunTimeSec = round2(r.TotalRunTimeSec)
		filtered = append(filtered, r)
	}

	limit := ClampLimit(q.Limit, DefaultLogLimit, MaxLogLimit)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	return &PlayerLogPage{
		Items:      page(filtered, offset, limit),
		Pagination: models.NewPagination(len(filtered), limit, offset),
	}, nil
}

// PlayerSessions lists one player's sessions overlapping the range
func (s *AnalyticsService) PlayerSessions(ctx context.Context, playerID int64, r utils.DayRange) ([]models.SessionRow, error) {
	var name string
	err := s.db.GetContext(ctx, &name, `SELECT name FROM players WHERE id = $1`, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("Player not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	rows := []models.SessionRow{}
	err = s.db.SelectContext(ctx, &rows, `
		SELECT ps.id, ps.player_id, p.name, ps.started_at, ps.ended_at, ps.last_active_at, ps.is_active
		FROM player_sessions ps
		JOIN players p ON p.id = ps.player_id
		WHERE ps.player_id = $1 AND ps.started_at < $3 AND COALESCE(ps.ended_at, ps.last_active_at) >= $2
		ORDER BY ps.started_at DESC
	`, playerID, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("failed to get player sessions: %w", err)
	}
	s.decorateSessions(rows)
	return rows, nil
}
