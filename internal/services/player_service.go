package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/brandonhuynh1/signage-api/internal/models"
	"github.com/brandonhuynh1/signage-api/internal/utils"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// Activity feed entry types
const (
	ActivityOnline  = "ONLINE"
	ActivityOffline = "OFFLINE"
)

const (
	deviceTokenBytes = 8
	deviceTokenTries = 10
)

// PlayerService manages player devices and their activity feed
type PlayerService struct {
	db       *sqlx.DB
	sessions *SessionService
	events   *EventBus
	logger   zerolog.Logger
	now      func() time.Time
}

// PlayerFilter narrows and orders the player list
type PlayerFilter struct {
	Status    string
	SortBy    string
	SortOrder SortOrder
}

// PlayerInput holds the editable player fields
type PlayerInput struct {
	Name       string
	Location   string
	PlaylistID *int64
	DeviceKey  string
}

// NewPlayerService creates a new player service
func NewPlayerService(db *sqlx.DB, sessions *SessionService, events *EventBus, logger zerolog.Logger) *PlayerService {
	return &PlayerService{
		db:       db,
		sessions: sessions,
		events:   events,
		logger:   logger.With().Str("service", "player").Logger(),
		now:      time.Now,
	}
}

// List returns every player with its latest session. Stale sessions are
// closed first so the status column is current.
func (s *PlayerService) List(ctx context.Context, filter PlayerFilter) ([]models.PlayerRow, error) {
	if _, err := s.sessions.ReconcileStale(ctx); err != nil {
		return nil, err
	}

	var rows []models.PlayerRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT p.id, p.name, p.device_code, p.device_key, p.location, p.linked, p.playlist_id,
			pl.name AS playlist_name,
			ls.started_at AS session_start, ls.ended_at AS session_end, ls.last_active_at AS last_active,
			COALESCE(ls.is_active AND ls.ended_at IS NULL, FALSE) AS session_active
		FROM players p
		LEFT JOIN playlists pl ON pl.id = p.playlist_id
		LEFT JOIN LATERAL (
			SELECT started_at, ended_at, last_active_at, is_active
			FROM player_sessions ps
			WHERE ps.player_id = p.id
			ORDER BY ps.started_at DESC
			LIMIT 1
		) ls ON TRUE
		ORDER BY p.updated_at DESC, p.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	now := s.now()
	out := make([]models.PlayerRow, 0, len(rows))
	for _, r := range rows {
		online := IsOnline(timeOrZero(r.LastActive), r.SessionActive, now, s.sessions.Threshold())
		r.Status = StatusLabel(online)
		r.SessionDurationSec = SessionDurationSec(r.SessionStart, r.SessionEnd, r.LastActive, online, now)
		if filter.Status != "" && !strings.EqualFold(filter.Status, r.Status) {
			continue
		}
		out = append(out, r)
	}

	if filter.SortBy != "" {
		order := filter.SortOrder
		if order == "" {
			order = Desc
		}
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i], out[j]
			switch filter.SortBy {
			case "status":
				return cmpInt64(onlineRank(a.Status), onlineRank(b.Status), order)
			case "duration":
				return cmpInt64(a.SessionDurationSec, b.SessionDurationSec, order)
			case "name":
				return cmpString(a.Name, b.Name, order)
			default:
				return cmpTime(timeOrZero(a.LastActive), timeOrZero(b.LastActive), order)
			}
		})
	}
	return out, nil
}

func onlineRank(status string) int64 {
	if status == StatusOnline {
		return 1
	}
	return 0
}

// uniqueHex draws random 16-char hex tokens until one is unused in column
func (s *PlayerService) uniqueHex(ctx context.Context, column string) (string, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM players WHERE %s = $1)`, column)
	buf := make([]byte, deviceTokenBytes)
	for i := 0; i < deviceTokenTries; i++ {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate %s: %w", column, err)
		}
		value := hex.EncodeToString(buf)
		var taken bool
		if err := s.db.GetContext(ctx, &taken, query, value); err != nil {
			return "", fmt.Errorf("failed to check %s: %w", column, err)
		}
		if !taken {
			return value, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique %s", column)
}

func (s *PlayerService) checkPlaylist(ctx context.Context, playlistID *int64) error {
	if playlistID == nil {
		return nil
	}
	var found bool
	if err := s.db.GetContext(ctx, &found, `SELECT EXISTS (SELECT 1 FROM playlists WHERE id = $1)`, *playlistID); err != nil {
		return fmt.Errorf("failed to check playlist: %w", err)
	}
	if !found {
		return NotFound("Playlist not found")
	}
	return nil
}

func (s *PlayerService) deviceKeyTaken(ctx context.Context, key string, exceptID int64) (bool, error) {
	var taken bool
	err := s.db.GetContext(ctx, &taken, `
		SELECT EXISTS (SELECT 1 FROM players WHERE device_key = $1 AND id <> $2)
	`, key, exceptID)
	if err != nil {
		return false, fmt.Errorf("failed to check device key: %w", err)
	}
	return taken, nil
}

// Create registers a player with a fresh device code. The device key is
// generated unless one is supplied.
func (s *PlayerService) Create(ctx context.Context, in PlayerInput) (*models.Player, error) {
	if err := s.checkPlaylist(ctx, in.PlaylistID); err != nil {
		return nil, err
	}

	deviceCode, err := s.uniqueHex(ctx, "device_code")
	if err != nil {
		return nil, err
	}
	deviceKey := strings.TrimSpace(in.DeviceKey)
	if deviceKey == "" {
		if deviceKey, err = s.uniqueHex(ctx, "device_key"); err != nil {
			return nil, err
		}
	} else {
		taken, err := s.deviceKeyTaken(ctx, deviceKey, 0)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, BadRequest("Device key already in use")
		}
	}

	var player models.Player
	err = s.db.GetContext(ctx, &player, `
		INSERT INTO players (name, location, playlist_id, device_code, device_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, device_code, device_key, location, playlist_id, linked, created_at, updated_at
	`, strings.TrimSpace(in.Name), strings.TrimSpace(in.Location), in.PlaylistID, deviceCode, deviceKey)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, BadRequest("Device key already in use")
		}
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	s.logger.Info().Int64("playerID", player.ID).Msg("Player created")
	return &player, nil
}

// Edit updates a player's details. An empty device key keeps the current one.
func (s *PlayerService) Edit(ctx context.Context, id int64, in PlayerInput) (*models.Player, error) {
	if err := s.checkPlaylist(ctx, in.PlaylistID); err != nil {
		return nil, err
	}
	deviceKey := strings.TrimSpace(in.DeviceKey)
	if deviceKey != "" {
		taken, err := s.deviceKeyTaken(ctx, deviceKey, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, BadRequest("Device key already in use")
		}
	}

	var previous *int64
	var player models.Player
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &previous, `SELECT playlist_id FROM players WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("Player not found")
		}
		if err != nil {
			return fmt.Errorf("failed to get player: %w", err)
		}
		err = tx.GetContext(ctx, &player, `
			UPDATE players
			SET name = $2, location = $3, playlist_id = $4,
				device_key = COALESCE(NULLIF($5, ''), device_key), updated_at = NOW()
			WHERE id = $1
			RETURNING id, name, device_code, device_key, location, playlist_id, linked, created_at, updated_at
		`, id, strings.TrimSpace(in.Name), strings.TrimSpace(in.Location), in.PlaylistID, deviceKey)
		if err != nil {
			if isUniqueViolation(err) {
				return BadRequest("Device key already in use")
			}
			return fmt.Errorf("failed to update player: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !sameID(previous, player.PlaylistID) {
		s.events.Publish(ctx, PlayerEvent{Type: EventPlaylistChanged, PlayerID: player.ID, PlaylistID: player.PlaylistID, At: s.now()})
	}
	return &player, nil
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Delete removes a player and its sessions. Its play logs are kept.
func (s *PlayerService) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM players WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NotFound("Player not found")
	}
	s.logger.Info().Int64("playerID", id).Msg("Player deleted")
	return nil
}

// AssignPlaylist points a player at a playlist
func (s *PlayerService) AssignPlaylist(ctx context.Context, playerID, playlistID int64) (*models.Player, error) {
	if err := s.checkPlaylist(ctx, &playlistID); err != nil {
		return nil, err
	}
	var player models.Player
	err := s.db.GetContext(ctx, &player, `
		UPDATE players SET playlist_id = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, device_code, device_key, location, playlist_id, linked, created_at, updated_at
	`, playerID, playlistID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("Player not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to assign playlist: %w", err)
	}
	s.events.Publish(ctx, PlayerEvent{Type: EventPlaylistChanged, PlayerID: player.ID, PlaylistID: player.PlaylistID, At: s.now()})
	return &player, nil
}

type activityRow struct {
	Type       string    `db:"type"`
	SessionID  int64     `db:"session_id"`
	PlayerID   int64     `db:"player_id"`
	PlayerName string    `db:"player_name"`
	At         time.Time `db:"at"`
}

// ActivityMessage renders a feed entry, e.g. "Lobby came online at 3:04 PM"
func ActivityMessage(kind, name string, at time.Time) string {
	verb := "came online"
	if kind == ActivityOffline {
		verb = "went offline"
	}
	return fmt.Sprintf("%s %s at %s", name, verb, utils.ClockLabel(at))
}

// Activity returns the online/offline feed derived from sessions, newest first
func (s *PlayerService) Activity(ctx context.Context, offset, limit int) ([]models.ActivityItem, models.Pagination, error) {
	var total int
	err := s.db.GetContext(ctx, &total, `
		SELECT (SELECT COUNT(*) FROM player_sessions)
			+ (SELECT COUNT(*) FROM player_sessions WHERE ended_at IS NOT NULL)
	`)
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to count activity: %w", err)
	}

	var rows []activityRow
	err = s.db.SelectContext(ctx, &rows, `
		SELECT 'ONLINE' AS type, ps.id AS session_id, p.id AS player_id, p.name AS player_name, ps.started_at AS at
		FROM player_sessions ps JOIN players p ON p.id = ps.player_id
		UNION ALL
		SELECT 'OFFLINE', ps.id, p.id, p.name, ps.ended_at
		FROM player_sessions ps JOIN players p ON p.id = ps.player_id
		WHERE ps.ended_at IS NOT NULL
		ORDER BY at DESC, session_id DESC, type
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to list activity: %w", err)
	}

	items := make([]models.ActivityItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, models.ActivityItem{
			ID:         fmt.Sprintf("%s-%d", strings.ToLower(r.Type), r.SessionID),
			Type:       r.Type,
			PlayerID:   r.PlayerID,
			PlayerName: r.PlayerName,
			At:         r.At,
			Message:    ActivityMessage(r.Type, r.PlayerName, r.At),
		})
	}
	return items, models.NewPagination(total, limit, offset), nil
}
