package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brandonhuynh1/signage-api/internal/metrics"
	"github.com/brandonhuynh1/signage-api/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// MaxPlaylistDepth bounds sub-playlist expansion for devices
const MaxPlaylistDepth = 5

// TVAppService serves the device-facing API
type TVAppService struct {
	db       *sqlx.DB
	sessions *SessionService
	signer   URLSigner
	logger   zerolog.Logger
	now      func() time.Time
}

// LinkedPlayer is what a device learns about itself when linking
type LinkedPlayer struct {
	ID         int64   `json:"id" db:"id"`
	DeviceCode string  `json:"deviceCode" db:"device_code"`
	PlaylistID *int64  `json:"playlistId" db:"playlist_id"`
	Location   *string `json:"location" db:"location"`
	Linked     bool    `json:"linked" db:"linked"`
}

// LinkResult is returned by Link
type LinkResult struct {
	Message string        `json:"message"`
	Player  *LinkedPlayer `json:"player"`
}

// PlayLogInput is a playback report from a device
type PlayLogInput struct {
	FileID         int64  `json:"fileId"`
	PlaylistID     *int64 `json:"playlistId"`
	PlaylistFileID *int64 `json:"playlistFileId"`
	SubPlaylistID  *int64 `json:"subPlaylistId"`
	IsSubPlaylist  bool   `json:"isSubPlaylist"`
}

// NewTVAppService creates a new device API service
func NewTVAppService(db *sqlx.DB, sessions *SessionService, signer URLSigner, logger zerolog.Logger) *TVAppService {
	return &TVAppService{
		db:       db,
		sessions: sessions,
		signer:   signer,
		logger:   logger.With().Str("service", "tvapp").Logger(),
		now:      time.Now,
	}
}

// Link authenticates a device by name and key, marking it linked on first use
func (s *TVAppService) Link(ctx context.Context, deviceName, deviceKey string) (*LinkResult, error) {
	var player LinkedPlayer
	err := s.db.GetContext(ctx, &player, `
		SELECT id, device_code, playlist_id, location, linked
		FROM players WHERE name = $1 AND device_key = $2
		ORDER BY id LIMIT 1
	`, deviceName, deviceKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("Player not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}

	message := "Player Authenticated Successfully"
	if !player.Linked {
		if _, err := s.db.ExecContext(ctx, `UPDATE players SET linked = TRUE, updated_at = NOW() WHERE id = $1`, player.ID); err != nil {
			return nil, fmt.Errorf("failed to link player: %w", err)
		}
		message = "Player linked successfully"
		s.logger.Info().Int64("playerID", player.ID).Msg("Player linked")
	}
	player.Linked = true
	return &LinkResult{Message: message, Player: &player}, nil
}

// Playlist returns the device's playlist, or a descendant of it when
// requested is set. A player without a playlist gets nil.
func (s *TVAppService) Playlist(ctx context.Context, deviceCode string, requested *int64) (*models.TVPlaylist, error) {
	var assigned *int64
	err := s.db.GetContext(ctx, &assigned, `SELECT playlist_id FROM players WHERE device_code = $1`, deviceCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("Player not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	if assigned == nil {
		return nil, nil
	}

	target := *assigned
	if requested != nil && *requested != target {
		var reachable bool
		err := s.db.GetContext(ctx, &reachable, `
			WITH RECURSIVE descendants(id) AS (
				SELECT $1::bigint
				UNION
				SELECT pf.sub_playlist_id
				FROM playlist_files pf
				JOIN descendants d ON pf.playlist_id = d.id
				WHERE pf.sub_playlist_id IS NOT NULL
			)
			SELECT EXISTS (SELECT 1 FROM descendants WHERE id = $2)
		`, target, *requested)
		if err != nil {
			return nil, fmt.Errorf("failed to check playlist: %w", err)
		}
		if !reachable {
			return nil, BadRequest("Playlist is not assigned to this player")
		}
		target = *requested
	}

	return s.buildPlaylist(ctx, target, 1, map[int64]bool{})
}

type tvItemRow struct {
	ID            int64    `db:"id"`
	PlayOrder     int      `db:"play_order"`
	Duration      int      `db:"duration"`
	IsSubPlaylist bool     `db:"is_sub_playlist"`
	FileID        *int64   `db:"file_id"`
	SubPlaylistID *int64   `db:"sub_playlist_id"`
	FileName      *string  `db:"file_name"`
	FileType      *string  `db:"file_type"`
	FileKey       *string  `db:"file_key"`
	FileSize      *int64   `db:"file_size"`
	FileDuration  *float64 `db:"file_duration"`
	FileDeleted   bool     `db:"file_deleted"`
}

func (s *TVAppService) buildPlaylist(ctx context.Context, id int64, depth int, seen map[int64]bool) (*models.TVPlaylist, error) {
	var p models.Playlist
	err := s.db.GetContext(ctx, &p, `
		SELECT id, name, default_duration, created_at, updated_at FROM playlists WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}

	var rows []tvItemRow
	err = s.db.SelectContext(ctx, &rows, `
		SELECT pf.id, pf.play_order, pf.duration, pf.is_sub_playlist, pf.file_id, pf.sub_playlist_id,
			f.name AS file_name, f.file_type, f.file_key, f.file_size, f.duration AS file_duration,
			COALESCE(f.is_deleted, FALSE) AS file_deleted
		FROM playlist_files pf
		LEFT JOIN files f ON f.id = pf.file_id
		WHERE pf.playlist_id = $1
		ORDER BY pf.play_order
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	seen[id] = true
	defer delete(seen, id)

	out := &models.TVPlaylist{ID: p.ID, Name: p.Name, DefaultDuration: p.DefaultDuration, PlaylistFiles: make([]models.TVPlaylistItem, 0, len(rows))}
	for _, r := range rows {
		item := models.TVPlaylistItem{
			PlaylistFileID: r.ID,
			PlayOrder:      r.PlayOrder,
			Duration:       r.Duration,
			IsSubPlaylist:  r.IsSubPlaylist,
			FileID:         r.FileID,
			SubPlaylistID:  r.SubPlaylistID,
		}
		switch {
		case r.FileID != nil && r.FileKey != nil && !r.FileDeleted:
			file := &models.TVFile{
				ID:       *r.FileID,
				Name:     derefString(r.FileName),
				FileType: derefString(r.FileType),
				Duration: r.FileDuration,
			}
			if r.FileSize != nil {
				file.FileSize = *r.FileSize
			}
			if url := signedURL(ctx, s.signer, s.logger, *r.FileKey); url != nil {
				file.SignedURL = *url
			}
			item.File = file
		case r.SubPlaylistID != nil && depth < MaxPlaylistDepth && !seen[*r.SubPlaylistID]:
			sub, err := s.buildPlaylist(ctx, *r.SubPlaylistID, depth+1, seen)
			if err != nil {
				return nil, err
			}
			item.SubPlaylist = sub
		}
		out.PlaylistFiles = append(out.PlaylistFiles, item)
	}
	return out, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// PlayLog records a playback and counts it as a heartbeat
func (s *TVAppService) PlayLog(ctx context.Context, deviceCode string, in PlayLogInput) (int64, error) {
	if in.FileID <= 0 {
		return 0, BadRequest("Invalid fileId")
	}
	subPlaylistID := in.SubPlaylistID
	if !in.IsSubPlaylist {
		subPlaylistID = nil
	}

	now := s.now()
	var logID int64
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var player struct {
			ID         int64  `db:"id"`
			PlaylistID *int64 `db:"playlist_id"`
		}
		err := tx.GetContext(ctx, &player, `
			SELECT id, playlist_id FROM players WHERE device_code = $1 AND playlist_id IS NOT NULL
		`, deviceCode)
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("Player not found")
		}
		if err != nil {
			return fmt.Errorf("failed to get player: %w", err)
		}
		if in.PlaylistID == nil || *in.PlaylistID != *player.PlaylistID {
			return BadRequest("Playlist not found")
		}

		var fileFound bool
		if err := tx.GetContext(ctx, &fileFound, `SELECT EXISTS (SELECT 1 FROM files WHERE id = $1)`, in.FileID); err != nil {
			return fmt.Errorf("failed to check file: %w", err)
		}
		if !fileFound {
			return BadRequest("File not found")
		}

		if in.PlaylistFileID != nil {
			var owner int64
			err := tx.GetContext(ctx, &owner, `SELECT playlist_id FROM playlist_files WHERE id = $1`, *in.PlaylistFileID)
			if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != *in.PlaylistID) {
				return BadRequest("Invalid playlistFileId")
			}
			if err != nil {
				return fmt.Errorf("failed to check playlist item: %w", err)
			}
		}

		if subPlaylistID != nil {
			var subFound bool
			if err := tx.GetContext(ctx, &subFound, `SELECT EXISTS (SELECT 1 FROM playlists WHERE id = $1)`, *subPlaylistID); err != nil {
				return fmt.Errorf("failed to check sub playlist: %w", err)
			}
			if !subFound {
				return BadRequest("Invalid subPlaylistId")
			}
		}

		if err := s.sessions.touchActive(ctx, tx, player.ID, now); err != nil {
			return err
		}

		err = tx.GetContext(ctx, &logID, `
			INSERT INTO play_logs (player_id, file_id, playlist_id, playlist_file_id, sub_playlist_id, is_sub_playlist, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, player.ID, in.FileID, in.PlaylistID, in.PlaylistFileID, subPlaylistID, in.IsSubPlaylist, now)
		if err != nil {
			return fmt.Errorf("failed to create play log: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	metrics.PlayLogsTotal.Inc()
	return logID, nil
}
