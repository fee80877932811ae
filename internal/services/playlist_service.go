package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/brandonhuynh1/signage-api/internal/models"
	"github.com/brandonhuynh1/signage-api/internal/utils"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Item duration bounds in seconds
const (
	MinItemDuration     = 1
	MaxItemDuration     = 86400
	DefaultListDuration = 30
)

// Reasons an item duration edit is skipped
const (
	SkipSubPlaylist = "subPlaylist"
	SkipVideo       = "video"
)

// PlaylistService manages playlists and their ordered items
type PlaylistService struct {
	db     *sqlx.DB
	signer URLSigner
	logger zerolog.Logger
}

// PlaylistFilter narrows the playlist dashboard
type PlaylistFilter struct {
	Search           string
	LastModifiedFrom *time.Time
	LastModifiedTo   *time.Time
	DurationBucket   string
	DurationFrom     *int
	DurationTo       *int
	SortBy           string
	SortOrder        SortOrder
}

// ItemFilter narrows a playlist's items
type ItemFilter struct {
	Search           string
	SizeBucket       string
	Type             string
	LastModifiedFrom *time.Time
	LastModifiedTo   *time.Time
	DurationBucket   string
	SortBy           string
	SortOrder        SortOrder
}

// FileDuration is one file to append in a bulk add
type FileDuration struct {
	FileID   int64 `json:"fileId" binding:"required,gt=0"`
	Duration int   `json:"duration"`
}

// SubPlaylistDuration is one nested playlist to append in a bulk add
type SubPlaylistDuration struct {
	SubPlaylistID int64 `json:"subPlaylistId" binding:"required,gt=0"`
	Duration      int   `json:"duration"`
}

// BulkResult counts the outcome of a bulk operation
type BulkResult struct {
	CreatedCount int `json:"createdCount"`
	InvalidCount int `json:"invalidCount"`
}

// DurationEditResult describes a single-item duration edit
type DurationEditResult struct {
	Updated bool   `json:"updated"`
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
}

// NewPlaylistService creates a new playlist service
func NewPlaylistService(db *sqlx.DB, signer URLSigner, logger zerolog.Logger) *PlaylistService {
	return &PlaylistService{
		db:     db,
		signer: signer,
		logger: logger.With().Str("service", "playlist").Logger(),
	}
}

func validDuration(d int) bool {
	return d >= MinItemDuration && d <= MaxItemDuration
}

// Create adds an empty playlist
func (s *PlaylistService) Create(ctx context.Context, name string, defaultDuration int) (*models.Playlist, error) {
	if defaultDuration == 0 {
		defaultDuration = DefaultListDuration
	}
	var p models.Playlist
	err := s.db.GetContext(ctx, &p, `
		INSERT INTO playlists (name, default_duration) VALUES ($1, $2)
		RETURNING id, name, default_duration, created_at, updated_at
	`, strings.TrimSpace(name), defaultDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	return &p, nil
}

// Update renames a playlist and optionally changes its default duration
func (s *PlaylistService) Update(ctx context.Context, id int64, name string, defaultDuration *int) (*models.Playlist, error) {
	var p models.Playlist
	err := s.db.GetContext(ctx, &p, `
		UPDATE playlists
		SET name = $2, default_duration = COALESCE($3, default_duration), updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, default_duration, created_at, updated_at
	`, id, strings.TrimSpace(name), defaultDuration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("Playlist not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update playlist: %w", err)
	}
	return &p, nil
}

// Refs lists every playlist as id/name
func (s *PlaylistService) Refs(ctx context.Context) ([]models.IDName, error) {
	refs := []models.IDName{}
	if err := s.db.SelectContext(ctx, &refs, `SELECT id, name FROM playlists ORDER BY name, id`); err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	return refs, nil
}

// List returns playlist cards matching filter
func (s *PlaylistService) List(ctx context.Context, filter PlaylistFilter) ([]models.PlaylistCard, error) {
	var cards []models.PlaylistCard
	err := s.db.SelectContext(ctx, &cards, `
		SELECT p.id, p.name, p.default_duration,
			(SELECT COUNT(*) FROM playlist_files pf WHERE pf.playlist_id = p.id) AS total_items,
			(SELECT COALESCE(SUM(pf.duration), 0) FROM playlist_files pf WHERE pf.playlist_id = p.id) AS duration_sec,
			(SELECT COALESCE(SUM(f.file_size), 0)
				FROM playlist_files pf JOIN files f ON f.id = pf.file_id
				WHERE pf.playlist_id = p.id)
			+ (SELECT COALESCE(SUM(f.file_size), 0)
				FROM playlist_files pf
				JOIN playlist_files spf ON spf.playlist_id = pf.sub_playlist_id
				JOIN files f ON f.id = spf.file_id
				WHERE pf.playlist_id = p.id) AS playlist_size,
			GREATEST(p.updated_at, (SELECT MAX(pf.updated_at) FROM playlist_files pf WHERE pf.playlist_id = p.id)) AS last_modified,
			(SELECT f.file_key FROM playlist_files pf JOIN files f ON f.id = pf.file_id
				WHERE pf.playlist_id = p.id AND f.file_type LIKE 'image/%'
				ORDER BY pf.play_order LIMIT 1) AS thumbnail_key
		FROM playlists p
		ORDER BY p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	out := make([]models.PlaylistCard, 0, len(cards))
	for _, c := range cards {
		if !containsFold(c.Name, filter.Search) ||
			!inTimeWindow(c.LastModified, filter.LastModifiedFrom, filter.LastModifiedTo) ||
			!utils.MatchesDurationBucket(c.DurationSec, filter.DurationBucket) {
			continue
		}
		if filter.DurationFrom != nil && c.DurationSec < *filter.DurationFrom {
			continue
		}
		if filter.DurationTo != nil && c.DurationSec > *filter.DurationTo {
			continue
		}
		out = append(out, c)
	}

	order := filter.SortOrder
	if order == "" {
		order = Desc
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch filter.SortBy {
		case "name":
			return cmpString(a.Name, b.Name, order)
		case "items":
			return cmpInt64(int64(a.TotalItems), int64(b.TotalItems), order)
		case "duration":
			return cmpInt64(int64(a.DurationSec), int64(b.DurationSec), order)
		default:
			return cmpTime(a.LastModified, b.LastModified, order)
		}
	})

	for i := range out {
		if out[i].ThumbnailKey != nil {
			out[i].Thumbnail = signedURL(ctx, s.signer, s.logger, *out[i].ThumbnailKey)
		}
	}
	return out, nil
}

// Get returns a playlist with its items filtered and sorted
func (s *PlaylistService) Get(ctx context.Context, id int64, filter ItemFilter) (*models.PlaylistDetail, error) {
	var p models.Playlist
	err := s.db.GetContext(ctx, &p, `
		SELECT id, name, default_duration, created_at, updated_at FROM playlists WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("Playlist not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}

	var items []models.PlaylistItem
	err = s.db.SelectContext(ctx, &items, `
		SELECT pf.id AS playlist_file_id, pf.file_id, pf.sub_playlist_id, pf.duration, pf.play_order,
			COALESCE(f.name, sp.name, '') AS name,
			f.file_key,
			CASE WHEN pf.sub_playlist_id IS NOT NULL THEN 'subPlaylist' ELSE COALESCE(f.file_type, '') END AS type,
			CASE WHEN pf.sub_playlist_id IS NOT NULL THEN
				(SELECT COALESCE(SUM(sf.file_size), 0)
					FROM playlist_files spf JOIN files sf ON sf.id = spf.file_id
					WHERE spf.playlist_id = pf.sub_playlist_id)
			ELSE COALESCE(f.file_size, 0) END AS size,
			GREATEST(pf.updated_at, f.updated_at, sp.updated_at) AS last_modified,
			CASE WHEN pf.sub_playlist_id IS NOT NULL THEN
				(SELECT CASE WHEN COUNT(DISTINCT spf.id) = 0 THEN 0
					ELSE CEIL(COUNT(pl.id)::numeric / COUNT(DISTINCT spf.id))::bigint END
					FROM playlist_files spf
					LEFT JOIN play_logs pl ON pl.file_id = spf.file_id
					WHERE spf.playlist_id = pf.sub_playlist_id AND spf.file_id IS NOT NULL)
			ELSE (SELECT COUNT(*) FROM play_logs pl WHERE pl.file_id = pf.file_id) END AS logs_count
		FROM playlist_files pf
		LEFT JOIN files f ON f.id = pf.file_id
		LEFT JOIN playlists sp ON sp.id = pf.sub_playlist_id
		WHERE pf.playlist_id = $1
		ORDER BY pf.play_order
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	out := filterItems(items, filter)
	for i := range out {
		if out[i].FileKey != nil {
			out[i].URL = signedURL(ctx, s.signer, s.logger, *out[i].FileKey)
		}
	}
	return &models.PlaylistDetail{ID: p.ID, Name: p.Name, DefaultDuration: p.DefaultDuration, Items: out}, nil
}

func filterItems(items []models.PlaylistItem, filter ItemFilter) []models.PlaylistItem {
	out := make([]models.PlaylistItem, 0, len(items))
	for _, it := range items {
		if !containsFold(it.Name, filter.Search) ||
			!utils.MatchesSizeBucket(it.Size, filter.SizeBucket) ||
			!inTimeWindow(it.LastModified, filter.LastModifiedFrom, filter.LastModifiedTo) ||
			!utils.MatchesDurationBucket(it.Duration, filter.DurationBucket) {
			continue
		}
		if filter.Type != "" {
			if filter.Type == SkipSubPlaylist {
				if it.Type != SkipSubPlaylist {
					continue
				}
			} else if it.Type == SkipSubPlaylist || !utils.MatchesFileType(it.Type, filter.Type) {
				continue
			}
		}
		out = append(out, it)
	}

	order := filter.SortOrder
	if order == "" {
		order = Asc
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch filter.SortBy {
		case "name":
			return cmpString(a.Name, b.Name, order)
		case "type":
			return cmpString(a.Type, b.Type, order)
		case "lastModified":
			return cmpTime(a.LastModified, b.LastModified, order)
		case "size":
			return cmpInt64(a.Size, b.Size, order)
		case "duration":
			return cmpInt64(int64(a.Duration), int64(b.Duration), order)
		default:
			return cmpInt64(int64(a.PlayOrder), int64(b.PlayOrder), order)
		}
	})
	return out
}

// AddFile appends a live file to the end of a playlist
func (s *PlaylistService) AddFile(ctx context.Context, playlistID, fileID int64, duration int) (*models.PlaylistFile, error) {
	if !validDuration(duration) {
		return nil, BadRequest("Duration must be between %d and %d seconds", MinItemDuration, MaxItemDuration)
	}
	var pf models.PlaylistFile
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := lockPlaylist(ctx, tx, playlistID); err != nil {
			return err
		}
		var live bool
		err := tx.GetContext(ctx, &live, `
			SELECT EXISTS (SELECT 1 FROM files WHERE id = $1 AND NOT is_deleted)
		`, fileID)
		if err != nil {
			return fmt.Errorf("failed to check file: %w", err)
		}
		if !live {
			return NotFound("File not found")
		}
		order, err := nextPlayOrder(ctx, tx, playlistID)
		if err != nil {
			return err
		}
		pf = models.PlaylistFile{PlaylistID: playlistID, FileID: &fileID, Duration: duration, PlayOrder: order}
		return insertPlaylistFile(ctx, tx, &pf)
	})
	if err != nil {
		return nil, err
	}
	return &pf, nil
}

// lockSubPlaylist share-locks a nested playlist so it cannot be deleted
// while a reference to it is being added
func lockSubPlaylist(ctx context.Context, tx *sqlx.Tx, id int64) (bool, error) {
	var found int64
	err := tx.GetContext(ctx, &found, `SELECT id FROM playlists WHERE id = $1 FOR SHARE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock sub playlist: %w", err)
	}
	return true, nil
}

// AddSubPlaylist appends a nested playlist. Its duration is the sum of the
// nested playlist's item durations.
func (s *PlaylistService) AddSubPlaylist(ctx context.Context, playlistID, subPlaylistID int64) (*models.PlaylistFile, error) {
	if playlistID == subPlaylistID {
		return nil, BadRequest("A playlist cannot include itself")
	}
	var pf models.PlaylistFile
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := lockPlaylist(ctx, tx, playlistID); err != nil {
			return err
		}
		ok, err := lockSubPlaylist(ctx, tx, subPlaylistID)
		if err != nil {
			return err
		}
		if !ok {
			return NotFound("Sub playlist not found")
		}
		cycle, err := wouldCycle(ctx, tx, playlistID, subPlaylistID)
		if err != nil {
			return err
		}
		if cycle {
			return BadRequest("Adding this playlist would create a cycle")
		}
		duration, err := playlistTotalDuration(ctx, tx, subPlaylistID)
		if err != nil {
			return err
		}
		order, err := nextPlayOrder(ctx, tx, playlistID)
		if err != nil {
			return err
		}
		pf = models.PlaylistFile{
			PlaylistID:    playlistID,
			SubPlaylistID: &subPlaylistID,
			IsSubPlaylist: true,
			Duration:      duration,
			PlayOrder:     order,
		}
		return insertPlaylistFile(ctx, tx, &pf)
	})
	if err != nil {
		return nil, err
	}
	return &pf, nil
}

// MoveItem places an item at position target, clamped to 1..n, shifting the
// items in between by one
func (s *PlaylistService) MoveItem(ctx context.Context, playlistFileID int64, target int) (*models.PlaylistFile, error) {
	var moved models.PlaylistFile
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var playlistID int64
		err := tx.GetContext(ctx, &playlistID, `SELECT playlist_id FROM playlist_files WHERE id = $1`, playlistFileID)
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("Playlist item not found")
		}
		if err != nil {
			return fmt.Errorf("failed to get playlist item: %w", err)
		}
		if _, err := lockPlaylist(ctx, tx, playlistID); err != nil {
			return err
		}

		var state struct {
			Current int `db:"play_order"`
			Count   int `db:"item_count"`
		}
		err = tx.GetContext(ctx, &state, `
			SELECT pf.play_order, (SELECT COUNT(*) FROM playlist_files WHERE playlist_id = pf.playlist_id) AS item_count
			FROM playlist_files pf WHERE pf.id = $1
		`, playlistFileID)
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("Playlist item not found")
		}
		if err != nil {
			return fmt.Errorf("failed to get playlist item: %w", err)
		}

		to := MoveTarget(target, state.Count)
		if to < state.Current {
			_, err = tx.ExecContext(ctx, `
				UPDATE playlist_files SET play_order = play_order + 1, updated_at = NOW()
				WHERE playlist_id = $1 AND play_order >= $2 AND play_order < $3
			`, playlistID, to, state.Current)
		} else if to > state.Current {
			_, err = tx.ExecContext(ctx, `
				UPDATE playlist_files SET play_order = play_order - 1, updated_at = NOW()
				WHERE playlist_id = $1 AND play_order > $2 AND play_order <= $3
			`, playlistID, state.Current, to)
		}
		if err != nil {
			return fmt.Errorf("failed to shift playlist items: %w", err)
		}

		err = tx.GetContext(ctx, &moved, `
			UPDATE playlist_files SET play_order = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING id, playlist_id, file_id, sub_playlist_id, is_sub_playlist, duration, play_order, created_at, updated_at
		`, playlistFileID, to)
		if err != nil {
			return fmt.Errorf("failed to move playlist item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &moved, nil
}

// DeleteItem removes one item and closes the gap it leaves
func (s *PlaylistService) DeleteItem(ctx context.Context, playlistFileID int64) error {
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var playlistID int64
		err := tx.GetContext(ctx, &playlistID, `SELECT playlist_id FROM playlist_files WHERE id = $1`, playlistFileID)
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("Playlist item not found")
		}
		if err != nil {
			return fmt.Errorf("failed to get playlist item: %w", err)
		}
		if _, err := lockPlaylist(ctx, tx, playlistID); err != nil {
			return err
		}

		var removed int
		err = tx.GetContext(ctx, &removed, `DELETE FROM playlist_files WHERE id = $1 RETURNING play_order`, playlistFileID)
		if err != nil {
			return fmt.Errorf("failed to delete playlist item: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE playlist_files SET play_order = play_order - 1, updated_at = NOW()
			WHERE playlist_id = $1 AND play_order > $2
		`, playlistID, removed)
		if err != nil {
			return fmt.Errorf("failed to compact playlist: %w", err)
		}
		return nil
	})
}

// Delete removes a playlist, drops it from any parent playlists and
// unassigns it from players. It returns the affected player ids.
func (s *PlaylistService) Delete(ctx context.Context, id int64) ([]int64, error) {
	var unassigned []int64
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		unassigned, err = deletePlaylist(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("playlistID", id).Int("playersUnassigned", len(unassigned)).Msg("Playlist deleted")
	return unassigned, nil
}

func deletePlaylist(ctx context.Context, tx *sqlx.Tx, id int64) ([]int64, error) {
	var parents []int64
	err := tx.SelectContext(ctx, &parents, `
		SELECT DISTINCT playlist_id FROM playlist_files WHERE sub_playlist_id = $1 AND playlist_id <> $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find parent playlists: %w", err)
	}

	locked, err := lockPlaylists(ctx, tx, append(parents, id))
	if err != nil {
		return nil, err
	}
	found := false
	for _, l := range locked {
		if l == id {
			found = true
		}
	}
	if !found {
		return nil, NotFound("Playlist not found")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_files WHERE sub_playlist_id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to remove playlist from parents: %w", err)
	}

	var players []int64
	err = tx.SelectContext(ctx, &players, `
		UPDATE players SET playlist_id = NULL, updated_at = NOW() WHERE playlist_id = $1 RETURNING id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to unassign playlist: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM playlists WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to delete playlist: %w", err)
	}
	return players, renumber(ctx, tx, parents)
}

// BulkDelete deletes several playlists in one transaction
func (s *PlaylistService) BulkDelete(ctx context.Context, ids []int64) (int, []int64, error) {
	var unassigned []int64
	deleted := 0
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, id := range ids {
			players, err := deletePlaylist(ctx, tx, id)
			var svcErr *Error
			if errors.As(err, &svcErr) && svcErr.Status == http.StatusNotFound {
				continue
			}
			if err != nil {
				return err
			}
			deleted++
			unassigned = append(unassigned, players...)
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	if deleted == 0 {
		return 0, nil, NotFound("No playlists found")
	}
	return deleted, unassigned, nil
}

// BulkAddFiles appends live files in the given order. Items with a bad
// duration or an unknown file are counted as invalid.
func (s *PlaylistService) BulkAddFiles(ctx context.Context, playlistID int64, items []FileDuration) (*BulkResult, error) {
	result := &BulkResult{}
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := lockPlaylist(ctx, tx, playlistID); err != nil {
			return err
		}

		ids := make([]int64, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.FileID)
		}
		live, err := liveFileSet(ctx, tx, ids)
		if err != nil {
			return err
		}

		order, err := nextPlayOrder(ctx, tx, playlistID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if !validDuration(it.Duration) || !live[it.FileID] {
				result.InvalidCount++
				continue
			}
			fileID := it.FileID
			pf := models.PlaylistFile{PlaylistID: playlistID, FileID: &fileID, Duration: it.Duration, PlayOrder: order}
			if err := insertPlaylistFile(ctx, tx, &pf); err != nil {
				return err
			}
			order++
			result.CreatedCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BulkAddSubPlaylists appends nested playlists. Self references, unknown
// playlists and cycles are counted as invalid. A missing duration falls back
// to the nested playlist's total.
func (s *PlaylistService) BulkAddSubPlaylists(ctx context.Context, playlistID int64, items []SubPlaylistDuration) (*BulkResult, error) {
	result := &BulkResult{}
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := lockPlaylist(ctx, tx, playlistID); err != nil {
			return err
		}
		order, err := nextPlayOrder(ctx, tx, playlistID)
		if err != nil {
			return err
		}

		for _, it := range items {
			subID := it.SubPlaylistID
			if subID == playlistID || (it.Duration != 0 && !validDuration(it.Duration)) {
				result.InvalidCount++
				continue
			}
			ok, err := lockSubPlaylist(ctx, tx, subID)
			if err != nil {
				return err
			}
			if !ok {
				result.InvalidCount++
				continue
			}
			cycle, err := wouldCycle(ctx, tx, playlistID, subID)
			if err != nil {
				return err
			}
			if cycle {
				result.InvalidCount++
				continue
			}
			duration := it.Duration
			if duration == 0 {
				if duration, err = playlistTotalDuration(ctx, tx, subID); err != nil {
					return err
				}
			}
			pf := models.PlaylistFile{
				PlaylistID:    playlistID,
				SubPlaylistID: &subID,
				IsSubPlaylist: true,
				Duration:      duration,
				PlayOrder:     order,
			}
			if err := insertPlaylistFile(ctx, tx, &pf); err != nil {
				return err
			}
			order++
			result.CreatedCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BulkAddFilesToPlaylists appends every live file to every existing
// playlist. duration defaults to each playlist's default duration.
func (s *PlaylistService) BulkAddFilesToPlaylists(ctx context.Context, fileIDs, playlistIDs []int64, duration *int) (int, error) {
	if duration != nil && !validDuration(*duration) {
		return 0, BadRequest("Duration must be between %d and %d seconds", MinItemDuration, MaxItemDuration)
	}
	created := 0
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		locked, err := lockPlaylists(ctx, tx, playlistIDs)
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return NotFound("No playlists found")
		}
		live, err := liveFileSet(ctx, tx, fileIDs)
		if err != nil {
			return err
		}
		if len(live) == 0 {
			return NotFound("No files found")
		}

		var defaults []struct {
			ID       int64 `db:"id"`
			Duration int   `db:"default_duration"`
		}
		err = tx.SelectContext(ctx, &defaults, `
			SELECT id, default_duration FROM playlists WHERE id = ANY($1) ORDER BY id
		`, pq.Array(locked))
		if err != nil {
			return fmt.Errorf("failed to get playlist defaults: %w", err)
		}

		for _, p := range defaults {
			d := p.Duration
			if duration != nil {
				d = *duration
			}
			order, err := nextPlayOrder(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			for _, fid := range fileIDs {
				if !live[fid] {
					continue
				}
				fileID := fid
				pf := models.PlaylistFile{PlaylistID: p.ID, FileID: &fileID, Duration: d, PlayOrder: order}
				if err := insertPlaylistFile(ctx, tx, &pf); err != nil {
					return err
				}
				order++
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// BulkDeleteItems removes items across playlists and compacts each one
func (s *PlaylistService) BulkDeleteItems(ctx context.Context, playlistFileIDs []int64) (int, error) {
	deleted := 0
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var affected []int64
		err := tx.SelectContext(ctx, &affected, `
			SELECT DISTINCT playlist_id FROM playlist_files WHERE id = ANY($1)
		`, pq.Array(playlistFileIDs))
		if err != nil {
			return fmt.Errorf("failed to find playlist items: %w", err)
		}
		if len(affected) == 0 {
			return NotFound("No playlist items found")
		}
		if _, err := lockPlaylists(ctx, tx, affected); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM playlist_files WHERE id = ANY($1)`, pq.Array(playlistFileIDs))
		if err != nil {
			return fmt.Errorf("failed to delete playlist items: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted = int(n)
		return renumber(ctx, tx, affected)
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// BulkEditDuration sets the duration of image and document items. Nested
// playlists and videos keep theirs and count as skipped. Unknown ids are
// ignored; 404 when none exist.
func (s *PlaylistService) BulkEditDuration(ctx context.Context, playlistFileIDs []int64, duration int) (int, int, error) {
	if !validDuration(duration) {
		return 0, 0, BadRequest("Duration must be between %d and %d seconds", MinItemDuration, MaxItemDuration)
	}
	ids := uniqueIDs(playlistFileIDs)
	if len(ids) == 0 {
		return 0, 0, BadRequest("Invalid playlistFileIds")
	}

	var rows []struct {
		ID       int64 `db:"id"`
		Editable bool  `db:"editable"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT pf.id,
			(NOT pf.is_sub_playlist AND lower(COALESCE(f.file_type, '')) NOT LIKE 'video/%') AS editable
		FROM playlist_files pf LEFT JOIN files f ON f.id = pf.file_id
		WHERE pf.id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to find playlist items: %w", err)
	}
	if len(rows) == 0 {
		return 0, 0, NotFound("No playlist items found")
	}

	editable := make([]int64, 0, len(rows))
	for _, r := range rows {
		if r.Editable {
			editable = append(editable, r.ID)
		}
	}
	skipped := len(rows) - len(editable)
	if len(editable) == 0 {
		return 0, skipped, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE playlist_files SET duration = $2, updated_at = NOW() WHERE id = ANY($1)
	`, pq.Array(editable), duration)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to update durations: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), skipped, nil
}

// EditItemDuration sets one item's duration, skipping nested playlists and
// videos
func (s *PlaylistService) EditItemDuration(ctx context.Context, playlistFileID int64, duration int) (*DurationEditResult, error) {
	if !validDuration(duration) {
		return nil, BadRequest("Duration must be between %d and %d seconds", MinItemDuration, MaxItemDuration)
	}
	var item struct {
		SubPlaylistID *int64  `db:"sub_playlist_id"`
		FileType      *string `db:"file_type"`
	}
	err := s.db.GetContext(ctx, &item, `
		SELECT pf.sub_playlist_id, f.file_type
		FROM playlist_files pf LEFT JOIN files f ON f.id = pf.file_id
		WHERE pf.id = $1
	`, playlistFileID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("Playlist item not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist item: %w", err)
	}
	if item.SubPlaylistID != nil {
		return &DurationEditResult{Skipped: true, Reason: SkipSubPlaylist}, nil
	}
	if item.FileType != nil && utils.IsVideo(*item.FileType) {
		return &DurationEditResult{Skipped: true, Reason: SkipVideo}, nil
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE playlist_files SET duration = $2, updated_at = NOW() WHERE id = $1
	`, playlistFileID, duration); err != nil {
		return nil, fmt.Errorf("failed to update duration: %w", err)
	}
	return &DurationEditResult{Updated: true}, nil
}

func liveFileSet(ctx context.Context, tx *sqlx.Tx, ids []int64) (map[int64]bool, error) {
	live := map[int64]bool{}
	if len(ids) == 0 {
		return live, nil
	}
	var found []int64
	err := tx.SelectContext(ctx, &found, `
		SELECT id FROM files WHERE id = ANY($1) AND NOT is_deleted
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to check files: %w", err)
	}
	for _, id := range found {
		live[id] = true
	}
	return live, nil
}
