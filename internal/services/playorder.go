package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/brandonhuynh1/signage-api/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Every mutation of playlist_files locks the owning playlists first so
// play_order stays exactly 1..n per playlist.

func lockPlaylist(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Playlist, error) {
	var p models.Playlist
	err := tx.GetContext(ctx, &p, `
		SELECT id, name, default_duration, created_at, updated_at
		FROM playlists WHERE id = $1 FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("Playlist not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock playlist: %w", err)
	}
	return &p, nil
}

// lockPlaylists locks the given playlists in id order and returns the ids
// that exist
func lockPlaylists(ctx context.Context, tx *sqlx.Tx, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var locked []int64
	err := tx.SelectContext(ctx, &locked, `
		SELECT id FROM playlists WHERE id = ANY($1) ORDER BY id FOR UPDATE
	`, pq.Array(sorted))
	if err != nil {
		return nil, fmt.Errorf("failed to lock playlists: %w", err)
	}
	return locked, nil
}

func nextPlayOrder(ctx context.Context, tx *sqlx.Tx, playlistID int64) (int, error) {
	var next int
	err := tx.GetContext(ctx, &next, `
		SELECT COALESCE(MAX(play_order), 0) + 1 FROM playlist_files WHERE playlist_id = $1
	`, playlistID)
	if err != nil {
		return 0, fmt.Errorf("failed to get next play order: %w", err)
	}
	return next, nil
}

// renumber closes any gaps so each playlist's items run 1..n, keeping the
// existing relative order
func renumber(ctx context.Context, tx *sqlx.Tx, playlistIDs []int64) error {
	if len(playlistIDs) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE playlist_files pf
		SET play_order = r.rn, updated_at = NOW()
		FROM (
			SELECT id, ROW_NUMBER() OVER (PARTITION BY playlist_id ORDER BY play_order, id) AS rn
			FROM playlist_files
			WHERE playlist_id = ANY($1)
		) r
		WHERE pf.id = r.id AND pf.play_order <> r.rn
	`, pq.Array(playlistIDs))
	if err != nil {
		return fmt.Errorf("failed to renumber playlists: %w", err)
	}
	return nil
}

// wouldCycle reports whether nesting child inside parent creates a loop,
// i.e. parent is child itself or reachable from it
func wouldCycle(ctx context.Context, tx *sqlx.Tx, parentID, childID int64) (bool, error) {
	if parentID == childID {
		return true, nil
	}
	var cycle bool
	err := tx.GetContext(ctx, &cycle, `
		WITH RECURSIVE descendants(id) AS (
			SELECT $1::bigint
			UNION
			SELECT pf.sub_playlist_id
			FROM playlist_files pf
			JOIN descendants d ON pf.playlist_id = d.id
			WHERE pf.sub_playlist_id IS NOT NULL
		)
		SELECT EXISTS (SELECT 1 FROM descendants WHERE id = $2)
	`, childID, parentID)
	if err != nil {
		return false, fmt.Errorf("failed to check playlist nesting: %w", err)
	}
	return cycle, nil
}

func playlistTotalDuration(ctx context.Context, tx *sqlx.Tx, playlistID int64) (int, error) {
	var total int
	err := tx.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(duration), 0) FROM playlist_files WHERE playlist_id = $1
	`, playlistID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum playlist duration: %w", err)
	}
	return total, nil
}

// removeFileItems deletes every playlist slot that plays one of fileIDs and
// compacts the affected playlists
func removeFileItems(ctx context.Context, tx *sqlx.Tx, fileIDs []int64) error {
	if len(fileIDs) == 0 {
		return nil
	}
	var affected []int64
	err := tx.SelectContext(ctx, &affected, `
		SELECT DISTINCT playlist_id FROM playlist_files WHERE file_id = ANY($1)
	`, pq.Array(fileIDs))
	if err != nil {
		return fmt.Errorf("failed to find playlists for files: %w", err)
	}
	if len(affected) == 0 {
		return nil
	}
	if _, err := lockPlaylists(ctx, tx, affected); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_files WHERE file_id = ANY($1)`, pq.Array(fileIDs)); err != nil {
		return fmt.Errorf("failed to remove files from playlists: %w", err)
	}
	return renumber(ctx, tx, affected)
}

func insertPlaylistFile(ctx context.Context, tx *sqlx.Tx, pf *models.PlaylistFile) error {
	err := tx.GetContext(ctx, pf, `
		INSERT INTO playlist_files (playlist_id, file_id, sub_playlist_id, is_sub_playlist, duration, play_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, playlist_id, file_id, sub_playlist_id, is_sub_playlist, duration, play_order, created_at, updated_at
	`, pf.PlaylistID, pf.FileID, pf.SubPlaylistID, pf.IsSubPlaylist, pf.Duration, pf.PlayOrder)
	if err != nil {
		return fmt.Errorf("failed to insert playlist item: %w", err)
	}
	return nil
}

// MoveTarget clamps a requested position to 1..count
func MoveTarget(requested, count int) int {
	if requested < 1 {
		return 1
	}
	if requested > count {
		return count
	}
	return requested
}
