package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/brandonhuynh1/signage-api/internal/models"
	"github.com/brandonhuynh1/signage-api/internal/utils"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Trash item kinds
const (
	KindFolder = "folder"
	KindFile   = "file"
)

// TrashService lists, restores and purges soft-deleted media
type TrashService struct {
	db     *sqlx.DB
	store  ObjectStore
	logger zerolog.Logger
	now    func() time.Time
}

// TrashCounts reports how many folders and files an operation touched
type TrashCounts struct {
	Folders int `json:"folders"`
	Files   int `json:"files"`
}

// NewTrashService creates a new trash service
func NewTrashService(db *sqlx.DB, store ObjectStore, logger zerolog.Logger) *TrashService {
	return &TrashService{
		db:     db,
		store:  store,
		logger: logger.With().Str("service", "trash").Logger(),
		now:    time.Now,
	}
}

func checkKind(kind string) error {
	if kind != KindFolder && kind != KindFile {
		return BadRequest("Invalid kind: %s", kind)
	}
	return nil
}

// List returns deleted folders and files, newest deletion first
func (s *TrashService) List(ctx context.Context, search string) ([]models.TrashItem, error) {
	items := []models.TrashItem{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT 'folder' AS kind, fo.id, fo.name, NULL::varchar AS file_type, 'Media' AS location,
			fo.id AS folder_id, TRUE AS folder_deleted, NULL::text AS file_key, fo.deleted_at
		FROM folders fo
		WHERE fo.is_deleted AND ($1 = '' OR fo.name ILIKE '%' || $1 || '%')
		UNION ALL
		SELECT 'file', f.id, f.name, f.file_type, fo.name,
			f.folder_id, fo.is_deleted, f.file_key, f.deleted_at
		FROM files f
		JOIN folders fo ON fo.id = f.folder_id
		WHERE f.is_deleted AND ($1 = '' OR f.name ILIKE '%' || $1 || '%')
		ORDER BY deleted_at DESC
	`, search)
	if err != nil {
		return nil, fmt.Errorf("failed to list trash: %w", err)
	}

	for i := range items {
		it := &items[i]
		it.DeletedAtLabel = utils.DayLabel(it.DeletedAt)
		if it.Kind == KindFolder {
			it.Type = KindFolder
			continue
		}
		it.Type = KindFile
		if it.FileType != nil && *it.FileType != "" {
			it.Type = utils.TopLevelType(*it.FileType)
			if utils.IsImage(*it.FileType) && it.FileKey != nil {
				it.Thumbnail = signedURL(ctx, s.store, s.logger, *it.FileKey)
			}
		}
	}
	return items, nil
}

// freeName finds a collision-free variant of name using exists
func (s *TrashService) freeName(name string, exists func(candidate string) (bool, error)) (string, error) {
	var firstErr error
	out := utils.NextAvailableName(name, func(candidate string) bool {
		if firstErr != nil {
			return false
		}
		taken, err := exists(candidate)
		if err != nil {
			firstErr = err
			return false
		}
		return taken
	}, func() string {
		return strconv.FormatInt(s.now().UnixMilli(), 10)
	})
	return out, firstErr
}

func (s *TrashService) restoreFolder(ctx context.Context, tx *sqlx.Tx, id int64, name string, deletedAt time.Time) error {
	newName, err := s.freeName(name, func(candidate string) (bool, error) {
		var taken bool
		err := tx.GetContext(ctx, &taken, `
			SELECT EXISTS (SELECT 1 FROM folders WHERE name = $1 AND NOT is_deleted)
		`, candidate)
		return taken, err
	})
	if err != nil {
		return fmt.Errorf("failed to check folder name: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE folders SET is_deleted = FALSE, deleted_at = NULL, name = $2, updated_at = NOW()
		WHERE id = $1
	`, id, newName); err != nil {
		return fmt.Errorf("failed to restore folder: %w", err)
	}

	// files trashed together with the folder come back with it
	if _, err := tx.ExecContext(ctx, `
		UPDATE files SET is_deleted = FALSE, deleted_at = NULL, updated_at = NOW()
		WHERE folder_id = $1 AND is_deleted AND deleted_at = $2
	`, id, deletedAt); err != nil {
		return fmt.Errorf("failed to restore folder files: %w", err)
	}
	return nil
}

func (s *TrashService) restoreFile(ctx context.Context, tx *sqlx.Tx, id, folderID int64, name string) error {
	newName, err := s.freeName(name, func(candidate string) (bool, error) {
		var taken bool
		err := tx.GetContext(ctx, &taken, `
			SELECT EXISTS (SELECT 1 FROM files WHERE folder_id = $1 AND name = $2 AND id <> $3 AND NOT is_deleted)
		`, folderID, candidate, id)
		return taken, err
	})
	if err != nil {
		return fmt.Errorf("failed to check file name: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE files SET is_deleted = FALSE, deleted_at = NULL, name = $2, updated_at = NOW()
		WHERE id = $1
	`, id, newName); err != nil {
		return fmt.Errorf("failed to restore file: %w", err)
	}
	return nil
}

type trashedFile struct {
	ID              int64      `db:"id"`
	Name            string     `db:"name"`
	FolderID        int64      `db:"folder_id"`
	FolderName      string     `db:"folder_name"`
	FolderDeleted   bool       `db:"folder_deleted"`
	FolderDeletedAt *time.Time `db:"folder_deleted_at"`
}

// Restore brings a folder or file back from the trash. A file whose folder
// is also trashed restores the folder first.
func (s *TrashService) Restore(ctx context.Context, kind string, id int64) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if kind == KindFolder {
			var folder models.Folder
			err := tx.GetContext(ctx, &folder, `
				SELECT id, name, validity_start, validity_end, verified, is_deleted, deleted_at, created_at, updated_at
				FROM folders WHERE id = $1 AND is_deleted FOR UPDATE
			`, id)
			if errors.Is(err, sql.ErrNoRows) {
				return NotFound("Folder not found in trash")
			}
			if err != nil {
				return fmt.Errorf("failed to get folder: %w", err)
			}
			return s.restoreFolder(ctx, tx, folder.ID, folder.Name, timeOrZero(folder.DeletedAt))
		}

		var file trashedFile
		err := tx.GetContext(ctx, &file, `
			SELECT f.id, f.name, f.folder_id, fo.name AS folder_name,
				fo.is_deleted AS folder_deleted, fo.deleted_at AS folder_deleted_at
			FROM files f JOIN folders fo ON fo.id = f.folder_id
			WHERE f.id = $1 AND f.is_deleted
			FOR UPDATE OF f, fo
		`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("File not found in trash")
		}
		if err != nil {
			return fmt.Errorf("failed to get file: %w", err)
		}
		if file.FolderDeleted {
			if err := s.restoreFolder(ctx, tx, file.FolderID, file.FolderName, timeOrZero(file.FolderDeletedAt)); err != nil {
				return err
			}
		}
		return s.restoreFile(ctx, tx, file.ID, file.FolderID, file.Name)
	})
}

// DeletePermanently removes a trashed folder or file and its stored objects
func (s *TrashService) DeletePermanently(ctx context.Context, kind string, id int64) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	var keys []string
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if kind == KindFolder {
			var found bool
			err := tx.GetContext(ctx, &found, `
				SELECT EXISTS (SELECT 1 FROM folders WHERE id = $1 AND is_deleted)
			`, id)
			if err != nil {
				return fmt.Errorf("failed to get folder: %w", err)
			}
			if !found {
				return NotFound("Folder not found in trash")
			}
			var objects []storedObject
			if err := tx.SelectContext(ctx, &objects, `SELECT id, file_key FROM files WHERE folder_id = $1`, id); err != nil {
				return fmt.Errorf("failed to list folder files: %w", err)
			}
			var fileIDs []int64
			fileIDs, keys = splitObjects(objects)
			if err := removeFileItems(ctx, tx, fileIDs); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id); err != nil {
				return fmt.Errorf("failed to delete folder: %w", err)
			}
			return nil
		}

		if err := removeFileItems(ctx, tx, []int64{id}); err != nil {
			return err
		}
		var key string
		err := tx.GetContext(ctx, &key, `DELETE FROM files WHERE id = $1 AND is_deleted RETURNING file_key`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("File not found in trash")
		}
		if err != nil {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		keys = []string{key}
		return nil
	})
	if err != nil {
		return err
	}
	s.purgeObjects(ctx, keys)
	return nil
}

type storedObject struct {
	ID  int64  `db:"id"`
	Key string `db:"file_key"`
}

func splitObjects(objects []storedObject) ([]int64, []string) {
	ids := make([]int64, 0, len(objects))
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		ids = append(ids, o.ID)
		keys = append(keys, o.Key)
	}
	return ids, keys
}

func (s *TrashService) purgeObjects(ctx context.Context, keys []string) {
	if len(keys) == 0 || s.store == nil {
		return
	}
	if err := s.store.DeleteMany(ctx, keys); err != nil {
		s.logger.Error().Err(err).Int("count", len(keys)).Msg("Failed to delete stored objects")
	}
}

// RestoreAll restores every trashed folder, then every trashed file
func (s *TrashService) RestoreAll(ctx context.Context) (*TrashCounts, error) {
	counts := &TrashCounts{}
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var folders []models.Folder
		err := tx.SelectContext(ctx, &folders, `
			SELECT id, name, validity_start, validity_end, verified, is_deleted, deleted_at, created_at, updated_at
			FROM folders WHERE is_deleted ORDER BY deleted_at DESC FOR UPDATE
		`)
		if err != nil {
			return fmt.Errorf("failed to list trashed folders: %w", err)
		}
		for _, f := range folders {
			if err := s.restoreFolder(ctx, tx, f.ID, f.Name, timeOrZero(f.DeletedAt)); err != nil {
				return err
			}
		}
		counts.Folders = len(folders)

		var files []trashedFile
		err = tx.SelectContext(ctx, &files, `
			SELECT f.id, f.name, f.folder_id, fo.name AS folder_name,
				fo.is_deleted AS folder_deleted, fo.deleted_at AS folder_deleted_at
			FROM files f JOIN folders fo ON fo.id = f.folder_id
			WHERE f.is_deleted ORDER BY f.deleted_at DESC
			FOR UPDATE OF f
		`)
		if err != nil {
			return fmt.Errorf("failed to list trashed files: %w", err)
		}
		for _, f := range files {
			if err := s.restoreFile(ctx, tx, f.ID, f.FolderID, f.Name); err != nil {
				return err
			}
		}
		counts.Files = len(files)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("folders", counts.Folders).Int("files", counts.Files).Msg("Trash restored")
	return counts, nil
}

// Empty permanently deletes everything in the trash
func (s *TrashService) Empty(ctx context.Context) (*TrashCounts, error) {
	counts := &TrashCounts{}
	var keys []string
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var objects []storedObject
		err := tx.SelectContext(ctx, &objects, `
			SELECT f.id, f.file_key FROM files f JOIN folders fo ON fo.id = f.folder_id
			WHERE f.is_deleted OR fo.is_deleted
		`)
		if err != nil {
			return fmt.Errorf("failed to list trashed objects: %w", err)
		}
		var fileIDs []int64
		fileIDs, keys = splitObjects(objects)
		if err := removeFileItems(ctx, tx, fileIDs); err != nil {
			return err
		}

		// files go first so those inside trashed folders are counted
		res, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = ANY($1)`, pq.Array(fileIDs))
		if err != nil {
			return fmt.Errorf("failed to delete files: %w", err)
		}
		n, _ := res.RowsAffected()
		counts.Files = int(n)

		res, err = tx.ExecContext(ctx, `DELETE FROM folders WHERE is_deleted`)
		if err != nil {
			return fmt.Errorf("failed to delete folders: %w", err)
		}
		n, _ = res.RowsAffected()
		counts.Folders = int(n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.purgeObjects(ctx, keys)
	s.logger.Info().Int("folders", counts.Folders).Int("files", counts.Files).Msg("Trash emptied")
	return counts, nil
}
