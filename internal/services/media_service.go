package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/brandonhuynh1/signage-api/internal/models"
	"github.com/brandonhuynh1/signage-api/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Usage status of folders and files
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Validity buckets used by the folder status filter
const (
	ValidityRunning   = "running"
	ValidityCompleted = "completed"
	ValidityExpiring  = "expiring"
)

// expiringWindowDays is how close to its end date a folder counts as expiring
const expiringWindowDays = 7

// ValidityStatus labels a folder's validity window at now. The bucket is
// one of ValidityRunning, ValidityCompleted or ValidityExpiring.
func ValidityStatus(start, end *time.Time, now time.Time) (label, bucket string) {
	if start == nil || end == nil {
		return ValidityRunning, ValidityRunning
	}
	left := end.Sub(now)
	if left < 0 {
		return ValidityCompleted, ValidityCompleted
	}
	days := int(math.Ceil(left.Hours() / 24))
	if days > expiringWindowDays {
		return ValidityRunning, ValidityRunning
	}
	return fmt.Sprintf("%d days left", days), ValidityExpiring
}

func usageStatus(active bool) string {
	if active {
		return StatusActive
	}
	return StatusInactive
}

// MediaService manages folders and the files uploaded into them
type MediaService struct {
	db           *sqlx.DB
	store        ObjectStore
	maxFileBytes int64
	logger       zerolog.Logger
	now          func() time.Time
}

// FolderFilter narrows the folder dashboard
type FolderFilter struct {
	Search           string
	LastModifiedFrom *time.Time
	LastModifiedTo   *time.Time
	SizeBucket       string
	Status           string
	SortBy           string
	SortOrder        SortOrder
}

// FileFilter narrows a folder's file list
type FileFilter struct {
	Search     string
	From       *time.Time
	To         *time.Time
	FileType   string
	SizeBucket string
	Status     string
	SortBy     string
	SortOrder  SortOrder
}

// UploadInput describes one multipart file part
type UploadInput struct {
	FileName     string
	ContentType  string
	DeclaredType string
	Size         int64
	Duration     *float64
	Body         io.Reader
}

// UploadResult is the stored file and a download URL for it
type UploadResult struct {
	File      *models.File `json:"file"`
	SignedURL string       `json:"signedUrl"`
}

// NewMediaService creates a new media service
func NewMediaService(db *sqlx.DB, store ObjectStore, maxFileMB int, logger zerolog.Logger) *MediaService {
	return &MediaService{
		db:           db,
		store:        store,
		maxFileBytes: int64(maxFileMB) * 1024 * 1024,
		logger:       logger.With().Str("service", "media").Logger(),
		now:          time.Now,
	}
}

// ListFolders returns the verified, live folders as dashboard cards
func (s *MediaService) ListFolders(ctx context.Context, filter FolderFilter) ([]models.FolderCard, error) {
	var cards []models.FolderCard
	err := s.db.SelectContext(ctx, &cards, `
		SELECT fo.id, fo.name, fo.validity_start, fo.validity_end, fo.verified,
			COALESCE(SUM(f.file_size), 0)::bigint AS folder_size,
			COALESCE(SUM(f.duration), 0)::double precision AS folder_duration,
			GREATEST(fo.updated_at, MAX(f.updated_at)) AS last_modified,
			(SELECT i.file_key FROM files i
				WHERE i.folder_id = fo.id AND NOT i.is_deleted AND i.file_type LIKE 'image/%'
				ORDER BY i.created_at, i.id LIMIT 1) AS thumbnail_key,
			EXISTS (
				SELECT 1 FROM files af
				JOIN playlist_files pf ON pf.file_id = af.id
				JOIN players p ON p.playlist_id = pf.playlist_id
				WHERE af.folder_id = fo.id AND NOT af.is_deleted AND p.linked
			) AS active
		FROM folders fo
		LEFT JOIN files f ON f.folder_id = fo.id AND NOT f.is_deleted
		WHERE NOT fo.is_deleted AND fo.verified
		GROUP BY fo.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	now := s.now()
	out := make([]models.FolderCard, 0, len(cards))
	for _, c := range cards {
		label, bucket := ValidityStatus(c.ValidityStart, c.ValidityEnd, now)
		if !containsFold(c.Name, filter.Search) ||
			!inTimeWindow(c.LastModified, filter.LastModifiedFrom, filter.LastModifiedTo) ||
			!utils.MatchesSizeBucket(c.FolderSize, filter.SizeBucket) {
			continue
		}
		if filter.Status != "" && filter.Status != bucket {
			continue
		}
		c.ValidityStatus = label
		c.Status = usageStatus(c.Active)
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
		case "folderSize":
			return cmpInt64(a.FolderSize, b.FolderSize, order)
		case "validityPeriod":
			return cmpInt64(int64(validityPeriod(a)), int64(validityPeriod(b)), order)
		case "validityDate":
			return cmpTime(timeOrZero(a.ValidityEnd), timeOrZero(b.ValidityEnd), order)
		default:
			return cmpTime(a.LastModified, b.LastModified, order)
		}
	})

	for i := range out {
		if out[i].ThumbnailKey != nil {
			out[i].Thumbnail = signedURL(ctx, s.store, s.logger, *out[i].ThumbnailKey)
		}
	}
	return out, nil
}

func validityPeriod(c models.FolderCard) time.Duration {
	if c.ValidityStart == nil || c.ValidityEnd == nil {
		return 0
	}
	return c.ValidityEnd.Sub(*c.ValidityStart)
}

func checkValidity(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return BadRequest("End date must be after start date")
	}
	return nil
}

func (s *MediaService) folderNameTaken(ctx context.Context, name string, exceptID int64) (bool, error) {
	var taken bool
	err := s.db.GetContext(ctx, &taken, `
		SELECT EXISTS (SELECT 1 FROM folders WHERE name = $1 AND NOT is_deleted AND id <> $2)
	`, name, exceptID)
	if err != nil {
		return false, fmt.Errorf("failed to check folder name: %w", err)
	}
	return taken, nil
}

// CreateFolder adds a folder. Names are unique among live folders.
func (s *MediaService) CreateFolder(ctx context.Context, name string, start, end *time.Time) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if err := checkValidity(start, end); err != nil {
		return nil, err
	}
	taken, err := s.folderNameTaken(ctx, name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, BadRequest("Folder name exists")
	}

	var folder models.Folder
	err = s.db.GetContext(ctx, &folder, `
		INSERT INTO folders (name, validity_start, validity_end)
		VALUES ($1, $2, $3)
		RETURNING id, name, validity_start, validity_end, verified, is_deleted, deleted_at, created_at, updated_at
	`, name, start, end)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, BadRequest("Folder name exists")
		}
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	s.logger.Info().Int64("folderID", folder.ID).Msg("Folder created")
	return &folder, nil
}

// EditFolder renames a folder and replaces its validity window
func (s *MediaService) EditFolder(ctx context.Context, id int64, name string, start, end *time.Time) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if err := checkValidity(start, end); err != nil {
		return nil, err
	}
	taken, err := s.folderNameTaken(ctx, name, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, BadRequest("Folder name exists")
	}

	var folder models.Folder
	err = s.db.GetContext(ctx, &folder, `
		UPDATE folders SET name = $2, validity_start = $3, validity_end = $4, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
		RETURNING id, name, validity_start, validity_end, verified, is_deleted, deleted_at, created_at, updated_at
	`, id, name, start, end)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("Folder not found")
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, BadRequest("Folder name exists")
		}
		return nil, fmt.Errorf("failed to update folder: %w", err)
	}
	return &folder, nil
}

// DeleteFolders moves folders and their files to the trash and removes the
// files from every playlist
func (s *MediaService) DeleteFolders(ctx context.Context, ids []int64) (int, error) {
	deleted := 0
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var folderIDs []int64
		err := tx.SelectContext(ctx, &folderIDs, `
			UPDATE folders SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW()
			WHERE id = ANY($1) AND NOT is_deleted
			RETURNING id
		`, pq.Array(ids))
		if err != nil {
			return fmt.Errorf("failed to delete folders: %w", err)
		}
		if len(folderIDs) == 0 {
			return NotFound("Folder not found")
		}
		deleted = len(folderIDs)

		var fileIDs []int64
		err = tx.SelectContext(ctx, &fileIDs, `
			UPDATE files SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW()
			WHERE folder_id = ANY($1) AND NOT is_deleted
			RETURNING id
		`, pq.Array(folderIDs))
		if err != nil {
			return fmt.Errorf("failed to delete folder files: %w", err)
		}
		return removeFileItems(ctx, tx, fileIDs)
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int("count", deleted).Msg("Folders moved to trash")
	return deleted, nil
}

func (s *MediaService) liveFolder(ctx context.Context, id int64) (*models.Folder, error) {
	var folder models.Folder
	err := s.db.GetContext(ctx, &folder, `
		SELECT id, name, validity_start, validity_end, verified, is_deleted, deleted_at, created_at, updated_at
		FROM folders WHERE id = $1 AND NOT is_deleted
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("Folder not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return &folder, nil
}

// ObjectKey builds the bucket key for an upload into folder
func ObjectKey(folderName, fileName string, at time.Time) string {
	return fmt.Sprintf("%s/%d-%s-%s",
		utils.FolderPrefix(folderName), at.UnixMilli(), uuid.NewString()[:8], utils.SanitizeSegment(fileName))
}

// Upload stores a media file in the bucket and records it in folderID
func (s *MediaService) Upload(ctx context.Context, folderID int64, in UploadInput) (*UploadResult, error) {
	if !utils.AllowedMIME[in.ContentType] {
		return nil, BadRequest("Unsupported file type: %s", in.ContentType)
	}
	if in.DeclaredType != "" && in.DeclaredType != in.ContentType {
		return nil, BadRequest("File type mismatch")
	}
	if s.maxFileBytes > 0 && in.Size > s.maxFileBytes {
		return nil, BadRequest("File exceeds the %d MB limit", s.maxFileBytes/(1024*1024))
	}
	if in.Duration != nil && *in.Duration < 0 {
		return nil, BadRequest("Duration must not be negative")
	}

	folder, err := s.liveFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}

	key := ObjectKey(folder.Name, in.FileName, s.now())
	if err := s.store.Upload(ctx, key, in.ContentType, in.Body, in.Size); err != nil {
		return nil, err
	}

	var file models.File
	err = s.db.GetContext(ctx, &file, `
		INSERT INTO files (name, file_type, file_key, file_size, duration, folder_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, name, file_type, file_key, file_size, duration, verified, folder_id, is_deleted, deleted_at, created_at, updated_at
	`, in.FileName, in.ContentType, key, in.Size, in.Duration, folderID)
	if err != nil {
		if delErr := s.store.DeleteMany(ctx, []string{key}); delErr != nil {
			s.logger.Error().Err(delErr).Str("key", key).Msg("Failed to remove orphaned upload")
		}
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	result := &UploadResult{File: &file}
	if url := signedURL(ctx, s.store, s.logger, key); url != nil {
		result.SignedURL = *url
	}
	s.logger.Info().Int64("fileID", file.ID).Int64("folderID", folderID).Int64("size", in.Size).Msg("File uploaded")
	return result, nil
}

// ListFiles returns a folder's live files with download URLs
func (s *MediaService) ListFiles(ctx context.Context, folderID int64, filter FileFilter) ([]models.MediaItem, error) {
	if _, err := s.liveFolder(ctx, folderID); err != nil {
		return nil, err
	}

	var files []models.MediaItem
	err := s.db.SelectContext(ctx, &files, `
		SELECT f.id, f.name, f.file_type, f.file_key, f.file_size, f.duration, f.folder_id, f.created_at, f.updated_at,
			EXISTS (
				SELECT 1 FROM playlist_files pf
				JOIN players p ON p.playlist_id = pf.playlist_id
				WHERE pf.file_id = f.id AND p.linked
			) AS active
		FROM files f
		WHERE f.folder_id = $1 AND NOT f.is_deleted
	`, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	out := make([]models.MediaItem, 0, len(files))
	for _, f := range files {
		f.Status = usageStatus(f.Active)
		if !containsFold(f.Name, filter.Search) ||
			!inTimeWindow(f.UpdatedAt, filter.From, filter.To) ||
			!utils.MatchesFileType(f.FileType, filter.FileType) ||
			!utils.MatchesSizeBucket(f.FileSize, filter.SizeBucket) {
			continue
		}
		if filter.Status != "" && filter.Status != f.Status {
			continue
		}
		f.FileTypeGroup = utils.TopLevelType(f.FileType)
		out = append(out, f)
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
		case "size":
			return cmpInt64(a.FileSize, b.FileSize, order)
		case "fileType":
			return cmpString(a.FileType, b.FileType, order)
		default:
			return cmpTime(a.CreatedAt, b.CreatedAt, order)
		}
	})

	s.sign(ctx, out)
	return out, nil
}

func (s *MediaService) sign(ctx context.Context, items []models.MediaItem) {
	for i := range items {
		if url := signedURL(ctx, s.store, s.logger, items[i].FileKey); url != nil {
			items[i].URL = *url
		}
	}
}

// RenameFile renames a live file. Names are unique within the folder.
func (s *MediaService) RenameFile(ctx context.Context, fileID int64, name string) (*models.File, error) {
	name = strings.TrimSpace(name)
	var file models.File
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var folderID int64
		err := tx.GetContext(ctx, &folderID, `
			SELECT folder_id FROM files WHERE id = $1 AND NOT is_deleted FOR UPDATE
		`, fileID)
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("File not found")
		}
		if err != nil {
			return fmt.Errorf("failed to get file: %w", err)
		}

		var taken bool
		err = tx.GetContext(ctx, &taken, `
			SELECT EXISTS (SELECT 1 FROM files WHERE folder_id = $1 AND name = $2 AND id <> $3 AND NOT is_deleted)
		`, folderID, name, fileID)
		if err != nil {
			return fmt.Errorf("failed to check file name: %w", err)
		}
		if taken {
			return BadRequest("File name already exists in this folder")
		}

		err = tx.GetContext(ctx, &file, `
			UPDATE files SET name = $2, updated_at = NOW() WHERE id = $1
			RETURNING id, name, file_type, file_key, file_size, duration, verified, folder_id, is_deleted, deleted_at, created_at, updated_at
		`, fileID, name)
		if err != nil {
			return fmt.Errorf("failed to rename file: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// DeleteFiles moves files to the trash and removes them from every playlist
func (s *MediaService) DeleteFiles(ctx context.Context, ids []int64) (int, error) {
	deleted := 0
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var fileIDs []int64
		err := tx.SelectContext(ctx, &fileIDs, `
			UPDATE files SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW()
			WHERE id = ANY($1) AND NOT is_deleted
			RETURNING id
		`, pq.Array(ids))
		if err != nil {
			return fmt.Errorf("failed to delete files: %w", err)
		}
		if len(fileIDs) == 0 {
			return NotFound("File not found")
		}
		deleted = len(fileIDs)
		return removeFileItems(ctx, tx, fileIDs)
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int("count", deleted).Msg("Files moved to trash")
	return deleted, nil
}

// FolderRefs lists live folders as id/name
func (s *MediaService) FolderRefs(ctx context.Context) ([]models.IDName, error) {
	refs := []models.IDName{}
	err := s.db.SelectContext(ctx, &refs, `SELECT id, name FROM folders WHERE NOT is_deleted ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return refs, nil
}

// FolderFiles lists a folder's live files with download URLs, oldest first
func (s *MediaService) FolderFiles(ctx context.Context, folderID int64) ([]models.MediaItem, error) {
	if _, err := s.liveFolder(ctx, folderID); err != nil {
		return nil, err
	}
	files := []models.MediaItem{}
	err := s.db.SelectContext(ctx, &files, `
		SELECT id, name, file_type, file_key, file_size, duration, folder_id, created_at, updated_at
		FROM files WHERE folder_id = $1 AND NOT is_deleted
		ORDER BY created_at, id
	`, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	for i := range files {
		files[i].FileTypeGroup = utils.TopLevelType(files[i].FileType)
	}
	s.sign(ctx, files)
	return files, nil
}
