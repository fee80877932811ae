package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	uploaded map[string]string
	deleted  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploaded: map[string]string{}}
}

func (f *fakeStore) SignedURL(_ context.Context, key string) (string, error) {
	return "https://cdn.test/" + key, nil
}

func (f *fakeStore) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.uploaded[key] = string(b)
	return nil
}

func (f *fakeStore) DeleteMany(_ context.Context, keys []string) error {
	f.deleted = append(f.deleted, keys...)
	return nil
}

var folderCols = []string{"id", "name", "validity_start", "validity_end", "verified", "is_deleted", "deleted_at", "created_at", "updated_at"}

var fileCols = []string{"id", "name", "file_type", "file_key", "file_size", "duration", "verified", "folder_id", "is_deleted", "deleted_at", "created_at", "updated_at"}

func TestValidityStatus(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}

	tests := []struct {
		name   string
		start  *time.Time
		end    *time.Time
		label  string
		bucket string
	}{
		{"no window", nil, nil, ValidityRunning, ValidityRunning},
		{"open end", at(-time.Hour), nil, ValidityRunning, ValidityRunning},
		{"ended", at(-48 * time.Hour), at(-time.Minute), ValidityCompleted, ValidityCompleted},
		{"far from end", at(-time.Hour), at(30 * 24 * time.Hour), ValidityRunning, ValidityRunning},
		{"partial day rounds up", at(-time.Hour), at(36 * time.Hour), "2 days left", ValidityExpiring},
		{"exactly seven days", at(-time.Hour), at(7 * 24 * time.Hour), "7 days left", ValidityExpiring},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, bucket := ValidityStatus(tt.start, tt.end, now)
			assert.Equal(t, tt.label, label)
			assert.Equal(t, tt.bucket, bucket)
		})
	}
}

func TestObjectKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	key := ObjectKey("Acme Corp.", "Summer Promo!.mp4", at)

	assert.Regexp(t, `^Acme_Corp_/1700000000123-[0-9a-f]{8}-summer-promo\.mp4$`, key)
}

func newMediaService(t *testing.T) (*MediaService, sqlmock.Sqlmock, *fakeStore) {
	t.Helper()
	db, mock := newMockDB(t)
	store := newFakeStore()
	svc := NewMediaService(db, store, 1, zerolog.Nop())
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc, mock, store
}

func TestUploadRejectsBadInput(t *testing.T) {
	svc, mock, store := newMediaService(t)

	tests := []struct {
		name string
		in   UploadInput
		msg  string
	}{
		{"unsupported type", UploadInput{ContentType: "text/html", Size: 10}, "Unsupported file type: text/html"},
		{"declared type mismatch", UploadInput{ContentType: "image/png", DeclaredType: "image/jpeg", Size: 10}, "File type mismatch"},
		{"too large", UploadInput{ContentType: "image/png", Size: 2 * 1024 * 1024}, "File exceeds the 1 MB limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), 1, tt.in)

			svcErr, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadRequest, svcErr.Status)
			assert.Equal(t, tt.msg, svcErr.Message)
		})
	}
	assert.Empty(t, store.uploaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadStoresObjectAndRow(t *testing.T) {
	svc, mock, store := newMediaService(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM folders WHERE id = $1 AND NOT is_deleted")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(folderCols).AddRow(5, "Acme", nil, nil, true, false, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO files")).
		WithArgs("promo.png", "image/png", sqlmock.AnyArg(), int64(4), nil, int64(5)).
		WillReturnRows(sqlmock.NewRows(fileCols).AddRow(9, "promo.png", "image/png", "Acme/1700000000000-abcd1234-promo.png", 4, nil, true, 5, false, nil, now, now))

	result, err := svc.Upload(context.Background(), 5, UploadInput{
		FileName:    "promo.png",
		ContentType: "image/png",
		Size:        4,
		Body:        strings.NewReader("\x89PNG"),
	})

	require.NoError(t, err)
	assert.EqualValues(t, 9, result.File.ID)
	require.Len(t, store.uploaded, 1)
	for key, body := range store.uploaded {
		assert.True(t, strings.HasPrefix(key, "Acme/1700000000000-"))
		assert.Equal(t, "\x89PNG", body)
		assert.Equal(t, "https://cdn.test/"+key, result.SignedURL)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRemovesObjectWhenInsertFails(t *testing.T) {
	svc, mock, store := newMediaService(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM folders WHERE id = $1 AND NOT is_deleted")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(folderCols).AddRow(5, "Acme", nil, nil, true, false, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO files")).
		WillReturnError(errors.New("connection reset"))

	_, err := svc.Upload(context.Background(), 5, UploadInput{
		FileName:    "promo.png",
		ContentType: "image/png",
		Size:        4,
		Body:        strings.NewReader("\x89PNG"),
	})

	require.Error(t, err)
	_, isSvcErr := AsError(err)
	assert.False(t, isSvcErr)
	require.Len(t, store.deleted, 1)
	assert.Contains(t, store.uploaded, store.deleted[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadUnknownFolder(t *testing.T) {
	svc, mock, _ := newMediaService(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM folders WHERE id = $1 AND NOT is_deleted")).
		WithArgs(77).
		WillReturnRows(sqlmock.NewRows(folderCols))

	_, err := svc.Upload(context.Background(), 77, UploadInput{ContentType: "video/mp4", Size: 1, Body: strings.NewReader("x")})

	svcErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, svcErr.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFolderRejectsInvertedWindow(t *testing.T) {
	svc, mock, _ := newMediaService(t)
	start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)

	_, err := svc.CreateFolder(context.Background(), "Acme", &start, &end)

	svcErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, svcErr.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteFilesCompactsPlaylists(t *testing.T) {
	svc, mock, store := newMediaService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE files SET is_deleted = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12).AddRow(13))
	expectRemoveFileItems(mock, 7, 8)
	mock.ExpectCommit()

	n, err := svc.DeleteFiles(context.Background(), []int64{12, 13, 14})

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, store.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteFilesNothingLive(t *testing.T) {
	svc, mock, _ := newMediaService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE files SET is_deleted = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := svc.DeleteFiles(context.Background(), []int64{12})

	svcErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, svcErr.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteFoldersTrashesFilesAndCompacts(t *testing.T) {
	svc, mock, _ := newMediaService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE folders SET is_deleted = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE folder_id = ANY($1) AND NOT is_deleted")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	expectRemoveFileItems(mock, 7)
	mock.ExpectCommit()

	n, err := svc.DeleteFolders(context.Background(), []int64{5})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
