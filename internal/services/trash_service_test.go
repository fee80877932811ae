package services

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestoreRejectsUnknownKind(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewTrashService(db, newFakeStore(), zerolog.Nop())

	for _, call := range []func() error{
		func() error { return svc.Restore(context.Background(), "playlist", 1) },
		func() error { return svc.DeletePermanently(context.Background(), "", 1) },
	} {
		svcErr, ok := AsError(call())
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, svcErr.Status)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSplitObjects(t *testing.T) {
	ids, keys := splitObjects([]storedObject{{ID: 1, Key: "a/1.png"}, {ID: 4, Key: "a/4.mp4"}})

	assert.Equal(t, []int64{1, 4}, ids)
	assert.Equal(t, []string{"a/1.png", "a/4.mp4"}, keys)
}

func TestFreeName(t *testing.T) {
	db, _ := newMockDB(t)
	svc := NewTrashService(db, nil, zerolog.Nop())
	used := map[string]bool{"promo.png": true, "promo (1).png": true}

	name, err := svc.freeName("promo.png", func(c string) (bool, error) { return used[c], nil })
	require.NoError(t, err)
	assert.Equal(t, "promo (2).png", name)

	_, err = svc.freeName("promo.png", func(string) (bool, error) { return true, errors.New("db down") })
	assert.EqualError(t, err, "db down")
}

var trashedFileCols = []string{"id", "name", "folder_id", "folder_name", "folder_deleted", "folder_deleted_at"}

func newTrashService(t *testing.T) (*TrashService, sqlmock.Sqlmock, *fakeStore) {
	t.Helper()
	db, mock := newMockDB(t)
	store := newFakeStore()
	return NewTrashService(db, store, zerolog.Nop()), mock, store
}

func expectNameTaken(mock sqlmock.Sqlmock, query string, taken bool) {
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(taken))
}

func TestRestoreFileRestoresTrashedFolderFirst(t *testing.T) {
	svc, mock, _ := newTrashService(t)
	deletedAt := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE f.id = $1 AND f.is_deleted")).
		WithArgs(12).
		WillReturnRows(sqlmock.NewRows(trashedFileCols).AddRow(12, "promo.png", 5, "Acme", true, deletedAt))
	// a live folder took the name meanwhile
	expectNameTaken(mock, "SELECT 1 FROM folders WHERE name = $1 AND NOT is_deleted", true)
	expectNameTaken(mock, "SELECT 1 FROM folders WHERE name = $1 AND NOT is_deleted", false)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE folders SET is_deleted = FALSE")).
		WithArgs(5, "Acme (1)").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE folder_id = $1 AND is_deleted AND deleted_at = $2")).
		WithArgs(5, deletedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectNameTaken(mock, "SELECT 1 FROM files WHERE folder_id = $1 AND name = $2 AND id <> $3", false)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE files SET is_deleted = FALSE, deleted_at = NULL, name = $2")).
		WithArgs(12, "promo.png").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Restore(context.Background(), KindFile, 12))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestoreFolderBringsBackFilesTrashedWithIt(t *testing.T) {
	svc, mock, _ := newTrashService(t)
	deletedAt := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM folders WHERE id = $1 AND is_deleted FOR UPDATE")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(folderCols).AddRow(5, "Acme", nil, nil, true, true, deletedAt, deletedAt, deletedAt))
	expectNameTaken(mock, "SELECT 1 FROM folders WHERE name = $1 AND NOT is_deleted", false)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE folders SET is_deleted = FALSE")).
		WithArgs(5, "Acme").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE folder_id = $1 AND is_deleted AND deleted_at = $2")).
		WithArgs(5, deletedAt).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, svc.Restore(context.Background(), KindFolder, 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestoreMissingFromTrash(t *testing.T) {
	svc, mock, _ := newTrashService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM folders WHERE id = $1 AND is_deleted FOR UPDATE")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(folderCols))
	mock.ExpectRollback()

	err := svc.Restore(context.Background(), KindFolder, 5)

	svcErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, svcErr.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectRemoveFileItems(mock sqlmock.Sqlmock, playlistIDs ...int64) {
	affected := sqlmock.NewRows([]string{"playlist_id"})
	for _, id := range playlistIDs {
		affected.AddRow(id)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT playlist_id FROM playlist_files WHERE file_id = ANY($1)")).
		WillReturnRows(affected)
	if len(playlistIDs) == 0 {
		return
	}
	locked := sqlmock.NewRows([]string{"id"})
	for _, id := range playlistIDs {
		locked.AddRow(id)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM playlists WHERE id = ANY($1) ORDER BY id FOR UPDATE")).
		WillReturnRows(locked)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM playlist_files WHERE file_id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, int64(len(playlistIDs))))
	mock.ExpectExec(regexp.QuoteMeta("SET play_order = r.rn")).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestDeleteFilePermanentlyPurgesObject(t *testing.T) {
	svc, mock, store := newTrashService(t)

	mock.ExpectBegin()
	expectRemoveFileItems(mock, 7)
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM files WHERE id = $1 AND is_deleted RETURNING file_key")).
		WithArgs(12).
		WillReturnRows(sqlmock.NewRows([]string{"file_key"}).AddRow("Acme/12-promo.png"))
	mock.ExpectCommit()

	require.NoError(t, svc.DeletePermanently(context.Background(), KindFile, 12))
	assert.Equal(t, []string{"Acme/12-promo.png"}, store.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteFolderPermanentlyPurgesItsFiles(t *testing.T) {
	svc, mock, store := newTrashService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM folders WHERE id = $1 AND is_deleted)")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, file_key FROM files WHERE folder_id = $1")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "file_key"}).AddRow(12, "Acme/a.png").AddRow(13, "Acme/b.mp4"))
	expectRemoveFileItems(mock)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM folders WHERE id = $1")).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.DeletePermanently(context.Background(), KindFolder, 5))
	assert.Equal(t, []string{"Acme/a.png", "Acme/b.mp4"}, store.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePermanentlyKeepsObjectsOnRollback(t *testing.T) {
	svc, mock, store := newTrashService(t)

	mock.ExpectBegin()
	expectRemoveFileItems(mock)
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM files WHERE id = $1 AND is_deleted RETURNING file_key")).
		WithArgs(12).
		WillReturnRows(sqlmock.NewRows([]string{"file_key"}))
	mock.ExpectRollback()

	err := svc.DeletePermanently(context.Background(), KindFile, 12)

	svcErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, svcErr.Status)
	assert.Empty(t, store.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmptyCountsFilesInsideTrashedFolders(t *testing.T) {
	svc, mock, store := newTrashService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE f.is_deleted OR fo.is_deleted")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "file_key"}).
			AddRow(12, "Acme/a.png").AddRow(13, "Acme/b.png").AddRow(20, "Other/c.png"))
	expectRemoveFileItems(mock, 7)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM files WHERE id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM folders WHERE is_deleted")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	counts, err := svc.Empty(context.Background())

	require.NoError(t, err)
	assert.Equal(t, TrashCounts{Folders: 1, Files: 3}, *counts)
	assert.Len(t, store.deleted, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestoreAll(t *testing.T) {
	svc, mock, _ := newTrashService(t)
	deletedAt := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM folders WHERE is_deleted ORDER BY deleted_at DESC FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows(folderCols).AddRow(5, "Acme", nil, nil, true, true, deletedAt, deletedAt, deletedAt))
	expectNameTaken(mock, "SELECT 1 FROM folders WHERE name = $1 AND NOT is_deleted", false)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE folders SET is_deleted = FALSE")).
		WithArgs(5, "Acme").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE folder_id = $1 AND is_deleted AND deleted_at = $2")).
		WithArgs(5, deletedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE f.is_deleted ORDER BY f.deleted_at DESC")).
		WillReturnRows(sqlmock.NewRows(trashedFileCols).AddRow(30, "logo.png", 6, "Beta", false, nil))
	expectNameTaken(mock, "SELECT 1 FROM files WHERE folder_id = $1 AND name = $2 AND id <> $3", false)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE files SET is_deleted = FALSE, deleted_at = NULL, name = $2")).
		WithArgs(30, "logo.png").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	counts, err := svc.RestoreAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, TrashCounts{Folders: 1, Files: 1}, *counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
