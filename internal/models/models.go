package models

import (
	"time"
)

// AdminUser is a dashboard operator
type AdminUser struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// Folder groups the media of one client
type Folder struct {
	ID            int64      `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	ValidityStart *time.Time `json:"validityStart" db:"validity_start"`
	ValidityEnd   *time.Time `json:"validityEnd" db:"validity_end"`
	Verified      bool       `json:"verified" db:"verified"`
	IsDeleted     bool       `json:"isDeleted" db:"is_deleted"`
	DeletedAt     *time.Time `json:"deletedAt" db:"deleted_at"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
}

// File is an uploaded media object stored under FileKey in the bucket
type File struct {
	ID        int64      `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	FileType  string     `json:"fileType" db:"file_type"`
	FileKey   string     `json:"-" db:"file_key"`
	FileSize  int64      `json:"fileSize" db:"file_size"`
	Duration  *float64   `json:"duration" db:"duration"`
	Verified  bool       `json:"verified" db:"verified"`
	FolderID  int64      `json:"folderId" db:"folder_id"`
	IsDeleted bool       `json:"isDeleted" db:"is_deleted"`
	DeletedAt *time.Time `json:"deletedAt" db:"deleted_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

// Playlist is an ordered list of files and nested playlists
type Playlist struct {
	ID              int64     `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	DefaultDuration int       `json:"defaultDuration" db:"default_duration"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// PlaylistFile is one slot of a playlist. Exactly one of FileID and
// SubPlaylistID is set.
type PlaylistFile struct {
	ID            int64     `json:"id" db:"id"`
	PlaylistID    int64     `json:"playlistId" db:"playlist_id"`
	FileID        *int64    `json:"fileId" db:"file_id"`
	SubPlaylistID *int64    `json:"subPlaylistId" db:"sub_playlist_id"`
	IsSubPlaylist bool      `json:"isSubPlaylist" db:"is_sub_playlist"`
	Duration      int       `json:"duration" db:"duration"`
	PlayOrder     int       `json:"playOrder" db:"play_order"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// Player is a physical screen running the TV app
type Player struct {
	ID         int64     `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	DeviceCode string    `json:"deviceCode" db:"device_code"`
	DeviceKey  string    `json:"deviceKey" db:"device_key"`
	Location   *string   `json:"location" db:"location"`
	PlaylistID *int64    `json:"playlistId" db:"playlist_id"`
	Linked     bool      `json:"linked" db:"linked"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// PlayerSession is a heartbeat-tracked run of a player
type PlayerSession struct {
	ID           int64      `json:"id" db:"id"`
	PlayerID     int64      `json:"playerId" db:"player_id"`
	StartedAt    time.Time  `json:"startedAt" db:"started_at"`
	EndedAt      *time.Time `json:"endedAt" db:"ended_at"`
	LastActiveAt time.Time  `json:"lastActiveAt" db:"last_active_at"`
	IsActive     bool       `json:"isActive" db:"is_active"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}

// PlayLog records one playback reported by a player
type PlayLog struct {
	ID             int64     `json:"id" db:"id"`
	PlayerID       *int64    `json:"playerId" db:"player_id"`
	FileID         *int64    `json:"fileId" db:"file_id"`
	PlaylistID     *int64    `json:"playlistId" db:"playlist_id"`
	PlaylistFileID *int64    `json:"playlistFileId" db:"playlist_file_id"`
	SubPlaylistID  *int64    `json:"subPlaylistId" db:"sub_playlist_id"`
	IsSubPlaylist  bool      `json:"isSubPlaylist" db:"is_sub_playlist"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}
