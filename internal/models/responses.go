package models

import "time"

// Pagination describes a page of a longer result set
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// NewPagination builds the page descriptor for total rows
func NewPagination(total, limit, offset int) Pagination {
	return Pagination{Total: total, Limit: limit, Offset: offset, HasMore: offset+limit < total}
}

// FolderCard is a folder summary shown on the media dashboard
type FolderCard struct {
	ID             int64      `json:"id" db:"id"`
	Name           string     `json:"name" db:"name"`
	ValidityStart  *time.Time `json:"validityStart" db:"validity_start"`
	ValidityEnd    *time.Time `json:"validityEnd" db:"validity_end"`
	Verified       bool       `json:"verified" db:"verified"`
	ValidityStatus string     `json:"validityStatus" db:"-"`
	FolderSize     int64      `json:"folderSize" db:"folder_size"`
	FolderDuration float64    `json:"folderDuration" db:"folder_duration"`
	ThumbnailKey   *string    `json:"-" db:"thumbnail_key"`
	Thumbnail      *string    `json:"thumbnail" db:"-"`
	LastModified   time.Time  `json:"lastModified" db:"last_modified"`
	Active         bool       `json:"-" db:"active"`
	Status         string     `json:"status" db:"-"`
}

// MediaItem is a file row with a signed download URL
type MediaItem struct {
	ID            int64     `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	FileType      string    `json:"fileType" db:"file_type"`
	FileTypeGroup string    `json:"fileTypeGroup" db:"-"`
	FileKey       string    `json:"-" db:"file_key"`
	FileSize      int64     `json:"fileSize" db:"file_size"`
	Duration      *float64  `json:"duration" db:"duration"`
	FolderID      int64     `json:"folderId" db:"folder_id"`
	URL           string    `json:"url" db:"-"`
	Active        bool      `json:"-" db:"active"`
	Status        string    `json:"status" db:"-"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// IDName is the minimal reference used by dropdowns
type IDName struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// PlaylistCard is a playlist summary for the playlist dashboard
type PlaylistCard struct {
	ID              int64     `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	DefaultDuration int       `json:"defaultDuration" db:"default_duration"`
	ThumbnailKey    *string   `json:"-" db:"thumbnail_key"`
	Thumbnail       *string   `json:"thumbnail" db:"-"`
	TotalItems      int       `json:"totalItems" db:"total_items"`
	DurationSec     int       `json:"durationSec" db:"duration_sec"`
	PlaylistSize    int64     `json:"playlistSize" db:"playlist_size"`
	LastModified    time.Time `json:"lastModified" db:"last_modified"`
}

// PlaylistItem is one slot in the playlist detail view
type PlaylistItem struct {
	PlaylistFileID int64     `json:"playlistFileId" db:"playlist_file_id"`
	FileID         *int64    `json:"fileId" db:"file_id"`
	SubPlaylistID  *int64    `json:"subPlaylistId" db:"sub_playlist_id"`
	Name           string    `json:"name" db:"name"`
	FileKey        *string   `json:"-" db:"file_key"`
	URL            *string   `json:"url" db:"-"`
	Type           string    `json:"type" db:"type"`
	Duration       int       `json:"duration" db:"duration"`
	PlayOrder      int       `json:"playOrder" db:"play_order"`
	Size           int64     `json:"size" db:"size"`
	LastModified   time.Time `json:"lastModified" db:"last_modified"`
	LogsCount      int64     `json:"logsCount" db:"logs_count"`
}

// PlaylistDetail is a playlist with its items
type PlaylistDetail struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	DefaultDuration int            `json:"defaultDuration"`
	Items           []PlaylistItem `json:"items"`
}

// PlayerRow is a player with its latest session state
type PlayerRow struct {
	ID                 int64      `json:"id" db:"id"`
	Name               string     `json:"name" db:"name"`
	DeviceCode         string     `json:"deviceCode" db:"device_code"`
	DeviceKey          string     `json:"deviceKey" db:"device_key"`
	Location           *string    `json:"location" db:"location"`
	Linked             bool       `json:"linked" db:"linked"`
	PlaylistID         *int64     `json:"playlistId" db:"playlist_id"`
	Playlist           *string    `json:"playlist" db:"playlist_name"`
	SessionStart       *time.Time `json:"sessionStart" db:"session_start"`
	SessionEnd         *time.Time `json:"sessionEnd" db:"session_end"`
	LastActive         *time.Time `json:"lastActive" db:"last_active"`
	SessionActive      bool       `json:"-" db:"session_active"`
	Status             string     `json:"status" db:"-"`
	SessionDurationSec int64      `json:"sessionDurationSec" db:"-"`
}

// ActivityItem is one ONLINE or OFFLINE entry in the activity feed
type ActivityItem struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	PlayerID   int64     `json:"playerId"`
	PlayerName string    `json:"playerName"`
	At         time.Time `json:"at"`
	Message    string    `json:"message"`
}

// TrashItem is a soft-deleted folder or file
type TrashItem struct {
	Kind           string    `json:"kind" db:"kind"`
	ID             int64     `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	FileType       *string   `json:"-" db:"file_type"`
	Type           string    `json:"type" db:"-"`
	Location       string    `json:"location" db:"location"`
	FolderID       *int64    `json:"folderId" db:"folder_id"`
	FolderDeleted  bool      `json:"folderDeleted" db:"folder_deleted"`
	FileKey        *string   `json:"-" db:"file_key"`
	DeletedAt      time.Time `json:"deletedAt" db:"deleted_at"`
	DeletedAtLabel string    `json:"deletedAtLabel" db:"-"`
	Thumbnail      *string   `json:"thumbnail" db:"-"`
}

// TVFile is a playable file with a signed URL
type TVFile struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	FileType  string   `json:"fileType"`
	FileSize  int64    `json:"fileSize"`
	Duration  *float64 `json:"duration"`
	SignedURL string   `json:"signedUrl"`
}

// TVPlaylistItem is a slot of the playlist sent to devices
type TVPlaylistItem struct {
	PlaylistFileID int64       `json:"playlistFileId"`
	PlayOrder      int         `json:"playOrder"`
	Duration       int         `json:"duration"`
	IsSubPlaylist  bool        `json:"isSubPlaylist"`
	FileID         *int64      `json:"fileId"`
	SubPlaylistID  *int64      `json:"subPlaylistId"`
	File           *TVFile     `json:"file,omitempty"`
	SubPlaylist    *TVPlaylist `json:"subPlaylist,omitempty"`
}

// TVPlaylist is the device view of a playlist
type TVPlaylist struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	DefaultDuration int              `json:"defaultDuration"`
	PlaylistFiles   []TVPlaylistItem `json:"playlistFiles"`
}

// AnalyticsSummary holds the dashboard counters
type AnalyticsSummary struct {
	TotalFolders int `json:"totalFolders"`
	Players      int `json:"players"`
	Online       int `json:"online"`
	Offline      int `json:"offline"`
}

// TopClient is a folder ranked by plays
type TopClient struct {
	FolderID   int64  `json:"folderId" db:"folder_id"`
	FolderName string `json:"folderName" db:"folder_name"`
	AdsPlayed  int64  `json:"adsPlayed" db:"ads_played"`
}

// TopPlayer is a player ranked by plays
type TopPlayer struct {
	PlayerID   int64  `json:"playerId" db:"player_id"`
	PlayerName string `json:"playerName" db:"player_name"`
	AdsPlayed  int64  `json:"adsPlayed" db:"ads_played"`
}

// SessionRow is a player session with its computed status
type SessionRow struct {
	SessionID          int64      `json:"sessionId" db:"id"`
	PlayerID           int64      `json:"playerId" db:"player_id"`
	Name               string     `json:"name" db:"name"`
	SessionStart       time.Time  `json:"sessionStart" db:"started_at"`
	SessionEnd         *time.Time `json:"sessionEnd" db:"ended_at"`
	LastActive         time.Time  `json:"lastActive" db:"last_active_at"`
	IsActive           bool       `json:"-" db:"is_active"`
	Status             string     `json:"status" db:"-"`
	SessionDurationSec int64      `json:"sessionDurationSec" db:"-"`
}

// LogRow is an aggregated play-log line for one folder, file, or playlist
type LogRow struct {
	ID              int64      `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	FileType        *string    `json:"fileType,omitempty" db:"file_type"`
	FileKey         *string    `json:"-" db:"file_key"`
	SignedURL       *string    `json:"signedUrl,omitempty" db:"-"`
	PlaylistFileID  *int64     `json:"playlistFileId,omitempty" db:"playlist_file_id"`
	LastPlayedAt    *time.Time `json:"lastPlayedAt" db:"last_played_at"`
	TotalRunTimeSec float64    `json:"totalRunTimeSec" db:"total_run_time_sec"`
	Devices         int64      `json:"devices" db:"devices"`
	Plays           int64      `json:"plays" db:"plays"`
}

// PlayerStat is per-player play activity for one folder
type PlayerStat struct {
	PlayerID     int64      `json:"playerId" db:"player_id"`
	Name         string     `json:"name" db:"name"`
	LastActive   *time.Time `json:"lastActive" db:"last_active"`
	SessionLive  bool       `json:"-" db:"session_live"`
	Plays        int64      `json:"plays" db:"plays"`
	RunTimeSec   float64    `json:"-" db:"run_time_sec"`
	TotalHours   float64    `json:"totalHours" db:"-"`
	Status       string     `json:"status" db:"-"`
	LastPlayedAt *time.Time `json:"lastPlayedAt" db:"last_played_at"`
}

// PlayerLogRow is per-player session activity within a date range
type PlayerLogRow struct {
	ID              int64      `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	SessionStart    *time.Time `json:"sessionStart" db:"session_start"`
	SessionEnd      *time.Time `json:"sessionEnd" db:"session_end"`
	LastActive      *time.Time `json:"lastActive" db:"last_active"`
	SessionLive     bool       `json:"-" db:"session_live"`
	Status          string     `json:"status" db:"-"`
	TotalRunTimeSec float64    `json:"totalRunTimeSec" db:"total_run_time_sec"`
}
