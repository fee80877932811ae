package database

type migration struct {
	name string
	stmt string
}

var migrations = []migration{
	{"admin_users table", `
		CREATE TABLE IF NOT EXISTS admin_users (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(50) NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`},
	{"folders table", `
		CREATE TABLE IF NOT EXISTS folders (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			validity_start TIMESTAMP WITH TIME ZONE,
			validity_end TIMESTAMP WITH TIME ZONE,
			verified BOOLEAN NOT NULL DEFAULT TRUE,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`},
	{"files table", `
		CREATE TABLE IF NOT EXISTS files (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			file_type VARCHAR(100) NOT NULL,
			file_key TEXT NOT NULL,
			file_size BIGINT NOT NULL DEFAULT 0,
			duration DOUBLE PRECISION,
			verified BOOLEAN NOT NULL DEFAULT TRUE,
			folder_id BIGINT NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`},
	{"playlists table", `
		CREATE TABLE IF NOT EXISTS playlists (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(50) NOT NULL,
			default_duration INTEGER NOT NULL DEFAULT 30,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`},
	{"playlist_files table", `
		CREATE TABLE IF NOT EXISTS playlist_files (
			id BIGSERIAL PRIMARY KEY,
			playlist_id BIGINT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
			file_id BIGINT REFERENCES files(id) ON DELETE CASCADE,
			sub_playlist_id BIGINT REFERENCES playlists(id) ON DELETE CASCADE,
			is_sub_playlist BOOLEAN NOT NULL DEFAULT FALSE,
			duration INTEGER NOT NULL,
			play_order INTEGER NOT NULL CHECK (play_order >= 1),
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			CHECK ((file_id IS NOT NULL) <> (sub_playlist_id IS NOT NULL)),
			CONSTRAINT playlist_files_order_key UNIQUE (playlist_id, play_order) DEFERRABLE INITIALLY DEFERRED
		)
	`},
	{"players table", `
		CREATE TABLE IF NOT EXISTS players (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			device_code VARCHAR(32) UNIQUE NOT NULL,
			device_key VARCHAR(32) UNIQUE NOT NULL,
			location VARCHAR(255),
			playlist_id BIGINT REFERENCES playlists(id) ON DELETE SET NULL,
			linked BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`},
	{"player_sessions table", `
		CREATE TABLE IF NOT EXISTS player_sessions (
			id BIGSERIAL PRIMARY KEY,
			player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			ended_at TIMESTAMP WITH TIME ZONE,
			last_active_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`},
	{"play_logs table", `
		CREATE TABLE IF NOT EXISTS play_logs (
			id BIGSERIAL PRIMARY KEY,
			player_id BIGINT REFERENCES players(id) ON DELETE SET NULL,
			file_id BIGINT REFERENCES files(id) ON DELETE SET NULL,
			playlist_id BIGINT REFERENCES playlists(id) ON DELETE SET NULL,
			playlist_file_id BIGINT REFERENCES playlist_files(id) ON DELETE SET NULL,
			sub_playlist_id BIGINT REFERENCES playlists(id) ON DELETE SET NULL,
			is_sub_playlist BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`},
	{"indexes", `
		CREATE UNIQUE INDEX IF NOT EXISTS folders_live_name_key ON folders(name) WHERE NOT is_deleted;
		CREATE UNIQUE INDEX IF NOT EXISTS player_sessions_one_active_key ON player_sessions(player_id) WHERE is_active AND ended_at IS NULL;
		CREATE INDEX IF NOT EXISTS files_folder_id_idx ON files(folder_id);
		CREATE INDEX IF NOT EXISTS playlist_files_file_id_idx ON playlist_files(file_id);
		CREATE INDEX IF NOT EXISTS playlist_files_sub_playlist_id_idx ON playlist_files(sub_playlist_id);
		CREATE INDEX IF NOT EXISTS player_sessions_player_started_idx ON player_sessions(player_id, started_at DESC);
		CREATE INDEX IF NOT EXISTS play_logs_created_at_idx ON play_logs(created_at);
		CREATE INDEX IF NOT EXISTS play_logs_file_id_idx ON play_logs(file_id);
		CREATE INDEX IF NOT EXISTS play_logs_player_id_idx ON play_logs(player_id);
	`},
}
