// package repositories provides the sqlite persistence layer.
//
// Two small stores back the bot: the Spotify refresh credential captured by
// the OAuth callback, and an append-only log of created playlists.
package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"setlistbot/internal/services"
	"setlistbot/internal/shared"
)

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	refresh_token TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS playlists (
	id TEXT PRIMARY KEY,
	artist TEXT NOT NULL,
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	track_count INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

// EnsureSchema creates the bot's tables when they do not exist yet.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// TokenRepository stores the single worker-account refresh credential.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a TokenRepository backed by the given database.
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// SaveToken upserts the refresh credential. There is exactly one row; a new
// authorization replaces the previous credential.
func (r *TokenRepository) SaveToken(refreshToken string) error {
	_, err := r.db.Exec(
		`INSERT INTO credentials (id, refresh_token, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET refresh_token = excluded.refresh_token, updated_at = excluded.updated_at`,
		refreshToken, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// LoadToken returns the stored refresh credential, or
// [shared.ErrNoRefreshToken] when none has been captured yet.
func (r *TokenRepository) LoadToken() (string, error) {
	var token string
	err := r.db.QueryRow(`SELECT refresh_token FROM credentials WHERE id = 1`).Scan(&token)
	if err == sql.ErrNoRows {
		return "", shared.ErrNoRefreshToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

// PlaylistRepository keeps an append-only log of playlists the bot created.
//
// Implements tasks.PlaylistRecorder; the pipeline treats recording as
// best-effort.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a PlaylistRepository backed by the given database.
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Record inserts one created playlist.
func (r *PlaylistRepository) Record(artist string, playlist *services.Playlist) error {
	_, err := r.db.Exec(
		`INSERT INTO playlists (id, artist, name, url, track_count, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		playlist.ID, artist, playlist.Name, playlist.URL, playlist.TrackCount, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record playlist: %w", err)
	}
	return nil
}

// PlaylistRecord is one row of the created-playlist log.
type PlaylistRecord struct {
	ID         string
	Artist     string
	Name       string
	URL        string
	TrackCount int
	CreatedAt  time.Time
}

// Recent returns the most recently created playlists, newest first.
func (r *PlaylistRepository) Recent(limit int) ([]PlaylistRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(
		`SELECT id, artist, name, url, track_count, created_at FROM playlists ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	var records []PlaylistRecord
	for rows.Next() {
		var rec PlaylistRecord
		if err := rows.Scan(&rec.ID, &rec.Artist, &rec.Name, &rec.URL, &rec.TrackCount, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist row: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
