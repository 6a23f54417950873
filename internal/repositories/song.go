package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/shared"
)

// SongRepository persists a tenant's song history.
//
// The history maps setlist titles to the tracks used for them before, so a
// repeated song resolves to the same recording without another search.
// Title lookups are exact and case sensitive.
type SongRepository struct {
	db *sql.DB
}

// NewSongRepository creates a new SongRepository with the given database connection
func NewSongRepository(db *sql.DB) *SongRepository {
	return &SongRepository{db: db}
}

// Upsert records that the track was used for the title on the given date.
// New titles get first_used = last_used = usedOn; existing rows keep their
// first_used and advance last_used, adopting the new track.
func (r *SongRepository) Upsert(tenantID, title string, track models.TrackRef, usedOn time.Time) error {
	if tenantID == "" || title == "" {
		return fmt.Errorf("%w: tenant ID and title are required", shared.ErrInvalidInput)
	}

	query := `
		INSERT INTO songs (id, tenant_id, song_title, track_id, track_name, artist, album, url, uri, first_used, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, song_title) DO UPDATE SET
			track_id = excluded.track_id,
			track_name = excluded.track_name,
			artist = excluded.artist,
			album = excluded.album,
			url = excluded.url,
			uri = excluded.uri,
			last_used = excluded.last_used
	`

	_, err := r.db.Exec(query,
		shared.GenerateID(),
		tenantID,
		title,
		track.ID,
		track.Name,
		track.Artist,
		track.Album,
		track.URL,
		track.URI,
		usedOn,
		usedOn,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert song history: %w", err)
	}

	return nil
}

// Lookup returns the history record for the exact title, or nil.
func (r *SongRepository) Lookup(tenantID, title string) (*models.SongRecord, error) {
	query := `
		SELECT id, tenant_id, song_title, track_id, track_name, artist, album, url, uri, first_used, last_used
		FROM songs
		WHERE tenant_id = ? AND song_title = ?
	`

	return r.scanOne(r.db.QueryRow(query, tenantID, title))
}

// List retrieves a tenant's full history ordered by most recent use.
func (r *SongRepository) List(tenantID string) ([]*models.SongRecord, error) {
	query := `
		SELECT id, tenant_id, song_title, track_id, track_name, artist, album, url, uri, first_used, last_used
		FROM songs
		WHERE tenant_id = ?
		ORDER BY last_used DESC, song_title ASC
	`

	rows, err := r.db.Query(query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query song history: %w", err)
	}
	defer rows.Close()

	var records []*models.SongRecord
	for rows.Next() {
		record, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// Delete removes a title from the history.
func (r *SongRepository) Delete(tenantID, title string) error {
	result, err := r.db.Exec("DELETE FROM songs WHERE tenant_id = ? AND song_title = ?", tenantID, title)
	if err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("song not found: %s", title)
	}

	return nil
}

func (r *SongRepository) scanOne(row *sql.Row) (*models.SongRecord, error) {
	record, err := scanSong(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan song: %w", err)
	}
	return record, nil
}

func (r *SongRepository) scanRow(rows *sql.Rows) (*models.SongRecord, error) {
	record, err := scanSong(rows.Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan song: %w", err)
	}
	return record, nil
}

func scanSong(scan func(...any) error) (*models.SongRecord, error) {
	var record models.SongRecord

	err := scan(
		&record.ID,
		&record.TenantID,
		&record.SongTitle,
		&record.Track.ID,
		&record.Track.Name,
		&record.Track.Artist,
		&record.Track.Album,
		&record.Track.URL,
		&record.Track.URI,
		&record.FirstUsed,
		&record.LastUsed,
	)
	if err != nil {
		return nil, err
	}

	return &record, nil
}
