package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/shared"
)

// SetlistRepository persists the audit trail of processed setlists.
type SetlistRepository struct {
	db *sql.DB
}

// NewSetlistRepository creates a new SetlistRepository with the given database connection
func NewSetlistRepository(db *sql.DB) *SetlistRepository {
	return &SetlistRepository{db: db}
}

// Create inserts a new setlist record with a generated ID.
func (r *SetlistRepository) Create(record *models.SetlistRecord) error {
	if record.TenantID == "" {
		return fmt.Errorf("%w: tenant ID is required", shared.ErrInvalidInput)
	}
	if record.Status == "" {
		record.Status = models.SetlistCreated
	}

	record.ID = shared.GenerateID()
	record.CreatedAt = time.Now()

	query := `
		INSERT INTO setlists (id, tenant_id, date, time, playlist_name, playlist_id, playlist_url, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		record.ID,
		record.TenantID,
		record.Date,
		record.Time,
		record.PlaylistName,
		record.PlaylistID,
		record.PlaylistURL,
		record.Status,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert setlist: %w", err)
	}

	return nil
}

// Get retrieves a setlist record by ID.
func (r *SetlistRepository) Get(id string) (*models.SetlistRecord, error) {
	query := `
		SELECT id, tenant_id, date, time, playlist_name, playlist_id, playlist_url, status, created_at
		FROM setlists
		WHERE id = ?
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// ListByTenant retrieves a tenant's setlist records, newest first.
func (r *SetlistRepository) ListByTenant(tenantID string) ([]*models.SetlistRecord, error) {
	query := `
		SELECT id, tenant_id, date, time, playlist_name, playlist_id, playlist_url, status, created_at
		FROM setlists
		WHERE tenant_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query setlists: %w", err)
	}
	defer rows.Close()

	var records []*models.SetlistRecord
	for rows.Next() {
		var record models.SetlistRecord
		var playlistID, playlistURL sql.NullString
		err := rows.Scan(&record.ID, &record.TenantID, &record.Date, &record.Time, &record.PlaylistName, &playlistID, &playlistURL, &record.Status, &record.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan setlist: %w", err)
		}
		record.PlaylistID = playlistID.String
		record.PlaylistURL = playlistURL.String
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// SetStatus transitions the setlist record's status.
func (r *SetlistRepository) SetStatus(id string, status models.SetlistStatus) error {
	result, err := r.db.Exec("UPDATE setlists SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update setlist status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("setlist not found: %s", id)
	}

	return nil
}

func (r *SetlistRepository) scanOne(row *sql.Row) (*models.SetlistRecord, error) {
	var record models.SetlistRecord
	var playlistID, playlistURL sql.NullString

	err := row.Scan(&record.ID, &record.TenantID, &record.Date, &record.Time, &record.PlaylistName, &playlistID, &playlistURL, &record.Status, &record.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan setlist: %w", err)
	}

	record.PlaylistID = playlistID.String
	record.PlaylistURL = playlistURL.String
	return &record, nil
}
