package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/shared"
)

// TenantConfigRepository persists per-tenant configuration records.
//
// A tenant row carries the role lists, catalog credentials and extraction
// pattern overrides. There is at most one row per tenant.
type TenantConfigRepository struct {
	db *sql.DB
}

// NewTenantConfigRepository creates a new TenantConfigRepository with the given database connection
func NewTenantConfigRepository(db *sql.DB) *TenantConfigRepository {
	return &TenantConfigRepository{db: db}
}

// Upsert inserts or replaces the configuration row for the tenant.
func (r *TenantConfigRepository) Upsert(config *models.TenantConfig) error {
	if config.TenantID == "" {
		return fmt.Errorf("%w: tenant ID is required", shared.ErrInvalidInput)
	}

	leaders, err := marshalColumn(config.LeaderIDs)
	if err != nil {
		return err
	}
	approvers, err := marshalColumn(config.ApproverIDs)
	if err != nil {
		return err
	}
	admins, err := marshalColumn(config.AdminIDs)
	if err != nil {
		return err
	}

	config.UpdatedAt = time.Now()

	query := `
		INSERT INTO tenant_configuration (tenant_id, leader_ids, approver_ids, admin_ids, channel_id, playlist_name_template, spotify_client_id, spotify_client_secret, spotify_redirect_uri, intro_pattern, song_pattern, updated_at, updated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			leader_ids = excluded.leader_ids,
			approver_ids = excluded.approver_ids,
			admin_ids = excluded.admin_ids,
			channel_id = excluded.channel_id,
			playlist_name_template = excluded.playlist_name_template,
			spotify_client_id = excluded.spotify_client_id,
			spotify_client_secret = excluded.spotify_client_secret,
			spotify_redirect_uri = excluded.spotify_redirect_uri,
			intro_pattern = excluded.intro_pattern,
			song_pattern = excluded.song_pattern,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by
	`

	_, err = r.db.Exec(query,
		config.TenantID,
		leaders,
		approvers,
		admins,
		config.ChannelID,
		config.PlaylistNameTemplate,
		config.SpotifyClientID,
		config.SpotifyClientSecret,
		config.SpotifyRedirectURI,
		config.Patterns.Intro,
		config.Patterns.Song,
		config.UpdatedAt,
		config.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant configuration: %w", err)
	}

	return nil
}

// Get retrieves a tenant's configuration, or nil when none exists.
func (r *TenantConfigRepository) Get(tenantID string) (*models.TenantConfig, error) {
	query := `
		SELECT tenant_id, leader_ids, approver_ids, admin_ids, channel_id, playlist_name_template, spotify_client_id, spotify_client_secret, spotify_redirect_uri, intro_pattern, song_pattern, updated_at, updated_by
		FROM tenant_configuration
		WHERE tenant_id = ?
	`

	var (
		config       models.TenantConfig
		leaders      string
		approvers    string
		admins       string
		channelID    sql.NullString
		template     sql.NullString
		clientID     sql.NullString
		clientSecret sql.NullString
		redirectURI  sql.NullString
		introPattern sql.NullString
		songPattern  sql.NullString
	)

	err := r.db.QueryRow(query, tenantID).Scan(
		&config.TenantID,
		&leaders,
		&approvers,
		&admins,
		&channelID,
		&template,
		&clientID,
		&clientSecret,
		&redirectURI,
		&introPattern,
		&songPattern,
		&config.UpdatedAt,
		&config.UpdatedBy,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tenant configuration: %w", err)
	}

	if err := unmarshalColumn(leaders, &config.LeaderIDs); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(approvers, &config.ApproverIDs); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(admins, &config.AdminIDs); err != nil {
		return nil, err
	}

	config.ChannelID = channelID.String
	config.PlaylistNameTemplate = template.String
	config.SpotifyClientID = clientID.String
	config.SpotifyClientSecret = clientSecret.String
	config.SpotifyRedirectURI = redirectURI.String
	config.Patterns = models.ExtractionPattern{Intro: introPattern.String, Song: songPattern.String}

	return &config, nil
}

// UpdatePatterns stores new extraction patterns for the tenant.
func (r *TenantConfigRepository) UpdatePatterns(tenantID string, patterns models.ExtractionPattern, updatedBy string) error {
	query := `
		UPDATE tenant_configuration
		SET intro_pattern = ?, song_pattern = ?, updated_at = ?, updated_by = ?
		WHERE tenant_id = ?
	`

	result, err := r.db.Exec(query, patterns.Intro, patterns.Song, time.Now(), updatedBy, tenantID)
	if err != nil {
		return fmt.Errorf("failed to update patterns: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		// No configuration row yet: create a minimal one so the
		// patterns survive until roles are configured.
		config := &models.TenantConfig{
			TenantID:  tenantID,
			Patterns:  patterns,
			UpdatedBy: updatedBy,
		}
		return r.Upsert(config)
	}

	return nil
}
