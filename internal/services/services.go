// package services defines the collaborator contracts the workflow engine
// consumes, plus the concrete adapters shipped with the CLI.
//
// The engine never talks to Spotify or a chat transport directly; it sees
// only these narrow interfaces.
package services

import (
	"context"

	"github.com/jamworks/jambot/internal/models"
)

// MusicCatalogGateway resolves songs and commits playlists against the
// music catalog.
type MusicCatalogGateway interface {
	// Search returns up to limit ranked track candidates for a title.
	Search(ctx context.Context, title string, limit int) ([]models.TrackRef, error)

	// ResolveURL resolves a track URL to a TrackRef.
	// Returns nil without error when the URL is not a track link.
	ResolveURL(ctx context.Context, url string) (*models.TrackRef, error)

	// CreatePlaylist creates an empty playlist and returns its handle.
	CreatePlaylist(ctx context.Context, name, description string) (*models.PlaylistRef, error)

	// AddTracks appends tracks (by URI) to an existing playlist in order.
	AddTracks(ctx context.Context, playlistID string, trackURIs []string) error
}

// NotificationGateway delivers approval notifications to users and channels.
// Delivery failure is a per-call error, never process-fatal.
type NotificationGateway interface {
	// SendToUser delivers content with selection affordances to a user and
	// returns an opaque handle for later selection events and edits.
	SendToUser(ctx context.Context, userID, content string, affordances []models.Affordance) (string, error)

	// EditSummary replaces the content of a previously delivered summary.
	EditSummary(ctx context.Context, handle, content string) error

	// Announce posts content to a channel (playlist announcements).
	Announce(ctx context.Context, channelID, content string) error
}
