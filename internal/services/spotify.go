// Spotify implementation of [MusicCatalogGateway] built on the official Web API.
package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Spotify allows roughly 180 requests per minute per app; stay under it.
const spotifyRequestsPerSecond = 2

// SpotifyGateway implements [MusicCatalogGateway] against the Spotify Web API.
type SpotifyGateway struct {
	client  *spotify.Client
	limiter *rate.Limiter
	logger  *log.Logger
	userID  string
}

// SpotifyCredentials holds the OAuth app credentials and a previously
// granted token for one tenant.
type SpotifyCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Token        *oauth2.Token
}

// NewSpotifyGateway builds a gateway from tenant credentials. The token must
// carry playlist-modify scope; refresh happens transparently through the
// oauth2 transport.
func NewSpotifyGateway(ctx context.Context, creds SpotifyCredentials, logger *log.Logger) (*SpotifyGateway, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing spotify client credentials", shared.ErrInvalidConfig)
	}
	if creds.Token == nil {
		return nil, fmt.Errorf("%w: no spotify token granted", shared.ErrNotAuthenticated)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(creds.ClientID),
		spotifyauth.WithClientSecret(creds.ClientSecret),
		spotifyauth.WithRedirectURL(creds.RedirectURI),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
		),
	)

	client := spotify.New(auth.Client(ctx, creds.Token), spotify.WithRetry(true))

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}

	logger.Info("spotify gateway ready", "user", user.ID)
	return &SpotifyGateway{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(spotifyRequestsPerSecond), 1),
		logger:  logger.With("component", "spotify"),
		userID:  user.ID,
	}, nil
}

// NewSpotifyGatewayFromClient wraps an existing HTTP client, used by tests.
func NewSpotifyGatewayFromClient(httpClient *http.Client, userID string, logger *log.Logger) *SpotifyGateway {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SpotifyGateway{
		client:  spotify.New(httpClient),
		limiter: rate.NewLimiter(rate.Limit(spotifyRequestsPerSecond), 1),
		logger:  logger.With("component", "spotify"),
		userID:  userID,
	}
}

// Search queries the catalog for a title, trying an exact quoted search
// first and falling back to an unquoted one.
func (g *SpotifyGateway) Search(ctx context.Context, title string, limit int) ([]models.TrackRef, error) {
	if limit <= 0 || limit > 3 {
		limit = 3
	}

	for _, query := range []string{
		fmt.Sprintf("track:%q", title),
		fmt.Sprintf("track:%s", title),
	} {
		tracks, err := g.search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		if len(tracks) > 0 {
			return tracks, nil
		}
	}

	g.logger.Warn("no catalog matches", "title", title)
	return nil, nil
}

func (g *SpotifyGateway) search(ctx context.Context, query string, limit int) ([]models.TrackRef, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	results, err := g.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: search %q: %v", shared.ErrCatalogRequest, query, err)
	}
	if results.Tracks == nil {
		return nil, nil
	}

	tracks := make([]models.TrackRef, 0, len(results.Tracks.Tracks))
	for _, item := range results.Tracks.Tracks {
		tracks = append(tracks, transformTrack(item))
	}
	return tracks, nil
}

// ResolveURL resolves an open.spotify.com track URL to a TrackRef.
// Non-track URLs resolve to nil without error.
func (g *SpotifyGateway) ResolveURL(ctx context.Context, url string) (*models.TrackRef, error) {
	id := extractTrackID(url)
	if id == "" {
		return nil, nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	track, err := g.client.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTrackNotFound, err)
	}

	ref := transformTrack(*track)
	return &ref, nil
}

// CreatePlaylist creates a public playlist for the authenticated user.
func (g *SpotifyGateway) CreatePlaylist(ctx context.Context, name, description string) (*models.PlaylistRef, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	playlist, err := g.client.CreatePlaylistForUser(ctx, g.userID, name, description, true, false)
	if err != nil {
		return nil, fmt.Errorf("%w: create playlist: %v", shared.ErrCommit, err)
	}

	return &models.PlaylistRef{
		ID:   string(playlist.ID),
		Name: playlist.Name,
		URL:  playlist.ExternalURLs["spotify"],
	}, nil
}

// AddTracks appends tracks to a playlist in the given order.
func (g *SpotifyGateway) AddTracks(ctx context.Context, playlistID string, trackURIs []string) error {
	if len(trackURIs) == 0 {
		return nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	ids := make([]spotify.ID, 0, len(trackURIs))
	for _, uri := range trackURIs {
		ids = append(ids, spotify.ID(strings.TrimPrefix(uri, "spotify:track:")))
	}

	if _, err := g.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
		return fmt.Errorf("%w: add tracks: %v", shared.ErrCommit, err)
	}
	return nil
}

// transformTrack converts a Spotify API track into the engine's opaque handle.
func transformTrack(t spotify.FullTrack) models.TrackRef {
	artists := make([]string, 0, len(t.Artists))
	for _, artist := range t.Artists {
		artists = append(artists, artist.Name)
	}

	return models.TrackRef{
		ID:     string(t.ID),
		Name:   t.Name,
		Artist: strings.Join(artists, ", "),
		Album:  t.Album.Name,
		URL:    t.ExternalURLs["spotify"],
		URI:    string(t.URI),
	}
}

// extractTrackID pulls the track ID from an open.spotify.com URL.
func extractTrackID(url string) string {
	const marker = "/track/"
	idx := strings.Index(url, marker)
	if idx < 0 {
		return ""
	}
	id := url[idx+len(marker):]
	if q := strings.IndexAny(id, "?#"); q >= 0 {
		id = id[:q]
	}
	return strings.TrimSuffix(id, "/")
}
