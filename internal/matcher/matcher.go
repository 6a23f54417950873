// Package matcher resolves parsed setlist songs to catalog tracks.
//
// Resolution is a pure read: song history first (exact title match), then a
// bounded catalog search. Matching never writes history; only a committed
// workflow does.
package matcher

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/parser"
	"github.com/jamworks/jambot/internal/services"
	"github.com/jamworks/jambot/internal/shared"
)

// DefaultSearchLimit caps catalog candidates per song.
const DefaultSearchLimit = 3

// HistoryStore is the read side of the song history.
type HistoryStore interface {
	Lookup(tenantID, title string) (*models.SongRecord, error)
}

// SongMatcher resolves song titles against history and the music catalog.
type SongMatcher struct {
	history HistoryStore
	catalog services.MusicCatalogGateway
	logger  *log.Logger
	limit   int
}

func New(history HistoryStore, catalog services.MusicCatalogGateway, limit int, logger *log.Logger) *SongMatcher {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SongMatcher{
		history: history,
		catalog: catalog,
		logger:  logger.With("component", "matcher"),
		limit:   limit,
	}
}

// MatchAll resolves every song of a setlist in source order. A catalog
// error for one song fails the whole batch so the workflow never starts
// with partial knowledge.
func (m *SongMatcher) MatchAll(ctx context.Context, tenantID string, setlist *models.ParsedSetlist) ([]models.SongMatch, error) {
	matches := make([]models.SongMatch, 0, len(setlist.Songs))
	for _, song := range setlist.Songs {
		match, err := m.Match(ctx, tenantID, song)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Match resolves one song. The search key is the title with trailing
// annotations stripped; the source title stays on the match so history
// writes and notifications use the setlist's spelling.
func (m *SongMatcher) Match(ctx context.Context, tenantID string, song models.SongEntry) (models.SongMatch, error) {
	match := models.SongMatch{Number: song.Number, Title: song.Title}
	key := parser.StripAnnotations(song.Title)

	record, err := m.history.Lookup(tenantID, key)
	if err != nil {
		return match, fmt.Errorf("history lookup for %q: %w", key, err)
	}
	if record != nil {
		track := record.Track
		match.StoredVersion = &track
		return match, nil
	}

	candidates, err := m.catalog.Search(ctx, key, m.limit)
	if err != nil {
		return match, fmt.Errorf("catalog search for %q: %w", key, err)
	}
	if len(candidates) == 0 {
		m.logger.Warn("no match", "song", key, "tenant", tenantID)
	}

	match.Candidates = candidates
	return match, nil
}
