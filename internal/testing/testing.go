// package testing contains shared testing utilities
package testing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/shared"
)

// Track builds a catalog track for test fixtures.
func Track(id, name string) models.TrackRef {
	return models.TrackRef{
		ID:     id,
		Name:   name,
		Artist: "Test Artist",
		Album:  "Test Album",
		URL:    "https://open.spotify.com/track/" + id,
		URI:    "spotify:track:" + id,
	}
}

// MockCatalog is a test double for [services.MusicCatalogGateway].
//
// Searches resolve from the Results map keyed by title; URLs resolve from
// the Tracks map keyed by track ID. Error fields force failures.
type MockCatalog struct {
	mu sync.Mutex

	Results map[string][]models.TrackRef
	Tracks  map[string]models.TrackRef

	SearchErr   error
	CreateErr   error
	AddErr      error
	ResolveErr  error
	Searched    []string
	Created     []models.PlaylistRef
	AddedTracks map[string][]string
}

func NewMockCatalog() *MockCatalog {
	return &MockCatalog{
		Results:     make(map[string][]models.TrackRef),
		Tracks:      make(map[string]models.TrackRef),
		AddedTracks: make(map[string][]string),
	}
}

func (m *MockCatalog) Search(ctx context.Context, title string, limit int) ([]models.TrackRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Searched = append(m.Searched, title)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}

	results := m.Results[title]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MockCatalog) ResolveURL(ctx context.Context, url string) (*models.TrackRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ResolveErr != nil {
		return nil, m.ResolveErr
	}

	const marker = "/track/"
	idx := strings.Index(url, marker)
	if idx < 0 {
		return nil, nil
	}
	id := strings.TrimSuffix(url[idx+len(marker):], "/")

	track, ok := m.Tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	return &track, nil
}

func (m *MockCatalog) CreatePlaylist(ctx context.Context, name, description string) (*models.PlaylistRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return nil, m.CreateErr
	}

	playlist := models.PlaylistRef{
		ID:   fmt.Sprintf("playlist-%d", len(m.Created)+1),
		Name: name,
		URL:  fmt.Sprintf("https://open.spotify.com/playlist/playlist-%d", len(m.Created)+1),
	}
	m.Created = append(m.Created, playlist)
	return &playlist, nil
}

func (m *MockCatalog) AddTracks(ctx context.Context, playlistID string, trackURIs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AddErr != nil {
		return m.AddErr
	}
	m.AddedTracks[playlistID] = append(m.AddedTracks[playlistID], trackURIs...)
	return nil
}

// SentMessage records one delivery through [MockNotifier].
type SentMessage struct {
	Handle      string
	UserID      string
	Content     string
	Affordances []models.Affordance
}

// MockNotifier is a test double for [services.NotificationGateway].
//
// FailFor lists user IDs whose deliveries error, for exercising partial
// fan-out failures.
type MockNotifier struct {
	mu sync.Mutex

	FailFor     []string
	EditErr     error
	AnnounceErr error

	Sent          []SentMessage
	Edits         map[string][]string
	Announcements map[string][]string
	next          int
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		Edits:         make(map[string][]string),
		Announcements: make(map[string][]string),
	}
}

func (m *MockNotifier) SendToUser(ctx context.Context, userID, content string, affordances []models.Affordance) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, failed := range m.FailFor {
		if failed == userID {
			return "", fmt.Errorf("%w: user %s unreachable", shared.ErrDelivery, userID)
		}
	}

	m.next++
	handle := fmt.Sprintf("handle-%d", m.next)
	m.Sent = append(m.Sent, SentMessage{Handle: handle, UserID: userID, Content: content, Affordances: affordances})
	return handle, nil
}

func (m *MockNotifier) EditSummary(ctx context.Context, handle, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EditErr != nil {
		return m.EditErr
	}
	m.Edits[handle] = append(m.Edits[handle], content)
	return nil
}

func (m *MockNotifier) Announce(ctx context.Context, channelID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AnnounceErr != nil {
		return m.AnnounceErr
	}
	m.Announcements[channelID] = append(m.Announcements[channelID], content)
	return nil
}

// SentTo returns the deliveries addressed to one user.
func (m *MockNotifier) SentTo(userID string) []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []SentMessage
	for _, msg := range m.Sent {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	return out
}

// MockHistory is an in-memory test double for the song history read side.
type MockHistory struct {
	mu      sync.Mutex
	Records map[string]models.SongRecord // key: tenantID + "/" + title
	Err     error
}

func NewMockHistory() *MockHistory {
	return &MockHistory{Records: make(map[string]models.SongRecord)}
}

func (m *MockHistory) Put(tenantID, title string, track models.TrackRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records[tenantID+"/"+title] = models.SongRecord{TenantID: tenantID, SongTitle: title, Track: track}
}

func (m *MockHistory) Lookup(tenantID, title string) (*models.SongRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	record, ok := m.Records[tenantID+"/"+title]
	if !ok {
		return nil, nil
	}
	return &record, nil
}
