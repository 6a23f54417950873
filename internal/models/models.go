// package models defines the data model for the setlist approval workflow engine
package models

import (
	"fmt"
	"time"
)

// TrackRef is an opaque handle into the music catalog. Immutable once created.
type TrackRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	URL    string `json:"url"`
	URI    string `json:"uri"`
}

// PlaylistRef identifies a committed playlist in the music catalog.
type PlaylistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SongEntry is a single line of a parsed setlist.
type SongEntry struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// ParsedSetlist is the structured form of a setlist announcement.
//
// Song numbers are taken from the source text: not necessarily
// contiguous, but unique within a workflow.
type ParsedSetlist struct {
	Date  string      `json:"date"`
	Time  string      `json:"time"`
	Songs []SongEntry `json:"songs"`
}

// SongMatch is the resolution result for one song.
//
// StoredVersion (a previously used track) and Candidates are mutually
// exclusive: a history hit short-circuits the catalog search. Either may
// be absent; a match with neither requires a manual override.
type SongMatch struct {
	Number        int        `json:"number"`
	Title         string     `json:"title"`
	StoredVersion *TrackRef  `json:"stored_version,omitempty"`
	Candidates    []TrackRef `json:"candidates,omitempty"`
}

// AutoSelection returns the track that can be pre-applied without human
// input: the stored version, or a sole search candidate.
func (m SongMatch) AutoSelection() *TrackRef {
	if m.StoredVersion != nil {
		return m.StoredVersion
	}
	if len(m.Candidates) == 1 {
		return &m.Candidates[0]
	}
	return nil
}

// Required reports whether the song must have a selection before the
// workflow can be confirmed. Matches with no stored version and no
// candidates are exempt and simply omitted from the playlist.
func (m SongMatch) Required() bool {
	return m.StoredVersion != nil || len(m.Candidates) > 0
}

// WorkflowStatus enumerates workflow lifecycle states.
type WorkflowStatus string

const (
	StatusDispatched WorkflowStatus = "dispatched"
	StatusReady      WorkflowStatus = "ready"
	StatusConfirmed  WorkflowStatus = "confirmed"
	StatusCancelled  WorkflowStatus = "cancelled"
	StatusCompleted  WorkflowStatus = "completed"
)

// SummaryTarget marks a notification handle that points at the workflow
// summary rather than a song. Song numbers are positive, so zero is free.
const SummaryTarget = 0

// Workflow is one in-flight approval-and-assembly process.
//
// The workflow engine is the sole mutator; collaborators read snapshots
// or submit selection events through the engine's API.
type Workflow struct {
	ID              string            `json:"id"`
	TenantID        string            `json:"tenant_id"`
	TriggeredBy     string            `json:"triggered_by"`
	Status          WorkflowStatus    `json:"status"`
	Setlist         ParsedSetlist     `json:"setlist"`
	Matches         []SongMatch       `json:"matches"`
	Selections      map[int]TrackRef  `json:"selections"`
	ApproverIDs     []string          `json:"approver_ids"`
	Handles         map[string]int    `json:"handles"` // notification handle -> song number or SummaryTarget
	OriginChannelID string            `json:"origin_channel_id"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Validate checks structural invariants before persistence.
func (w *Workflow) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("workflow ID is required")
	}
	if w.TenantID == "" {
		return fmt.Errorf("workflow tenant ID is required")
	}
	seen := make(map[int]bool, len(w.Setlist.Songs))
	for _, song := range w.Setlist.Songs {
		if song.Number <= 0 {
			return fmt.Errorf("song number must be positive, got %d", song.Number)
		}
		if song.Title == "" {
			return fmt.Errorf("song %d has an empty title", song.Number)
		}
		if seen[song.Number] {
			return fmt.Errorf("duplicate song number %d", song.Number)
		}
		seen[song.Number] = true
	}
	return nil
}

// Finalized reports whether the workflow reached a terminal state.
func (w *Workflow) Finalized() bool {
	return w.Status == StatusCompleted || w.Status == StatusCancelled
}

// MatchByNumber returns the match for a song number, or nil.
func (w *Workflow) MatchByNumber(number int) *SongMatch {
	for i := range w.Matches {
		if w.Matches[i].Number == number {
			return &w.Matches[i]
		}
	}
	return nil
}

// AffordanceKind enumerates the selection affordances a notification can carry.
type AffordanceKind string

const (
	AffordanceApprove AffordanceKind = "approve"
	AffordanceReject  AffordanceKind = "reject"
	AffordanceChoice  AffordanceKind = "choice"
)

// Affordance is a UI-agnostic selection control attached to a notification.
// Choice affordances carry a 1-based candidate index.
type Affordance struct {
	Kind  AffordanceKind `json:"kind"`
	Index int            `json:"index,omitempty"`
}

// AffordancesFor derives the affordance set for a song match per its shape:
// pre-applied hints get approve/reject, unresolvable songs get reject-only
// (manual override instruction), and multi-candidate songs get one indexed
// choice per candidate.
func AffordancesFor(m SongMatch) []Affordance {
	switch {
	case m.StoredVersion != nil || len(m.Candidates) == 1:
		return []Affordance{{Kind: AffordanceApprove}, {Kind: AffordanceReject}}
	case len(m.Candidates) == 0:
		return []Affordance{{Kind: AffordanceReject}}
	default:
		affordances := make([]Affordance, 0, len(m.Candidates))
		for i := range m.Candidates {
			affordances = append(affordances, Affordance{Kind: AffordanceChoice, Index: i + 1})
		}
		return affordances
	}
}

// ExtractionPattern is a tenant's intro/song-line regex pair in source form.
// Empty fields mean "use the default".
type ExtractionPattern struct {
	Intro string `json:"intro"`
	Song  string `json:"song"`
}

// TenantConfig is the per-tenant configuration record.
type TenantConfig struct {
	TenantID             string            `json:"tenant_id"`
	LeaderIDs            []string          `json:"leader_ids"`
	ApproverIDs          []string          `json:"approver_ids"`
	AdminIDs             []string          `json:"admin_ids"`
	ChannelID            string            `json:"channel_id,omitempty"`
	PlaylistNameTemplate string            `json:"playlist_name_template,omitempty"`
	SpotifyClientID      string            `json:"spotify_client_id,omitempty"`
	SpotifyClientSecret  string            `json:"spotify_client_secret,omitempty"`
	SpotifyRedirectURI   string            `json:"spotify_redirect_uri,omitempty"`
	Patterns             ExtractionPattern `json:"patterns"`
	UpdatedAt            time.Time         `json:"updated_at"`
	UpdatedBy            string            `json:"updated_by"`
}

// DefaultPlaylistTemplate names playlists when a tenant has no template.
const DefaultPlaylistTemplate = "Bluegrass Jam {date}"

// PlaylistTemplate returns the tenant's template or the default.
func (c *TenantConfig) PlaylistTemplate() string {
	if c != nil && c.PlaylistNameTemplate != "" {
		return c.PlaylistNameTemplate
	}
	return DefaultPlaylistTemplate
}

// IsLeader reports whether the user may auto-trigger setlist processing.
func (c *TenantConfig) IsLeader(userID string) bool {
	return c != nil && contains(c.LeaderIDs, userID)
}

// IsApprover reports whether the user may select tracks and confirm.
func (c *TenantConfig) IsApprover(userID string) bool {
	return c != nil && contains(c.ApproverIDs, userID)
}

// IsAdmin reports whether the user is a tenant administrator.
func (c *TenantConfig) IsAdmin(userID string) bool {
	return c != nil && contains(c.AdminIDs, userID)
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// SongRecord is one row of a tenant's song history: the canonical track
// for a setlist title, with first/last usage dates.
type SongRecord struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	SongTitle string    `json:"song_title"`
	Track     TrackRef  `json:"track"`
	FirstUsed time.Time `json:"first_used"`
	LastUsed  time.Time `json:"last_used"`
}

// SetlistStatus enumerates the states of a committed setlist record.
type SetlistStatus string

const (
	SetlistCreated   SetlistStatus = "created"
	SetlistCompleted SetlistStatus = "completed"
	SetlistCancelled SetlistStatus = "cancelled"
)

// SetlistRecord is the audit trail of one processed setlist.
type SetlistRecord struct {
	ID           string        `json:"id"`
	TenantID     string        `json:"tenant_id"`
	Date         string        `json:"date"`
	Time         string        `json:"time"`
	PlaylistName string        `json:"playlist_name"`
	PlaylistID   string        `json:"playlist_id,omitempty"`
	PlaylistURL  string        `json:"playlist_url,omitempty"`
	Status       SetlistStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Message is an inbound chat message the engine or learner inspects.
type Message struct {
	ID        string `json:"id"`
	AuthorID  string `json:"author_id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}
