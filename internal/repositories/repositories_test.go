package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func testTrack(id string) models.TrackRef {
	return models.TrackRef{
		ID:     id,
		Name:   "Red Haired Boy",
		Artist: "Tony Rice",
		Album:  "Manzanita",
		URL:    "https://open.spotify.com/track/" + id,
		URI:    "spotify:track:" + id,
	}
}

func TestTenantConfigRepository(t *testing.T) {
	t.Run("UpsertAndGet", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTenantConfigRepository(db)
		config := &models.TenantConfig{
			TenantID:    "guild-1",
			LeaderIDs:   []string{"leader-1"},
			ApproverIDs: []string{"approver-1", "approver-2"},
			AdminIDs:    []string{"admin-1"},
			ChannelID:   "general",
			UpdatedBy:   "admin-1",
		}

		if err := repo.Upsert(config); err != nil {
			t.Fatalf("failed to upsert config: %v", err)
		}

		got, err := repo.Get("guild-1")
		if err != nil {
			t.Fatalf("failed to get config: %v", err)
		}
		if got == nil {
			t.Fatal("expected config, got nil")
		}
		if len(got.ApproverIDs) != 2 {
			t.Errorf("expected 2 approvers, got %d", len(got.ApproverIDs))
		}
		if !got.IsLeader("leader-1") {
			t.Error("leader-1 should be a leader")
		}
		if got.IsApprover("leader-1") {
			t.Error("leader-1 should not be an approver")
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTenantConfigRepository(db)
		got, err := repo.Get("nope")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil for missing tenant, got %+v", got)
		}
	})

	t.Run("UpsertReplaces", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTenantConfigRepository(db)
		config := &models.TenantConfig{TenantID: "guild-1", LeaderIDs: []string{"a"}, UpdatedBy: "a"}
		if err := repo.Upsert(config); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		config.LeaderIDs = []string{"b"}
		config.PlaylistNameTemplate = "Jam {date}"
		if err := repo.Upsert(config); err != nil {
			t.Fatalf("failed to re-upsert: %v", err)
		}

		got, err := repo.Get("guild-1")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got.IsLeader("a") || !got.IsLeader("b") {
			t.Errorf("leader list not replaced: %v", got.LeaderIDs)
		}
		if got.PlaylistTemplate() != "Jam {date}" {
			t.Errorf("unexpected template %q", got.PlaylistTemplate())
		}
	})

	t.Run("UpdatePatterns", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTenantConfigRepository(db)
		patterns := models.ExtractionPattern{Intro: `(?i)songs for (.+?) on (.+?)\.`, Song: `(?m)^(\d+)\. (.+)$`}

		// No row yet: patterns still persist.
		if err := repo.UpdatePatterns("guild-1", patterns, "admin-1"); err != nil {
			t.Fatalf("failed to update patterns: %v", err)
		}

		got, err := repo.Get("guild-1")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got == nil || got.Patterns.Intro != patterns.Intro {
			t.Fatalf("patterns not persisted: %+v", got)
		}
	})
}

func TestSongRepository(t *testing.T) {
	t.Run("UpsertAndLookup", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSongRepository(db)
		usedOn := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

		if err := repo.Upsert("guild-1", "Red Haired Boy", testTrack("t1"), usedOn); err != nil {
			t.Fatalf("failed to upsert song: %v", err)
		}

		got, err := repo.Lookup("guild-1", "Red Haired Boy")
		if err != nil {
			t.Fatalf("failed to lookup: %v", err)
		}
		if got == nil {
			t.Fatal("expected a history record")
		}
		if got.Track.ID != "t1" {
			t.Errorf("expected track t1, got %s", got.Track.ID)
		}
		if !got.FirstUsed.Equal(got.LastUsed) {
			t.Errorf("first/last should match on first use: %v vs %v", got.FirstUsed, got.LastUsed)
		}
	})

	t.Run("LookupIsCaseSensitive", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSongRepository(db)
		if err := repo.Upsert("guild-1", "Red Haired Boy", testTrack("t1"), time.Now()); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		got, err := repo.Lookup("guild-1", "red haired boy")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Error("lowercase lookup should miss")
		}
	})

	t.Run("UpsertAdvancesLastUsed", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSongRepository(db)
		first := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
		second := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

		if err := repo.Upsert("guild-1", "Salt Creek", testTrack("t1"), first); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}
		if err := repo.Upsert("guild-1", "Salt Creek", testTrack("t2"), second); err != nil {
			t.Fatalf("failed to re-upsert: %v", err)
		}

		got, err := repo.Lookup("guild-1", "Salt Creek")
		if err != nil {
			t.Fatalf("failed to lookup: %v", err)
		}
		if !got.FirstUsed.Equal(first) {
			t.Errorf("first_used should stay %v, got %v", first, got.FirstUsed)
		}
		if !got.LastUsed.Equal(second) {
			t.Errorf("last_used should advance to %v, got %v", second, got.LastUsed)
		}
		if got.Track.ID != "t2" {
			t.Errorf("track should be replaced, got %s", got.Track.ID)
		}
	})

	t.Run("TenantsAreIsolated", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSongRepository(db)
		if err := repo.Upsert("guild-1", "Salt Creek", testTrack("t1"), time.Now()); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		got, err := repo.Lookup("guild-2", "Salt Creek")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Error("history should not leak across tenants")
		}
	})
}

func TestSetlistRepository(t *testing.T) {
	t.Run("CreateAndGet", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSetlistRepository(db)
		record := &models.SetlistRecord{
			TenantID:     "guild-1",
			Date:         "June 1st",
			Time:         "evening",
			PlaylistName: "Bluegrass Jam June 1st",
			PlaylistID:   "pl-1",
			PlaylistURL:  "https://open.spotify.com/playlist/pl-1",
			Status:       models.SetlistCompleted,
		}

		if err := repo.Create(record); err != nil {
			t.Fatalf("failed to create setlist: %v", err)
		}
		if record.ID == "" {
			t.Error("setlist ID should be set after creation")
		}

		got, err := repo.Get(record.ID)
		if err != nil {
			t.Fatalf("failed to get setlist: %v", err)
		}
		if got.PlaylistName != record.PlaylistName {
			t.Errorf("expected %q, got %q", record.PlaylistName, got.PlaylistName)
		}
		if got.Status != models.SetlistCompleted {
			t.Errorf("unexpected status %s", got.Status)
		}
	})

	t.Run("SetStatus", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSetlistRepository(db)
		record := &models.SetlistRecord{TenantID: "guild-1", Date: "June 1st", Time: "evening", PlaylistName: "Jam"}
		if err := repo.Create(record); err != nil {
			t.Fatalf("failed to create: %v", err)
		}

		if err := repo.SetStatus(record.ID, models.SetlistCancelled); err != nil {
			t.Fatalf("failed to set status: %v", err)
		}

		got, err := repo.Get(record.ID)
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got.Status != models.SetlistCancelled {
			t.Errorf("expected cancelled, got %s", got.Status)
		}
	})
}

func TestWorkflowRepository(t *testing.T) {
	newWorkflow := func(id string) *models.Workflow {
		return &models.Workflow{
			ID:          id,
			TenantID:    "guild-1",
			TriggeredBy: "leader-1",
			Status:      models.StatusDispatched,
			Setlist: models.ParsedSetlist{
				Date: "June 1st",
				Time: "evening",
				Songs: []models.SongEntry{
					{Number: 1, Title: "Red Haired Boy"},
					{Number: 2, Title: "Salt Creek"},
				},
			},
			Matches: []models.SongMatch{
				{Number: 1, Title: "Red Haired Boy", StoredVersion: ptrTrack(testTrack("t1"))},
				{Number: 2, Title: "Salt Creek", Candidates: []models.TrackRef{testTrack("t2"), testTrack("t3")}},
			},
			Selections:      map[int]models.TrackRef{1: testTrack("t1")},
			ApproverIDs:     []string{"approver-1"},
			Handles:         map[string]int{"msg-1": 1, "msg-2": 2, "msg-3": models.SummaryTarget},
			OriginChannelID: "general",
		}
	}

	t.Run("UpsertAndGet", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewWorkflowRepository(db)
		workflow := newWorkflow("wf-1")

		if err := repo.Upsert(workflow); err != nil {
			t.Fatalf("failed to upsert workflow: %v", err)
		}

		got, err := repo.Get("wf-1")
		if err != nil {
			t.Fatalf("failed to get workflow: %v", err)
		}
		if len(got.Matches) != 2 {
			t.Fatalf("expected 2 matches, got %d", len(got.Matches))
		}
		if got.Matches[0].StoredVersion == nil || got.Matches[0].StoredVersion.ID != "t1" {
			t.Error("stored version lost in round trip")
		}
		if got.Selections[1].ID != "t1" {
			t.Error("selection lost in round trip")
		}
		if got.Handles["msg-3"] != models.SummaryTarget {
			t.Error("summary handle lost in round trip")
		}
	})

	t.Run("UpsertUpdates", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewWorkflowRepository(db)
		workflow := newWorkflow("wf-1")
		if err := repo.Upsert(workflow); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		workflow.Selections[2] = testTrack("t3")
		workflow.Status = models.StatusReady
		if err := repo.Upsert(workflow); err != nil {
			t.Fatalf("failed to re-upsert: %v", err)
		}

		got, err := repo.Get("wf-1")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got.Status != models.StatusReady {
			t.Errorf("expected ready, got %s", got.Status)
		}
		if len(got.Selections) != 2 {
			t.Errorf("expected 2 selections, got %d", len(got.Selections))
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewWorkflowRepository(db)
		_, err := repo.Get("nope")
		if !errors.Is(err, shared.ErrWorkflowNotFound) {
			t.Errorf("expected ErrWorkflowNotFound, got %v", err)
		}
	})

	t.Run("ListActiveExcludesFinalized", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewWorkflowRepository(db)

		active := newWorkflow("wf-active")
		if err := repo.Upsert(active); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		done := newWorkflow("wf-done")
		done.Status = models.StatusCompleted
		if err := repo.Upsert(done); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		cancelled := newWorkflow("wf-cancelled")
		cancelled.Status = models.StatusCancelled
		if err := repo.Upsert(cancelled); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		workflows, err := repo.ListActive()
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(workflows) != 1 {
			t.Fatalf("expected 1 active workflow, got %d", len(workflows))
		}
		if workflows[0].ID != "wf-active" {
			t.Errorf("unexpected workflow %s", workflows[0].ID)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewWorkflowRepository(db)
		workflow := newWorkflow("wf-1")
		if err := repo.Upsert(workflow); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		if err := repo.Delete("wf-1"); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := repo.Get("wf-1"); !errors.Is(err, shared.ErrWorkflowNotFound) {
			t.Errorf("expected ErrWorkflowNotFound after delete, got %v", err)
		}
	})
}

func ptrTrack(t models.TrackRef) *models.TrackRef { return &t }
