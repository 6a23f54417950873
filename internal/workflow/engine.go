// Package workflow owns the setlist approval state machine.
//
// An [Engine] is the sole mutator of workflow state. Inbound events
// (selection events, manual overrides, commands) interleave but never run
// mutating code in parallel: one engine mutex serializes transitions across
// all tenants. Every transition persists before it is acknowledged, and the
// in-memory active set is a read-through cache rebuilt from storage by
// [Engine.Restore], so a restarted process can finish any pending workflow
// via [Engine.Retry].
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jamworks/jambot/internal/formatter"
	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/parser"
	"github.com/jamworks/jambot/internal/services"
	"github.com/jamworks/jambot/internal/shared"
)

// WorkflowStore is the durable side of the active-workflow cache.
type WorkflowStore interface {
	Upsert(workflow *models.Workflow) error
	Get(id string) (*models.Workflow, error)
	ListActive() ([]*models.Workflow, error)
	Delete(id string) error
}

// HistoryWriter records committed selections for future auto-resolution.
type HistoryWriter interface {
	Upsert(tenantID, title string, track models.TrackRef, usedOn time.Time) error
}

// SetlistStore records the audit trail of processed setlists.
type SetlistStore interface {
	Create(record *models.SetlistRecord) error
}

// ConfigReader resolves tenant configuration for permissions and naming.
type ConfigReader interface {
	Get(tenantID string) (*models.TenantConfig, error)
}

// Engine drives workflows from creation through commit or cancellation.
type Engine struct {
	mu       sync.Mutex
	active   map[string]*models.Workflow
	byHandle map[string]string

	store    WorkflowStore
	history  HistoryWriter
	setlists SetlistStore
	configs  ConfigReader
	catalog  services.MusicCatalogGateway
	notifier services.NotificationGateway
	logger   *log.Logger
}

// Options collects the engine's collaborators.
type Options struct {
	Store    WorkflowStore
	History  HistoryWriter
	Setlists SetlistStore
	Configs  ConfigReader
	Catalog  services.MusicCatalogGateway
	Notifier services.NotificationGateway
	Logger   *log.Logger
}

func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{
		active:   make(map[string]*models.Workflow),
		byHandle: make(map[string]string),
		store:    opts.Store,
		history:  opts.History,
		setlists: opts.Setlists,
		configs:  opts.Configs,
		catalog:  opts.Catalog,
		notifier: opts.Notifier,
		logger:   logger.With("component", "workflow"),
	}
}

// Restore reloads every non-finalized workflow from storage into the
// active set, keyed by id and by every notification handle. Called once
// at startup.
func (e *Engine) Restore() (int, error) {
	workflows, err := e.store.ListActive()
	if err != nil {
		return 0, fmt.Errorf("failed to restore workflows: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, workflow := range workflows {
		e.track(workflow)
	}

	e.logger.Info("workflows restored", "count", len(workflows))
	return len(workflows), nil
}

// Create builds a workflow from a parsed setlist and its matches, applies
// every auto-selection hint, fans out approval notifications, and persists
// the result in DISPATCHED.
//
// Fan-out goes to every approver plus the triggering user, deduplicated.
// A delivery failure for one recipient is logged and does not abort
// delivery to the rest.
func (e *Engine) Create(ctx context.Context, tenantID, triggeredBy string, setlist models.ParsedSetlist, matches []models.SongMatch, approverIDs []string, originChannelID string) (*models.Workflow, error) {
	if len(approverIDs) == 0 {
		return nil, fmt.Errorf("%w: tenant %s", shared.ErrNoApprovers, tenantID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	workflow := &models.Workflow{
		ID:              shared.GenerateID(),
		TenantID:        tenantID,
		TriggeredBy:     triggeredBy,
		Status:          models.StatusDispatched,
		Setlist:         setlist,
		Matches:         matches,
		Selections:      make(map[int]models.TrackRef),
		ApproverIDs:     approverIDs,
		Handles:         make(map[string]int),
		OriginChannelID: originChannelID,
	}

	for _, match := range matches {
		if auto := match.AutoSelection(); auto != nil {
			workflow.Selections[match.Number] = *auto
		}
	}

	recipients := dedupe(approverIDs, triggeredBy)
	for _, userID := range recipients {
		delivered := true
		for _, match := range matches {
			handle, err := e.notifier.SendToUser(ctx, userID, formatter.SongApproval(match), models.AffordancesFor(match))
			if err != nil {
				e.logger.Error("delivery failed", "workflow", workflow.ID, "user", userID, "song", match.Number, "error", err)
				delivered = false
				break
			}
			workflow.Handles[handle] = match.Number
		}
		if !delivered {
			continue
		}
		handle, err := e.notifier.SendToUser(ctx, userID, formatter.Summary(workflow), nil)
		if err != nil {
			e.logger.Error("summary delivery failed", "workflow", workflow.ID, "user", userID, "error", err)
			continue
		}
		workflow.Handles[handle] = models.SummaryTarget
	}

	if err := e.store.Upsert(workflow); err != nil {
		return nil, err
	}
	e.track(workflow)

	e.logger.Info("workflow created",
		"workflow", workflow.ID, "tenant", tenantID,
		"songs", len(matches), "auto_selected", len(workflow.Selections))
	return workflow, nil
}

// ApplySelection records a track choice for a song. Upserts are idempotent
// and last-write-wins between approvers.
func (e *Engine) ApplySelection(workflowID string, songNumber int, track models.TrackRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applySelectionLocked(workflowID, songNumber, track)
}

func (e *Engine) applySelectionLocked(workflowID string, songNumber int, track models.TrackRef) error {
	workflow, err := e.lookup(workflowID)
	if err != nil {
		return err
	}
	if workflow.Finalized() {
		return fmt.Errorf("%w: %s is %s", shared.ErrWorkflowFinalized, workflowID, workflow.Status)
	}
	if workflow.MatchByNumber(songNumber) == nil {
		return fmt.Errorf("%w: no song %d in workflow %s", shared.ErrInvalidArgument, songNumber, workflowID)
	}

	workflow.Selections[songNumber] = track
	return e.store.Upsert(workflow)
}

// HandleSelectionEvent applies an affordance activation delivered against
// a tracked notification: approve confirms the pre-applied hint, an indexed
// choice picks among candidates, reject is acknowledged but clears nothing
// (selections are overwrite-only; a rejecting approver follows up with a
// manual override).
func (e *Engine) HandleSelectionEvent(handle string, choice models.Affordance) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	workflow, songNumber, err := e.resolveHandleLocked(handle)
	if err != nil {
		return err
	}
	if songNumber == models.SummaryTarget {
		return fmt.Errorf("%w: handle %s is a summary notification", shared.ErrUnknownReplyTarget, handle)
	}

	match := workflow.MatchByNumber(songNumber)
	if match == nil {
		return fmt.Errorf("%w: no song %d in workflow %s", shared.ErrInvalidArgument, songNumber, workflow.ID)
	}

	switch choice.Kind {
	case models.AffordanceApprove:
		auto := match.AutoSelection()
		if auto == nil {
			return fmt.Errorf("%w: song %d has nothing to approve", shared.ErrInvalidArgument, songNumber)
		}
		return e.applySelectionLocked(workflow.ID, songNumber, *auto)
	case models.AffordanceChoice:
		if choice.Index < 1 || choice.Index > len(match.Candidates) {
			return fmt.Errorf("%w: choice %d out of range for song %d", shared.ErrInvalidArgument, choice.Index, songNumber)
		}
		return e.applySelectionLocked(workflow.ID, songNumber, match.Candidates[choice.Index-1])
	case models.AffordanceReject:
		e.logger.Info("selection rejected", "workflow", workflow.ID, "song", songNumber)
		return nil
	default:
		return fmt.Errorf("%w: affordance %q", shared.ErrInvalidArgument, choice.Kind)
	}
}

// ApplyManualOverride resolves a reply to a tracked notification into a
// selection: the handle names the song, the free text carries a track URL.
func (e *Engine) ApplyManualOverride(ctx context.Context, handle, rawText string) error {
	e.mu.Lock()
	workflow, songNumber, err := e.resolveHandleLocked(handle)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if songNumber == models.SummaryTarget {
		return fmt.Errorf("%w: handle %s is a summary notification", shared.ErrUnknownReplyTarget, handle)
	}

	url := parser.ExtractTrackURL(rawText)
	if url == "" {
		return fmt.Errorf("%w: no track URL in override", shared.ErrInvalidInput)
	}

	track, err := e.catalog.ResolveURL(ctx, url)
	if err != nil {
		return err
	}
	if track == nil {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, url)
	}

	return e.ApplySelection(workflow.ID, songNumber, *track)
}

// OverrideByTitle applies a manual override addressed by song title
// rather than by reply handle ("use this <title> for <date> <url>").
func (e *Engine) OverrideByTitle(ctx context.Context, workflowID, title, url string) error {
	e.mu.Lock()
	workflow, err := e.lookup(workflowID)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	key := parser.StripAnnotations(title)
	var songNumber int
	found := false
	for _, match := range workflow.Matches {
		if parser.StripAnnotations(match.Title) == key {
			songNumber = match.Number
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: no song titled %q", shared.ErrUnknownReplyTarget, title)
	}

	track, err := e.catalog.ResolveURL(ctx, url)
	if err != nil {
		return err
	}
	if track == nil {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, url)
	}

	return e.ApplySelection(workflowID, songNumber, *track)
}

// CheckReadiness reports whether every required song has a selection, and
// the titles still missing. Readiness is recomputed on demand, never stored.
func (e *Engine) CheckReadiness(workflowID string) (bool, []string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	workflow, err := e.lookup(workflowID)
	if err != nil {
		return false, nil, err
	}
	missing := missingTitles(workflow)
	return len(missing) == 0, missing, nil
}

// Confirm validates readiness and commits the playlist.
//
// A not-ready workflow returns [shared.ErrMissingSelections] with the
// missing titles and no state change. On success the workflow passes
// through CONFIRMED, the playlist is created and filled in ascending song
// number order, song history and the setlist record are persisted, and the
// workflow finalizes as COMPLETED. Any commit failure rolls the status
// back to DISPATCHED so the caller can retry.
func (e *Engine) Confirm(ctx context.Context, workflowID string) (*models.PlaylistRef, []string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	workflow, err := e.lookup(workflowID)
	if err != nil {
		return nil, nil, err
	}
	if workflow.Finalized() {
		return nil, nil, fmt.Errorf("%w: %s is %s", shared.ErrWorkflowFinalized, workflowID, workflow.Status)
	}

	missing := missingTitles(workflow)
	if len(missing) > 0 {
		return nil, missing, fmt.Errorf("%w: %d songs pending", shared.ErrMissingSelections, len(missing))
	}

	workflow.Status = models.StatusConfirmed
	playlist, err := e.commit(ctx, workflow)
	if err != nil {
		workflow.Status = models.StatusDispatched
		if persistErr := e.store.Upsert(workflow); persistErr != nil {
			e.logger.Error("rollback persist failed", "workflow", workflowID, "error", persistErr)
		}
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrCommit, err)
	}

	workflow.Status = models.StatusCompleted
	if err := e.store.Upsert(workflow); err != nil {
		e.logger.Error("completion persist failed", "workflow", workflowID, "error", err)
	}
	e.untrack(workflow)
	e.announce(ctx, workflow, playlist)

	e.logger.Info("workflow completed", "workflow", workflowID, "playlist", playlist.ID)
	return playlist, nil, nil
}

// commit builds and fills the playlist, then records history and the
// setlist. Called with the engine lock held and the workflow in CONFIRMED.
func (e *Engine) commit(ctx context.Context, workflow *models.Workflow) (*models.PlaylistRef, error) {
	numbers := make([]int, 0, len(workflow.Selections))
	for number := range workflow.Selections {
		numbers = append(numbers, number)
	}
	sort.Ints(numbers)

	uris := make([]string, 0, len(numbers))
	for _, number := range numbers {
		uris = append(uris, workflow.Selections[number].URI)
	}

	config, err := e.configs.Get(workflow.TenantID)
	if err != nil {
		return nil, err
	}

	name := shared.RenderTemplate(config.PlaylistTemplate(), workflow.Setlist.Date, workflow.Setlist.Time)
	description := fmt.Sprintf("Bluegrass jam setlist for %s on %s", workflow.Setlist.Time, workflow.Setlist.Date)

	playlist, err := e.catalog.CreatePlaylist(ctx, name, description)
	if err != nil {
		return nil, err
	}
	if err := e.catalog.AddTracks(ctx, playlist.ID, uris); err != nil {
		return nil, err
	}

	now := time.Now()
	for _, number := range numbers {
		match := workflow.MatchByNumber(number)
		if match == nil {
			continue
		}
		title := parser.StripAnnotations(match.Title)
		if err := e.history.Upsert(workflow.TenantID, title, workflow.Selections[number], now); err != nil {
			return nil, err
		}
	}

	record := &models.SetlistRecord{
		TenantID:     workflow.TenantID,
		Date:         workflow.Setlist.Date,
		Time:         workflow.Setlist.Time,
		PlaylistName: playlist.Name,
		PlaylistID:   playlist.ID,
		PlaylistURL:  playlist.URL,
		Status:       models.SetlistCompleted,
	}
	if err := e.setlists.Create(record); err != nil {
		return nil, err
	}

	return playlist, nil
}

// announce edits summary notifications and posts the completion message.
// Failures here are logged only: the playlist already exists.
func (e *Engine) announce(ctx context.Context, workflow *models.Workflow, playlist *models.PlaylistRef) {
	var skipped []string
	for _, match := range workflow.Matches {
		if _, ok := workflow.Selections[match.Number]; !ok && !match.Required() {
			skipped = append(skipped, match.Title)
		}
	}
	content := formatter.Completion(workflow, playlist, skipped)

	for handle, target := range workflow.Handles {
		if target != models.SummaryTarget {
			continue
		}
		if err := e.notifier.EditSummary(ctx, handle, content); err != nil {
			e.logger.Warn("summary edit failed", "workflow", workflow.ID, "handle", handle, "error", err)
		}
	}

	channelID := workflow.OriginChannelID
	if config, err := e.configs.Get(workflow.TenantID); err == nil && config != nil && config.ChannelID != "" {
		channelID = config.ChannelID
	}
	if channelID == "" {
		return
	}
	if err := e.notifier.Announce(ctx, channelID, content); err != nil {
		e.logger.Warn("announcement failed", "workflow", workflow.ID, "channel", channelID, "error", err)
	}
}

// Reject cancels the workflow without a permission check. No playlist is
// created.
func (e *Engine) Reject(workflowID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelLocked(workflowID, false)
}

// Cancel is a permission-gated Reject: the actor must be a tenant admin,
// the triggering user, or a configured approver. Cancellation additionally
// leaves an audit record.
func (e *Engine) Cancel(workflowID, actorID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	workflow, err := e.lookup(workflowID)
	if err != nil {
		return err
	}

	permitted := actorID == workflow.TriggeredBy
	for _, approver := range workflow.ApproverIDs {
		if approver == actorID {
			permitted = true
		}
	}
	if !permitted {
		config, err := e.configs.Get(workflow.TenantID)
		if err != nil {
			return err
		}
		permitted = config.IsAdmin(actorID)
	}
	if !permitted {
		return fmt.Errorf("%w: %s may not cancel workflow %s", shared.ErrNotPermitted, actorID, workflowID)
	}

	return e.cancelLocked(workflowID, true)
}

func (e *Engine) cancelLocked(workflowID string, audit bool) error {
	workflow, err := e.lookup(workflowID)
	if err != nil {
		return err
	}
	if workflow.Finalized() {
		return fmt.Errorf("%w: %s is %s", shared.ErrWorkflowFinalized, workflowID, workflow.Status)
	}

	workflow.Status = models.StatusCancelled
	if err := e.store.Upsert(workflow); err != nil {
		return err
	}

	if audit {
		record := &models.SetlistRecord{
			TenantID:     workflow.TenantID,
			Date:         workflow.Setlist.Date,
			Time:         workflow.Setlist.Time,
			PlaylistName: "",
			Status:       models.SetlistCancelled,
		}
		if err := e.setlists.Create(record); err != nil {
			e.logger.Warn("cancel audit record failed", "workflow", workflowID, "error", err)
		}
	}

	e.untrack(workflow)
	e.logger.Info("workflow cancelled", "workflow", workflowID)
	return nil
}

// Retry re-evaluates readiness and confirms if ready. It exists so a
// workflow restored after a restart can complete without a second fan-out.
func (e *Engine) Retry(ctx context.Context, workflowID string) (*models.PlaylistRef, []string, error) {
	return e.Confirm(ctx, workflowID)
}

// Get returns the workflow by id, consulting storage on a cache miss.
func (e *Engine) Get(workflowID string) (*models.Workflow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lookup(workflowID)
}

// Active returns the tracked workflows, oldest first.
func (e *Engine) Active() []*models.Workflow {
	e.mu.Lock()
	defer e.mu.Unlock()

	workflows := make([]*models.Workflow, 0, len(e.active))
	for _, workflow := range e.active {
		workflows = append(workflows, workflow)
	}
	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})
	return workflows
}

// ResolveHandle maps a notification handle to its workflow and song
// number (or [models.SummaryTarget]).
func (e *Engine) ResolveHandle(handle string) (*models.Workflow, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolveHandleLocked(handle)
}

func (e *Engine) resolveHandleLocked(handle string) (*models.Workflow, int, error) {
	workflowID, ok := e.byHandle[handle]
	if !ok {
		return nil, 0, fmt.Errorf("%w: handle %s", shared.ErrUnknownReplyTarget, handle)
	}
	workflow, err := e.lookup(workflowID)
	if err != nil {
		return nil, 0, err
	}
	return workflow, workflow.Handles[handle], nil
}

// lookup reads through the cache to storage. Called with the lock held.
func (e *Engine) lookup(workflowID string) (*models.Workflow, error) {
	if workflow, ok := e.active[workflowID]; ok {
		return workflow, nil
	}

	workflow, err := e.store.Get(workflowID)
	if err != nil {
		return nil, err
	}
	if workflow.Finalized() {
		return nil, fmt.Errorf("%w: %s is %s", shared.ErrWorkflowFinalized, workflowID, workflow.Status)
	}
	e.track(workflow)
	return workflow, nil
}

func (e *Engine) track(workflow *models.Workflow) {
	e.active[workflow.ID] = workflow
	for handle := range workflow.Handles {
		e.byHandle[handle] = workflow.ID
	}
}

func (e *Engine) untrack(workflow *models.Workflow) {
	delete(e.active, workflow.ID)
	for handle := range workflow.Handles {
		delete(e.byHandle, handle)
	}
}

// missingTitles lists required songs without a selection.
func missingTitles(workflow *models.Workflow) []string {
	var missing []string
	for _, match := range workflow.Matches {
		if !match.Required() {
			continue
		}
		if _, ok := workflow.Selections[match.Number]; !ok {
			missing = append(missing, match.Title)
		}
	}
	return missing
}

func dedupe(ids []string, extra string) []string {
	seen := make(map[string]bool, len(ids)+1)
	out := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if extra != "" && !seen[extra] {
		out = append(out, extra)
	}
	return out
}

// ErrIsRecoverable reports whether a confirm error leaves the workflow
// open for another attempt.
func ErrIsRecoverable(err error) bool {
	return errors.Is(err, shared.ErrMissingSelections) || errors.Is(err, shared.ErrCommit)
}
