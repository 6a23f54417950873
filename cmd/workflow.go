package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jamworks/jambot/internal/formatter"
	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/parser"
	"github.com/jamworks/jambot/internal/shared"
	"github.com/jamworks/jambot/internal/workflow"
	"github.com/urfave/cli/v3"
)

// Process runs a message through detection, parsing, matching, and workflow
// creation. Auto-trigger requires a leader author and a matching message;
// with --manual an approver or admin can force processing and gets parse
// errors back instead of silence.
func (r *Runner) Process(ctx context.Context, cmd *cli.Command) error {
	tenantID := cmd.String("tenant")
	author := cmd.String("author")
	channel := cmd.String("channel")
	manual := cmd.Bool("manual")

	text, err := messageText(cmd)
	if err != nil {
		return err
	}

	r.loadConfig(cmd)
	if err := r.bootstrap(ctx); err != nil {
		return err
	}
	if err := r.requireCatalog(); err != nil {
		return err
	}

	config, err := r.configs.Get(tenantID)
	if err != nil {
		return err
	}
	if config == nil {
		return fmt.Errorf("%w: tenant %s is not set up", shared.ErrMissingConfig, tenantID)
	}

	if manual {
		if !config.IsApprover(author) && !config.IsAdmin(author) {
			return fmt.Errorf("%w: %s may not trigger processing", shared.ErrNotPermitted, author)
		}
	} else if !config.IsLeader(author) {
		r.logger.Debug("ignoring message from non-leader", "tenant", tenantID, "author", author)
		return nil
	}

	pattern, err := r.patterns.Get(tenantID)
	if err != nil {
		return err
	}

	if !manual && !r.parser.IsSetlistMessage(text, pattern) {
		r.logger.Debug("message is not a setlist", "tenant", tenantID)
		return nil
	}

	setlist, err := r.parser.Parse(text, pattern)
	if err != nil {
		return err
	}

	matches, err := r.matcher.MatchAll(ctx, tenantID, setlist)
	if err != nil {
		return err
	}

	workflow, err := r.engine.Create(ctx, tenantID, author, *setlist, matches, config.ApproverIDs, channel)
	if err != nil {
		return err
	}

	return r.writePlainln("Workflow %s dispatched: %d songs for %s.", workflow.ID, len(workflow.Matches), workflow.Setlist.Date)
}

// Select applies an approve, reject, or numbered choice to a tracked
// song notification.
func (r *Runner) Select(ctx context.Context, cmd *cli.Command) error {
	handle := cmd.String("handle")
	choice := cmd.Int("choice")

	var affordance models.Affordance
	switch {
	case cmd.Bool("approve"):
		affordance = models.Affordance{Kind: models.AffordanceApprove}
	case cmd.Bool("reject"):
		affordance = models.Affordance{Kind: models.AffordanceReject}
	case choice > 0:
		affordance = models.Affordance{Kind: models.AffordanceChoice, Index: choice}
	default:
		return fmt.Errorf("%w: one of --approve, --reject, or --choice is required", shared.ErrMissingArgument)
	}

	r.loadConfig(cmd)
	if err := r.bootstrap(ctx); err != nil {
		return err
	}

	if err := r.engine.HandleSelectionEvent(handle, affordance); err != nil {
		return err
	}

	workflow, _, err := r.engine.ResolveHandle(handle)
	if err != nil {
		return err
	}
	return r.reportReadiness(workflow.ID)
}

// Override replaces a song's selection with a pasted track URL, either
// against a notification handle or by title within a workflow.
func (r *Runner) Override(ctx context.Context, cmd *cli.Command) error {
	handle := cmd.String("handle")
	workflowID := cmd.String("workflow")

	text, err := messageText(cmd)
	if err != nil {
		return err
	}

	r.loadConfig(cmd)
	if err := r.bootstrap(ctx); err != nil {
		return err
	}
	if err := r.requireCatalog(); err != nil {
		return err
	}

	switch {
	case handle != "":
		if err := r.engine.ApplyManualOverride(ctx, handle, text); err != nil {
			return err
		}
		workflow, _, err := r.engine.ResolveHandle(handle)
		if err != nil {
			return err
		}
		workflowID = workflow.ID
	case workflowID != "":
		override, err := parser.ParseManualOverride(text)
		if err != nil {
			return err
		}
		if err := r.engine.OverrideByTitle(ctx, workflowID, override.Title, override.URL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: either --handle or --workflow is required", shared.ErrMissingArgument)
	}

	return r.reportReadiness(workflowID)
}

// Confirm commits a workflow's selections to a playlist.
func (r *Runner) Confirm(ctx context.Context, cmd *cli.Command) error {
	workflowID := cmd.String("workflow")

	r.loadConfig(cmd)
	if err := r.bootstrap(ctx); err != nil {
		return err
	}
	if err := r.requireCatalog(); err != nil {
		return err
	}

	playlist, missing, err := r.engine.Confirm(ctx, workflowID)
	if errors.Is(err, shared.ErrMissingSelections) {
		return r.writePlain("%s", formatter.MissingSelections(missing))
	}
	if err != nil {
		if workflow.ErrIsRecoverable(err) {
			return fmt.Errorf("%w; selections are kept, run 'workflow retry -w %s'", err, workflowID)
		}
		return err
	}

	return r.writePlainln("Playlist %q created: %s", playlist.Name, playlist.URL)
}

// Retry re-runs the commit of a workflow whose earlier commit failed.
func (r *Runner) Retry(ctx context.Context, cmd *cli.Command) error {
	workflowID := cmd.String("workflow")

	r.loadConfig(cmd)
	if err := r.bootstrap(ctx); err != nil {
		return err
	}
	if err := r.requireCatalog(); err != nil {
		return err
	}

	playlist, missing, err := r.engine.Retry(ctx, workflowID)
	if errors.Is(err, shared.ErrMissingSelections) {
		return r.writePlain("%s", formatter.MissingSelections(missing))
	}
	if err != nil {
		return err
	}

	return r.writePlainln("Playlist %q created: %s", playlist.Name, playlist.URL)
}

// Cancel abandons an active workflow. Only the trigger author, an
// approver, or a tenant admin may cancel.
func (r *Runner) Cancel(ctx context.Context, cmd *cli.Command) error {
	workflowID := cmd.String("workflow")
	actor := cmd.String("actor")

	r.loadConfig(cmd)
	if err := r.bootstrap(ctx); err != nil {
		return err
	}

	if err := r.engine.Cancel(workflowID, actor); err != nil {
		return err
	}
	return r.writePlainln("Workflow %s cancelled.", workflowID)
}

// Status lists active workflows with their selection progress.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)
	if err := r.bootstrap(ctx); err != nil {
		return err
	}

	return r.writePlain("%s", formatter.StatusReport(r.engine.Active()))
}

func (r *Runner) reportReadiness(workflowID string) error {
	ready, missing, err := r.engine.CheckReadiness(workflowID)
	if err != nil {
		return err
	}
	if ready {
		return r.writePlainln("All songs selected. Run 'workflow confirm -w %s' to create the playlist.", workflowID)
	}
	return r.writePlainln("Still pending: %s", strings.Join(missing, ", "))
}

// messageText reads the message body from --file when given, otherwise
// from the positional arguments.
func messageText(cmd *cli.Command) (string, error) {
	if path := cmd.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read message file: %w", err)
		}
		return string(data), nil
	}
	if cmd.Args().Len() == 0 {
		return "", fmt.Errorf("%w: message text", shared.ErrMissingArgument)
	}
	return strings.Join(cmd.Args().Slice(), " "), nil
}
