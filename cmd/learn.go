package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/ui"
	"github.com/urfave/cli/v3"
)

// Learn scans channel messages for setlist-shaped text and proposes
// extraction patterns for the tenant. Without --yes the proposal goes
// through the interactive review before anything is stored.
func (r *Runner) Learn(ctx context.Context, cmd *cli.Command) error {
	tenantID := cmd.String("tenant")
	reviewer := cmd.String("reviewer")

	messages, err := readMessages(cmd.String("file"))
	if err != nil {
		return err
	}

	r.loadConfig(cmd)
	if err := r.bootstrap(ctx); err != nil {
		return err
	}

	proposal := r.learner.Scan(tenantID, r.config.Bot.BotUserID, messages)
	if proposal == nil {
		return r.writePlainln("No setlist-like messages found in %d messages.", len(messages))
	}

	if cmd.Bool("yes") {
		if err := r.learner.Confirm(proposal, reviewer); err != nil {
			return err
		}
		return r.writePlainln("Patterns adopted for tenant %s.", tenantID)
	}

	adopted, err := ui.Run(r.learner, proposal, reviewer)
	if err != nil {
		return err
	}
	if !adopted {
		return r.writePlainln("Proposal discarded, tenant %s keeps its current patterns.", tenantID)
	}
	return r.writePlainln("Patterns adopted for tenant %s.", tenantID)
}

func readMessages(path string) ([]models.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}
	var messages []models.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse messages file: %w", err)
	}
	return messages, nil
}
