package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/shared"
)

// ConsoleNotifier implements [NotificationGateway] for interactive CLI runs.
// Each delivery prints to the writer and yields a monotonically increasing
// handle so selection events can be replayed against it.
type ConsoleNotifier struct {
	mu     sync.Mutex
	writer io.Writer
	logger *log.Logger
	next   int64
	sent   map[string]string
}

func NewConsoleNotifier(w io.Writer, logger *log.Logger) *ConsoleNotifier {
	if w == nil {
		w = os.Stdout
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ConsoleNotifier{
		writer: w,
		logger: logger.With("component", "console"),
		sent:   make(map[string]string),
	}
}

// SendToUser prints an addressed message with its affordances and returns
// the handle under which edits and replies are tracked.
func (c *ConsoleNotifier) SendToUser(ctx context.Context, userID, content string, affordances []models.Affordance) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	handle := fmt.Sprintf("console-%d", c.next)
	c.sent[handle] = content

	var builder strings.Builder
	fmt.Fprintf(&builder, "[%s] to %s:\n%s\n", handle, userID, content)
	for _, a := range affordances {
		if a.Kind == models.AffordanceChoice {
			fmt.Fprintf(&builder, "  [%d] choice\n", a.Index)
		} else {
			fmt.Fprintf(&builder, "  [%s]\n", a.Kind)
		}
	}

	if _, err := fmt.Fprint(c.writer, builder.String()); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDelivery, err)
	}
	return handle, nil
}

// EditSummary replaces a previously sent message in place.
func (c *ConsoleNotifier) EditSummary(ctx context.Context, handle, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sent[handle]; !ok {
		return fmt.Errorf("%w: handle %s", shared.ErrUnknownReplyTarget, handle)
	}
	c.sent[handle] = content

	if _, err := fmt.Fprintf(c.writer, "[%s] updated:\n%s\n", handle, content); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDelivery, err)
	}
	return nil
}

// Announce prints to the named channel. On the console every channel is
// just a prefix.
func (c *ConsoleNotifier) Announce(ctx context.Context, channelID, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := fmt.Fprintf(c.writer, "[#%s] %s\n", channelID, content); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDelivery, err)
	}
	return nil
}
