// Package ui implements the operator console for reviewing learned
// pattern proposals before they are adopted for a tenant.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jamworks/jambot/internal/learner"
	"github.com/jamworks/jambot/internal/parser"
)

// ViewState represents the current view in the review console.
type ViewState int

const (
	ProposalView ViewState = iota
	ConfirmView
	ResultView
)

// Model drives the proposal review flow: show the evidence, preview the
// derived pattern, and require an explicit yes before anything persists.
type Model struct {
	view     ViewState
	learner  *learner.Learner
	proposal *learner.Proposal
	reviewer string
	err      error
	adopted  bool
	help     help.Model
	keys     keyMap
}

func NewModel(l *learner.Learner, proposal *learner.Proposal, reviewer string) Model {
	return Model{
		view:     ProposalView,
		learner:  l,
		proposal: proposal,
		reviewer: reviewer,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if key.Matches(keyMsg, m.keys.quit) {
		return m, tea.Quit
	}

	switch m.view {
	case ProposalView:
		if key.Matches(keyMsg, m.keys.enter) && m.proposal.Analysis.Success {
			m.view = ConfirmView
		}
	case ConfirmView:
		switch {
		case key.Matches(keyMsg, m.keys.yes):
			m.err = m.learner.Confirm(m.proposal, m.reviewer)
			m.adopted = m.err == nil
			m.view = ResultView
		case key.Matches(keyMsg, m.keys.no), key.Matches(keyMsg, m.keys.back):
			m.view = ProposalView
		}
	case ResultView:
		if key.Matches(keyMsg, m.keys.restart) {
			m.view = ProposalView
			m.err = nil
			m.adopted = false
		}
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	switch m.view {
	case ProposalView:
		b.WriteString(styles.title.Render("Pattern proposal"))
		b.WriteString("\n")
		b.WriteString(m.renderEvidence())
		if m.proposal.Analysis.Success {
			b.WriteString(m.renderPreview())
			b.WriteString(styles.help.Render("\npress enter to review adoption"))
		} else {
			b.WriteString(styles.warn.Render("\nMessage structure could not be analyzed."))
			b.WriteString(styles.help.Render("\nask the author to reformat with numbered song lines"))
		}
	case ConfirmView:
		b.WriteString(styles.title.Render("Adopt this pattern?"))
		b.WriteString("\n")
		b.WriteString(m.renderPatterns())
		b.WriteString(styles.help.Render("\ny to adopt, n to go back"))
	case ResultView:
		if m.err != nil {
			b.WriteString(styles.err.Render(fmt.Sprintf("Adoption failed: %v", m.err)))
		} else if m.adopted {
			b.WriteString(styles.ok.Render("Pattern adopted."))
			b.WriteString("\nThe tenant's parser cache was invalidated; new patterns apply immediately.")
		}
		b.WriteString(styles.help.Render("\nr to review again, q to quit"))
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderEvidence() string {
	var b strings.Builder

	detection := m.proposal.Detection
	fmt.Fprintf(&b, "Confidence: %.2f\n", detection.Confidence)
	fmt.Fprintf(&b, "Numbered lines: %d\n", detection.Evidence.NumberedLines)
	if len(detection.Evidence.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(detection.Evidence.Keywords, ", "))
	}
	return b.String()
}

func (m Model) renderPreview() string {
	var b strings.Builder

	analysis := m.proposal.Analysis
	b.WriteString("\n")
	if analysis.Date != "" {
		fmt.Fprintf(&b, "Date: %s\n", analysis.Date)
	}
	if analysis.Time != "" {
		fmt.Fprintf(&b, "Time: %s\n", analysis.Time)
	}

	format := "without keys"
	if analysis.Format == parser.FormatWithKey {
		format = "with keys"
	}
	fmt.Fprintf(&b, "Song format: %s (%d songs)\n", format, len(analysis.Songs))

	limit := len(analysis.Songs)
	if limit > 5 {
		limit = 5
	}
	for _, song := range analysis.Songs[:limit] {
		fmt.Fprintf(&b, "  %d. %s\n", song.Number, song.Title)
	}
	if len(analysis.Songs) > limit {
		fmt.Fprintf(&b, "  … and %d more\n", len(analysis.Songs)-limit)
	}
	return b.String()
}

func (m Model) renderPatterns() string {
	var b strings.Builder

	if m.proposal.Patterns.Intro != "" {
		fmt.Fprintf(&b, "intro: %s\n", m.proposal.Patterns.Intro)
	} else {
		b.WriteString("intro: (default)\n")
	}
	if m.proposal.Patterns.Song != "" {
		fmt.Fprintf(&b, "song:  %s\n", m.proposal.Patterns.Song)
	} else {
		b.WriteString("song:  (default)\n")
	}
	return b.String()
}

// Run starts the review console for a proposal and blocks until the
// operator quits. Reports whether the proposal was adopted.
func Run(l *learner.Learner, proposal *learner.Proposal, reviewer string) (bool, error) {
	program := tea.NewProgram(NewModel(l, proposal, reviewer))
	final, err := program.Run()
	if err != nil {
		return false, fmt.Errorf("review console failed: %w", err)
	}
	model, ok := final.(Model)
	if !ok {
		return false, nil
	}
	return model.adopted, model.err
}
