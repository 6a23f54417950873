// Package learner proposes tenant extraction patterns from channel history.
//
// A scan surfaces the most setlist-like recent message and derives a
// pattern proposal from its structure. Nothing is persisted until an
// operator explicitly confirms: silently adopting a heuristic pattern
// risks misclassifying ordinary numbered lists as setlists.
package learner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/parser"
	"github.com/jamworks/jambot/internal/patterns"
	"github.com/jamworks/jambot/internal/shared"
)

// Proposal is a learned pattern candidate awaiting operator confirmation.
//
// When Analysis.Success is false the proposal carries only the detection
// evidence: the operator is asked to reformat the message rather than
// confirm a pattern.
type Proposal struct {
	TenantID  string
	Message   models.Message
	Detection parser.Detection
	Analysis  parser.StructuralAnalysis
	Patterns  models.ExtractionPattern
}

// Learner scans messages and gates pattern adoption behind confirmation.
type Learner struct {
	parser *parser.Parser
	store  *patterns.Store
	logger *log.Logger
}

func New(p *parser.Parser, store *patterns.Store, logger *log.Logger) *Learner {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Learner{
		parser: p,
		store:  store,
		logger: logger.With("component", "learner"),
	}
}

// Scan inspects recent messages for the tenant, skipping the bot's own,
// and returns a proposal built from the highest-confidence potential
// setlist. Returns nil when nothing crosses the potential threshold.
func (l *Learner) Scan(tenantID, botUserID string, messages []models.Message) *Proposal {
	var (
		best          models.Message
		bestDetection parser.Detection
		found         bool
	)

	for _, message := range messages {
		if message.AuthorID == botUserID {
			continue
		}
		detection := l.parser.DetectPotentialSetlist(message.Content)
		if !detection.Potential {
			continue
		}
		if !found || detection.Confidence > bestDetection.Confidence {
			best = message
			bestDetection = detection
			found = true
		}
	}

	if !found {
		l.logger.Info("no potential setlists", "tenant", tenantID, "scanned", len(messages))
		return nil
	}

	analysis := l.parser.AnalyzeStructure(best.Content)
	proposal := &Proposal{
		TenantID:  tenantID,
		Message:   best,
		Detection: bestDetection,
		Analysis:  analysis,
	}
	if analysis.Success {
		proposal.Patterns = derivePatterns(analysis)
	}

	l.logger.Info("scan complete",
		"tenant", tenantID, "confidence", bestDetection.Confidence,
		"structured", analysis.Success)
	return proposal
}

// Confirm persists the proposal's patterns and invalidates the tenant's
// compiled-pattern cache. Only structurally analyzable proposals can be
// confirmed.
func (l *Learner) Confirm(proposal *Proposal, confirmedBy string) error {
	if proposal == nil || !proposal.Analysis.Success {
		return fmt.Errorf("%w: proposal has no usable structure", shared.ErrInvalidInput)
	}
	return l.store.Update(proposal.TenantID, proposal.Patterns, confirmedBy)
}

// derivePatterns builds a pattern pair from the analyzed structure. The
// intro pattern is the literal intro line with the recognized date/time
// spans generalized; song lines keep the default pattern when the tenant
// writes keys, and get a plain numbered-line pattern otherwise.
func derivePatterns(analysis parser.StructuralAnalysis) models.ExtractionPattern {
	derived := models.ExtractionPattern{}

	if analysis.IntroLine != "" && (analysis.Date != "" || analysis.Time != "") {
		intro := regexp.QuoteMeta(analysis.IntroLine)
		// Generalize time before date: the time span can sit inside
		// the date span's text but not the other way around.
		if analysis.Time != "" {
			intro = strings.Replace(intro, regexp.QuoteMeta(analysis.Time), "(.+?)", 1)
		}
		if analysis.Date != "" {
			intro = strings.Replace(intro, regexp.QuoteMeta(analysis.Date), "(.+?)", 1)
		}
		derived.Intro = "(?i)" + intro
	}

	if analysis.Format == parser.FormatWithoutKey {
		derived.Song = `(?m)^\s*(\d+)[.)]\s+(.+?)\s*$`
	}

	return derived
}
