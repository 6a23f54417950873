// package parser turns setlist announcement text into structured setlists.
//
// Parsing is driven by a tenant [Pattern] (intro + song-line regex pair);
// the heuristics ([Parser.DetectPotentialSetlist], [Parser.AnalyzeStructure])
// are pattern-independent and feed the pattern learner.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/shared"
)

// Default pattern sources. The intro tolerates straight and typographic
// apostrophes and an optional parenthetical aside before the "for" clause;
// the song line captures number, title, key, and trailing notes.
const (
	DefaultIntroSource = `(?i)here['’]s\s+the\s+(?:upcoming\s+)?setlist(?:\s+\([^)]*\))?\s+for\s+the\s+(.+?)\s+jam\s+on\s+(.+?)\.`
	DefaultSongSource  = `(?m)^\s*(?:(\d+)\.\s+)?(.+?)\s+\(([A-Ga-g][#b]?[mM]?(?:aj|in)?)\)(.*)$`
)

var (
	defaultIntro = regexp.MustCompile(DefaultIntroSource)
	defaultSong  = regexp.MustCompile(DefaultSongSource)

	trailingParen = regexp.MustCompile(`\s*\([^)]+\)\s*$`)
	numberedLine  = regexp.MustCompile(`^\s*\d+[.)]\s+\S`)
	bareSongLine  = regexp.MustCompile(`^\s*(\d+)[.)]\s+(.+?)\s*$`)

	datePattern = regexp.MustCompile(`(?i)\b(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s*\d{4})?\b|\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`)
	timePattern = regexp.MustCompile(`(?i)\b\d{1,2}(?::\d{2})?\s*(?:am|pm)\b|\b(?:morning|afternoon|evening|night)\b`)
)

// setlistKeywords drive the pattern-independent heuristic. Each distinct
// keyword found adds to the confidence score.
var setlistKeywords = []string{"setlist", "set list", "jam", "songs", "show", "lineup"}

// Pattern is a compiled intro/song-line pair.
type Pattern struct {
	Intro *regexp.Regexp
	Song  *regexp.Regexp
}

// Default returns the tenant-independent default pattern.
func Default() Pattern {
	return Pattern{Intro: defaultIntro, Song: defaultSong}
}

// Compile builds a Pattern from source form. Empty fields fall back to the
// defaults; an invalid regex fails the whole compile so the caller can fall
// back rather than parse with half a pattern.
func Compile(p models.ExtractionPattern) (Pattern, error) {
	compiled := Default()

	if p.Intro != "" {
		intro, err := regexp.Compile(p.Intro)
		if err != nil {
			return Default(), fmt.Errorf("%w: intro: %v", shared.ErrInvalidPattern, err)
		}
		compiled.Intro = intro
	}

	if p.Song != "" {
		song, err := regexp.Compile(p.Song)
		if err != nil {
			return Default(), fmt.Errorf("%w: song: %v", shared.ErrInvalidPattern, err)
		}
		compiled.Song = song
	}

	return compiled, nil
}

// Evidence is the raw signal behind a heuristic detection.
type Evidence struct {
	NumberedLines int      `json:"numbered_lines"`
	Keywords      []string `json:"keywords"`
}

// Detection is the result of the pattern-independent setlist heuristic.
type Detection struct {
	Potential  bool     `json:"potential"`
	Confidence float64  `json:"confidence"`
	Evidence   Evidence `json:"evidence"`
}

// SongFormat classifies how a tenant writes song lines.
type SongFormat string

const (
	FormatWithKey    SongFormat = "with_key"
	FormatWithoutKey SongFormat = "without_key"
	FormatUnknown    SongFormat = "unknown"
)

// StructuralAnalysis describes the shape of a candidate setlist message,
// used to derive a tenant pattern proposal.
type StructuralAnalysis struct {
	IntroLine  string             `json:"intro_line"`
	Date       string             `json:"date"`
	Time       string             `json:"time"`
	Format     SongFormat         `json:"format"`
	WithKey    int                `json:"with_key"`
	WithoutKey int                `json:"without_key"`
	Songs      []models.SongEntry `json:"songs"`
	Success    bool               `json:"success"`
}

// Parser extracts structured setlists from announcement text.
type Parser struct {
	logger *log.Logger
}

// New creates a Parser. A nil logger gets the default stderr logger.
func New(logger *log.Logger) *Parser {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Parser{logger: logger.With("component", "parser")}
}

// IsSetlistMessage reports whether the intro pattern matches anywhere in text.
func (p *Parser) IsSetlistMessage(text string, pattern Pattern) bool {
	return pattern.Intro.MatchString(text)
}

// Parse extracts a setlist from text.
//
// Returns [shared.ErrNotASetlist] if the intro never matches, and
// [shared.ErrParseFailure] if the intro matched but no songs were
// extracted (detected but unparsable).
func (p *Parser) Parse(text string, pattern Pattern) (*models.ParsedSetlist, error) {
	intro := pattern.Intro.FindStringSubmatch(text)
	if intro == nil {
		return nil, shared.ErrNotASetlist
	}

	timeOfDay := strings.TrimSpace(intro[1])
	date := strings.TrimSpace(intro[2])

	var songs []models.SongEntry
	counter := 1 // assigns numbers to unnumbered lines
	for _, match := range pattern.Song.FindAllStringSubmatch(text, -1) {
		numberStr := match[1]
		title := StripAnnotations(match[2])
		if title == "" {
			continue
		}

		number := counter
		if numberStr != "" {
			fmt.Sscanf(numberStr, "%d", &number)
		}

		songs = append(songs, models.SongEntry{Number: number, Title: title})
		if numberStr == "" {
			counter++
		}
	}

	if len(songs) == 0 {
		p.logger.Warn("setlist intro matched but no songs extracted", "date", date, "time", timeOfDay)
		return nil, shared.ErrParseFailure
	}

	p.logger.Info("parsed setlist", "date", date, "time", timeOfDay, "songs", len(songs))
	return &models.ParsedSetlist{Date: date, Time: timeOfDay, Songs: songs}, nil
}

// StripAnnotations removes all trailing parenthetical annotations from a
// title, repeating until none remain. Stripping an already-stripped title
// is a no-op.
func StripAnnotations(title string) string {
	title = strings.TrimSpace(title)
	for trailingParen.MatchString(title) {
		title = strings.TrimSpace(trailingParen.ReplaceAllString(title, ""))
	}
	return title
}

// DetectPotentialSetlist scores text for setlist-likeness without a tenant
// pattern. Intentionally looser than Parse; only used to surface learning
// candidates.
//
// Scoring: +0.5 for >=5 numbered lines (first 10 lines), +0.3 for 3-4,
// +0.1 for 1-2; +0.3 per matched keyword; +0.2 when both signals are
// present; capped at 1.0. Potential at >= 0.3.
func (p *Parser) DetectPotentialSetlist(text string) Detection {
	lines := strings.Split(text, "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}

	numbered := 0
	for _, line := range lines {
		if numberedLine.MatchString(line) {
			numbered++
		}
	}

	lower := strings.ToLower(text)
	var keywords []string
	for _, kw := range setlistKeywords {
		if strings.Contains(lower, kw) {
			keywords = append(keywords, kw)
		}
	}

	confidence := 0.0
	switch {
	case numbered >= 5:
		confidence += 0.5
	case numbered >= 3:
		confidence += 0.3
	case numbered >= 1:
		confidence += 0.1
	}
	confidence += 0.3 * float64(len(keywords))
	if numbered > 0 && len(keywords) > 0 {
		confidence += 0.2
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	return Detection{
		Potential:  confidence >= 0.3,
		Confidence: confidence,
		Evidence:   Evidence{NumberedLines: numbered, Keywords: keywords},
	}
}

// AnalyzeStructure inspects a candidate message's shape: the first
// non-numbered non-empty line is the putative intro (date/time extracted via
// the default pattern, falling back to independent date and time scans), and
// each numbered line is classified as with-key or without-key. Success
// requires at least one parsed song line.
func (p *Parser) AnalyzeStructure(text string) StructuralAnalysis {
	analysis := StructuralAnalysis{Format: FormatUnknown}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if !numberedLine.MatchString(trimmed) {
			if analysis.IntroLine == "" {
				analysis.IntroLine = trimmed
				analysis.Time, analysis.Date = extractDateTime(trimmed)
			}
			continue
		}

		if match := defaultSong.FindStringSubmatch(trimmed); match != nil {
			if title := StripAnnotations(match[2]); title != "" {
				analysis.WithKey++
				analysis.Songs = append(analysis.Songs, numberedEntry(match[1], title, len(analysis.Songs)))
				continue
			}
		}

		if match := bareSongLine.FindStringSubmatch(trimmed); match != nil {
			if title := StripAnnotations(match[2]); title != "" {
				analysis.WithoutKey++
				analysis.Songs = append(analysis.Songs, numberedEntry(match[1], title, len(analysis.Songs)))
			}
		}
	}

	switch {
	case analysis.WithKey == 0 && analysis.WithoutKey == 0:
		analysis.Format = FormatUnknown
	case analysis.WithKey >= analysis.WithoutKey:
		analysis.Format = FormatWithKey
	default:
		analysis.Format = FormatWithoutKey
	}

	analysis.Success = len(analysis.Songs) > 0
	return analysis
}

// extractDateTime pulls time and date from an intro line, preferring the
// default intro pattern and falling back to independent scans.
func extractDateTime(line string) (timeOfDay, date string) {
	if match := defaultIntro.FindStringSubmatch(line); match != nil {
		return strings.TrimSpace(match[1]), strings.TrimSpace(match[2])
	}

	if match := timePattern.FindString(line); match != "" {
		timeOfDay = strings.TrimSpace(match)
	}
	if match := datePattern.FindString(line); match != "" {
		date = strings.TrimSpace(match)
	}
	return timeOfDay, date
}

func numberedEntry(numberStr, title string, position int) models.SongEntry {
	number := position + 1
	if numberStr != "" {
		fmt.Sscanf(numberStr, "%d", &number)
	}
	return models.SongEntry{Number: number, Title: title}
}

// Manual override command grammar:
// "use this [version of] <title> for <date> <track url>".
var manualOverridePattern = regexp.MustCompile(
	`(?i)use\s+this(?:\s+version\s+of)?\s+(.+?)\s+for\s+(.+?)\s+(https?://\S+)`)

// ManualOverride is a parsed free-text override command.
type ManualOverride struct {
	Title string
	Date  string
	URL   string
}

// ParseManualOverride extracts a manual override command from free text.
func ParseManualOverride(text string) (*ManualOverride, error) {
	match := manualOverridePattern.FindStringSubmatch(text)
	if match == nil {
		return nil, fmt.Errorf("%w: not a manual override command", shared.ErrInvalidInput)
	}
	return &ManualOverride{
		Title: strings.TrimSpace(match[1]),
		Date:  strings.TrimSpace(match[2]),
		URL:   strings.TrimSpace(match[3]),
	}, nil
}

// ExtractTrackURL finds the first track URL in free text, used by
// reply-based manual overrides.
var trackURLPattern = regexp.MustCompile(`https?://open\.spotify\.com/track/\S+`)

func ExtractTrackURL(text string) string {
	return trackURLPattern.FindString(text)
}
