// package formatter renders workflow state into notification and report text
package formatter

import (
	"bytes"
	"fmt"

	"github.com/jamworks/jambot/internal/models"
)

// SongApproval renders the per-song approval message sent to each approver.
// The wording tracks the match shape: a pre-applied hint asks for a yes/no,
// multiple candidates ask for a numbered choice, no candidates ask for a
// manual override.
func SongApproval(match models.SongMatch) string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Song %d: %s\n", match.Number, match.Title))

	switch {
	case match.StoredVersion != nil:
		t := match.StoredVersion
		buf.WriteString(fmt.Sprintf("Previously used: %s - %s (%s)\n%s\n", t.Name, t.Artist, t.Album, t.URL))
		buf.WriteString("Approve to keep this version, or reject to pick another.")
	case len(match.Candidates) == 1:
		t := match.Candidates[0]
		buf.WriteString(fmt.Sprintf("Found: %s - %s (%s)\n%s\n", t.Name, t.Artist, t.Album, t.URL))
		buf.WriteString("Approve this match, or reject it.")
	case len(match.Candidates) == 0:
		buf.WriteString("No matches found.\n")
		buf.WriteString(fmt.Sprintf("Reply with: use this %s for <date> <track url>", match.Title))
	default:
		buf.WriteString("Pick a version:\n")
		for i, t := range match.Candidates {
			buf.WriteString(fmt.Sprintf("%d. %s - %s (%s)\n", i+1, t.Name, t.Artist, t.Album))
		}
	}

	return buf.String()
}

// Summary renders the live workflow summary: one line per song with its
// current selection state, plus the overall status.
func Summary(w *models.Workflow) string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Setlist for %s", w.Setlist.Date))
	if w.Setlist.Time != "" {
		buf.WriteString(fmt.Sprintf(" (%s)", w.Setlist.Time))
	}
	buf.WriteString("\n\n")

	for _, match := range w.Matches {
		if track, ok := w.Selections[match.Number]; ok {
			buf.WriteString(fmt.Sprintf("%d. %s -> %s - %s\n", match.Number, match.Title, track.Name, track.Artist))
			continue
		}
		if !match.Required() {
			buf.WriteString(fmt.Sprintf("%d. %s (no match, will be skipped)\n", match.Number, match.Title))
			continue
		}
		buf.WriteString(fmt.Sprintf("%d. %s (pending)\n", match.Number, match.Title))
	}

	buf.WriteString("\nStatus: ")
	buf.WriteString(string(w.Status))
	return buf.String()
}

// MissingSelections renders the confirm-time diagnostic naming every song
// that still needs a pick.
func MissingSelections(titles []string) string {
	var buf bytes.Buffer

	buf.WriteString("Cannot confirm yet. Still waiting on:\n")
	for _, title := range titles {
		buf.WriteString(fmt.Sprintf("  - %s\n", title))
	}
	return buf.String()
}

// Completion renders the channel announcement posted after a successful
// commit.
func Completion(w *models.Workflow, playlist *models.PlaylistRef, skipped []string) string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist ready: %s\n%s\n", playlist.Name, playlist.URL))
	buf.WriteString(fmt.Sprintf("%d songs added.", len(w.Selections)))

	if len(skipped) > 0 {
		buf.WriteString("\nSkipped (no match): ")
		for i, title := range skipped {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(title)
		}
	}
	return buf.String()
}

// StatusReport renders the workflow list shown by the status command.
func StatusReport(workflows []*models.Workflow) string {
	if len(workflows) == 0 {
		return "No active workflows."
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("%d active workflow(s):\n", len(workflows)))
	for _, w := range workflows {
		selected := 0
		required := 0
		for _, match := range w.Matches {
			if match.Required() {
				required++
			}
			if _, ok := w.Selections[match.Number]; ok {
				selected++
			}
		}
		buf.WriteString(fmt.Sprintf("  %s  %s  %s  %d/%d songs selected\n",
			w.ID, w.Setlist.Date, w.Status, selected, required))
	}
	return buf.String()
}
