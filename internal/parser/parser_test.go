package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/shared"
)

const announcement = "Here's the setlist for the 7pm jam on January 15, 2024.\n1. Will the Circle Be Unbroken (G)\n2. Rocky Top (A)"

func TestParse(t *testing.T) {
	p := New(nil)

	t.Run("Announcement", func(t *testing.T) {
		setlist, err := p.Parse(announcement, Default())
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if setlist.Date != "January 15, 2024" {
			t.Errorf("expected date January 15, 2024, got %q", setlist.Date)
		}
		if setlist.Time != "7pm" {
			t.Errorf("expected time 7pm, got %q", setlist.Time)
		}
		want := []models.SongEntry{
			{Number: 1, Title: "Will the Circle Be Unbroken"},
			{Number: 2, Title: "Rocky Top"},
		}
		if len(setlist.Songs) != len(want) {
			t.Fatalf("expected %d songs, got %d", len(want), len(setlist.Songs))
		}
		for i, song := range want {
			if setlist.Songs[i] != song {
				t.Errorf("song %d: expected %+v, got %+v", i, song, setlist.Songs[i])
			}
		}
	})

	t.Run("TypographicApostrophe", func(t *testing.T) {
		text := "Here’s the setlist for the evening jam on June 1st.\n1. Salt Creek (A)"
		setlist, err := p.Parse(text, Default())
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if setlist.Time != "evening" {
			t.Errorf("expected evening, got %q", setlist.Time)
		}
	})

	t.Run("ParentheticalAside", func(t *testing.T) {
		text := "Here's the setlist (finally!) for the 7pm jam on June 1st.\n1. Salt Creek (A)"
		if _, err := p.Parse(text, Default()); err != nil {
			t.Errorf("parenthetical aside should still parse: %v", err)
		}
	})

	t.Run("UpcomingVariant", func(t *testing.T) {
		text := "Here's the upcoming setlist for the 7pm jam on June 1st.\n1. Salt Creek (A)"
		if _, err := p.Parse(text, Default()); err != nil {
			t.Errorf("upcoming variant should parse: %v", err)
		}
	})

	t.Run("NotASetlist", func(t *testing.T) {
		_, err := p.Parse("what time is practice tonight?", Default())
		if !errors.Is(err, shared.ErrNotASetlist) {
			t.Errorf("expected ErrNotASetlist, got %v", err)
		}
	})

	t.Run("IntroWithoutSongsIsParseFailure", func(t *testing.T) {
		text := "Here's the setlist for the 7pm jam on June 1st.\nsee attachment"
		_, err := p.Parse(text, Default())
		if !errors.Is(err, shared.ErrParseFailure) {
			t.Errorf("expected ErrParseFailure, got %v", err)
		}
	})

	t.Run("MultipleAnnotationsStripped", func(t *testing.T) {
		text := "Here's the setlist for the 7pm jam on June 1st.\n1. Song Title (slow) (G)"
		setlist, err := p.Parse(text, Default())
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if setlist.Songs[0].Title != "Song Title" {
			t.Errorf("expected all annotations stripped, got %q", setlist.Songs[0].Title)
		}
	})

	t.Run("UnnumberedLinesGetSequentialNumbers", func(t *testing.T) {
		text := "Here's the setlist for the 7pm jam on June 1st.\nSalt Creek (A)\nRed Haired Boy (A)"
		setlist, err := p.Parse(text, Default())
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if len(setlist.Songs) != 2 {
			t.Fatalf("expected 2 songs, got %d", len(setlist.Songs))
		}
		if setlist.Songs[0].Number != 1 || setlist.Songs[1].Number != 2 {
			t.Errorf("expected sequential numbers, got %d and %d", setlist.Songs[0].Number, setlist.Songs[1].Number)
		}
	})

	t.Run("IsSetlistMessageAgreesWithParse", func(t *testing.T) {
		texts := []string{
			announcement,
			"what time is practice tonight?",
			"Here's the setlist for the 7pm jam on June 1st.\nsee attachment",
			"random\n1. numbered but no intro (G)",
		}
		for _, text := range texts {
			_, err := p.Parse(text, Default())
			notASetlist := errors.Is(err, shared.ErrNotASetlist)
			if p.IsSetlistMessage(text, Default()) == notASetlist {
				t.Errorf("IsSetlistMessage and Parse disagree on %q", text)
			}
		}
	})
}

func TestStripAnnotations(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Song (A) (faster)", "Song"},
		{"Song (A)", "Song"},
		{"Song", "Song"},
		{"  Song  ", "Song"},
		{"Song (with) middle (G)", "Song (with) middle"},
	}
	for _, tc := range cases {
		if got := StripAnnotations(tc.in); got != tc.want {
			t.Errorf("StripAnnotations(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	t.Run("Idempotent", func(t *testing.T) {
		for _, tc := range cases {
			once := StripAnnotations(tc.in)
			if twice := StripAnnotations(once); twice != once {
				t.Errorf("second strip changed %q to %q", once, twice)
			}
		}
	})
}

func TestDetectPotentialSetlist(t *testing.T) {
	p := New(nil)

	t.Run("ConfidenceFormula", func(t *testing.T) {
		cases := []struct {
			name string
			text string
			want float64
		}{
			{"FiveNumberedPlusKeyword", "setlist\n1. a\n2. b\n3. c\n4. d\n5. e", 1.0},
			{"ThreeNumberedNoKeywords", "1. a\n2. b\n3. c", 0.3},
			{"OneNumberedNoKeywords", "1. a", 0.1},
			{"KeywordOnly", "the setlist", 0.3},
			{"Nothing", "hello there", 0.0},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				got := p.DetectPotentialSetlist(tc.text)
				if got.Confidence != tc.want {
					t.Errorf("confidence = %v, want %v (evidence %+v)", got.Confidence, tc.want, got.Evidence)
				}
				if got.Potential != (tc.want >= 0.3) {
					t.Errorf("potential = %v for confidence %v", got.Potential, got.Confidence)
				}
			})
		}
	})

	t.Run("OnlyFirstTenLinesCounted", func(t *testing.T) {
		var lines []string
		for i := 0; i < 15; i++ {
			lines = append(lines, "filler")
		}
		lines = append(lines, "1. too late", "2. also late", "3. late", "4. late", "5. late")
		got := p.DetectPotentialSetlist(strings.Join(lines, "\n"))
		if got.Evidence.NumberedLines != 0 {
			t.Errorf("lines beyond the first 10 should not count, got %d", got.Evidence.NumberedLines)
		}
	})

	t.Run("MonotonicInKeywords", func(t *testing.T) {
		base := "1. a\n2. b\n3. c"
		withKeyword := base + "\nsetlist"
		if p.DetectPotentialSetlist(withKeyword).Confidence < p.DetectPotentialSetlist(base).Confidence {
			t.Error("adding a keyword must never decrease confidence")
		}
	})
}

func TestAnalyzeStructure(t *testing.T) {
	p := New(nil)

	t.Run("WithKeyMajority", func(t *testing.T) {
		text := "Songs for friday on January 15, 2024\n1. Circle (G)\n2. Rocky Top (A)\n3. No Key Here"
		analysis := p.AnalyzeStructure(text)
		if !analysis.Success {
			t.Fatal("expected success")
		}
		if analysis.IntroLine != "Songs for friday on January 15, 2024" {
			t.Errorf("unexpected intro line %q", analysis.IntroLine)
		}
		if analysis.Date != "January 15, 2024" {
			t.Errorf("unexpected date %q", analysis.Date)
		}
		if analysis.Format != FormatWithKey {
			t.Errorf("expected with_key, got %s", analysis.Format)
		}
		if len(analysis.Songs) != 3 {
			t.Errorf("expected 3 songs, got %d", len(analysis.Songs))
		}
	})

	t.Run("DefaultIntroPatternPreferred", func(t *testing.T) {
		text := "Here's the setlist for the 7pm jam on January 15, 2024.\n1. Circle (G)"
		analysis := p.AnalyzeStructure(text)
		if analysis.Time != "7pm" || analysis.Date != "January 15, 2024" {
			t.Errorf("expected default-pattern extraction, got time %q date %q", analysis.Time, analysis.Date)
		}
	})

	t.Run("FallbackTimeScan", func(t *testing.T) {
		text := "lineup for the evening show 6/14\n1. Circle\n2. Rocky Top"
		analysis := p.AnalyzeStructure(text)
		if analysis.Time != "evening" {
			t.Errorf("expected evening, got %q", analysis.Time)
		}
		if analysis.Date != "6/14" {
			t.Errorf("expected 6/14, got %q", analysis.Date)
		}
		if analysis.Format != FormatWithoutKey {
			t.Errorf("expected without_key, got %s", analysis.Format)
		}
	})

	t.Run("NoSongsFails", func(t *testing.T) {
		analysis := p.AnalyzeStructure("just chatting about the jam")
		if analysis.Success {
			t.Error("no numbered lines should fail analysis")
		}
	})
}

func TestCompile(t *testing.T) {
	t.Run("EmptyFieldsKeepDefaults", func(t *testing.T) {
		pattern, err := Compile(models.ExtractionPattern{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pattern.Intro != Default().Intro || pattern.Song != Default().Song {
			t.Error("empty sources should keep defaults")
		}
	})

	t.Run("InvalidFallsBackWithError", func(t *testing.T) {
		pattern, err := Compile(models.ExtractionPattern{Intro: `([bad`})
		if !errors.Is(err, shared.ErrInvalidPattern) {
			t.Fatalf("expected ErrInvalidPattern, got %v", err)
		}
		if pattern.Intro != Default().Intro {
			t.Error("invalid compile should return the default pattern")
		}
	})
}

func TestParseManualOverride(t *testing.T) {
	t.Run("FullCommand", func(t *testing.T) {
		override, err := ParseManualOverride("use this version of Salt Creek for June 1st https://open.spotify.com/track/abc123")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if override.Title != "Salt Creek" {
			t.Errorf("unexpected title %q", override.Title)
		}
		if override.Date != "June 1st" {
			t.Errorf("unexpected date %q", override.Date)
		}
		if override.URL != "https://open.spotify.com/track/abc123" {
			t.Errorf("unexpected url %q", override.URL)
		}
	})

	t.Run("WithoutVersionOf", func(t *testing.T) {
		override, err := ParseManualOverride("use this Salt Creek for June 1st https://open.spotify.com/track/abc123")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if override.Title != "Salt Creek" {
			t.Errorf("unexpected title %q", override.Title)
		}
	})

	t.Run("NotACommand", func(t *testing.T) {
		if _, err := ParseManualOverride("please use the usual one"); err == nil {
			t.Error("expected an error for non-command text")
		}
	})
}

func TestExtractTrackURL(t *testing.T) {
	if got := ExtractTrackURL("try https://open.spotify.com/track/abc?si=x please"); got != "https://open.spotify.com/track/abc?si=x" {
		t.Errorf("unexpected url %q", got)
	}
	if got := ExtractTrackURL("https://open.spotify.com/playlist/xyz"); got != "" {
		t.Errorf("playlist url should not match, got %q", got)
	}
}
