package chunking

import (
	"strings"
	"unicode"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

// Section names carried into the index payload.
const (
	SectionSummary    = "summary"
	SectionConditions = "conditions"
	SectionInclusion  = "inclusion"
	SectionExclusion  = "exclusion"
	SectionLocations  = "locations"
)

// Splitter turns one trial record into indexable segments, one per clinical
// section, long sections split at word boundaries.
type Splitter struct {
	MaxChars int
}

func NewSplitter(maxChars int) *Splitter {
	if maxChars <= 0 {
		maxChars = 4096
	}
	return &Splitter{MaxChars: maxChars}
}

func (s *Splitter) Split(trial *domain.TrialRecord) []domain.TrialSegment {
	if trial == nil {
		return nil
	}

	out := make([]domain.TrialSegment, 0, 5)
	add := func(section, text string) {
		for _, piece := range s.splitText(text) {
			out = append(out, domain.TrialSegment{
				TrialID: trial.ID,
				Index:   len(out),
				Section: section,
				Text:    piece,
			})
		}
	}

	add(SectionSummary, summaryText(trial))
	if len(trial.Conditions) > 0 {
		add(SectionConditions, "Conditions: "+strings.Join(trial.Conditions, ", "))
	}
	if trial.InclusionCriteria != "" {
		add(SectionInclusion, "Inclusion criteria:\n"+trial.InclusionCriteria)
	}
	if trial.ExclusionCriteria != "" {
		add(SectionExclusion, "Exclusion criteria:\n"+trial.ExclusionCriteria)
	}
	if len(trial.Locations) > 0 {
		add(SectionLocations, "Locations: "+strings.Join(trial.Locations, ", "))
	}
	return out
}

// summaryText prefixes the description with the title so the summary segment
// stays findable by name alone.
func summaryText(trial *domain.TrialRecord) string {
	title := strings.TrimSpace(trial.Title)
	description := strings.TrimSpace(trial.Description)
	switch {
	case title == "":
		return description
	case description == "":
		return title
	default:
		return title + "\n\n" + description
	}
}

func (s *Splitter) splitText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= s.MaxChars {
		return []string{text}
	}

	out := make([]string, 0, len(runes)/s.MaxChars+1)
	for len(runes) > 0 {
		if len(runes) <= s.MaxChars {
			piece := strings.TrimSpace(string(runes))
			if piece != "" {
				out = append(out, piece)
			}
			break
		}

		cut := s.MaxChars
		for cut > 0 && !unicode.IsSpace(runes[cut]) {
			cut--
		}
		if cut == 0 {
			// No word boundary inside the window, hard cut.
			cut = s.MaxChars
		}

		piece := strings.TrimSpace(string(runes[:cut]))
		if piece != "" {
			out = append(out, piece)
		}
		runes = runes[cut:]
		for len(runes) > 0 && unicode.IsSpace(runes[0]) {
			runes = runes[1:]
		}
	}
	return out
}
