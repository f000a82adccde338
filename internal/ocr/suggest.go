package ocr

import (
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// Suggestion matching thresholds.
const (
	// MatchThreshold is the similarity a reading needs to snap to a suggestion.
	MatchThreshold = 0.6
	// StickyThreshold keeps a track on its previous suggestion while OCR
	// readings stay this close to it.
	StickyThreshold = 0.35
)

// DefaultSuggestions are the expected note texts used when none are configured.
var DefaultSuggestions = []string{
	"Cool Stuff",
	"MORE AI",
	"Refinement",
	"Sprint 2026",
	"Idea Board",
	"Innovation",
}

// Similarity returns 1 - distance/maxLen over the trimmed, lowercased
// strings. Two empty strings are identical; one empty string matches nothing.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 1
	}
	if la == 0 || lb == 0 {
		return 0
	}
	maxLen := max(la, lb)
	return float64(maxLen-levenshtein.ComputeDistance(a, b)) / float64(maxLen)
}

// Suggester snaps noisy OCR readings to a list of expected note texts and
// remembers the match per track.
type Suggester struct {
	mu          sync.Mutex
	suggestions []string
	matched     map[int]string
}

// NewSuggester creates a Suggester for suggestions. Blank entries are dropped.
func NewSuggester(suggestions []string) *Suggester {
	s := &Suggester{matched: make(map[int]string)}
	s.SetSuggestions(suggestions)
	return s
}

// Suggestions returns a copy of the current list.
func (s *Suggester) Suggestions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.suggestions...)
}

// SetSuggestions replaces the list and forgets earlier matches.
func (s *Suggester) SetSuggestions(suggestions []string) {
	clean := make([]string, 0, len(suggestions))
	for _, v := range suggestions {
		if v = strings.TrimSpace(v); v != "" {
			clean = append(clean, v)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestions = clean
	s.matched = make(map[int]string)
}

// BestMatch returns the most similar suggestion, if any reaches MatchThreshold.
func (s *Suggester) BestMatch(text string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bestMatch(text)
}

func (s *Suggester) bestMatch(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	best, bestScore := "", 0.0
	for _, v := range s.suggestions {
		if score := Similarity(text, v); score > bestScore {
			best, bestScore = v, score
		}
	}
	if bestScore < MatchThreshold {
		return "", false
	}
	return best, true
}

// Resolve returns the text to show for a track given a raw OCR reading. A
// match is remembered for the track. A reading that matches nothing keeps the
// previous match while it stays within StickyThreshold, otherwise the raw
// text is returned and the track is forgotten.
func (s *Suggester) Resolve(trackID int, raw string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if match, ok := s.bestMatch(raw); ok {
		s.matched[trackID] = match
		return match
	}
	if prev, ok := s.matched[trackID]; ok {
		if Similarity(raw, prev) > StickyThreshold {
			return prev
		}
		delete(s.matched, trackID)
	}
	return raw
}

// Forget drops the remembered match of one track.
func (s *Suggester) Forget(trackID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.matched, trackID)
}

// Reset drops every remembered match.
func (s *Suggester) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matched = make(map[int]string)
}

// ParseSuggestions splits a list separated by ';' or newlines.
func ParseSuggestions(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
