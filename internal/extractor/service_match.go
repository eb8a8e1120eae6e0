package extractor

import (
	"strings"
	"unicode/utf8"

	"barberline/internal/catalog"
	"barberline/pkg/sanitizer"

	"github.com/agnivade/levenshtein"
)

const (
	// MinServiceScore is the similarity, out of 100, an utterance window must
	// reach against an alias before it is accepted.
	MinServiceScore = 80

	// Single-word aliases shorter than this only match exactly: "have" is one
	// edit from "shave".
	minFuzzyAliasLen = 6

	strongServiceScore = 90
)

type alias struct {
	serviceID string
	text      string
	words     int
}

type ServiceMatch struct {
	ServiceID string
	Alias     string
	Score     int
	Ambiguous bool
	Others    []string
}

// ServiceMatcher maps caller phrasing onto catalog service codes.
type ServiceMatcher struct {
	aliases []alias
}

func NewServiceMatcher(cat *catalog.Catalog) *ServiceMatcher {
	m := &ServiceMatcher{}
	for _, s := range cat.Services {
		names := append([]string{s.Name}, s.Aliases...)
		for _, a := range sanitizer.NormalizeAliases(names) {
			m.aliases = append(m.aliases, alias{serviceID: s.ID, text: a, words: len(strings.Fields(a))})
		}
	}
	return m
}

// Match returns the best service for text, or false when nothing scores at
// least MinServiceScore and no alias appears verbatim. A second service that
// matches strongly on words outside the winning alias marks the match
// ambiguous ("a shave and a haircut").
func (m *ServiceMatcher) Match(text string) (ServiceMatch, bool) {
	norm := sanitizer.NormalizeAlias(text)
	if norm == "" {
		return ServiceMatch{}, false
	}
	words := strings.Fields(norm)

	type hit struct {
		alias alias
		score int
	}
	bestPerService := map[string]hit{}
	var order []string
	for _, a := range m.aliases {
		score := bestWindowScore(words, a)
		if score < MinServiceScore {
			continue
		}
		cur, ok := bestPerService[a.serviceID]
		if !ok {
			order = append(order, a.serviceID)
		}
		if !ok || score > cur.score || (score == cur.score && a.words > cur.alias.words) {
			bestPerService[a.serviceID] = hit{alias: a, score: score}
		}
	}

	if len(order) == 0 {
		// Substring fallback for phrasing the window scan splits badly.
		padded := " " + norm + " "
		for _, a := range m.aliases {
			if strings.Contains(padded, " "+a.text+" ") {
				return ServiceMatch{ServiceID: a.serviceID, Alias: a.text, Score: MinServiceScore}, true
			}
		}
		return ServiceMatch{}, false
	}

	var best hit
	for _, id := range order {
		h := bestPerService[id]
		if h.score > best.score || (h.score == best.score && h.alias.words > best.alias.words) {
			best = h
		}
	}

	match := ServiceMatch{ServiceID: best.alias.serviceID, Alias: best.alias.text, Score: best.score}
	for _, id := range order {
		h := bestPerService[id]
		if id == match.ServiceID || h.score < strongServiceScore || containsWords(best.alias.text, h.alias.text) {
			continue
		}
		match.Ambiguous = true
		match.Others = append(match.Others, id)
	}
	return match, true
}

func bestWindowScore(words []string, a alias) int {
	if len(words) < a.words {
		return 0
	}
	best := 0
	for i := 0; i+a.words <= len(words); i++ {
		window := strings.Join(words[i:i+a.words], " ")
		if window == a.text {
			return 100
		}
		if !wordsClose(words[i:i+a.words], strings.Fields(a.text)) {
			continue
		}
		if s := similarity(window, a.text); s > best {
			best = s
		}
	}
	return best
}

func similarity(a, b string) int {
	if a == b {
		return 100
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 - (100*d+maxLen-1)/maxLen
}

// wordsClose requires every word to be near its alias counterpart, so a
// two-word window cannot reach the threshold on one good word alone. Short
// alias words tolerate a single edit and only when they are not a single-word
// alias.
func wordsClose(window, aliasWords []string) bool {
	for i, aw := range aliasWords {
		d := levenshtein.ComputeDistance(window[i], aw)
		n := utf8.RuneCountInString(aw)
		switch {
		case n < minFuzzyAliasLen && len(aliasWords) == 1:
			if d != 0 {
				return false
			}
		case n < minFuzzyAliasLen:
			if d > 1 {
				return false
			}
		case d > 2:
			return false
		}
	}
	return true
}

func containsWords(outer, inner string) bool {
	return strings.Contains(" "+outer+" ", " "+inner+" ")
}
