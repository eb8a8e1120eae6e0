package extractor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"barberline/pkg/sanitizer"
)

const (
	maxNameWords = 4
	maxNameRunes = 60
)

var reNameIntro = regexp.MustCompile(`(?:my name is|my name's|name is|name's|this is|call me|it's|it is|i am|i'm)\s+(.+)$`)

// notNames are words that show up in answers to "what's your name?" without
// being part of the name.
var notNames = map[string]bool{
	"yes": true, "yeah": true, "no": true, "nope": true, "ok": true, "okay": true,
	"sure": true, "um": true, "uh": true, "hi": true, "hello": true, "hey": true,
	"please": true, "thanks": true, "thank": true, "you": true, "the": true, "a": true,
	"and": true, "for": true, "to": true, "book": true, "appointment": true,
	"tomorrow": true, "today": true, "morning": true, "afternoon": true, "evening": true,
	"want": true, "need": true, "like": true, "would": true, "can": true, "what": true,
	"how": true, "when": true, "is": true, "are": true, "do": true, "much": true,
	"looking": true, "calling": true, "going": true, "just": true, "not": true,
}

var nameFillers = []string{"um ", "uh ", "sure ", "yeah ", "yes ", "ok ", "okay ", "so ", "well "}

// extractName finds a caller name. An explicit introduction is trusted more
// than a bare answer, which is only considered when the agent just asked for
// the name.
func extractName(text string, expecting bool) (value string, confidence float64, valid, found bool) {
	if m := reNameIntro.FindStringSubmatch(text); m != nil {
		candidate := strings.TrimSpace(trimTrailingClause(m[1]))
		if v, ok := validName(candidate); ok {
			return v, 0.95, true, true
		}
		if expecting {
			return sanitizer.NormalizeName(candidate), 0.3, false, true
		}
		return "", 0, false, false
	}

	if !expecting {
		return "", 0, false, false
	}

	candidate := text
	for trimmed := true; trimmed; {
		trimmed = false
		for _, f := range nameFillers {
			if strings.HasPrefix(candidate, f) {
				candidate = strings.TrimPrefix(candidate, f)
				trimmed = true
			}
		}
	}
	if v, ok := validName(candidate); ok {
		return v, 0.8, true, true
	}
	return sanitizer.NormalizeName(candidate), 0.3, false, true
}

func validName(candidate string) (string, bool) {
	name := sanitizer.NormalizeName(candidate)
	if name == "" || utf8.RuneCountInString(name) > maxNameRunes {
		return name, false
	}
	words := strings.Fields(strings.ToLower(name))
	if len(words) > maxNameWords {
		return name, false
	}
	for _, w := range words {
		if notNames[w] {
			return name, false
		}
	}
	// Normalization drops digits; a candidate that had them was not a name.
	for _, r := range candidate {
		if r >= '0' && r <= '9' {
			return name, false
		}
	}
	return name, true
}

// trimTrailingClause cuts "john smith and my number is ..." down to the name.
func trimTrailingClause(s string) string {
	for _, sep := range []string{" and ", ", ", " my ", " phone ", " number "} {
		if i := strings.Index(s, sep); i >= 0 {
			s = s[:i]
		}
	}
	return s
}
