package sanitizer

import (
	"strings"
	"unicode"
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeName keeps letters, hyphens and apostrophes and title-cases each
// word: "  john   o'neil-smith " becomes "John O'neil-Smith".
func NormalizeName(name string) string {
	p := Pipeline{
		func(s string) string { return reNameNoise.ReplaceAllString(s, " ") },
		TrimAndNormalize,
		titleCase,
	}
	return p.Apply(name)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = titleWord(w, '-')
	}
	return strings.Join(words, " ")
}

func titleWord(w string, sep rune) string {
	parts := strings.Split(w, string(sep))
	for i, p := range parts {
		if p == "" {
			continue
		}
		runes := []rune(strings.ToLower(p))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, string(sep))
}
