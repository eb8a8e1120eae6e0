package sanitizer

import "strings"

var spokenDigits = map[string]string{
	"zero":  "0",
	"oh":    "0",
	"o":     "0",
	"one":   "1",
	"two":   "2",
	"three": "3",
	"four":  "4",
	"five":  "5",
	"six":   "6",
	"seven": "7",
	"eight": "8",
	"nine":  "9",
}

var repeatWords = map[string]int{
	"double": 2,
	"triple": 3,
}

// SpokenDigitsToNumerals rewrites runs of spelled-out digits into numerals:
// "five five five one two three" becomes "555123", "double five" becomes "55".
// Words that are not digits are left in place.
func SpokenDigitsToNumerals(s string) string {
	words := strings.Fields(s)
	out := make([]string, 0, len(words))
	var run strings.Builder

	flush := func() {
		if run.Len() > 0 {
			out = append(out, run.String())
			run.Reset()
		}
	}

	for i := 0; i < len(words); i++ {
		w := strings.Trim(strings.ToLower(words[i]), ",.-")
		if n, ok := repeatWords[w]; ok && i+1 < len(words) {
			next := strings.Trim(strings.ToLower(words[i+1]), ",.-")
			if d, ok := spokenDigits[next]; ok {
				run.WriteString(strings.Repeat(d, n))
				i++
				continue
			}
		}
		if d, ok := spokenDigits[w]; ok && (w != "o" || run.Len() > 0) {
			run.WriteString(d)
			continue
		}
		if isDigits(w) && run.Len() > 0 {
			run.WriteString(w)
			continue
		}
		flush()
		out = append(out, words[i])
	}
	flush()

	return strings.Join(out, " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
