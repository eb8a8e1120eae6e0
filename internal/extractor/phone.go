package extractor

import (
	"regexp"

	"barberline/pkg/sanitizer"
)

var rePhoneRun = regexp.MustCompile(`\+?\d[\d\s().-]*\d`)

const (
	minPhoneAttemptDigits  = 7
	minExpectedPhoneDigits = 4
)

// extractPhone looks for a phone number in text, spoken digits included. A
// run of digits that is long enough to be an attempt but does not normalize
// comes back as an invalid field so the caller is asked again.
func extractPhone(text string, expecting bool) (value string, confidence float64, valid, found bool) {
	text = sanitizer.SpokenDigitsToNumerals(text)

	var bestDigits, bestRun string
	for _, run := range rePhoneRun.FindAllString(text, -1) {
		d := sanitizer.DigitsOnly(run)
		if len(d) > len(bestDigits) {
			bestDigits, bestRun = d, run
		}
	}

	threshold := minPhoneAttemptDigits
	if expecting {
		threshold = minExpectedPhoneDigits
	}
	if len(bestDigits) < threshold {
		return "", 0, false, false
	}

	if len(bestDigits) >= sanitizer.MinPhoneDigits && len(bestDigits) <= sanitizer.MaxPhoneDigits {
		if e164 := sanitizer.NormalizePhone(bestRun); e164 != "" {
			return e164, 0.95, true, true
		}
	}
	return bestDigits, 0.3, false, true
}
