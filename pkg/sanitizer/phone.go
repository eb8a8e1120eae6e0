package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	MinPhoneDigits = 10
	MaxPhoneDigits = 15
)

var supportedRegions = []string{
	"US",
}

// NormalizePhone returns the E.164 form of phone, or "" when no supported
// region parses it into a possible number.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)

	if phone == "" {
		return ""
	}

	for _, region := range supportedRegions {
		parsedNumber, err := phonenumbers.Parse(phone, region)
		if err != nil {
			continue
		}
		if !phonenumbers.IsPossibleNumber(parsedNumber) {
			continue
		}
		return phonenumbers.Format(parsedNumber, phonenumbers.E164)
	}
	return ""
}

// DigitsOnly drops everything except ASCII digits.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
