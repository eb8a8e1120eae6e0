package model

import "strings"

// IntentLabel is the closed set of things a caller turn can mean.
type IntentLabel string

const (
	IntentBookingProgress   IntentLabel = "booking_progress"
	IntentAncillaryQuestion IntentLabel = "ancillary_question"
	IntentConfirmation      IntentLabel = "confirmation"
	IntentDecline           IntentLabel = "decline"
	IntentOutOfScope        IntentLabel = "out_of_scope"
	IntentUnknown           IntentLabel = "unknown"
)

var intentLabels = []IntentLabel{
	IntentBookingProgress,
	IntentAncillaryQuestion,
	IntentConfirmation,
	IntentDecline,
	IntentOutOfScope,
}

// ParseIntentLabel maps free-form classifier output onto the closed set.
// Anything unrecognized is IntentUnknown.
func ParseIntentLabel(s string) IntentLabel {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, "\"'`.")
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	for _, l := range intentLabels {
		if s == string(l) {
			return l
		}
	}
	return IntentUnknown
}
