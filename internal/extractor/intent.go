package extractor

import (
	"regexp"
	"strings"

	"barberline/pkg/model"
)

var (
	reAffirm          = regexp.MustCompile(`^(?:yes|yeah|yep|yup|sure|ok|okay|correct|right|perfect|great|absolutely|definitely|please do|sounds good|that works|that's fine|that is fine|fine|go ahead|book it|confirm|do it|let's do it)\b`)
	reAffirmAnywhere  = regexp.MustCompile(`\b(?:sounds good|that works|works for me|book it|go ahead and book|please book|confirm it|that's perfect|lock it in)\b`)
	reDecline         = regexp.MustCompile(`^(?:no|nope|nah|not really|i can't|i cannot|that doesn't work|that does not work)\b`)
	reDeclineAnywhere = regexp.MustCompile(`\b(?:doesn't work|does not work|don't want|another time|different time|other time|something else|anything else|not that|too early|too late|can't make it|cannot make it)\b`)
	reGoodbye         = regexp.MustCompile(`\b(?:goodbye|bye|never mind|nevermind|forget it|hang up|that's all|that is all|no thanks|no thank you)\b`)

	reCorrection = regexp.MustCompile(`\b(?:actually|i meant|i mean|correction|sorry it's|sorry it is|no it's|no it is|not .+ it's|make that|change (?:it|that) to|instead|wrong)\b`)

	reQuestionLead = regexp.MustCompile(`^(?:how|what|what's|whats|when|where|which|who|why|do you|does|is there|is it|are you|are there|can i pay|can you tell|could you tell|tell me|i was wondering|i have a question)\b`)
	reInfoTopic    = regexp.MustCompile(`\b(?:how much|price|prices|pricing|cost|costs|charge|hours|open|close|closing|opening|located|location|address|parking|cancel policy|cancellation|cancel fee|pay|payment|cash|card|walk in|walk-in|walk ins|walkins|tip|how long|take|does it take|include|includes|difference|offer|kids|children)\b`)
	reBookingCue   = regexp.MustCompile(`\b(?:book|booking|appointment|schedule|reserve|reservation|come in|get in|i want|i'd like|i would like|i need|looking for|can i get|could i get|sign me up)\b`)

	reClauseBreak = regexp.MustCompile(`[,;?!]+|\.\s+`)

	reOutOfScope = regexp.MustCompile(`\b(?:weather|sports|score|joke|stock|news|pizza|restaurant|taxi|uber|lottery|politics)\b`)
)

func isConfirmation(text string) bool {
	return reAffirm.MatchString(text) || reAffirmAnywhere.MatchString(text)
}

func isDecline(text string) bool {
	return reDecline.MatchString(text) || reDeclineAnywhere.MatchString(text)
}

// isQuestion reports an information request that is not also a booking
// request: "how much is a haircut" is a question, "can i book a haircut"
// is not.
func isQuestion(raw, text string) bool {
	if reBookingCue.MatchString(text) && !reInfoTopic.MatchString(text) {
		return false
	}
	if strings.HasPrefix(text, "can i book") || strings.HasPrefix(text, "can i get") || strings.HasPrefix(text, "could i get") {
		return false
	}
	asked := strings.HasSuffix(strings.TrimSpace(raw), "?") || reQuestionLead.MatchString(text)
	return asked && reInfoTopic.MatchString(text)
}

// ruleIntent decides the intent from surface cues. ok is false when the
// rules cannot tell and the classifier should be asked.
func ruleIntent(raw, text string, awaitingConfirmation bool) (model.IntentLabel, bool) {
	switch {
	case isQuestion(raw, text):
		return model.IntentAncillaryQuestion, true
	case awaitingConfirmation && isDecline(text):
		return model.IntentDecline, true
	case awaitingConfirmation && isConfirmation(text):
		return model.IntentConfirmation, true
	case reGoodbye.MatchString(text):
		return model.IntentDecline, true
	case reOutOfScope.MatchString(text) && !reBookingCue.MatchString(text):
		return model.IntentOutOfScope, true
	}
	return model.IntentUnknown, false
}
