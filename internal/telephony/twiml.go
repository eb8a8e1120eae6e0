package telephony

import (
	"barberline/pkg/model"

	"github.com/twilio/twilio-go/twiml"
)

const (
	speechInput   = "speech"
	speechTimeout = "auto"
)

// voiceResponse voices the turn and, while the call continues, listens for the
// next utterance. An empty result still posts back so silence counts as a turn.
func (h *Handler) voiceResponse(outcome model.TurnOutcome) (string, error) {
	prompt := h.promptVerb(outcome)

	if !outcome.Continue {
		return twiml.Voice([]twiml.Element{prompt, &twiml.VoiceHangup{}})
	}

	gather := &twiml.VoiceGather{
		Input:               speechInput,
		Action:              GatherRoute,
		Method:              "POST",
		SpeechTimeout:       speechTimeout,
		ActionOnEmptyResult: "true",
		Language:            h.cfg.Language,
		InnerElements:       []twiml.Element{prompt},
	}
	return twiml.Voice([]twiml.Element{gather})
}

func (h *Handler) promptVerb(outcome model.TurnOutcome) twiml.Element {
	if ref := outcome.Audio; ref != nil && ref.Kind == model.AudioPlay && ref.URL != "" {
		return &twiml.VoicePlay{Url: ref.URL}
	}
	return &twiml.VoiceSay{
		Message:  outcome.ResponseText,
		Voice:    h.cfg.Voice,
		Language: h.cfg.Language,
	}
}
