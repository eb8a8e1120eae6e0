// Package extractor turns one transcribed caller utterance into slot-filling
// updates: service, name, phone and preferred time window, each with a
// confidence, plus the caller's intent. Surface rules run first; the language
// model is only asked to classify intent when the rules cannot decide.
package extractor

import (
	"context"
	"strings"
	"time"

	"barberline/internal/catalog"
	"barberline/internal/llm"
	"barberline/internal/upstream"
	"barberline/pkg/logger"
	"barberline/pkg/model"
	"barberline/pkg/sanitizer"
)

type FieldKey string

const (
	FieldService FieldKey = "service"
	FieldName    FieldKey = "name"
	FieldPhone   FieldKey = "phone"
	FieldWindow  FieldKey = "window"
)

// Priority is the order missing fields are asked for.
var Priority = []FieldKey{FieldService, FieldName, FieldPhone, FieldWindow}

// Input is one utterance together with what the conversation knows so far.
type Input struct {
	Utterance string
	State     model.DialogueState
	// Expecting is the field the agent's last prompt asked for, if any.
	Expecting FieldKey
	Fields    model.SlotFields
	Now       time.Time
}

type Result struct {
	Intent     model.IntentLabel
	Fields     map[FieldKey]*model.Field
	Window     *model.TimeWindow
	Confidence map[FieldKey]float64
	Ambiguous  []FieldKey
	// WindowReason says why a time phrase was flagged: "day", "past" or "date".
	WindowReason string
	// Correction is set when the caller explicitly corrected something, the
	// only case in which a known field may be overwritten.
	Correction bool
	// Silent means nothing intelligible was said.
	Silent bool
	// ClassifierFailed means the rules could not decide and the language model
	// did not answer after its retry.
	ClassifierFailed bool
}

func (r Result) IsAmbiguous(f FieldKey) bool {
	for _, a := range r.Ambiguous {
		if a == f {
			return true
		}
	}
	return false
}

// Empty reports a result that carries no field update at all.
func (r Result) Empty() bool {
	return len(r.Fields) == 0 && r.Window == nil && len(r.Ambiguous) == 0
}

type Extractor struct {
	services   *ServiceMatcher
	classifier llm.Classifier
	guard      *upstream.Guard
	loc        *time.Location
	log        *logger.Logger
}

func NewExtractor(cat *catalog.Catalog, classifier llm.Classifier, guard *upstream.Guard, loc *time.Location, log *logger.Logger) *Extractor {
	if loc == nil {
		loc = time.UTC
	}
	return &Extractor{
		services:   NewServiceMatcher(cat),
		classifier: classifier,
		guard:      guard,
		loc:        loc,
		log:        log,
	}
}

func (e *Extractor) Extract(ctx context.Context, in Input) Result {
	res := Result{
		Intent:     model.IntentUnknown,
		Fields:     map[FieldKey]*model.Field{},
		Confidence: map[FieldKey]float64{},
	}

	text := sanitizer.NormalizeUtterance(in.Utterance)
	if text == "" {
		res.Silent = true
		return res
	}
	awaiting := in.State == model.StateAwaitingConfirmation

	intent, ruled := ruleIntent(in.Utterance, text, awaiting)
	if intent == model.IntentAncillaryQuestion {
		res.Intent = intent
		e.extractBesideQuestion(in, &res)
		return res
	}

	res.Correction = reCorrection.MatchString(text)
	e.extractFields(text, in, !ruled, &res)

	if ruled {
		res.Intent = intent
		return res
	}
	if !res.Empty() || reBookingCue.MatchString(text) {
		res.Intent = model.IntentBookingProgress
		return res
	}

	res.Intent, res.ClassifierFailed = e.classify(ctx, text, in)
	if res.Intent == model.IntentUnknown && !res.ClassifierFailed {
		res.Silent = true
	}
	return res
}

// extractBesideQuestion picks up details the caller gave in the same breath as
// a question, as in "my name is John, how much is a haircut?". Clauses that
// are themselves questions are skipped so the subject of a question ("is
// there parking on saturday") is never taken as a booking detail.
func (e *Extractor) extractBesideQuestion(in Input, res *Result) {
	raw := in.Utterance
	start := 0
	for _, loc := range append(reClauseBreak.FindAllStringIndex(raw, -1), []int{len(raw), len(raw)}) {
		clause, sep := raw[start:loc[0]], raw[loc[0]:loc[1]]
		start = loc[1]

		text := sanitizer.NormalizeUtterance(clause)
		if text == "" || strings.Contains(sep, "?") || isQuestion(clause, text) {
			continue
		}
		e.extractFields(text, in, false, res)
	}
}

// extractFields fills res from text. bareName allows an otherwise plain
// answer to be read as the caller's name.
func (e *Extractor) extractFields(text string, in Input, bareName bool, res *Result) {
	digits := sanitizer.SpokenDigitsToNumerals(text)

	if m, ok := e.services.Match(text); ok {
		conf := float64(m.Score) / 100
		if m.Ambiguous {
			res.Ambiguous = append(res.Ambiguous, FieldService)
			res.Confidence[FieldService] = conf / 2
		} else {
			res.Fields[FieldService] = &model.Field{Value: m.ServiceID, Confidence: conf, Valid: true}
			res.Confidence[FieldService] = conf
		}
	}

	if v, conf, valid, ok := extractPhone(digits, in.Expecting == FieldPhone); ok {
		res.Fields[FieldPhone] = &model.Field{Value: v, Confidence: conf, Valid: valid}
		res.Confidence[FieldPhone] = conf
	}

	wr := ParseWindow(digits, in.Now.In(e.loc))
	switch {
	case wr.Ambiguous:
		res.Ambiguous = append(res.Ambiguous, FieldWindow)
		res.Confidence[FieldWindow] = 0.3
		res.WindowReason = wr.Reason
	case wr.Found:
		res.Window = wr.Window
		res.Confidence[FieldWindow] = 0.9
	}

	// A bare answer is only read as a name when nothing else was found in it.
	expectingName := bareName && in.Expecting == FieldName && len(res.Fields) == 0 && !wr.Found
	nameText := rePhoneRun.ReplaceAllString(digits, " ")
	if v, conf, valid, ok := extractName(nameText, expectingName); ok {
		res.Fields[FieldName] = &model.Field{Value: v, Confidence: conf, Valid: valid}
		res.Confidence[FieldName] = conf
	}
}

func (e *Extractor) classify(ctx context.Context, text string, in Input) (model.IntentLabel, bool) {
	if e.classifier == nil {
		return model.IntentUnknown, false
	}
	hint := describe(in)
	label, err := upstream.Call(ctx, e.guard, func(ctx context.Context, a upstream.Attempt) (model.IntentLabel, error) {
		if a.Degraded {
			return e.classifier.ClassifyIntent(ctx, text, "")
		}
		return e.classifier.ClassifyIntent(ctx, text, hint)
	})
	if err != nil {
		e.log.Warn("Intent classification unavailable", "error", err)
		return model.IntentUnknown, true
	}
	return label, false
}

func describe(in Input) string {
	switch {
	case in.State == model.StateAwaitingConfirmation:
		return "The agent just proposed an appointment time and asked the caller to confirm it."
	case in.Expecting != "":
		return "The agent just asked the caller for their " + string(in.Expecting) + "."
	default:
		return "The caller is talking to a barbershop booking line."
	}
}
