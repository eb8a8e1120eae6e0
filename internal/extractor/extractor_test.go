package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"barberline/internal/catalog"
	"barberline/internal/llm/llmtest"
	"barberline/internal/upstream"
	"barberline/pkg/logger"
	"barberline/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExtractor(classifier *llmtest.ScriptedClassifier) *Extractor {
	log := logger.Discard()
	guard := upstream.NewGuard(upstream.LLM, upstream.Policy{Timeout: time.Second, Backoff: time.Millisecond}, upstream.NewLimiter(2), log)
	return NewExtractor(catalog.Default(), classifier, guard, time.UTC, log)
}

func TestExtractFields(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		state     model.DialogueState
		expecting FieldKey
		wantKey   FieldKey
		wantValue string
		wantValid bool
	}{
		{
			name:      "service request",
			utterance: "I want a haircut",
			state:     model.StateCollectingService,
			expecting: FieldService,
			wantKey:   FieldService,
			wantValue: "HAIRCUT",
			wantValid: true,
		},
		{
			name:      "bare name when asked",
			utterance: "John Smith",
			state:     model.StateCollectingIdentity,
			expecting: FieldName,
			wantKey:   FieldName,
			wantValue: "John Smith",
			wantValid: true,
		},
		{
			name:      "introduced name",
			utterance: "Hi, my name is Maria Lopez",
			state:     model.StateCollectingService,
			wantKey:   FieldName,
			wantValue: "Maria Lopez",
			wantValid: true,
		},
		{
			name:      "dashed phone",
			utterance: "555-123-4567",
			state:     model.StateCollectingIdentity,
			expecting: FieldPhone,
			wantKey:   FieldPhone,
			wantValue: "+15551234567",
			wantValid: true,
		},
		{
			name:      "spoken phone",
			utterance: "five five five one two three four five six seven",
			state:     model.StateCollectingIdentity,
			expecting: FieldPhone,
			wantKey:   FieldPhone,
			wantValue: "+15551234567",
			wantValid: true,
		},
		{
			name:      "too few digits",
			utterance: "it's 555 12",
			state:     model.StateCollectingIdentity,
			expecting: FieldPhone,
			wantKey:   FieldPhone,
			wantValue: "55512",
			wantValid: false,
		},
		{
			name:      "filler is not a name",
			utterance: "yes",
			state:     model.StateCollectingIdentity,
			expecting: FieldName,
			wantKey:   FieldName,
			wantValid: false,
		},
	}

	e := newExtractor(&llmtest.ScriptedClassifier{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Extract(context.Background(), Input{
				Utterance: tt.utterance,
				State:     tt.state,
				Expecting: tt.expecting,
				Now:       monday,
			})
			assert.Equal(t, model.IntentBookingProgress, res.Intent)
			f, ok := res.Fields[tt.wantKey]
			require.True(t, ok, "field %s not extracted", tt.wantKey)
			if tt.wantValue != "" {
				assert.Equal(t, tt.wantValue, f.Value)
			}
			assert.Equal(t, tt.wantValid, f.Valid)
			if !tt.wantValid {
				assert.Less(t, f.Confidence, 0.5)
			}
		})
	}
}

func TestExtractWindow(t *testing.T) {
	e := newExtractor(&llmtest.ScriptedClassifier{})

	res := e.Extract(context.Background(), Input{
		Utterance: "tomorrow morning",
		State:     model.StateCollectingIdentity,
		Expecting: FieldWindow,
		Now:       monday,
	})
	assert.Equal(t, model.IntentBookingProgress, res.Intent)
	require.NotNil(t, res.Window)
	assert.Equal(t, at(20, 6, 0), res.Window.Start)
	assert.Empty(t, res.Fields)

	res = e.Extract(context.Background(), Input{
		Utterance: "in the afternoon",
		State:     model.StateCollectingIdentity,
		Expecting: FieldWindow,
		Now:       monday,
	})
	assert.Nil(t, res.Window)
	assert.True(t, res.IsAmbiguous(FieldWindow))
}

func TestExtractIntents(t *testing.T) {
	tests := []struct {
		name       string
		utterance  string
		state      model.DialogueState
		wantIntent model.IntentLabel
	}{
		{"price question", "How much is a haircut?", model.StateCollectingIdentity, model.IntentAncillaryQuestion},
		{"hours question", "What time do you close on Saturday", model.StateCollectingService, model.IntentAncillaryQuestion},
		{"booking question is not ancillary", "Can I book a haircut?", model.StateCollectingService, model.IntentBookingProgress},
		{"yes", "Yes please", model.StateAwaitingConfirmation, model.IntentConfirmation},
		{"sounds good", "that sounds good", model.StateAwaitingConfirmation, model.IntentConfirmation},
		{"no", "No, that doesn't work", model.StateAwaitingConfirmation, model.IntentDecline},
		{"goodbye", "never mind, bye", model.StateCollectingService, model.IntentDecline},
		{"out of scope", "what's the weather like", model.StateCollectingService, model.IntentOutOfScope},
	}

	e := newExtractor(&llmtest.ScriptedClassifier{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Extract(context.Background(), Input{Utterance: tt.utterance, State: tt.state, Now: monday})
			assert.Equal(t, tt.wantIntent, res.Intent)
		})
	}
}

func TestQuestionKeepsDetailsBesideIt(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		wantName  string
		wantPhone string
	}{
		{
			name:      "question alone moves nothing",
			utterance: "how much is a kids haircut?",
		},
		{
			name:      "name before the question",
			utterance: "My name is John Smith, how much is a haircut?",
			wantName:  "John Smith",
		},
		{
			name:      "phone after the question",
			utterance: "Is there parking? My number is 555-123-4567",
			wantPhone: "+15551234567",
		},
	}

	e := newExtractor(&llmtest.ScriptedClassifier{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Extract(context.Background(), Input{
				Utterance: tt.utterance,
				State:     model.StateCollectingIdentity,
				Expecting: FieldName,
				Now:       monday,
			})
			assert.Equal(t, model.IntentAncillaryQuestion, res.Intent)
			assert.Nil(t, res.Window)
			assert.NotContains(t, res.Fields, FieldService, "the subject of a question is not a booking detail")

			if tt.wantName == "" {
				assert.NotContains(t, res.Fields, FieldName)
			} else {
				require.Contains(t, res.Fields, FieldName)
				assert.Equal(t, tt.wantName, res.Fields[FieldName].Value)
			}
			if tt.wantPhone == "" {
				assert.NotContains(t, res.Fields, FieldPhone)
			} else {
				require.Contains(t, res.Fields, FieldPhone)
				assert.Equal(t, tt.wantPhone, res.Fields[FieldPhone].Value)
			}
		})
	}
}

func TestDeclineCarriesNewWindow(t *testing.T) {
	e := newExtractor(&llmtest.ScriptedClassifier{})
	res := e.Extract(context.Background(), Input{
		Utterance: "No, how about friday afternoon",
		State:     model.StateAwaitingConfirmation,
		Now:       monday,
	})
	assert.Equal(t, model.IntentDecline, res.Intent)
	require.NotNil(t, res.Window)
	assert.Equal(t, at(23, 12, 0), res.Window.Start)
}

func TestExtractSilence(t *testing.T) {
	classifier := &llmtest.ScriptedClassifier{}
	e := newExtractor(classifier)

	res := e.Extract(context.Background(), Input{Utterance: "  ...  ", State: model.StateCollectingService, Now: monday})
	assert.True(t, res.Silent)
	assert.Empty(t, classifier.Hints())

	res = e.Extract(context.Background(), Input{Utterance: "hmm banana", State: model.StateCollectingService, Now: monday})
	assert.True(t, res.Silent)
	assert.Equal(t, model.IntentUnknown, res.Intent)
	require.Len(t, classifier.Hints(), 1)
	assert.NotEmpty(t, classifier.Hints()[0])
}

func TestExtractClassifierRetry(t *testing.T) {
	classifier := &llmtest.ScriptedClassifier{
		Labels:  map[string]model.IntentLabel{"hmm banana": model.IntentOutOfScope},
		FailFor: 1,
	}
	e := newExtractor(classifier)

	res := e.Extract(context.Background(), Input{Utterance: "hmm banana", State: model.StateCollectingService, Now: monday})
	assert.Equal(t, model.IntentOutOfScope, res.Intent)
	assert.False(t, res.ClassifierFailed)

	hints := classifier.Hints()
	require.Len(t, hints, 2)
	assert.NotEmpty(t, hints[0])
	assert.Empty(t, hints[1], "retry drops the context")
}

func TestExtractClassifierDown(t *testing.T) {
	classifier := &llmtest.ScriptedClassifier{Err: errors.New("unavailable")}
	e := newExtractor(classifier)

	res := e.Extract(context.Background(), Input{Utterance: "hmm banana", State: model.StateCollectingService, Now: monday})
	assert.Equal(t, model.IntentUnknown, res.Intent)
	assert.True(t, res.ClassifierFailed)
	assert.False(t, res.Silent)
	assert.Len(t, classifier.Hints(), 2)
}

func TestExtractCorrection(t *testing.T) {
	e := newExtractor(&llmtest.ScriptedClassifier{})
	res := e.Extract(context.Background(), Input{
		Utterance: "Actually, my name is Jane Doe",
		State:     model.StateCollectingIdentity,
		Expecting: FieldPhone,
		Now:       monday,
	})
	assert.True(t, res.Correction)
	require.Contains(t, res.Fields, FieldName)
	assert.Equal(t, "Jane Doe", res.Fields[FieldName].Value)
}

func TestGoodbyeIsNotReadAsName(t *testing.T) {
	e := newExtractor(&llmtest.ScriptedClassifier{})

	res := e.Extract(context.Background(), Input{
		Utterance: "never mind, bye",
		State:     model.StateCollectingIdentity,
		Expecting: FieldName,
		Now:       monday,
	})

	assert.Equal(t, model.IntentDecline, res.Intent)
	assert.True(t, res.Empty())
}
