package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "barberline/pkg/errors"
	"barberline/pkg/logger"
	"barberline/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTurnHandler struct {
	handleTurnFunc func(ctx context.Context, callID, utterance string) (model.TurnOutcome, error)
	sessionFunc    func(ctx context.Context, callID string) (*model.CallSession, error)
	utterances     []string
}

func (m *mockTurnHandler) HandleTurn(ctx context.Context, callID, utterance string) (model.TurnOutcome, error) {
	m.utterances = append(m.utterances, utterance)
	if m.handleTurnFunc != nil {
		return m.handleTurnFunc(ctx, callID, utterance)
	}
	return model.TurnOutcome{ResponseText: "Hello", Continue: true}, nil
}

func (m *mockTurnHandler) Session(ctx context.Context, callID string) (*model.CallSession, error) {
	if m.sessionFunc != nil {
		return m.sessionFunc(ctx, callID)
	}
	return nil, apperrors.NotFoundWithID("Call", callID)
}

type mockResolver struct {
	resolveFunc func(token string) (string, error)
}

func (m *mockResolver) Resolve(token string) (string, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(token)
	}
	return "", apperrors.NotFound("Audio")
}

func newRouter(turns TurnHandler, audio AudioResolver) *httprouter.Router {
	router := httprouter.New()
	NewHandler(turns, audio, Config{}, logger.Discard()).RegisterRoutes(router)
	return router
}

func postForm(router http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestVoiceGreetsAndGathers(t *testing.T) {
	turns := &mockTurnHandler{
		handleTurnFunc: func(_ context.Context, callID, utterance string) (model.TurnOutcome, error) {
			assert.Equal(t, "CA100", callID)
			return model.TurnOutcome{
				ResponseText: "Thanks for calling",
				Continue:     true,
				Audio:        &model.AudioRef{Kind: model.AudioPlay, URL: "https://agent.example.com/audio/tok"},
			}, nil
		},
	}
	rec := postForm(newRouter(turns, nil), VoiceRoute, url.Values{"CallSid": {"CA100"}, "From": {"+15550102030"}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "<Gather")
	assert.Contains(t, body, `input="speech"`)
	assert.Contains(t, body, `speechTimeout="auto"`)
	assert.Contains(t, body, `action="`+GatherRoute+`"`)
	assert.Contains(t, body, "<Play>https://agent.example.com/audio/tok</Play>")
	assert.NotContains(t, body, "<Hangup")
	assert.Equal(t, []string{""}, turns.utterances)
}

func TestGatherPassesSpeechResult(t *testing.T) {
	turns := &mockTurnHandler{}
	rec := postForm(newRouter(turns, nil), GatherRoute, url.Values{
		"CallSid":      {"CA100"},
		"SpeechResult": {"I'd like a haircut"},
		"Confidence":   {"0.91"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"I'd like a haircut"}, turns.utterances)
	assert.Contains(t, rec.Body.String(), ">Hello</Say>")
}

func TestGatherSilenceIsAnEmptyTurn(t *testing.T) {
	turns := &mockTurnHandler{}
	rec := postForm(newRouter(turns, nil), GatherRoute, url.Values{"CallSid": {"CA100"}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{""}, turns.utterances)
}

func TestFinalTurnHangsUp(t *testing.T) {
	tests := []struct {
		name     string
		outcome  model.TurnOutcome
		wantVerb string
	}{
		{
			name:     "synthesized goodbye",
			outcome:  model.TurnOutcome{ResponseText: "Goodbye", Audio: &model.AudioRef{Kind: model.AudioPlay, URL: "https://agent.example.com/audio/bye"}},
			wantVerb: "<Play>https://agent.example.com/audio/bye</Play>",
		},
		{
			name:     "spoken fallback",
			outcome:  model.TurnOutcome{ResponseText: "Goodbye", Audio: &model.AudioRef{Kind: model.AudioSay, Text: "Goodbye"}},
			wantVerb: ">Goodbye</Say>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turns := &mockTurnHandler{
				handleTurnFunc: func(context.Context, string, string) (model.TurnOutcome, error) {
					return tt.outcome, nil
				},
			}
			rec := postForm(newRouter(turns, nil), GatherRoute, url.Values{"CallSid": {"CA100"}, "SpeechResult": {"bye"}})

			body := rec.Body.String()
			assert.Contains(t, body, tt.wantVerb)
			assert.Contains(t, body, "<Hangup")
			assert.NotContains(t, body, "<Gather")
		})
	}
}

func TestTurnFailureApologizesAndHangsUp(t *testing.T) {
	turns := &mockTurnHandler{
		handleTurnFunc: func(context.Context, string, string) (model.TurnOutcome, error) {
			return model.TurnOutcome{}, apperrors.FatalConfiguration("knowledge index not built", nil)
		},
	}
	rec := postForm(newRouter(turns, nil), VoiceRoute, url.Values{"CallSid": {"CA100"}})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "technical issue")
	assert.Contains(t, body, "<Hangup")
}

func TestStatusCallback(t *testing.T) {
	rec := postForm(newRouter(&mockTurnHandler{}, nil), StatusRoute, url.Values{"CallSid": {"CA100"}, "CallStatus": {"completed"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAudioServesResolvedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0001-abc.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFFaudio"), 0o644))

	resolver := &mockResolver{
		resolveFunc: func(token string) (string, error) {
			if token == "good" {
				return path, nil
			}
			return "", apperrors.NotFound("Audio")
		},
	}
	router := newRouter(&mockTurnHandler{}, resolver)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audio/good", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, "RIFFaudio", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audio/forged", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJSONTurn(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		turnErr    error
		wantStatus int
	}{
		{"ok", `{"call_id":"c1","utterance":"hi"}`, nil, http.StatusOK},
		{"malformed", `{"call_id":`, nil, http.StatusBadRequest},
		{"missing call id", `{"utterance":"hi"}`, apperrors.InvalidInput("call_id is required"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turns := &mockTurnHandler{
				handleTurnFunc: func(_ context.Context, callID, utterance string) (model.TurnOutcome, error) {
					if tt.turnErr != nil {
						return model.TurnOutcome{}, tt.turnErr
					}
					return model.TurnOutcome{ResponseText: "Welcome", Continue: true}, nil
				},
			}
			req := httptest.NewRequest(http.MethodPost, TurnsRoute, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			newRouter(turns, nil).ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp struct {
				Data model.TurnOutcome `json:"data"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "Welcome", resp.Data.ResponseText)
			assert.True(t, resp.Data.Continue)
		})
	}
}

func TestCallLookup(t *testing.T) {
	turns := &mockTurnHandler{
		sessionFunc: func(_ context.Context, callID string) (*model.CallSession, error) {
			if callID == "c1" {
				return &model.CallSession{CallID: "c1", State: model.StateBooked}, nil
			}
			return nil, apperrors.NotFoundWithID("Call", callID)
		},
	}
	router := newRouter(turns, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/calls/id/c1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"call_id":"c1"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/calls/id/c2", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
