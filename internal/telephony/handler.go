// Package telephony adapts carrier webhooks and the JSON turn API onto the
// dialogue machine.
package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	apperrors "barberline/pkg/errors"
	httputil "barberline/pkg/http"
	"barberline/pkg/logger"
	"barberline/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const (
	TwilioRoutePrefix = "/twilio/"
	VoiceRoute        = "/twilio/voice"
	GatherRoute       = "/twilio/gather"
	StatusRoute       = "/twilio/status"
	AudioRoute        = "/audio/:token"
	TurnsRoute        = "/api/v1/turns"
	CallRoute         = "/api/v1/calls/id/:id"

	DefaultLanguage = "en-US"
	DefaultVoice    = "Polly.Joanna"

	msgTechnicalIssue = "Sorry, we're having a technical issue. Please call back in a few minutes."
)

type TurnHandler interface {
	HandleTurn(ctx context.Context, callID, utterance string) (model.TurnOutcome, error)
	Session(ctx context.Context, callID string) (*model.CallSession, error)
}

type AudioResolver interface {
	Resolve(token string) (string, error)
}

type Config struct {
	Voice    string
	Language string
}

type Handler struct {
	turns TurnHandler
	audio AudioResolver
	cfg   Config
	log   *logger.Logger
}

func NewHandler(turns TurnHandler, audio AudioResolver, cfg Config, log *logger.Logger) *Handler {
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	return &Handler{
		turns: turns,
		audio: audio,
		cfg:   cfg,
		log:   log,
	}
}

// Voice answers a new call with the greeting.
func (h *Handler) Voice(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	callSid := r.PostFormValue("CallSid")
	h.log.Info("Inbound call",
		logger.CALL_ID, callSid,
		logger.FROM, r.PostFormValue("From"),
	)
	h.respond(w, r, "Voice", callSid, "")
}

// Gather handles one recognized utterance. An empty SpeechResult is a silent
// turn.
func (h *Handler) Gather(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	callSid := r.PostFormValue("CallSid")
	h.log.Debug("Speech result",
		logger.CALL_ID, callSid,
		"confidence", r.PostFormValue("Confidence"),
	)
	h.respond(w, r, "Gather", callSid, r.PostFormValue("SpeechResult"))
}

// Status logs call lifecycle callbacks. A hang-up needs no action here: the
// idle sweep releases the caller's hold and archives the session.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.log.Info("Call status",
		logger.CALL_ID, r.PostFormValue("CallSid"),
		"status", r.PostFormValue("CallStatus"),
		"duration", r.PostFormValue("CallDuration"),
	)
	httputil.WriteNoContent(w)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, handler, callSid, utterance string) {
	outcome, err := h.turns.HandleTurn(r.Context(), callSid, utterance)
	if err != nil {
		h.log.Error("Turn failed",
			"handler", handler,
			logger.CALL_ID, callSid,
			"error", err,
		)
		outcome = model.TurnOutcome{ResponseText: msgTechnicalIssue, Continue: false}
	}

	body, err := h.voiceResponse(outcome)
	if err != nil {
		h.log.Error("failed to build TwiML", "handler", handler, "operation", "voiceResponse", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		h.log.Error("failed to write TwiML response", "handler", handler, "operation", "Write", "error", err)
	}
}

// Audio serves a rendered artifact to the carrier.
func (h *Handler) Audio(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	path, err := h.audio.Resolve(ps.ByName("token"))
	if err != nil {
		h.writeError(w, "Audio", err)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(path))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeFile(w, r, path)
}

// Turn is the JSON form of HandleTurn, used by the console and load tests.
func (h *Handler) Turn(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		CallID    string `json:"call_id"`
		Utterance string `json:"utterance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Turn", apperrors.InvalidInput("invalid JSON body"))
		return
	}

	outcome, err := h.turns.HandleTurn(r.Context(), req.CallID, req.Utterance)
	if err != nil {
		h.writeError(w, "Turn", err)
		return
	}

	if err := httputil.WriteSuccess(w, outcome); err != nil {
		h.log.Error("failed to write success response", "handler", "Turn", "operation", "WriteSuccess", "error", err)
	}
}

// Call returns the session record of a call, live or archived.
func (h *Handler) Call(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	session, err := h.turns.Session(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Call", err)
		return
	}

	if err := httputil.WriteSuccess(w, session); err != nil {
		h.log.Error("failed to write success response", "handler", "Call", "operation", "WriteSuccess", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.POST(VoiceRoute, h.Voice)
	router.POST(GatherRoute, h.Gather)
	router.POST(StatusRoute, h.Status)
	router.GET(AudioRoute, h.Audio)
	router.POST(TurnsRoute, h.Turn)
	router.GET(CallRoute, h.Call)
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}

