// Package renderer turns response text into audio the carrier can play.
// Artifacts are written once per (call, turn) and reused while the text is
// unchanged; when synthesis is unavailable the text is handed back to be
// spoken by the carrier's own voice.
package renderer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"barberline/internal/upstream"
	apperrors "barberline/pkg/errors"
	"barberline/pkg/logger"
	"barberline/pkg/metrics"
	"barberline/pkg/model"
	"barberline/pkg/sealer"

	"golang.org/x/sync/singleflight"
)

const (
	AudioRoute = "/audio/"

	hashLen = 12
)

var reUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

type Config struct {
	Dir       string
	BaseURL   string
	Retention time.Duration
}

type Renderer struct {
	synth  Synthesizer
	guard  *upstream.Guard
	cache  Cache
	sealer *sealer.Sealer
	cfg    Config
	log    *logger.Logger
	group  singleflight.Group
	now    func() time.Time
}

// New returns a renderer. synth may be nil, in which case every turn falls
// back to carrier speech.
func New(synth Synthesizer, guard *upstream.Guard, cache Cache, s *sealer.Sealer, cfg Config, log *logger.Logger) *Renderer {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Renderer{
		synth:  synth,
		guard:  guard,
		cache:  cache,
		sealer: s,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// Render returns the audio for turnIndex of callID. Rendering the same text
// for the same turn again returns the stored artifact without synthesizing.
func (r *Renderer) Render(ctx context.Context, text, callID string, turnIndex int) (*model.AudioRef, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.InvalidInput("Nothing to render")
	}
	if callID == "" || turnIndex < 0 {
		return nil, apperrors.InvalidInput("Call ID and a non-negative turn index are required")
	}

	key := fmt.Sprintf("%s:%d", callID, turnIndex)
	hash := textHash(text)

	if entry, ok := r.lookup(ctx, key, hash); ok {
		metrics.RenderResults.WithLabelValues("hit").Inc()
		return r.playRef(entry, text, callID, turnIndex), nil
	}
	if r.synth == nil {
		metrics.RenderResults.WithLabelValues("fallback").Inc()
		return sayRef(text, callID, turnIndex), nil
	}

	v, err, _ := r.group.Do(key+"#"+hash, func() (any, error) {
		if entry, ok := r.lookup(ctx, key, hash); ok {
			return entry, nil
		}
		audio, err := upstream.Call(ctx, r.guard, func(ctx context.Context, _ upstream.Attempt) ([]byte, error) {
			return r.synth.Synthesize(ctx, text)
		})
		if err != nil {
			return Entry{}, err
		}
		file, err := r.persist(callID, turnIndex, hash, audio)
		if err != nil {
			return Entry{}, err
		}
		entry := Entry{TextHash: hash, File: file, At: r.now()}
		if err := r.cache.Put(ctx, key, entry); err != nil {
			r.log.Warn("Failed to index audio artifact", "call_id", callID, "turn", turnIndex, "error", err)
		}
		return entry, nil
	})
	if err != nil {
		metrics.RenderResults.WithLabelValues("fallback").Inc()
		r.log.Warn("Synthesis unavailable, falling back to carrier speech",
			"call_id", callID,
			"turn", turnIndex,
			"error", err,
		)
		return sayRef(text, callID, turnIndex), nil
	}

	metrics.RenderResults.WithLabelValues("synthesized").Inc()
	return r.playRef(v.(Entry), text, callID, turnIndex), nil
}

func (r *Renderer) lookup(ctx context.Context, key, hash string) (Entry, bool) {
	entry, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.log.Warn("Audio index unavailable", "key", key, "error", err)
		return Entry{}, false
	}
	if !ok || entry.TextHash != hash {
		return Entry{}, false
	}
	if _, err := os.Stat(filepath.Join(r.cfg.Dir, filepath.FromSlash(entry.File))); err != nil {
		return Entry{}, false
	}
	return entry, true
}

// persist writes audio atomically under <dir>/<call>/<turn>-<hash>.<ext> and
// returns the slash-separated path relative to dir.
func (r *Renderer) persist(callID string, turnIndex int, hash string, audio []byte) (string, error) {
	callDir := safeName(callID)
	name := fmt.Sprintf("%04d-%s.%s", turnIndex, hash, r.synth.Extension())

	dir := filepath.Join(r.cfg.Dir, callDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create audio directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".render-*")
	if err != nil {
		return "", fmt.Errorf("failed to create audio file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("failed to store audio file: %w", err)
	}
	return callDir + "/" + name, nil
}

func (r *Renderer) playRef(entry Entry, text, callID string, turnIndex int) *model.AudioRef {
	callDir, name, _ := strings.Cut(entry.File, "/")
	token, err := r.sealer.Seal(callDir, name)
	if err != nil {
		r.log.Warn("Failed to seal audio link", "call_id", callID, "error", err)
		return sayRef(text, callID, turnIndex)
	}
	return &model.AudioRef{
		Kind:      model.AudioPlay,
		URL:       r.cfg.BaseURL + AudioRoute + token,
		Text:      text,
		CallID:    callID,
		TurnIndex: turnIndex,
	}
}

// Resolve maps a token from an audio URL back to the artifact on disk.
func (r *Renderer) Resolve(token string) (string, error) {
	parts, err := r.sealer.Open(token, 2)
	if err != nil {
		return "", apperrors.NotFound("Audio")
	}
	for _, p := range parts {
		if p == "" || p != filepath.Base(p) || p == "." || p == ".." {
			return "", apperrors.NotFound("Audio")
		}
	}
	path := filepath.Join(r.cfg.Dir, parts[0], parts[1])
	if _, err := os.Stat(path); err != nil {
		return "", apperrors.NotFound("Audio")
	}
	return path, nil
}

// Prune deletes artifacts older than the retention window and the call
// directories left empty.
func (r *Renderer) Prune(ctx context.Context) error {
	cutoff := r.now().Add(-r.cfg.Retention)
	removed := 0

	err := filepath.WalkDir(r.cfg.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to prune audio: %w", err)
	}

	entries, _ := os.ReadDir(r.cfg.Dir)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		// Remove fails on a non-empty directory, which is what we want.
		_ = os.Remove(filepath.Join(r.cfg.Dir, e.Name()))
	}

	if removed > 0 {
		r.log.Info("Pruned audio artifacts", "count", removed, "older_than", cutoff)
	}
	return nil
}

func sayRef(text, callID string, turnIndex int) *model.AudioRef {
	return &model.AudioRef{Kind: model.AudioSay, Text: text, CallID: callID, TurnIndex: turnIndex}
}

func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:hashLen]
}

func safeName(callID string) string {
	name := reUnsafe.ReplaceAllString(callID, "_")
	if name != callID || len(name) > 64 {
		// Keep distinct ids distinct after replacement.
		name = fmt.Sprintf("%.40s-%s", name, textHash(callID))
	}
	return name
}
