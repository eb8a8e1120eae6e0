// Package llmtest provides deterministic stand-ins for the language model
// so retrieval and dialogue tests run without network access.
package llmtest

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"barberline/pkg/model"
)

const dims = 1024

// ErrScripted is returned for each of the first FailFor calls.
var ErrScripted = errors.New("scripted upstream failure")

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "do": true, "does": true,
	"you": true, "your": true, "i": true, "my": true, "me": true, "we": true, "our": true,
	"what": true, "how": true, "to": true, "of": true, "for": true, "in": true, "on": true,
	"and": true, "or": true, "with": true, "can": true, "it": true, "at": true, "be": true,
	"will": true, "may": true, "this": true, "that": true, "by": true, "from": true,
}

// concepts folds words that mean the same thing for retrieval purposes.
var concepts = map[string]string{
	"much": "price", "cost": "price", "costs": "price", "price": "price", "pricing": "price",
	"charge": "price", "expensive": "price",
	"open": "hours", "opening": "hours", "close": "hours", "closing": "hours", "hour": "hours",
}

// Tokens splits text into lowercase content words with a crude plural strip
// and the concept folding above.
func Tokens(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(words))
	for _, w := range words {
		if stopwords[w] {
			continue
		}
		if c, ok := concepts[w]; ok {
			w = c
		} else if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
			w = strings.TrimSuffix(w, "s")
			if c, ok := concepts[w]; ok {
				w = c
			}
		}
		out = append(out, w)
	}
	return out
}

// HashEmbedder maps text to a normalized bag-of-words vector using feature
// hashing over distinct tokens.
type HashEmbedder struct {
	mu    sync.Mutex
	Err   error
	calls int
}

func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	err := e.Err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	vec := make([]float32, dims)
	seen := map[string]bool{}
	for _, tok := range Tokens(text) {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%dims] += 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec, nil
}

func (e *HashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// GroundedCompleter answers with the first passage it is given, which is the
// best-scoring chunk, so answers never leave the retrieved context.
type GroundedCompleter struct {
	mu      sync.Mutex
	Err     error
	FailFor int
	prompts []string
}

func (c *GroundedCompleter) Complete(_ context.Context, prompt string, passages []string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	if c.FailFor > 0 {
		c.FailFor--
		return "", ErrScripted
	}
	if c.Err != nil {
		return "", c.Err
	}
	if len(passages) == 0 {
		return "I don't have that information.", nil
	}
	return passages[0], nil
}

func (c *GroundedCompleter) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

// ScriptedClassifier returns Labels[text] when present and Default otherwise.
// Set Err to simulate an unavailable model.
type ScriptedClassifier struct {
	mu      sync.Mutex
	Labels  map[string]model.IntentLabel
	Default model.IntentLabel
	Err     error
	FailFor int
	hints   []string
}

func (c *ScriptedClassifier) ClassifyIntent(_ context.Context, text, hint string) (model.IntentLabel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hints = append(c.hints, hint)
	if c.FailFor > 0 {
		c.FailFor--
		return model.IntentUnknown, ErrScripted
	}
	if c.Err != nil {
		return model.IntentUnknown, c.Err
	}
	if l, ok := c.Labels[text]; ok {
		return l, nil
	}
	if c.Default == "" {
		return model.IntentUnknown, nil
	}
	return c.Default, nil
}

// Hints returns the hint passed on each call, in order. A degraded retry
// shows up as an empty hint.
func (c *ScriptedClassifier) Hints() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.hints...)
}
