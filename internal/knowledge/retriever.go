// Package knowledge answers off-path caller questions from a small embedded
// index of the shop's services, hours and policies.
package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"barberline/internal/llm"
	"barberline/internal/upstream"
	apperrors "barberline/pkg/errors"
	"barberline/pkg/logger"
	"barberline/pkg/model"

	"golang.org/x/sync/errgroup"
)

// FallbackAnswer is spoken when nothing in the index is close enough to the question.
const FallbackAnswer = "I don't have that information."

const buildConcurrency = 4

type ScoredChunk struct {
	Chunk model.KnowledgeChunk `json:"chunk"`
	Score float64              `json:"score"`
}

type Answer struct {
	Text     string        `json:"text"`
	Chunks   []ScoredChunk `json:"chunks"`
	Fallback bool          `json:"fallback"`
	// Degraded is set when the completion failed and the best chunk was read out as is.
	Degraded bool `json:"degraded"`
}

type Config struct {
	TopK          int
	MinSimilarity float64
}

type Retriever struct {
	embedder   llm.Embedder
	completer  llm.Completer
	embedGuard *upstream.Guard
	llmGuard   *upstream.Guard
	cfg        Config
	log        *logger.Logger

	mu     sync.RWMutex
	chunks []model.KnowledgeChunk
}

func NewRetriever(
	embedder llm.Embedder,
	completer llm.Completer,
	embedGuard, llmGuard *upstream.Guard,
	cfg Config,
	log *logger.Logger,
) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	return &Retriever{
		embedder:   embedder,
		completer:  completer,
		embedGuard: embedGuard,
		llmGuard:   llmGuard,
		cfg:        cfg,
		log:        log,
	}
}

// BuildIndex embeds every chunk of docs and swaps the result in as the new
// index. On failure the previous index stays in place.
func (r *Retriever) BuildIndex(ctx context.Context, docs []model.KnowledgeDocument) error {
	chunks := Split(docs)
	if len(chunks) == 0 {
		return apperrors.FatalConfiguration("knowledge base has no documents", nil)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(buildConcurrency)
	for i := range chunks {
		g.Go(func() error {
			vec, err := upstream.Call(gctx, r.embedGuard, func(ctx context.Context, _ upstream.Attempt) ([]float32, error) {
				return r.embedder.Embed(ctx, chunks[i].Text)
			})
			if err != nil {
				return fmt.Errorf("embedding chunk %s: %w", chunks[i].ID, err)
			}
			chunks[i].Embedding = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.log.Error("Failed to build knowledge index", "error", err)
		return err
	}

	r.mu.Lock()
	r.chunks = chunks
	r.mu.Unlock()

	r.log.Info("Knowledge index built", "documents", len(docs), "chunks", len(chunks))
	return nil
}

func (r *Retriever) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chunks) > 0
}

// Search returns the topK chunks by cosine similarity, best first, without a threshold.
func (r *Retriever) Search(ctx context.Context, question string, topK int) ([]ScoredChunk, error) {
	r.mu.RLock()
	chunks := r.chunks
	r.mu.RUnlock()
	if len(chunks) == 0 {
		return nil, apperrors.FatalConfiguration("knowledge index is not built", nil)
	}

	query, err := upstream.Call(ctx, r.embedGuard, func(ctx context.Context, _ upstream.Attempt) ([]float32, error) {
		return r.embedder.Embed(ctx, question)
	})
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		scored = append(scored, ScoredChunk{Chunk: c, Score: Cosine(query, c.Embedding)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Answer retrieves the closest chunks and asks the completer to answer from
// them alone. When no chunk reaches the similarity threshold the fallback
// answer is returned and the completer is not called.
func (r *Retriever) Answer(ctx context.Context, question string, topK int) (Answer, error) {
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	scored, err := r.Search(ctx, question, topK)
	if err != nil {
		return Answer{}, err
	}

	var used []ScoredChunk
	for _, s := range scored {
		if s.Score >= r.cfg.MinSimilarity {
			used = append(used, s)
		}
	}
	if len(used) == 0 {
		best := 0.0
		if len(scored) > 0 {
			best = scored[0].Score
		}
		r.log.Info("Knowledge fallback", "question", question, "best_score", best)
		return Answer{Text: FallbackAnswer, Fallback: true}, nil
	}

	text, err := upstream.Call(ctx, r.llmGuard, func(ctx context.Context, a upstream.Attempt) (string, error) {
		passages := make([]string, 0, len(used))
		for _, s := range used {
			passages = append(passages, s.Chunk.Text)
		}
		if a.Degraded {
			passages = passages[:1]
		}
		return r.completer.Complete(ctx, question, passages)
	})
	if err != nil {
		r.log.Warn("Completion unavailable, reading best chunk", "question", question, "error", err)
		return Answer{Text: firstSentences(used[0].Chunk.Text, 2), Chunks: used, Degraded: true}, nil
	}

	return Answer{Text: text, Chunks: used}, nil
}

func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func firstSentences(text string, n int) string {
	text = strings.TrimSpace(text)
	count := 0
	for i, r := range text {
		if r == '.' || r == '?' || r == '!' {
			count++
			if count == n {
				return text[:i+1]
			}
		}
	}
	return text
}
