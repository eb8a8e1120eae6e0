// Package llm adapts the hosted language model to the three narrow
// contracts the agent needs: free-text completion grounded in context,
// intent classification and text embedding.
package llm

import (
	"context"

	"barberline/pkg/model"
)

type Completer interface {
	// Complete answers prompt using only the supplied context passages.
	Complete(ctx context.Context, prompt string, context []string) (string, error)
}

type Classifier interface {
	// ClassifyIntent labels a caller utterance. hint describes what the agent
	// just asked and may be empty.
	ClassifyIntent(ctx context.Context, text, hint string) (model.IntentLabel, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
