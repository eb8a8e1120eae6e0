package model

const (
	MetaServiceID = "service_id"
	MetaTopic     = "topic"
)

// KnowledgeDocument is source text handed to the retriever before embedding.
type KnowledgeDocument struct {
	ID       string            `json:"id" toml:"id"`
	Text     string            `json:"text" toml:"text"`
	Metadata map[string]string `json:"metadata,omitempty" toml:"metadata"`
}

// KnowledgeChunk is an embedded document. Chunks are immutable; the index is
// replaced wholesale on rebuild.
type KnowledgeChunk struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Embedding []float32         `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
