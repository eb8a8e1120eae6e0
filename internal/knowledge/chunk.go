package knowledge

import (
	"fmt"
	"maps"
	"strings"

	"barberline/pkg/model"
)

// maxChunkChars bounds one chunk; longer paragraphs are split on sentence ends.
const maxChunkChars = 600

// Split turns documents into chunks, one per paragraph. Chunk ids are
// "<doc id>#<n>" and every chunk carries a copy of its document's metadata.
func Split(docs []model.KnowledgeDocument) []model.KnowledgeChunk {
	var chunks []model.KnowledgeChunk
	for _, doc := range docs {
		n := 0
		for _, para := range strings.Split(doc.Text, "\n\n") {
			for _, piece := range splitLong(strings.TrimSpace(para)) {
				if piece == "" {
					continue
				}
				chunks = append(chunks, model.KnowledgeChunk{
					ID:       fmt.Sprintf("%s#%d", doc.ID, n),
					Text:     piece,
					Metadata: maps.Clone(doc.Metadata),
				})
				n++
			}
		}
	}
	return chunks
}

func splitLong(para string) []string {
	if len(para) <= maxChunkChars {
		return []string{para}
	}
	var out []string
	var cur strings.Builder
	for _, sentence := range strings.SplitAfter(para, ". ") {
		if cur.Len()+len(sentence) > maxChunkChars && cur.Len() > 0 {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
		cur.WriteString(sentence)
	}
	if cur.Len() > 0 {
		out = append(out, strings.TrimSpace(cur.String()))
	}
	return out
}
