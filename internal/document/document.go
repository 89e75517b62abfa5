// Package document holds the unit of retrievable content shared by the
// ingestion pipeline and the RAG engine.
package document

// Metadata keys written by the scraper and the chunker.
const (
	MetaSource             = "source"
	MetaTitle              = "title"
	MetaContentType        = "content_type"
	MetaChunkIndex         = "chunk_index"
	MetaTotalChunks        = "total_chunks"
	MetaIngestionTimestamp = "ingestion_timestamp"
)

// Document is created once and never mutated afterwards. The chunker produces
// new child Documents instead of rewriting the parent.
type Document struct {
	Content  string
	Metadata map[string]any
}

func New(content string, metadata map[string]any) Document {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Document{Content: content, Metadata: metadata}
}

// Source returns the origin URL, or "" when the document has none.
func (d Document) Source() string {
	s, _ := d.Metadata[MetaSource].(string)
	return s
}

// Title returns the page title, or "" when the document has none.
func (d Document) Title() string {
	t, _ := d.Metadata[MetaTitle].(string)
	return t
}

// CloneMetadata copies the metadata map so children can extend it without
// touching the parent.
func (d Document) CloneMetadata() map[string]any {
	cloned := make(map[string]any, len(d.Metadata)+2)
	for k, v := range d.Metadata {
		cloned[k] = v
	}
	return cloned
}

// Scored pairs a retrieved Document with its relevance score. Scores are
// cosine-derived, higher is better, clamped to [0,1].
type Scored struct {
	Document Document
	Score    float32
}
