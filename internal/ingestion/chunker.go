package ingestion

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/primesandzooms/chatbot-backend/internal/document"
)

// Separators ordered coarse to fine: paragraph breaks, line breaks, sentence
// ends, spaces, then hard character cuts as the last resort.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits documents into bounded, overlapping windows. Splitting keeps
// every separator attached to the preceding piece, so chunks are exact
// substrings of the input and concatenating them with the overlap removed
// reconstructs the original text.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size), got %d", overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// ChunkDocuments splits each document and attaches chunk_index/total_chunks
// to the inherited metadata. Document order, then chunk order, is preserved.
func (c *Chunker) ChunkDocuments(docs []document.Document) []document.Document {
	var chunks []document.Document

	for _, doc := range docs {
		pieces := c.SplitText(doc.Content)
		for i, text := range pieces {
			metadata := doc.CloneMetadata()
			metadata[document.MetaChunkIndex] = i
			metadata[document.MetaTotalChunks] = len(pieces)
			chunks = append(chunks, document.New(text, metadata))
		}
	}

	return chunks
}

// SplitText splits raw text into windows of at most c.size characters with up
// to c.overlap characters of trailing context carried into the next window.
func (c *Chunker) SplitText(text string) []string {
	if text == "" {
		return nil
	}

	pieces := c.split(text, 0)
	return c.merge(pieces)
}

// split recursively breaks text into pieces no longer than c.size, choosing
// the coarsest separator that gets every piece under the limit.
func (c *Chunker) split(text string, sepIndex int) []string {
	if len(text) <= c.size {
		return []string{text}
	}

	sep := separators[sepIndex]
	if sep == "" {
		// Hard cut. Only reached for runs with no finer boundary left. Back the
		// cut off to a rune boundary so multi-byte characters stay intact.
		var out []string
		for len(text) > c.size {
			cut := c.size
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = c.size
			}
			out = append(out, text[:cut])
			text = text[cut:]
		}
		if text != "" {
			out = append(out, text)
		}
		return out
	}

	if !strings.Contains(text, sep) {
		return c.split(text, sepIndex+1)
	}

	var out []string
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		if len(part) <= c.size {
			out = append(out, part)
		} else {
			out = append(out, c.split(part, sepIndex+1)...)
		}
	}
	return out
}

// merge greedily packs pieces into chunks of at most c.size characters,
// carrying a suffix of whole pieces worth at most c.overlap characters into
// the next chunk.
func (c *Chunker) merge(pieces []string) []string {
	var chunks []string
	var current []string
	currentLen := 0

	for _, piece := range pieces {
		if currentLen > 0 && currentLen+len(piece) > c.size {
			chunks = append(chunks, strings.Join(current, ""))

			for len(current) > 0 && (currentLen > c.overlap || currentLen+len(piece) > c.size) {
				currentLen -= len(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		currentLen += len(piece)
	}

	if currentLen > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}

	return chunks
}
