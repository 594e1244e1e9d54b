package chunker

import (
	"crypto/sha256"
	"fmt"
	"strconv"

	"rag_chatbot/internal/loader"
)

// CreateChunk builds the chunk at position index of doc, deriving its ID.
func CreateChunk(text string, doc loader.Document, index int) Chunk {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%d\x00%s", doc.Source, doc.Page, index, text)))

	return Chunk{
		ID:     fmt.Sprintf("%x", hash[:12]),
		Text:   text,
		Source: doc.Source,
		Page:   doc.Page,
		Index:  index,
		Metadata: map[string]string{
			"source": doc.Source,
			"page":   strconv.Itoa(doc.Page),
			"chunk":  strconv.Itoa(index),
			"format": string(doc.Format),
		},
	}
}

// ChunkAll chunks every document in order.
func ChunkAll(c Chunker, docs []loader.Document) ([]Chunk, error) {
	var all []Chunk
	for _, doc := range docs {
		chunks, err := c.Chunk(doc)
		if err != nil {
			return nil, fmt.Errorf("%s chunker: %s: %w", c.Name(), doc.Source, err)
		}
		all = append(all, chunks...)
	}
	return all, nil
}
