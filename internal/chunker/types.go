package chunker

import (
	"errors"
	"fmt"

	"rag_chatbot/internal/loader"
)

// ErrInvalidConfig is returned for a non-positive size or an overlap not smaller than the size.
var ErrInvalidConfig = errors.New("invalid chunker config")

// Chunk is the unit of embedding and retrieval.
type Chunk struct {
	ID       string            // stable hash of source, page, index and text
	Text     string            // never empty
	Source   string            // file the text came from
	Page     int               // 1-based PDF page, 0 otherwise
	Index    int               // position within its document
	Metadata map[string]string // stored alongside the vector
}

// Chunker splits a document into ordered chunks.
type Chunker interface {
	Chunk(doc loader.Document) ([]Chunk, error)

	// Name is used in logs.
	Name() string
}

// Config sizes are counted in runes.
type Config struct {
	MaxChunkSize int
	Overlap      int
}

func (c Config) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: size %d must be positive", ErrInvalidConfig, c.MaxChunkSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxChunkSize {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, c.Overlap, c.MaxChunkSize)
	}
	return nil
}
