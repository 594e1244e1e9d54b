package chunker

import (
	"strings"

	"rag_chatbot/internal/loader"
)

// TextChunker cuts fixed-size rune windows; consecutive windows share exactly Overlap runes.
type TextChunker struct {
	config Config
}

func NewTextChunker(config Config) (*TextChunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &TextChunker{config: config}, nil
}

func (s *TextChunker) Name() string {
	return "size"
}

// Chunk never returns zero-length chunks; blank documents produce none.
func (s *TextChunker) Chunk(doc loader.Document) ([]Chunk, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, nil
	}
	return s.chunkBySize(doc), nil
}

func (s *TextChunker) chunkBySize(doc loader.Document) []Chunk {
	var chunks []Chunk
	runes := []rune(doc.Text)
	step := s.config.MaxChunkSize - s.config.Overlap

	for i := 0; i < len(runes); i += step {
		end := i + s.config.MaxChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, CreateChunk(string(runes[i:end]), doc, len(chunks)))

		if end >= len(runes) {
			break
		}
	}

	return chunks
}
