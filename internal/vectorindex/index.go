// Package vectorindex stores chunk embeddings for one corpus in a chromem-go collection
// and persists them as a compressed gob file with a JSON manifest beside it.
package vectorindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"rag_chatbot/internal/chunker"
	"rag_chatbot/internal/domain"
)

const (
	DataFile = "index.gob.gz"
	MetaFile = "meta.json"
)

// Meta is written to meta.json next to the exported collection.
type Meta struct {
	Corpus     string    `json:"corpus"`
	EmbedModel string    `json:"embed_model"`
	Dimension  int       `json:"dimension"`
	Chunks     int       `json:"chunks"`
	BuildID    string    `json:"build_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Result is one retrieved chunk.
type Result struct {
	ID         string
	Text       string
	Source     string
	Page       int
	Similarity float32
	Metadata   map[string]string
}

// Index is immutable once built or loaded and safe for concurrent queries.
type Index struct {
	db    *chromem.DB
	coll  *chromem.Collection
	embed chromem.EmbeddingFunc
	meta  Meta
}

// FromChunks embeds every chunk and returns an in-memory index stamped with modelID.
func FromChunks(ctx context.Context, corpus string, chunks []chunker.Chunk, embed chromem.EmbeddingFunc, modelID string) (*Index, error) {
	db := chromem.NewDB()
	coll, err := db.CreateCollection(corpus, map[string]string{"embed_model": modelID}, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, ch := range chunks {
		docs = append(docs, chromem.Document{
			ID:       ch.ID,
			Content:  ch.Text,
			Metadata: ch.Metadata,
		})
	}
	if len(docs) > 0 {
		if err := coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return nil, fmt.Errorf("failed to add documents: %w", err)
		}
	}

	idx := &Index{
		db:    db,
		coll:  coll,
		embed: embed,
		meta: Meta{
			Corpus:     corpus,
			EmbedModel: modelID,
			Chunks:     coll.Count(),
			BuildID:    uuid.NewString(),
			CreatedAt:  time.Now().UTC(),
		},
	}
	if len(docs) > 0 {
		doc, err := coll.GetByID(ctx, docs[0].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read back document: %w", err)
		}
		idx.meta.Dimension = len(doc.Embedding)
	}
	return idx, nil
}

func (i *Index) Len() int   { return i.coll.Count() }
func (i *Index) Meta() Meta { return i.meta }

// SimilaritySearch returns up to k chunks by descending cosine similarity, ties broken
// by chunk ID. Every chunk is ranked before cutting to k: chromem's own top-k pick is
// not stable among equal scores.
func (i *Index) SimilaritySearch(ctx context.Context, vec []float32, k int) ([]Result, error) {
	n := i.coll.Count()
	if k <= 0 || n == 0 {
		return []Result{}, nil
	}
	if k > n {
		k = n
	}

	res, err := i.coll.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	out := make([]Result, 0, len(res))
	for _, r := range res {
		page, _ := strconv.Atoi(r.Metadata["page"])
		out = append(out, Result{
			ID:         r.ID,
			Text:       r.Content,
			Source:     r.Metadata["source"],
			Page:       page,
			Similarity: r.Similarity,
			Metadata:   r.Metadata,
		})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Similarity != out[b].Similarity {
			return out[a].Similarity > out[b].Similarity
		}
		return out[a].ID < out[b].ID
	})
	return out[:k], nil
}

// Search embeds text and runs SimilaritySearch.
func (i *Index) Search(ctx context.Context, text string, k int) ([]Result, error) {
	vec, err := i.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return i.SimilaritySearch(ctx, vec, k)
}

// Save writes the collection and its manifest into dir, creating it if needed.
func (i *Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create index dir: %v", domain.ErrStorage, err)
	}
	if err := i.db.ExportToFile(filepath.Join(dir, DataFile), true, "", i.meta.Corpus); err != nil {
		return fmt.Errorf("%w: export collection: %v", domain.ErrStorage, err)
	}
	if err := writeJSONAtomic(filepath.Join(dir, MetaFile), i.meta); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}

// Exists reports whether dir holds both index files.
func Exists(dir string) bool {
	for _, name := range []string{DataFile, MetaFile} {
		if fi, err := os.Stat(filepath.Join(dir, name)); err != nil || fi.IsDir() {
			return false
		}
	}
	return true
}

// ReadMeta reads the manifest without importing the collection.
func ReadMeta(dir string) (Meta, error) {
	var meta Meta
	b, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return meta, fmt.Errorf("decode %s: %w", MetaFile, err)
	}
	if meta.Corpus == "" {
		return meta, errors.New("manifest has no corpus name")
	}
	return meta, nil
}

// Load reads an index saved by Save. A non-empty expectedModel must match the stored
// embedding model, otherwise domain.ErrModelMismatch is returned.
func Load(dir string, embed chromem.EmbeddingFunc, expectedModel string) (*Index, error) {
	meta, err := ReadMeta(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	if expectedModel != "" && meta.EmbedModel != expectedModel {
		return nil, fmt.Errorf("%w: index built with %q, configured %q", domain.ErrModelMismatch, meta.EmbedModel, expectedModel)
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(filepath.Join(dir, DataFile), "", meta.Corpus); err != nil {
		return nil, fmt.Errorf("%w: import collection: %v", domain.ErrStorage, err)
	}
	coll := db.GetCollection(meta.Corpus, embed)
	if coll == nil {
		return nil, fmt.Errorf("%w: collection %q not found in %s", domain.ErrStorage, meta.Corpus, DataFile)
	}
	if coll.Count() != meta.Chunks {
		return nil, fmt.Errorf("%w: %s holds %d chunks, manifest says %d", domain.ErrStorage, DataFile, coll.Count(), meta.Chunks)
	}

	return &Index{db: db, coll: coll, embed: embed, meta: meta}, nil
}

func writeJSONAtomic(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "tmp-*.json")
	if err != nil {
		return fmt.Errorf("create temp json: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("encode json: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp json: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp json: %w", err)
	}
	return nil
}
