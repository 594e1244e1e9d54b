// Package indexmanager loads a persisted vector index or builds one from source documents,
// swapping new builds into place so a reader never sees a partial index.
package indexmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/philippgille/chromem-go"

	"rag_chatbot/internal/chunker"
	"rag_chatbot/internal/domain"
	"rag_chatbot/internal/loader"
	"rag_chatbot/internal/vectorindex"
)

// DocumentLoader reads a directory or a single file into documents.
type DocumentLoader interface {
	Load(source string) ([]loader.Document, error)
}

type Manager struct {
	loader  DocumentLoader
	chunker chunker.Chunker
	embed   chromem.EmbeddingFunc
	modelID string
	logger  *slog.Logger
}

// New returns a Manager stamping every index it builds with modelID.
func New(l DocumentLoader, c chunker.Chunker, embed chromem.EmbeddingFunc, modelID string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		loader:  l,
		chunker: c,
		embed:   embed,
		modelID: modelID,
		logger:  logger,
	}
}

// GetOrBuild loads the index at indexPath if it is complete and was built with the
// configured embedding model; otherwise it builds one from source.
func (m *Manager) GetOrBuild(ctx context.Context, corpus, source, indexPath string) (*vectorindex.Index, error) {
	m.restoreMovedAside(indexPath)
	if vectorindex.Exists(indexPath) {
		idx, err := vectorindex.Load(indexPath, m.embed, m.modelID)
		if err == nil {
			m.logger.Info("Loaded index", "corpus", corpus, "path", indexPath, "chunks", idx.Len(), "build_id", idx.Meta().BuildID)
			return idx, nil
		}
		if source == "" {
			return nil, err
		}
		m.logger.Warn("Persisted index unusable, rebuilding", "corpus", corpus, "path", indexPath, "error", err)
	}
	if source == "" {
		return nil, fmt.Errorf("%w: no index at %s and no source to build from", domain.ErrIndexBuildFailed, indexPath)
	}
	return m.Rebuild(ctx, corpus, source, indexPath)
}

// Rebuild builds a fresh index from source and replaces whatever is at indexPath.
// On failure the previous index, if any, is left untouched.
func (m *Manager) Rebuild(ctx context.Context, corpus, source, indexPath string) (*vectorindex.Index, error) {
	start := time.Now()
	m.logger.Info("Building index", "corpus", corpus, "source", source, "model", m.modelID)

	docs, err := m.loader.Load(source)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", domain.ErrIndexBuildFailed, source, err)
	}
	chunks, err := chunker.ChunkAll(m.chunker, docs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexBuildFailed, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", source, domain.ErrEmptyCorpus)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexBuildFailed, err)
	}

	idx, err := vectorindex.FromChunks(ctx, corpus, chunks, m.embed, m.modelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexBuildFailed, err)
	}
	if err := m.install(idx, indexPath); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexBuildFailed, err)
	}

	m.logger.Info("Index built",
		"corpus", corpus,
		"path", indexPath,
		"documents", len(docs),
		"chunks", idx.Len(),
		"build_id", idx.Meta().BuildID,
		"duration", time.Since(start),
	)
	return idx, nil
}

// install saves idx into a temp dir beside indexPath and renames it into place. The
// previous index is moved aside to "<tmp>.old" first; if the process dies between the
// two renames, restoreMovedAside puts it back on the next GetOrBuild.
func (m *Manager) install(idx *vectorindex.Index, indexPath string) error {
	indexPath = filepath.Clean(indexPath)
	parent := filepath.Dir(indexPath)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(indexPath)+"-build-*")
	if err != nil {
		return fmt.Errorf("%w: create temp dir: %v", domain.ErrStorage, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := idx.Save(tmp); err != nil {
		return err
	}

	old := ""
	if _, err := os.Stat(indexPath); err == nil {
		old = tmp + ".old"
		if err := os.Rename(indexPath, old); err != nil {
			return fmt.Errorf("%w: move previous index aside: %v", domain.ErrStorage, err)
		}
	}
	if err := os.Rename(tmp, indexPath); err != nil {
		if old != "" {
			_ = os.Rename(old, indexPath)
		}
		return fmt.Errorf("%w: install index: %v", domain.ErrStorage, err)
	}
	committed = true

	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			m.logger.Warn("Failed to remove previous index", "path", old, "error", err)
		}
	}
	return nil
}

// restoreMovedAside recovers the previous index when an install stopped after moving it
// aside but before the new one was renamed into place.
func (m *Manager) restoreMovedAside(indexPath string) {
	indexPath = filepath.Clean(indexPath)
	if _, err := os.Stat(indexPath); !errors.Is(err, os.ErrNotExist) {
		return
	}
	pattern := filepath.Join(filepath.Dir(indexPath), "."+filepath.Base(indexPath)+"-build-*.old")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return
	}
	for _, old := range matches {
		if !vectorindex.Exists(old) {
			continue
		}
		if err := os.Rename(old, indexPath); err != nil {
			m.logger.Warn("Failed to restore previous index", "path", indexPath, "from", old, "error", err)
			return
		}
		m.logger.Warn("Restored index left aside by an interrupted install", "path", indexPath, "from", old)
		return
	}
}

// Remove deletes the index at indexPath. A missing index is not an error.
func (m *Manager) Remove(indexPath string) error {
	if _, err := os.Stat(indexPath); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.RemoveAll(indexPath); err != nil {
		return fmt.Errorf("%w: remove index %s: %v", domain.ErrStorage, indexPath, err)
	}
	m.logger.Info("Removed index", "path", indexPath)
	return nil
}
