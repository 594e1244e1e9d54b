// Package corpus routes questions between the uploaded user document and the system corpus.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"rag_chatbot/internal/chain"
	"rag_chatbot/internal/domain"
	"rag_chatbot/internal/loader"
	"rag_chatbot/internal/vectorindex"
)

const (
	System = "system"
	User   = "user"
)

type State string

const (
	NoUserDocs     State = "NO_USER_DOCS"
	UserDocsActive State = "USER_DOCS_ACTIVE"
)

// IndexBuilder is satisfied by *indexmanager.Manager.
type IndexBuilder interface {
	GetOrBuild(ctx context.Context, corpus, source, indexPath string) (*vectorindex.Index, error)
	Rebuild(ctx context.Context, corpus, source, indexPath string) (*vectorindex.Index, error)
	Remove(indexPath string) error
}

// ChainFactory wraps a ready index in a question-answering pipeline.
type ChainFactory func(corpus string, idx *vectorindex.Index) *chain.RAG

type Paths struct {
	SystemData  string
	SystemIndex string
	Uploads     string
	UserIndex   string
}

type Answer struct {
	Text          string
	UsingUserFile bool
}

type Status struct {
	State        State  `json:"state"`
	UserReady    bool   `json:"user_ready"`
	SystemReady  bool   `json:"system_ready"`
	UserFile     string `json:"user_file,omitempty"`
	UserChunks   int    `json:"user_chunks"`
	SystemChunks int    `json:"system_chunks"`
}

// Machine owns the user and system chains. Chains are immutable once built, so Ask only
// holds the read lock long enough to pick one.
type Machine struct {
	indexes  IndexBuilder
	newChain ChainFactory
	paths    Paths
	logger   *slog.Logger

	mu       sync.RWMutex
	state    State
	user     *chain.RAG
	system   *chain.RAG
	userFile string

	// ingest serialises uploads, deletes and system reloads.
	ingest sync.Mutex
}

func New(indexes IndexBuilder, newChain ChainFactory, paths Paths, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		indexes:  indexes,
		newChain: newChain,
		paths:    paths,
		logger:   logger,
		state:    NoUserDocs,
	}
}

// InitSystem loads or builds the system index. Without a system data directory only a
// previously persisted index can be used.
func (m *Machine) InitSystem(ctx context.Context) error {
	m.ingest.Lock()
	defer m.ingest.Unlock()

	idx, err := m.indexes.GetOrBuild(ctx, System, m.systemSource(), m.paths.SystemIndex)
	if err != nil {
		return fmt.Errorf("system corpus: %w", err)
	}
	m.setSystem(idx)
	return nil
}

// ReloadSystem rebuilds the system index from its data directory. On failure the
// current system chain keeps serving.
func (m *Machine) ReloadSystem(ctx context.Context) error {
	m.ingest.Lock()
	defer m.ingest.Unlock()

	source := m.systemSource()
	if source == "" {
		return fmt.Errorf("%w: system data directory %s not found", domain.ErrIndexBuildFailed, m.paths.SystemData)
	}
	idx, err := m.indexes.Rebuild(ctx, System, source, m.paths.SystemIndex)
	if err != nil {
		m.logger.Error("System corpus reload failed, keeping the previous index", "error", err)
		return fmt.Errorf("system corpus: %w", err)
	}
	m.setSystem(idx)
	return nil
}

func (m *Machine) systemSource() string {
	if fi, err := os.Stat(m.paths.SystemData); err == nil && fi.IsDir() {
		return m.paths.SystemData
	}
	return ""
}

func (m *Machine) setSystem(idx *vectorindex.Index) {
	c := m.newChain(System, idx)
	m.mu.Lock()
	m.system = c
	m.mu.Unlock()
	m.logger.Info("System corpus ready", "chunks", idx.Len(), "build_id", idx.Meta().BuildID)
}

// Upload replaces any user data with the given file and activates it. The extension is
// checked before any state changes; a failed build leaves NO_USER_DOCS.
func (m *Machine) Upload(ctx context.Context, filename string, r io.Reader) error {
	name := filepath.Base(filepath.Clean("/" + filename))
	if _, err := loader.DetectFormat(name); err != nil {
		return err
	}

	m.ingest.Lock()
	defer m.ingest.Unlock()

	if err := m.clearUser(); err != nil {
		return err
	}

	if err := os.MkdirAll(m.paths.Uploads, 0o755); err != nil {
		return fmt.Errorf("%w: create upload dir: %v", domain.ErrStorage, err)
	}
	path := filepath.Join(m.paths.Uploads, name)
	if err := saveFile(path, r); err != nil {
		return err
	}

	idx, err := m.indexes.Rebuild(ctx, User, path, m.paths.UserIndex)
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			m.logger.Warn("Failed to remove upload after failed build", "path", path, "error", rmErr)
		}
		m.logger.Error("User index build failed", "file", name, "error", err)
		return err
	}

	c := m.newChain(User, idx)
	m.mu.Lock()
	m.user = c
	m.userFile = name
	m.state = UserDocsActive
	m.mu.Unlock()

	m.logger.Info("User document active", "file", name, "chunks", idx.Len())
	return nil
}

func saveFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", domain.ErrStorage, path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("%w: write %s: %v", domain.ErrStorage, path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("%w: close %s: %v", domain.ErrStorage, path, err)
	}
	return nil
}

// DeleteUserData removes the user index and uploads and returns to NO_USER_DOCS.
// Deleting when nothing exists succeeds.
func (m *Machine) DeleteUserData() error {
	m.ingest.Lock()
	defer m.ingest.Unlock()
	return m.clearUser()
}

// clearUser drops the user chain first so no query can reach files being deleted.
func (m *Machine) clearUser() error {
	m.mu.Lock()
	m.state = NoUserDocs
	m.user = nil
	m.userFile = ""
	m.mu.Unlock()

	var errs []error
	if err := m.indexes.Remove(m.paths.UserIndex); err != nil {
		errs = append(errs, err)
	}
	if err := os.RemoveAll(m.paths.Uploads); err != nil {
		errs = append(errs, fmt.Errorf("%w: remove uploads: %v", domain.ErrStorage, err))
	}
	if err := errors.Join(errs...); err != nil {
		m.logger.Error("Failed to delete user data", "error", err)
		return err
	}
	m.logger.Info("User data deleted")
	return nil
}

// Ask answers from the user document when one is active, otherwise from the system corpus.
func (m *Machine) Ask(ctx context.Context, question string) (Answer, error) {
	m.mu.RLock()
	active, usingUser := m.system, false
	if m.state == UserDocsActive && m.user != nil {
		active, usingUser = m.user, true
	}
	m.mu.RUnlock()

	if active == nil {
		return Answer{}, domain.ErrNoCorpusAvailable
	}

	text, err := active.Run(ctx, question)
	if err != nil {
		return Answer{}, err
	}
	return Answer{Text: text, UsingUserFile: usingUser}, nil
}

func (m *Machine) UsingUserFile() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == UserDocsActive && m.user != nil
}

func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{
		State:       m.state,
		UserReady:   m.user != nil,
		SystemReady: m.system != nil,
		UserFile:    m.userFile,
	}
	if m.user != nil {
		s.UserChunks = m.user.Index.Len()
	}
	if m.system != nil {
		s.SystemChunks = m.system.Index.Len()
	}
	return s
}
