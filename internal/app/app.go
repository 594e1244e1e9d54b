package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"rag_chatbot/internal/chain"
	"rag_chatbot/internal/chunker"
	"rag_chatbot/internal/config"
	"rag_chatbot/internal/corpus"
	"rag_chatbot/internal/embedding"
	"rag_chatbot/internal/indexmanager"
	"rag_chatbot/internal/llm"
	"rag_chatbot/internal/loader"
	"rag_chatbot/internal/mcp"
	"rag_chatbot/internal/resilience"
	"rag_chatbot/internal/retriever"
	"rag_chatbot/internal/server"
	"rag_chatbot/internal/vectorindex"
	"rag_chatbot/internal/watch"
)

const Version = "v0.1.0"

type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	machine *corpus.Machine
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	policy := resilience.Policy{
		Timeout:    cfg.ServiceTimeout,
		MaxRetries: cfg.ServiceRetries,
		Limiter:    resilience.NewLimiter(cfg.ModelRPS, cfg.ModelBurst),
		Logger:     logger,
	}

	embed, err := embedding.New(cfg, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding function: %w", err)
	}
	gen, err := llm.New(cfg, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to create language model: %w", err)
	}
	prompts, err := config.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return nil, err
	}
	textChunker, err := chunker.NewTextChunker(chunker.Config{
		MaxChunkSize: cfg.ChunkSize,
		Overlap:      cfg.ChunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}

	indexes := indexmanager.New(loader.New(logger), textChunker, embed, cfg.EmbedModelID(), logger)

	answer := chain.NewAnswer(gen, prompts.Answer)
	newChain := func(name string, idx *vectorindex.Index) *chain.RAG {
		r := retriever.New(gen, prompts.MultiQuery, cfg.QueryVariants, cfg.TopK, logger.With("corpus", name))
		return chain.NewRAG(name, idx, r, answer)
	}

	machine := corpus.New(indexes, newChain, corpus.Paths{
		SystemData:  cfg.SystemDataDir,
		SystemIndex: cfg.SystemIndexPath,
		Uploads:     cfg.UploadDir,
		UserIndex:   cfg.UserIndexPath,
	}, logger)

	return &App{cfg: cfg, logger: logger, machine: machine}, nil
}

// Corpus exposes the routing state machine.
func (a *App) Corpus() *corpus.Machine {
	return a.machine
}

// Init checks the model server, drops user data left by a previous run and loads or
// builds the system index. A missing system corpus is logged, not fatal: questions are
// then answered with a no-corpus error until a document is uploaded.
func (a *App) Init(ctx context.Context) error {
	if err := a.ensureOllamaAndModels(ctx); err != nil {
		return fmt.Errorf("ollama model check failed: %w", err)
	}

	if err := a.machine.DeleteUserData(); err != nil {
		return fmt.Errorf("failed to clear previous user data: %w", err)
	}

	if err := a.machine.InitSystem(ctx); err != nil {
		a.logger.Warn("System corpus not available", "dir", a.cfg.SystemDataDir, "error", err)
	}
	return nil
}

// BuildIndex rebuilds the system index from SYSTEM_DATA_DIR and persists it.
func (a *App) BuildIndex(ctx context.Context) error {
	if err := a.ensureOllamaAndModels(ctx); err != nil {
		return fmt.Errorf("ollama model check failed: %w", err)
	}
	if err := a.machine.ReloadSystem(ctx); err != nil {
		return err
	}
	st := a.machine.Status()
	a.logger.Info("System index saved", "path", a.cfg.SystemIndexPath, "chunks", st.SystemChunks)
	return nil
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	var mcpHandler http.Handler
	if a.cfg.MCPEnabled {
		mcpHandler = mcp.NewHTTPHandler(mcp.NewServer(a.machine, Version))
	}

	if a.cfg.WatchSystemData {
		w := watch.New(a.cfg.SystemDataDir, a.machine, watch.DefaultDebounce, a.logger)
		go func() {
			if err := w.Run(ctx); err != nil {
				a.logger.Warn("System data watcher stopped", "error", err)
			}
		}()
	}

	srv := server.New(a.machine, server.Options{
		MaxUploadBytes: a.cfg.MaxUploadMB << 20,
		MCP:            mcpHandler,
		Logger:         a.logger,
	})
	a.logger.Info("Chatbot API ready", "url", "http://"+trimHostPrefix(a.cfg.ListenAddr), "mcp", a.cfg.MCPEnabled)
	return srv.ListenAndServe(ctx, a.cfg.ListenAddr)
}

// ServeMCP serves the MCP tools over stdio.
func (a *App) ServeMCP(ctx context.Context) error {
	return mcp.NewServer(a.machine, Version).Run(ctx)
}

// Helper to print address nicely in logs
func trimHostPrefix(addr string) string {
	if addr == "" {
		return "localhost"
	}
	if addr[0] == ':' {
		return "127.0.0.1" + addr
	}
	return addr
}

func (a *App) ensureOllamaAndModels(ctx context.Context) error {
	if !a.cfg.EnsureModels {
		return nil
	}

	var models []string
	if a.cfg.LLMProvider == config.ProviderOllama {
		models = append(models, a.cfg.OllamaModel)
	}
	if a.cfg.EmbedProvider == config.ProviderOllama {
		models = append(models, a.cfg.OllamaEmbedModel)
	}
	if len(models) == 0 {
		return nil
	}

	ollama := llm.NewOllama(a.cfg.OllamaURL, a.cfg.OllamaModel, &http.Client{})
	return ollama.EnsureModels(ctx, a.logger, models...)
}
