// Package main provides the rag_chatbot CLI: the HTTP API, a console chat and the system index builder.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"rag_chatbot/internal/app"
	"rag_chatbot/internal/config"
)

var (
	systemDataDir string
	listenAddr    string
)

var rootCmd = &cobra.Command{
	Use:     "rag_chatbot",
	Short:   "Chat with your documents",
	Long:    "Answers questions from an uploaded document, or from the system documents when no upload is active.",
	Version: app.Version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (/upload, /delete-user-data, /chat)",
	Long: `Loads or builds the system index and serves the chat API.

Environment variables:
  LISTEN_ADDR       Listen address (default: :8080)
  SYSTEM_DATA_DIR   System documents (default: ./system_data)
  LLM_PROVIDER      ollama or openai (default: ollama)
  EMBED_PROVIDER    ollama, openai or hash (default: ollama)
  MCP_ENABLED       Mount MCP tools at /mcp (default: true)
  WATCH_SYSTEM_DATA Rebuild the system index when its files change (default: false)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app.App) error {
			return a.Serve(ctx)
		})
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Chat on stdin: one question per line, or a file path to upload",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app.App) error {
			return a.Run(ctx, os.Stdin, os.Stdout)
		})
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app.App) error {
			return a.ServeMCP(ctx)
		})
	},
}

var buildIndexCmd = &cobra.Command{
	Use:   "build-index",
	Short: "Rebuild the system index from SYSTEM_DATA_DIR and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
			return a.BuildIndex(ctx)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&systemDataDir, "data", "", "System documents directory (overrides SYSTEM_DATA_DIR)")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides LISTEN_ADDR)")

	rootCmd.AddCommand(serveCmd, consoleCmd, mcpCmd, buildIndexCmd)
}

func main() {
	// Load .env file if present, ignore if missing
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp loads the config, builds the app and runs fn until SIGINT or SIGTERM.
// loadCorpus controls whether the system corpus is loaded before fn runs.
func withApp(cmd *cobra.Command, loadCorpus bool, fn func(context.Context, *app.App) error) error {
	if systemDataDir != "" {
		os.Setenv("SYSTEM_DATA_DIR", systemDataDir)
	}
	if listenAddr != "" {
		os.Setenv("LISTEN_ADDR", listenAddr)
	}

	cfg := config.Config{}
	if err := config.Init(&cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	a, err := app.New(&cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if loadCorpus {
		if err := a.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
	}
	return fn(ctx, a)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
