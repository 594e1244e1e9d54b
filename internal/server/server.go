// Package server exposes the chatbot over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"rag_chatbot/internal/corpus"
)

const welcome = "Welcome to the PDF Chatbot API! Use the /upload endpoint to upload a file and the /chat endpoint to interact with the chatbot."

// Corpus is satisfied by *corpus.Machine.
type Corpus interface {
	Upload(ctx context.Context, filename string, r io.Reader) error
	DeleteUserData() error
	Ask(ctx context.Context, question string) (corpus.Answer, error)
	Status() corpus.Status
}

type Options struct {
	// MaxUploadBytes caps the multipart request body.
	MaxUploadBytes int64
	// MCP is mounted at /mcp when set.
	MCP    http.Handler
	Logger *slog.Logger
}

type Server struct {
	corpus    Corpus
	maxUpload int64
	mcp       http.Handler
	logger    *slog.Logger
	started   time.Time
}

func New(c Corpus, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	return &Server{
		corpus:    c,
		maxUpload: maxUpload,
		mcp:       opts.MCP,
		logger:    logger,
		started:   time.Now(),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/delete-user-data", s.handleDeleteUserData)
	mux.HandleFunc("/chat", s.handleChat)
	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp)
	}
	return withCORS(withRequestLog(s.logger, mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeErr(w, http.StatusNotFound, "not_found", "Not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, welcome)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.corpus.Status())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Sprintf("File exceeds the %d MB limit", s.maxUpload>>20))
			return
		}
		// browsers send a part with an empty filename when nothing was chosen,
		// which multipart parsing keeps as a plain value
		if r.MultipartForm != nil {
			if _, ok := r.MultipartForm.Value["file"]; ok {
				writeErr(w, http.StatusBadRequest, "no_selected_file", "No selected file")
				return
			}
		}
		writeErr(w, http.StatusBadRequest, "no_file_part", "No file part")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeErr(w, http.StatusBadRequest, "no_selected_file", "No selected file")
		return
	}

	if err := s.corpus.Upload(r.Context(), header.Filename, file); err != nil {
		status, code := errorStatus(err)
		msg := "Failed to process the file"
		if status == http.StatusBadRequest {
			msg = "Invalid file type. Only PDF, PPT, and DOCX files are allowed"
		}
		s.logger.Error("Upload failed", "file", header.Filename, "error", err, "request_id", requestID(r.Context()))
		writeErr(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "File uploaded and processed successfully",
		"using_user_file": true,
	})
}

func (s *Server) handleDeleteUserData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}
	if err := s.corpus.DeleteUserData(); err != nil {
		_, code := errorStatus(err)
		writeErr(w, http.StatusInternalServerError, code, fmt.Sprintf("Failed to delete user data: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "User data deleted successfully",
		"using_user_file": false,
	})
}

type chatRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeErr(w, http.StatusBadRequest, "no_question", "No question provided")
		return
	}

	ans, err := s.corpus.Ask(r.Context(), question)
	if err != nil {
		status, code := errorStatus(err)
		s.logger.Error("Chat failed", "error", err, "request_id", requestID(r.Context()))
		writeErr(w, status, code, chatErrorMessage(code))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"response":        ans.Text,
		"using_user_file": ans.UsingUserFile,
	})
}

func chatErrorMessage(code string) string {
	switch code {
	case codeNoCorpus:
		return "No documents available. Please upload a file or ensure system documents exist."
	case codeTimeout, codeUnavailable:
		return "The language model service is unavailable. Please try again later."
	}
	return "Failed to generate response"
}
