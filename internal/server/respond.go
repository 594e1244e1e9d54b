package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"rag_chatbot/internal/domain"
)

const (
	codeUnsupported = "unsupported_format"
	codeBuildFailed = "index_build_failed"
	codeStorage     = "storage_error"
	codeNoCorpus    = "no_corpus_available"
	codeTimeout     = "service_timeout"
	codeUnavailable = "service_unavailable"
	codeGeneration  = "generation_failed"
	codeInternal    = "internal_error"
)

// errorStatus maps the error taxonomy to an HTTP status and a stable code.
// Build failures are checked first: a corrupt upload wraps both ErrIndexBuildFailed
// and ErrUnsupportedFormat and is a server-side failure.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrIndexBuildFailed):
		return http.StatusInternalServerError, codeBuildFailed
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusBadRequest, codeUnsupported
	case errors.Is(err, domain.ErrNoCorpusAvailable):
		return http.StatusInternalServerError, codeNoCorpus
	case errors.Is(err, domain.ErrServiceTimeout):
		return http.StatusServiceUnavailable, codeTimeout
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, codeUnavailable
	case errors.Is(err, domain.ErrGenerationFailed):
		return http.StatusBadGateway, codeGeneration
	case errors.Is(err, domain.ErrStorage):
		return http.StatusInternalServerError, codeStorage
	}
	return http.StatusInternalServerError, codeInternal
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
		"code":  code,
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Mcp-Session-Id")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses on /mcp working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func withRequestLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))

		logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", id,
		)
	})
}
