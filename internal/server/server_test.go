package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag_chatbot/internal/corpus"
	"rag_chatbot/internal/domain"
)

type fakeCorpus struct {
	uploadErr error
	deleteErr error
	answer    corpus.Answer
	askErr    error

	uploaded string
	content  string
	asked    string
	deletes  int
}

func (f *fakeCorpus) Upload(_ context.Context, filename string, r io.Reader) error {
	b, _ := io.ReadAll(r)
	f.uploaded, f.content = filename, string(b)
	return f.uploadErr
}

func (f *fakeCorpus) DeleteUserData() error {
	f.deletes++
	return f.deleteErr
}

func (f *fakeCorpus) Ask(_ context.Context, q string) (corpus.Answer, error) {
	f.asked = q
	return f.answer, f.askErr
}

func (f *fakeCorpus) Status() corpus.Status {
	return corpus.Status{State: corpus.NoUserDocs, SystemReady: true, SystemChunks: 3}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, _ = fw.Write([]byte(content))
	} else {
		require.NoError(t, mw.WriteField("other", "value"))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func doUpload(t *testing.T, h http.Handler, field, filename string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, field, filename, "%PDF-1.4 data")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHome(t *testing.T) {
	h := New(&fakeCorpus{}, Options{}).Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpload(t *testing.T) {
	fc := &fakeCorpus{}
	h := New(fc, Options{}).Routes()

	rec := doUpload(t, h, "file", "notes.pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["using_user_file"])
	assert.Equal(t, "File uploaded and processed successfully", body["message"])
	assert.Equal(t, "notes.pdf", fc.uploaded)
	assert.Equal(t, "%PDF-1.4 data", fc.content)
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name      string
		field     string
		filename  string
		uploadErr error
		status    int
		code      string
		message   string
	}{
		{"no file part", "", "", nil, http.StatusBadRequest, "no_file_part", "No file part"},
		{"unsupported", "file", "notes.txt", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ".txt"), http.StatusBadRequest, codeUnsupported, ""},
		{"build failed", "file", "broken.docx", fmt.Errorf("%w: %w", domain.ErrIndexBuildFailed, domain.ErrUnsupportedFormat), http.StatusInternalServerError, codeBuildFailed, "Failed to process the file"},
		{"storage", "file", "notes.pdf", domain.ErrStorage, http.StatusInternalServerError, codeStorage, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&fakeCorpus{uploadErr: tt.uploadErr}, Options{}).Routes()
			rec := doUpload(t, h, tt.field, tt.filename)

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.code, body["code"])
			if tt.message != "" {
				assert.Equal(t, tt.message, body["error"])
			}
		})
	}
}

func TestUpload_EmptyFilename(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="file"; filename=""`}
	hdr["Content-Type"] = []string{"application/octet-stream"}
	pw, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = pw.Write([]byte("x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	New(&fakeCorpus{}, Options{}).Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "no_selected_file", body["code"])
	assert.Equal(t, "No selected file", body["error"])
}

func TestUpload_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&fakeCorpus{}, Options{}).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/upload", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDeleteUserData(t *testing.T) {
	fc := &fakeCorpus{}
	h := New(fc, Options{}).Routes()

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/delete-user-data", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, false, body["using_user_file"])
	}
	assert.Equal(t, 2, fc.deletes)
}

func TestDeleteUserData_StorageError(t *testing.T) {
	h := New(&fakeCorpus{deleteErr: fmt.Errorf("%w: permission denied", domain.ErrStorage)}, Options{}).Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/delete-user-data", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, codeStorage, decode(t, rec)["code"])
}

func TestChat(t *testing.T) {
	fc := &fakeCorpus{answer: corpus.Answer{Text: "<p>Twenty days.</p>", UsingUserFile: true}}
	h := New(fc, Options{}).Routes()

	rec := doChat(t, h, `{"question":"  How many days?  "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "<p>Twenty days.</p>", body["response"])
	assert.Equal(t, true, body["using_user_file"])
	assert.Equal(t, "How many days?", fc.asked)
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		askErr error
		status int
		code   string
	}{
		{"missing question", `{}`, nil, http.StatusBadRequest, "no_question"},
		{"blank question", `{"question":"   "}`, nil, http.StatusBadRequest, "no_question"},
		{"empty body", ``, nil, http.StatusBadRequest, "no_question"},
		{"invalid json", `{"question":`, nil, http.StatusBadRequest, "invalid_json"},
		{"no corpus", `{"question":"q"}`, domain.ErrNoCorpusAvailable, http.StatusInternalServerError, codeNoCorpus},
		{"timeout", `{"question":"q"}`, fmt.Errorf("generate: %w", domain.ErrServiceTimeout), http.StatusServiceUnavailable, codeTimeout},
		{"unavailable", `{"question":"q"}`, domain.ErrServiceUnavailable, http.StatusServiceUnavailable, codeUnavailable},
		{"generation failed", `{"question":"q"}`, domain.ErrGenerationFailed, http.StatusBadGateway, codeGeneration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&fakeCorpus{askErr: tt.askErr}, Options{}).Routes()
			rec := doChat(t, h, tt.body)

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestStatusAndHealth(t *testing.T) {
	h := New(&fakeCorpus{}, Options{}).Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "NO_USER_DOCS", body["state"])
	assert.Equal(t, true, body["system_ready"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&fakeCorpus{}, Options{}).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/chat", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMCPMounted(t *testing.T) {
	called := false
	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	})
	rec := httptest.NewRecorder()
	New(&fakeCorpus{}, Options{MCP: mcp}).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestErrorStatus_Unknown(t *testing.T) {
	status, code := errorStatus(fmt.Errorf("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, codeInternal, code)
}
