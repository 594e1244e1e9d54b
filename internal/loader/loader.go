// Package loader turns pdf, pptx, docx and markdown files into plain-text documents.
package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rag_chatbot/internal/domain"
)

type Format string

const (
	FormatPDF      Format = "pdf"
	FormatPPTX     Format = "pptx"
	FormatDOCX     Format = "docx"
	FormatMarkdown Format = "md"
)

// Document is the text of one PDF page, or of a whole pptx/docx/markdown file.
type Document struct {
	Text   string
	Source string
	Page   int // 1-based for PDF pages, 0 otherwise
	Format Format
}

// UploadFormats are accepted for single files; directories additionally accept markdown.
var UploadFormats = []Format{FormatPDF, FormatPPTX, FormatDOCX}

// DetectFormat maps a file name to an upload format by extension, case-insensitively.
func DetectFormat(name string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, f := range UploadFormats {
		if ext == string(f) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, filepath.Ext(name))
}

func detectDirFormat(name string) (Format, bool) {
	if f, err := DetectFormat(name); err == nil {
		return f, true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return FormatMarkdown, true
	}
	return "", false
}

// Indexable reports whether directory mode would load a file with this name.
func Indexable(name string) bool {
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	_, ok := detectDirFormat(name)
	return ok
}

type Loader struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load dispatches to LoadDir or LoadFile depending on what source is.
func (l *Loader) Load(source string) ([]Document, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return l.LoadDir(source)
	}
	return l.LoadFile(source)
}

// LoadFile loads exactly one pdf, pptx or docx file.
func (l *Loader) LoadFile(path string) ([]Document, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	return load(path, format)
}

// LoadDir loads every recognised file directly inside dir, in name order.
// Unrecognised and hidden files are skipped. A recognised file that cannot be parsed
// fails the whole load.
func (l *Loader) LoadDir(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs []Document
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		format, ok := detectDirFormat(name)
		if !ok {
			l.logger.Debug("Skipping unrecognised file", "path", name)
			continue
		}

		path := filepath.Join(dir, name)
		loaded, err := load(path, format)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		l.logger.Debug("Loaded file", "path", path, "documents", len(loaded))
		docs = append(docs, loaded...)
	}
	return docs, nil
}

func load(path string, format Format) ([]Document, error) {
	switch format {
	case FormatPDF:
		return loadPDF(path)
	case FormatPPTX:
		return loadPPTX(path)
	case FormatDOCX:
		return loadDOCX(path)
	case FormatMarkdown:
		return loadMarkdown(path)
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, format)
}
