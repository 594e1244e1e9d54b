package loader

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"rag_chatbot/internal/domain"
)

// loadPDF returns one document per page. Pages whose text cannot be extracted yield "".
func loadPDF(path string) (docs []Document, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("%w: %s: malformed pdf: %v", domain.ErrUnsupportedFormat, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", domain.ErrUnsupportedFormat, err)
	}
	defer f.Close()

	n := r.NumPage()
	docs = make([]Document, 0, n)
	for i := 1; i <= n; i++ {
		docs = append(docs, Document{
			Text:   pageText(r, i),
			Source: path,
			Page:   i,
			Format: FormatPDF,
		})
	}
	return docs, nil
}

func pageText(r *pdf.Reader, num int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	p := r.Page(num)
	if p.V.IsNull() {
		return ""
	}
	text, err := p.GetPlainText(nil)
	if err != nil || strings.TrimSpace(text) == "" {
		return ""
	}
	return text
}
