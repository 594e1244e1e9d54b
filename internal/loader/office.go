package loader

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"rag_chatbot/internal/domain"
)

const (
	wordprocessingNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	drawingNS        = "http://schemas.openxmlformats.org/drawingml/2006/main"
)

// loadDOCX joins the paragraphs of word/document.xml with "\n".
func loadDOCX(path string) ([]Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: not a docx archive: %v", domain.ErrUnsupportedFormat, path, err)
	}
	defer zr.Close()

	var paragraphs []string
	found := false
	for _, file := range zr.File {
		if file.Name != "word/document.xml" {
			continue
		}
		found = true
		paragraphs, err = readParagraphs(file, wordprocessingNS)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnsupportedFormat, path, err)
		}
		break
	}
	if !found {
		return nil, fmt.Errorf("%w: %s: missing word/document.xml", domain.ErrUnsupportedFormat, path)
	}

	return []Document{{
		Text:   strings.Join(paragraphs, "\n"),
		Source: path,
		Format: FormatDOCX,
	}}, nil
}

// loadPPTX joins the text paragraphs of every slide, in slide order, with "\n".
func loadPPTX(path string) ([]Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: not a pptx archive: %v", domain.ErrUnsupportedFormat, path, err)
	}
	defer zr.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range zr.File {
		if num, ok := slideNumber(file.Name); ok {
			slides = append(slides, slide{num: num, file: file})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var lines []string
	for _, s := range slides {
		paragraphs, err := readParagraphs(s.file, drawingNS)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: slide %d: %v", domain.ErrUnsupportedFormat, path, s.num, err)
		}
		lines = append(lines, paragraphs...)
	}

	return []Document{{
		Text:   strings.Join(lines, "\n"),
		Source: path,
		Format: FormatPPTX,
	}}, nil
}

// slideNumber extracts N from "ppt/slides/slideN.xml".
func slideNumber(name string) (int, bool) {
	const prefix, suffix = "ppt/slides/slide", ".xml"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix))
	if err != nil {
		return 0, false
	}
	return n, true
}

func readParagraphs(file *zip.File, ns string) ([]string, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return parseParagraphs(rc, ns)
}

// parseParagraphs collects the text of every top-level <p> in namespace ns.
// Paragraphs nested inside another (text boxes) are folded into the outer one.
func parseParagraphs(r io.Reader, ns string) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		depth      int
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != ns {
				continue
			}
			switch t.Name.Local {
			case "p":
				depth++
			case "t":
				inText = depth > 0
			case "tab":
				if depth > 0 {
					current.WriteString("\t")
				}
			case "br":
				if depth > 0 {
					current.WriteString("\n")
				}
			}
		case xml.EndElement:
			if t.Name.Space != ns {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if depth == 0 {
					continue
				}
				depth--
				if depth == 0 {
					paragraphs = append(paragraphs, current.String())
					current.Reset()
				}
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
