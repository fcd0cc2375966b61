// Package document turns uploaded files into plain text and derives the
// document type and basic text statistics used by the analysis.
package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

var (
	// ErrUnsupported matches every rejected file type
	ErrUnsupported = errors.New("unsupported file type")

	// ErrNoRecognizer is returned for images when no OCR backend is set
	ErrNoRecognizer = errors.New("image text recognition is not configured")
)

// UnsupportedError reports a file type the extractor cannot read
type UnsupportedError struct {
	Extension string
}

func (e *UnsupportedError) Error() string {
	if e.Extension == "doc" {
		return ".doc files are not supported. Please convert to .docx, .pdf, or a text format."
	}
	return fmt.Sprintf("Unsupported file type: .%s", e.Extension)
}

func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// ImageRecognizer reads the text printed in an image
type ImageRecognizer interface {
	RecognizeText(ctx context.Context, mimeType string, data []byte) (string, error)
}

type extractFunc func(ctx context.Context, data []byte) (string, error)

// Extractor dispatches on file extension to the matching reader
type Extractor struct {
	recognizer ImageRecognizer
	handlers   map[string]extractFunc
}

// Option configures an Extractor
type Option func(*Extractor)

// WithImageRecognizer enables text extraction from images
func WithImageRecognizer(r ImageRecognizer) Option {
	return func(e *Extractor) { e.recognizer = r }
}

// NewExtractor creates an extractor for the built-in formats
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}

	e.handlers = map[string]extractFunc{
		"pdf":  extractPDF,
		"docx": extractDOCX,
		"txt":  extractPlain,
		"md":   extractPlain,
		"rtf":  extractPlain,
		"xml":  extractPlain,
		"html": extractHTML,
		"htm":  extractHTML,
	}
	for _, ext := range []string{"png", "jpg", "jpeg", "webp", "gif", "bmp"} {
		e.handlers[ext] = e.extractImage
	}
	return e
}

// Supported returns the accepted extensions
func (e *Extractor) Supported() []string {
	exts := make([]string, 0, len(e.handlers))
	for ext := range e.handlers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract returns the raw text of the named file. Files without an
// extension are identified by content sniffing.
func (e *Extractor) Extract(ctx context.Context, name string, data []byte) (string, error) {
	ext := Extension(name)
	if ext == "" {
		ext = strings.TrimPrefix(mimetype.Detect(data).Extension(), ".")
	}

	handler, ok := e.handlers[ext]
	if !ok {
		if ext == "" {
			ext = name
		}
		return "", &UnsupportedError{Extension: ext}
	}
	return handler(ctx, data)
}

// Extension returns the lower-cased extension of name without the dot
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func extractPlain(_ context.Context, data []byte) (string, error) {
	return string(data), nil
}

func extractPDF(_ context.Context, data []byte) (text string, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("Failed to parse PDF file: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("Failed to parse PDF file: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("Failed to parse PDF file: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("Failed to parse PDF file: %w", err)
	}
	return buf.String(), nil
}

func extractDOCX(_ context.Context, data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("Failed to parse DOCX file: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("Failed to parse DOCX file: %w", err)
		}
		defer rc.Close()

		text, err := docxText(rc)
		if err != nil {
			return "", fmt.Errorf("Failed to parse DOCX file: %w", err)
		}
		return text, nil
	}

	return "", fmt.Errorf("Failed to parse DOCX file: missing word/document.xml")
}

// docxText collects w:t runs, breaking lines at paragraphs and w:br
func docxText(r io.Reader) (string, error) {
	var (
		sb     strings.Builder
		inText bool
	)

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true,
}

func extractHTML(_ context.Context, data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("Failed to parse HTML file: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "head") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteByte('\n')
		}
	}
	walk(doc)

	return sb.String(), nil
}

func (e *Extractor) extractImage(ctx context.Context, data []byte) (string, error) {
	if e.recognizer == nil {
		return "", ErrNoRecognizer
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("Failed to read image: content is %s", mt.String())
	}

	text, err := e.recognizer.RecognizeText(ctx, mt.String(), data)
	if err != nil {
		return "", fmt.Errorf("Failed to read image: %w", err)
	}
	return text, nil
}
