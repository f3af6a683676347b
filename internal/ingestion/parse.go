// Package ingestion parses uploaded BRD documents into sections, tables and
// addressable chunks.
package ingestion

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/brd-pipeline/internal/types"
)

// Document formats
const (
	FormatText = "text"
	FormatHTML = "html"
)

var (
	// ErrEmptyDocument is returned when a document has no text content
	ErrEmptyDocument = errors.New("document has no content")
	// ErrInvalidEncoding is returned for content that is not valid UTF-8
	ErrInvalidEncoding = errors.New("document is not valid UTF-8")
)

// UnsupportedFormatError is returned for file extensions without a parser.
type UnsupportedFormatError struct {
	Filename string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported document format: %s (expected .txt, .md, .html or .htm)", e.Filename)
}

// FormatFor returns the document format for a filename.
func FormatFor(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".text":
		return FormatText, nil
	case ".html", ".htm":
		return FormatHTML, nil
	default:
		return "", &UnsupportedFormatError{Filename: filename}
	}
}

// Parse parses a BRD, choosing the parser by the filename's extension.
func Parse(filename string, content []byte) (*types.Document, *Metadata, error) {
	format, err := FormatFor(filename)
	if err != nil {
		return nil, nil, err
	}
	if !utf8.Valid(content) {
		return nil, nil, ErrInvalidEncoding
	}

	var doc *types.Document
	switch format {
	case FormatHTML:
		doc, err = ParseHTML(string(content))
	default:
		doc, err = ParseText(string(content))
	}
	if err != nil {
		return nil, nil, err
	}
	return doc, NewMetadata(filename, format, content, doc), nil
}

// ParseFile reads and parses a BRD from disk.
func ParseFile(path string) (*types.Document, *Metadata, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("file not found: %w", err)
		}
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(filepath.Base(path), content)
}
