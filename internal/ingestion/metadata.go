package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonathan/brd-pipeline/internal/types"
)

// Metadata describes an ingested BRD
type Metadata struct {
	Filename  string `json:"filename"`
	Format    string `json:"format"`
	Timestamp string `json:"timestamp"` // RFC3339 format
	Hash      string `json:"hash"`      // SHA256 hex digest of the upload
	Bytes     int    `json:"bytes"`
	Sections  int    `json:"sections"`
	Tables    int    `json:"tables"`
	Chunks    int    `json:"chunks"`
}

// NewMetadata creates a new Metadata instance with current timestamp
func NewMetadata(filename, format string, content []byte, doc *types.Document) *Metadata {
	m := &Metadata{
		Filename:  filename,
		Format:    format,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Hash:      computeHash(content),
		Bytes:     len(content),
	}
	if doc != nil {
		m.Sections = len(doc.Sections)
		m.Tables = len(doc.Tables)
		m.Chunks = len(doc.Chunks)
	}
	return m
}

// computeHash computes SHA256 hash of content and returns hex string
func computeHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// ToJSON marshals Metadata to pretty-printed JSON
func (m *Metadata) ToJSON() ([]byte, error) {
	jsonBytes, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata to JSON: %w", err)
	}
	return jsonBytes, nil
}
