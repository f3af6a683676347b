package types

// Chunk types
const (
	ChunkHeading   = "heading"
	ChunkParagraph = "paragraph"
	ChunkTable     = "table"
)

// Section is a titled region of a BRD.
type Section struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	ChunkIDs []string `json:"chunk_ids"`
}

// Table is a table extracted from a BRD. Rows are keyed by header.
type Table struct {
	TableID   string              `json:"table_id"`
	SectionID string              `json:"section_id,omitempty"`
	Headers   []string            `json:"headers"`
	Rows      []map[string]string `json:"rows"`
}

// Chunk is an addressable piece of the BRD that generated artifacts cite.
type Chunk struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	SectionID string `json:"section_id,omitempty"`
	Text      string `json:"text"`
	TableRef  string `json:"table_ref,omitempty"`
}

// Document is the structured representation of a parsed BRD.
type Document struct {
	Sections []Section `json:"sections"`
	Tables   []Table   `json:"tables"`
	Chunks   []Chunk   `json:"chunks"`
	RawText  string    `json:"raw_text"`
}

// ChunksByID returns the chunks whose ids are listed, in document order.
func (d *Document) ChunksByID(ids []string) []Chunk {
	if d == nil || len(ids) == 0 {
		return nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Chunk
	for _, c := range d.Chunks {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out
}
