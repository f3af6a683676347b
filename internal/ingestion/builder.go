package ingestion

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jonathan/brd-pipeline/internal/types"
)

// tableSampleRows is the number of rows quoted in a table chunk.
const tableSampleRows = 3

// numberedHeading matches section headings such as "1 Scope", "2.1. Users".
var numberedHeading = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+(\S.*)$`)

// builder accumulates sections, tables and chunks in document order.
type builder struct {
	doc     types.Document
	current int
	ids     map[string]bool
	raw     []string
}

func newBuilder() *builder {
	return &builder{
		doc: types.Document{
			Sections: []types.Section{},
			Tables:   []types.Table{},
			Chunks:   []types.Chunk{},
		},
		current: -1,
		ids:     make(map[string]bool),
	}
}

// heading opens a new section. Numbered headings use their number as the
// section id.
func (b *builder) heading(text string) {
	b.raw = append(b.raw, text)

	id := fmt.Sprintf("section_%d", len(b.doc.Sections)+1)
	title := text
	if m := numberedHeading.FindStringSubmatch(text); m != nil && !b.ids[m[1]] {
		id, title = m[1], m[2]
	}
	b.openSection(id, title)
	b.addChunk(types.ChunkHeading, text, "")
}

func (b *builder) openSection(id, title string) {
	b.ids[id] = true
	b.doc.Sections = append(b.doc.Sections, types.Section{ID: id, Title: title, ChunkIDs: []string{}})
	b.current = len(b.doc.Sections) - 1
}

// paragraph adds body text to the current section. Text before the first
// heading goes to an introduction section.
func (b *builder) paragraph(text string) {
	b.raw = append(b.raw, text)
	if b.current < 0 {
		b.openSection("intro", "Introduction")
	}
	s := &b.doc.Sections[b.current]
	s.Text += text + "\n"
	b.addChunk(types.ChunkParagraph, text, "")
}

// table records a table with its header row. Tables without a non-empty
// header are skipped.
func (b *builder) table(headers []string, rows [][]string) {
	if strings.TrimSpace(strings.Join(headers, "")) == "" {
		return
	}

	t := types.Table{
		TableID: fmt.Sprintf("table_%d", len(b.doc.Tables)+1),
		Headers: headers,
		Rows:    []map[string]string{},
	}
	if b.current >= 0 {
		t.SectionID = b.doc.Sections[b.current].ID
	}
	for _, cells := range rows {
		row := make(map[string]string)
		for i, cell := range cells {
			if i < len(headers) && headers[i] != "" {
				row[headers[i]] = cell
			}
		}
		if len(row) > 0 {
			t.Rows = append(t.Rows, row)
		}
	}
	b.doc.Tables = append(b.doc.Tables, t)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Table: %s\n", strings.Join(headers, ", "))
	for i, row := range t.Rows {
		if i == tableSampleRows {
			break
		}
		var cells []string
		for _, h := range headers {
			if v, ok := row[h]; ok {
				cells = append(cells, h+": "+v)
			}
		}
		sb.WriteString(strings.Join(cells, "; "))
		sb.WriteString("\n")
	}
	text := strings.TrimSpace(sb.String())
	b.raw = append(b.raw, text)
	b.addChunk(types.ChunkTable, text, t.TableID)
}

func (b *builder) addChunk(kind, text, tableRef string) {
	c := types.Chunk{
		ID:       fmt.Sprintf("chunk_%d", len(b.doc.Chunks)+1),
		Type:     kind,
		Text:     text,
		TableRef: tableRef,
	}
	if b.current >= 0 {
		s := &b.doc.Sections[b.current]
		c.SectionID = s.ID
		s.ChunkIDs = append(s.ChunkIDs, c.ID)
	}
	b.doc.Chunks = append(b.doc.Chunks, c)
}

func (b *builder) build(raw string) (*types.Document, error) {
	if len(b.doc.Chunks) == 0 {
		return nil, ErrEmptyDocument
	}
	for i := range b.doc.Sections {
		b.doc.Sections[i].Text = strings.TrimSpace(b.doc.Sections[i].Text)
	}
	if raw == "" {
		raw = strings.Join(b.raw, "\n")
	}
	b.doc.RawText = raw
	doc := b.doc
	return &doc, nil
}
