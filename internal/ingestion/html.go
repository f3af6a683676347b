package ingestion

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/brd-pipeline/internal/types"
)

// noiseSelector lists elements that never carry requirement text.
const noiseSelector = "nav, footer, header, script, style, noscript, .sidebar, .cookie-banner"

const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, table"

// ParseHTML parses an HTML BRD. Headings open sections; paragraphs and list
// items become paragraph chunks; tables are keyed by their first row.
func ParseHTML(content string) (*types.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find(noiseSelector).Remove()

	b := newBuilder()
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		if tag != "table" && s.ParentsFiltered("table, li").Length() > 0 {
			return
		}
		if tag == "table" && s.ParentsFiltered("table").Length() > 0 {
			return
		}

		switch tag {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			if text := collapse(s.Text()); text != "" {
				b.heading(text)
			}
		case "p", "li":
			if text := collapse(s.Text()); text != "" {
				b.paragraph(text)
			}
		case "table":
			headers, rows := tableCells(s)
			b.table(headers, rows)
		}
	})
	return b.build("")
}

func tableCells(table *goquery.Selection) ([]string, [][]string) {
	var headers []string
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if !tr.Closest("table").IsSelection(table) {
			return
		}
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, collapse(cell.Text()))
		})
		if headers == nil {
			headers = cells
			return
		}
		rows = append(rows, cells)
	})
	return headers, rows
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
