// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jonathan/brd-pipeline/internal/ingestion"
	"github.com/jonathan/brd-pipeline/internal/pipeline"
	"github.com/jonathan/brd-pipeline/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	mu  sync.Mutex // keeps output from concurrent jobs from interleaving
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintDocument outputs a human-readable summary of a parsed BRD.
func (p *Printer) PrintDocument(meta *ingestion.Metadata, doc *types.Document) {
	if meta == nil || doc == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("File:     %s (%s, %d bytes)\n", meta.Filename, meta.Format, meta.Bytes))
	sb.WriteString(fmt.Sprintf("Hash:     %s\n", truncate(meta.Hash, 16)))
	sb.WriteString(fmt.Sprintf("Chunks:   %d\n", meta.Chunks))
	sb.WriteString("\n")

	if len(doc.Sections) > 0 {
		sb.WriteString(fmt.Sprintf("Sections (%d):\n", len(doc.Sections)))
		count := min(len(doc.Sections), maxItemsToShow)
		for i := 0; i < count; i++ {
			section := doc.Sections[i]
			title := section.Title
			if title == "" {
				title = "(untitled)"
			}
			sb.WriteString(fmt.Sprintf("  • %s  %s [%d chunks]\n", section.ID, title, len(section.ChunkIDs)))
		}
		if len(doc.Sections) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(doc.Sections)-maxItemsToShow))
		}
	}

	if len(doc.Tables) > 0 {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("Tables (%d):\n", len(doc.Tables)))
		count := min(len(doc.Tables), 3)
		for i := 0; i < count; i++ {
			table := doc.Tables[i]
			sb.WriteString(fmt.Sprintf("  • %s  %s (%d rows)\n", table.TableID, strings.Join(table.Headers, " | "), len(table.Rows)))
		}
		if len(doc.Tables) > 3 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(doc.Tables)-3))
		}
	}

	p.printBox("PARSED BRD", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStageSummary outputs the artifacts a job has produced so far.
func (p *Printer) PrintStageSummary(job *types.Job) {
	if job == nil {
		return
	}
	r := job.Results

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job:      %s\n", job.ID))
	sb.WriteString(fmt.Sprintf("Stage:    %s (%s)\n", job.CurrentStage, job.Status))
	sb.WriteString("\n")
	if r.ValidationReport != nil {
		sb.WriteString(fmt.Sprintf("Validation score: %d (%d gaps)\n", r.ValidationReport.Score, len(r.ValidationReport.Gaps)))
	}
	sb.WriteString(fmt.Sprintf("Epics:            %d\n", len(r.Epics)))
	sb.WriteString(fmt.Sprintf("User stories:     %d\n", len(r.UserStories)))
	sb.WriteString(fmt.Sprintf("Functional tests: %d\n", len(r.FunctionalTests)))
	sb.WriteString(fmt.Sprintf("Gherkin tests:    %d\n", len(r.GherkinTests)))
	sb.WriteString(fmt.Sprintf("Entities:         %d\n", len(r.Entities)))
	sb.WriteString(fmt.Sprintf("Code tree nodes:  %d", len(r.CodeTree)))

	p.printBox("JOB ARTIFACTS", sb.String())
}

// PrintProgress outputs one line per pipeline progress event.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(event pipeline.ProgressEvent) {
	marker := "…"
	switch event.Type {
	case pipeline.EventCompleted:
		marker = "✓"
	case pipeline.EventFailed:
		marker = "✗"
	}

	subject := event.Task
	if event.Stage != types.StageNone {
		subject = fmt.Sprintf("%s %s", event.Task, event.Stage)
	}
	line := fmt.Sprintf("%s [%s] %s: %s", marker, truncate(event.JobID, 8), subject, event.Message)
	if event.Added > 0 {
		line += fmt.Sprintf(" (+%d)", event.Added)
	}
	p.mu.Lock()
	fmt.Fprintln(p.out, line)
	p.mu.Unlock()
}
