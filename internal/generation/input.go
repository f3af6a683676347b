package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/brd-pipeline/internal/prompts"
	"github.com/jonathan/brd-pipeline/internal/types"
)

// Input is the context of one generation call. Only the fields relevant to
// the call kind are rendered.
type Input struct {
	Instructions string
	GapFixes     []types.AppliedGapFix

	// Sections and Chunks carry BRD content for validate and epics calls.
	Sections []types.Section
	Chunks   []types.Chunk

	Stories  []types.UserStory
	Entities []types.Entity

	// Existing lists already generated items so that append calls do not
	// repeat them.
	Existing []string
	Append   bool

	// ParentIDs are the ids a response may reference: epic ids for stories,
	// story ids for tests and scenarios.
	ParentIDs []string
}

func (in Input) parentSet() map[string]bool {
	set := make(map[string]bool, len(in.ParentIDs))
	for _, id := range in.ParentIDs {
		set[id] = true
	}
	return set
}

type storyView struct {
	ID                 string   `json:"id"`
	EpicID             string   `json:"epic_id"`
	Title              string   `json:"title"`
	Role               string   `json:"role"`
	Goal               string   `json:"goal"`
	Benefit            string   `json:"benefit"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	SourceChunks       []string `json:"source_chunks,omitempty"`
}

// Render builds the prompt for the call kind.
func (in Input) Render(kind Kind) (string, error) {
	template, err := prompts.Get(prompts.GenerationFile, string(kind))
	if err != nil {
		return "", err
	}

	modeKey := "set_mode"
	if in.Append {
		modeKey = "append_mode"
	}
	mode, err := prompts.Get(prompts.GenerationFile, modeKey)
	if err != nil {
		return "", err
	}

	context, err := in.renderContext(kind)
	if err != nil {
		return "", err
	}

	instructions := strings.TrimSpace(in.Instructions)
	if instructions == "" {
		instructions = "None"
	}

	return prompts.Format(template, map[string]string{
		"Instructions": instructions,
		"GapFixes":     renderGapFixes(in.GapFixes),
		"Context":      context,
		"Mode":         mode,
	}), nil
}

func (in Input) renderContext(kind Kind) (string, error) {
	var sb strings.Builder

	switch kind {
	case KindValidate:
		if len(in.Sections) == 0 {
			writeChunks(&sb, in.Chunks)
			break
		}
		for _, s := range in.Sections {
			fmt.Fprintf(&sb, "## [%s] %s\n%s\n\n", s.ID, s.Title, s.Text)
		}

	case KindEpicsAndStories:
		writeChunks(&sb, in.Chunks)

	case KindFunctionalTests, KindGherkinTests, KindDataModel:
		if err := writeJSON(&sb, storyViews(in.Stories)); err != nil {
			return "", err
		}

	case KindCodeSkeleton:
		sb.WriteString("Entities:\n")
		if err := writeJSON(&sb, in.Entities); err != nil {
			return "", err
		}
		sb.WriteString("\nStories:\n")
		if err := writeJSON(&sb, storyViews(in.Stories)); err != nil {
			return "", err
		}

	default:
		return "", fmt.Errorf("unknown generation kind: %q", kind)
	}

	if in.Append && len(in.Existing) > 0 {
		sb.WriteString("\nAlready generated:\n")
		for _, item := range in.Existing {
			fmt.Fprintf(&sb, "- %s\n", item)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func storyViews(stories []types.UserStory) []storyView {
	views := make([]storyView, len(stories))
	for i, s := range stories {
		criteria := make([]string, len(s.AcceptanceCriteria))
		for j, ac := range s.AcceptanceCriteria {
			criteria[j] = ac.Text
		}
		views[i] = storyView{
			ID:                 s.ID,
			EpicID:             s.EpicID,
			Title:              s.Title,
			Role:               s.Role,
			Goal:               s.Goal,
			Benefit:            s.Benefit,
			AcceptanceCriteria: criteria,
			SourceChunks:       s.ChunkIDs(),
		}
	}
	return views
}

func writeChunks(sb *strings.Builder, chunks []types.Chunk) {
	for _, c := range chunks {
		fmt.Fprintf(sb, "[%s] %s\n", c.ID, c.Text)
	}
}

func writeJSON(sb *strings.Builder, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render context: %w", err)
	}
	sb.Write(data)
	sb.WriteString("\n")
	return nil
}

func renderGapFixes(fixes []types.AppliedGapFix) string {
	if len(fixes) == 0 {
		return "None"
	}
	var sb strings.Builder
	for _, f := range fixes {
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", f.Type, f.Issue, f.Correction)
	}
	return strings.TrimSpace(sb.String())
}
