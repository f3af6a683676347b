package generation

import (
	"fmt"
	"strings"

	"github.com/jonathan/brd-pipeline/internal/types"
)

// Result is the typed outcome of one generation call. The concrete type is
// determined by Kind.
type Result interface {
	Kind() Kind
	// Len is the number of generated items.
	Len() int
	check(in Input) error
}

// ValidationResult is returned by KindValidate.
type ValidationResult struct {
	ProjectName string
	Report      types.ValidationReport
	GapFixes    []types.GapFix
}

// EpicsResult is returned by KindEpicsAndStories. Ids are the service's own
// and are replaced when merged.
type EpicsResult struct {
	Epics   []types.Epic      `json:"epics"`
	Stories []types.UserStory `json:"user_stories"`
}

// FunctionalTestsResult is returned by KindFunctionalTests.
type FunctionalTestsResult struct {
	Tests []types.FunctionalTest `json:"functional_tests"`
}

// GherkinResult is returned by KindGherkinTests.
type GherkinResult struct {
	Scenarios []types.GherkinScenario `json:"gherkin_tests"`
}

// DataModelResult is returned by KindDataModel.
type DataModelResult struct {
	Entities []types.Entity `json:"entities"`
	Mermaid  string         `json:"mermaid"`
}

// CodeSkeletonResult is returned by KindCodeSkeleton.
type CodeSkeletonResult struct {
	Skeleton types.CodeSkeleton
}

func (*ValidationResult) Kind() Kind      { return KindValidate }
func (*EpicsResult) Kind() Kind           { return KindEpicsAndStories }
func (*FunctionalTestsResult) Kind() Kind { return KindFunctionalTests }
func (*GherkinResult) Kind() Kind         { return KindGherkinTests }
func (*DataModelResult) Kind() Kind       { return KindDataModel }
func (*CodeSkeletonResult) Kind() Kind    { return KindCodeSkeleton }

func (r *ValidationResult) Len() int      { return len(r.Report.Gaps) }
func (r *EpicsResult) Len() int           { return len(r.Epics) + len(r.Stories) }
func (r *FunctionalTestsResult) Len() int { return len(r.Tests) }
func (r *GherkinResult) Len() int         { return len(r.Scenarios) }
func (r *DataModelResult) Len() int       { return len(r.Entities) }
func (r *CodeSkeletonResult) Len() int {
	n := 0
	for _, f := range r.Skeleton.Folders {
		n += len(f.Files)
	}
	return n
}

// rawValidation mirrors the validate response; the report fields are flat.
type rawValidation struct {
	ProjectName string         `json:"project_name"`
	Score       int            `json:"score"`
	Summary     string         `json:"summary"`
	Gaps        []types.Gap    `json:"gaps"`
	GapFixes    []types.GapFix `json:"gap_fixes"`
}

func (raw rawValidation) result() *ValidationResult {
	fixes := make([]types.GapFix, len(raw.GapFixes))
	for i, gf := range raw.GapFixes {
		gf.GapID = fmt.Sprintf("gap_%d", i+1)
		gf.UserAction = types.GapActionPending
		gf.FinalText = ""
		fixes[i] = gf
	}
	return &ValidationResult{
		ProjectName: strings.TrimSpace(raw.ProjectName),
		Report: types.ValidationReport{
			Score:   raw.Score,
			Summary: raw.Summary,
			Gaps:    raw.Gaps,
		},
		GapFixes: fixes,
	}
}

func (r *ValidationResult) check(Input) error {
	return nil
}

// check requires unique epic ids and stories whose epic is either in the
// response or one of the known parents.
func (r *EpicsResult) check(in Input) error {
	known := in.parentSet()
	seen := make(map[string]bool, len(r.Epics))
	for _, e := range r.Epics {
		if seen[e.ID] {
			return fmt.Errorf("duplicate epic id %q", e.ID)
		}
		seen[e.ID] = true
	}
	for _, s := range r.Stories {
		if !seen[s.EpicID] && !known[s.EpicID] {
			return fmt.Errorf("story %q references unknown epic %q", s.Title, s.EpicID)
		}
	}
	return nil
}

func (r *FunctionalTestsResult) check(in Input) error {
	ids := make([]string, len(r.Tests))
	for i, t := range r.Tests {
		ids[i] = t.StoryID
	}
	return checkAnyKnownParent(in, ids)
}

func (r *GherkinResult) check(in Input) error {
	ids := make([]string, len(r.Scenarios))
	for i, g := range r.Scenarios {
		ids[i] = g.StoryID
	}
	return checkAnyKnownParent(in, ids)
}

func (r *DataModelResult) check(Input) error {
	for _, e := range r.Entities {
		seen := make(map[string]bool, len(e.Fields))
		for _, f := range e.Fields {
			key := strings.ToLower(f.Name)
			if seen[key] {
				return fmt.Errorf("entity %q declares field %q twice", e.Name, f.Name)
			}
			seen[key] = true
		}
	}
	return nil
}

// check rejects paths that escape the skeleton root.
func (r *CodeSkeletonResult) check(Input) error {
	for _, folder := range r.Skeleton.Folders {
		p := strings.TrimSpace(folder.Path)
		if strings.Contains(p, "..") {
			return fmt.Errorf("folder path %q escapes the project root", folder.Path)
		}
		for _, f := range folder.Files {
			if strings.Contains(f.Name, "/") {
				return fmt.Errorf("file name %q contains a path separator", f.Name)
			}
		}
	}
	return nil
}

// checkAnyKnownParent rejects a non-empty response none of whose items
// reference a known story. Individual strays are filtered at merge time.
func checkAnyKnownParent(in Input, parentIDs []string) error {
	if len(in.ParentIDs) == 0 || len(parentIDs) == 0 {
		return nil
	}
	known := in.parentSet()
	for _, id := range parentIDs {
		if known[id] {
			return nil
		}
	}
	return fmt.Errorf("no item references a known story (got %q)", parentIDs[0])
}
