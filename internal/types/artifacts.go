package types

import "time"

// Results holds every artifact collection generated for a job.
type Results struct {
	ProjectName      string            `json:"project_name,omitempty"`
	ValidationReport *ValidationReport `json:"validation_report,omitempty"`
	GapFixes         []GapFix          `json:"gap_fixes"`
	Epics            []Epic            `json:"epics"`
	UserStories      []UserStory       `json:"user_stories"`
	FunctionalTests  []FunctionalTest  `json:"functional_tests"`
	GherkinTests     []GherkinScenario `json:"gherkin_tests"`
	Entities         []Entity          `json:"entities"`
	Mermaid          string            `json:"mermaid,omitempty"`
	CodeTree         []CodeNode        `json:"code_tree"`
}

// Epic is a high-level feature grouping user stories. Stories point back at it
// through EpicID; the epic keeps no list of its own.
type Epic struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	EditedAt    *time.Time `json:"edited_at,omitempty"`
}

// AcceptanceCriterion is one testable condition of a user story.
type AcceptanceCriterion struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	SourceChunks []string `json:"source_chunks,omitempty"`
}

// UserStory is an "As a <role>, I want <goal> so that <benefit>" story.
type UserStory struct {
	ID                 string                `json:"id"`
	EpicID             string                `json:"epic_id"`
	Title              string                `json:"title"`
	Role               string                `json:"role"`
	Goal               string                `json:"goal"`
	Benefit            string                `json:"benefit"`
	AcceptanceCriteria []AcceptanceCriterion `json:"acceptance_criteria"`
	SourceChunks       []string              `json:"source_chunks,omitempty"`
	RegenerationNeeded bool                  `json:"regeneration_needed"`
	EditedAt           *time.Time            `json:"edited_at,omitempty"`
}

// ChunkIDs returns the story's source chunk ids including those referenced by
// its acceptance criteria, without duplicates.
func (s *UserStory) ChunkIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(list []string) {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	add(s.SourceChunks)
	for _, ac := range s.AcceptanceCriteria {
		add(ac.SourceChunks)
	}
	return ids
}

// FunctionalTest is a manual test case derived from a user story.
type FunctionalTest struct {
	ID              string     `json:"id"`
	StoryID         string     `json:"story_id"`
	Title           string     `json:"title"`
	Objective       string     `json:"objective"`
	Preconditions   []string   `json:"preconditions"`
	TestSteps       []string   `json:"test_steps"`
	ExpectedResults []string   `json:"expected_results"`
	SourceChunks    []string   `json:"source_chunks,omitempty"`
	RegeneratedAt   *time.Time `json:"regenerated_at,omitempty"`
}

// GherkinScenario is a BDD scenario derived from a user story.
type GherkinScenario struct {
	ID            string     `json:"id"`
	StoryID       string     `json:"story_id"`
	FeatureName   string     `json:"feature_name"`
	ScenarioName  string     `json:"scenario_name"`
	Given         []string   `json:"given"`
	When          []string   `json:"when"`
	Then          []string   `json:"then"`
	SourceChunks  []string   `json:"source_chunks,omitempty"`
	RegeneratedAt *time.Time `json:"regenerated_at,omitempty"`
}

// EntityField is one attribute of a data-model entity.
type EntityField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Entity is a data-model entity. Name is unique per job.
type Entity struct {
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Fields         []EntityField `json:"fields"`
	SourceStoryIDs []string      `json:"source_story_ids,omitempty"`
	RegeneratedAt  *time.Time    `json:"regenerated_at,omitempty"`
}

// CodeNode kinds
const (
	CodeNodeFile   = "file"
	CodeNodeFolder = "folder"
)

// CodeNode is a node of the generated code skeleton tree.
type CodeNode struct {
	Name     string     `json:"name"`
	Kind     string     `json:"type"`
	Path     string     `json:"path,omitempty"`
	Content  string     `json:"content,omitempty"`
	Children []CodeNode `json:"children,omitempty"`
}

// CodeFile is a file of a generated code skeleton.
type CodeFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// CodeFolder is a folder of a generated code skeleton, addressed by path.
type CodeFolder struct {
	Path  string     `json:"path"`
	Files []CodeFile `json:"files"`
}

// CodeSkeleton is the flat folder listing returned by the generative service.
type CodeSkeleton struct {
	Language   string       `json:"language"`
	RootFolder string       `json:"root_folder"`
	Folders    []CodeFolder `json:"folders"`
}

// Clone returns a deep copy of the results. Nil collections stay nil.
func (r Results) Clone() Results {
	c := r
	if r.ValidationReport != nil {
		vr := *r.ValidationReport
		vr.Gaps = cloneSlice(r.ValidationReport.Gaps)
		c.ValidationReport = &vr
	}
	c.GapFixes = cloneSlice(r.GapFixes)
	c.Epics = cloneSlice(r.Epics)
	for i := range c.Epics {
		c.Epics[i].EditedAt = cloneTime(c.Epics[i].EditedAt)
	}
	c.UserStories = cloneSlice(r.UserStories)
	for i := range c.UserStories {
		c.UserStories[i] = c.UserStories[i].Clone()
	}
	c.FunctionalTests = cloneSlice(r.FunctionalTests)
	for i := range c.FunctionalTests {
		t := &c.FunctionalTests[i]
		t.Preconditions = cloneSlice(t.Preconditions)
		t.TestSteps = cloneSlice(t.TestSteps)
		t.ExpectedResults = cloneSlice(t.ExpectedResults)
		t.SourceChunks = cloneSlice(t.SourceChunks)
		t.RegeneratedAt = cloneTime(t.RegeneratedAt)
	}
	c.GherkinTests = cloneSlice(r.GherkinTests)
	for i := range c.GherkinTests {
		g := &c.GherkinTests[i]
		g.Given = cloneSlice(g.Given)
		g.When = cloneSlice(g.When)
		g.Then = cloneSlice(g.Then)
		g.SourceChunks = cloneSlice(g.SourceChunks)
		g.RegeneratedAt = cloneTime(g.RegeneratedAt)
	}
	c.Entities = cloneSlice(r.Entities)
	for i := range c.Entities {
		e := &c.Entities[i]
		e.Fields = cloneSlice(e.Fields)
		e.SourceStoryIDs = cloneSlice(e.SourceStoryIDs)
		e.RegeneratedAt = cloneTime(e.RegeneratedAt)
	}
	c.CodeTree = cloneCodeNodes(r.CodeTree)
	return c
}

// Clone returns a deep copy of the story.
func (s UserStory) Clone() UserStory {
	c := s
	c.AcceptanceCriteria = cloneSlice(s.AcceptanceCriteria)
	for i := range c.AcceptanceCriteria {
		c.AcceptanceCriteria[i].SourceChunks = cloneSlice(c.AcceptanceCriteria[i].SourceChunks)
	}
	c.SourceChunks = cloneSlice(s.SourceChunks)
	c.EditedAt = cloneTime(s.EditedAt)
	return c
}

func cloneCodeNodes(nodes []CodeNode) []CodeNode {
	if nodes == nil {
		return nil
	}
	out := make([]CodeNode, len(nodes))
	for i, n := range nodes {
		out[i] = n
		out[i].Children = cloneCodeNodes(n.Children)
	}
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
