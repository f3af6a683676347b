package artifacts

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/brd-pipeline/internal/types"
)

// StoryFields are the user-editable content fields of a story.
type StoryFields struct {
	Title   string
	Role    string
	Goal    string
	Benefit string
}

// EditStory replaces a story's content fields and flags it for regeneration.
// Downstream tests are left untouched until explicitly regenerated.
func EditStory(r *types.Results, storyID string, fields StoryFields, now time.Time) error {
	story := findStory(r, storyID)
	if story == nil {
		return &NotFoundError{Kind: NodeStory, ID: storyID}
	}
	story.Title = fields.Title
	story.Role = fields.Role
	story.Goal = fields.Goal
	story.Benefit = fields.Benefit
	markEdited(story, now)
	return nil
}

// EditAcceptanceCriteria replaces a story's acceptance criteria. Criteria
// whose text is unchanged keep their id and source chunks.
func EditAcceptanceCriteria(r *types.Results, storyID string, criteria []string, alloc *IDAllocator, now time.Time) error {
	story := findStory(r, storyID)
	if story == nil {
		return &NotFoundError{Kind: NodeStory, ID: storyID}
	}

	previous := make(map[string]types.AcceptanceCriterion, len(story.AcceptanceCriteria))
	for _, ac := range story.AcceptanceCriteria {
		previous[ac.Text] = ac
	}

	updated := make([]types.AcceptanceCriterion, 0, len(criteria))
	for _, text := range criteria {
		text = strings.TrimSpace(text)
		if ac, ok := previous[text]; ok {
			updated = append(updated, ac)
			delete(previous, text)
			continue
		}
		updated = append(updated, types.AcceptanceCriterion{ID: alloc.Next(PrefixCriterion), Text: text})
	}
	story.AcceptanceCriteria = updated
	markEdited(story, now)
	return nil
}

func markEdited(story *types.UserStory, now time.Time) {
	story.RegenerationNeeded = true
	t := now
	story.EditedAt = &t
}

// EditEpic updates an epic's name and description. No staleness is
// propagated.
func EditEpic(r *types.Results, epicID, name, description string, now time.Time) error {
	for i := range r.Epics {
		if r.Epics[i].ID == epicID {
			r.Epics[i].Name = name
			r.Epics[i].Description = description
			t := now
			r.Epics[i].EditedAt = &t
			return nil
		}
	}
	return &NotFoundError{Kind: NodeEpic, ID: epicID}
}

// UpdateGapFix records the user's decision on a gap fix.
func UpdateGapFix(r *types.Results, gapID, action, finalText string) error {
	for i := range r.GapFixes {
		if r.GapFixes[i].GapID != gapID {
			continue
		}
		r.GapFixes[i].UserAction = action
		if action == types.GapActionEdit {
			r.GapFixes[i].FinalText = finalText
		} else {
			r.GapFixes[i].FinalText = ""
		}
		return nil
	}
	return &NotFoundError{Kind: NodeGapFix, ID: gapID}
}

// DeleteEpic removes an epic with its stories and their tests.
func DeleteEpic(r *types.Results, epicID string) (Removal, error) {
	return CascadeDelete(r, Node{NodeEpic, epicID})
}

// DeleteStory removes a story with its tests and scenarios.
func DeleteStory(r *types.Results, storyID string) (Removal, error) {
	return CascadeDelete(r, Node{NodeStory, storyID})
}

// DeleteFunctionalTest removes one functional test.
func DeleteFunctionalTest(r *types.Results, testID string) (Removal, error) {
	return CascadeDelete(r, Node{NodeFunctionalTest, testID})
}

// DeleteGherkinScenario removes one Gherkin scenario.
func DeleteGherkinScenario(r *types.Results, scenarioID string) (Removal, error) {
	return CascadeDelete(r, Node{NodeGherkin, scenarioID})
}

// StoriesForEpic returns the stories whose epic_id is epicID.
func StoriesForEpic(r *types.Results, epicID string) []types.UserStory {
	var stories []types.UserStory
	for _, s := range r.UserStories {
		if s.EpicID == epicID {
			stories = append(stories, s)
		}
	}
	return stories
}

// Risk levels of an impact report
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

const (
	secondsPerTest   = 10
	secondsPerEntity = 15
)

// ImpactReport estimates what regenerating a story's downstream artifacts
// would touch.
type ImpactReport struct {
	StoryID            string   `json:"story_id"`
	RegenerationNeeded bool     `json:"regeneration_needed"`
	FunctionalTests    []string `json:"functional_tests"`
	GherkinTests       []string `json:"gherkin_tests"`
	Entities           []string `json:"entities"`
	EstimatedSeconds   int      `json:"estimated_seconds"`
	Risk               string   `json:"risk"`
}

// Impact reports the tests and entities derived from a story.
func Impact(r *types.Results, storyID string) (ImpactReport, error) {
	story := findStory(r, storyID)
	if story == nil {
		return ImpactReport{}, &NotFoundError{Kind: NodeStory, ID: storyID}
	}

	report := ImpactReport{
		StoryID:            storyID,
		RegenerationNeeded: story.RegenerationNeeded,
		FunctionalTests:    []string{},
		GherkinTests:       []string{},
		Entities:           []string{},
	}
	g := BuildGraph(r)
	for _, child := range g.Children(Node{NodeStory, storyID}) {
		switch child.Kind {
		case NodeFunctionalTest:
			report.FunctionalTests = append(report.FunctionalTests, child.ID)
		case NodeGherkin:
			report.GherkinTests = append(report.GherkinTests, child.ID)
		}
	}
	for _, entity := range g.Feeds(Node{NodeStory, storyID}) {
		report.Entities = append(report.Entities, entity.ID)
	}

	tests := len(report.FunctionalTests) + len(report.GherkinTests)
	entities := len(report.Entities)
	report.EstimatedSeconds = tests*secondsPerTest + entities*secondsPerEntity
	switch {
	case tests > 10 || entities > 5:
		report.Risk = RiskHigh
	case tests > 5 || entities > 3:
		report.Risk = RiskMedium
	default:
		report.Risk = RiskLow
	}
	return report, nil
}

// CheckIntegrity verifies that every story names an existing epic and every
// test and scenario names an existing story.
func CheckIntegrity(r *types.Results) error {
	epics := make(map[string]bool, len(r.Epics))
	for _, e := range r.Epics {
		epics[e.ID] = true
	}
	stories := make(map[string]bool, len(r.UserStories))
	for _, s := range r.UserStories {
		stories[s.ID] = true
	}

	var violations []string
	for _, s := range r.UserStories {
		if !epics[s.EpicID] {
			violations = append(violations, fmt.Sprintf("story %s references missing epic %s", s.ID, s.EpicID))
		}
	}
	for _, t := range r.FunctionalTests {
		if !stories[t.StoryID] {
			violations = append(violations, fmt.Sprintf("functional test %s references missing story %s", t.ID, t.StoryID))
		}
	}
	for _, sc := range r.GherkinTests {
		if !stories[sc.StoryID] {
			violations = append(violations, fmt.Sprintf("gherkin scenario %s references missing story %s", sc.ID, sc.StoryID))
		}
	}
	if len(violations) > 0 {
		return &ReferentialIntegrityError{Violations: violations}
	}
	return nil
}

func findStory(r *types.Results, storyID string) *types.UserStory {
	for i := range r.UserStories {
		if r.UserStories[i].ID == storyID {
			return &r.UserStories[i]
		}
	}
	return nil
}
