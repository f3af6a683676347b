package artifacts

import "github.com/jonathan/brd-pipeline/internal/types"

// sampleResults has two epics; epic_1 owns story_1 and story_2, epic_2 owns
// story_3. story_1 has two functional tests and one scenario.
func sampleResults() *types.Results {
	return &types.Results{
		Epics: []types.Epic{
			{ID: "epic_1", Name: "Billing"},
			{ID: "epic_2", Name: "Reporting"},
		},
		UserStories: []types.UserStory{
			{ID: "story_1", EpicID: "epic_1", Title: "Pay invoice", Role: "customer", Goal: "pay", Benefit: "speed",
				AcceptanceCriteria: []types.AcceptanceCriterion{{ID: "ac_1", Text: "card accepted"}, {ID: "ac_2", Text: "receipt sent"}}},
			{ID: "story_2", EpicID: "epic_1", Title: "Refund invoice"},
			{ID: "story_3", EpicID: "epic_2", Title: "Monthly report"},
		},
		FunctionalTests: []types.FunctionalTest{
			{ID: "test_1", StoryID: "story_1", Title: "Pay by card"},
			{ID: "test_2", StoryID: "story_1", Title: "Pay declined"},
			{ID: "test_3", StoryID: "story_2", Title: "Refund"},
			{ID: "test_4", StoryID: "story_3", Title: "Report totals"},
		},
		GherkinTests: []types.GherkinScenario{
			{ID: "gherkin_1", StoryID: "story_1", ScenarioName: "Successful payment"},
			{ID: "gherkin_2", StoryID: "story_3", ScenarioName: "Report generated"},
		},
		Entities: []types.Entity{
			{Name: "Invoice", SourceStoryIDs: []string{"story_1", "story_2"}},
			{Name: "Report", SourceStoryIDs: []string{"story_3"}},
		},
	}
}

func testIDs(r *types.Results) []string {
	ids := []string{}
	for _, t := range r.FunctionalTests {
		ids = append(ids, t.ID)
	}
	return ids
}

func scenarioIDs(r *types.Results) []string {
	ids := []string{}
	for _, s := range r.GherkinTests {
		ids = append(ids, s.ID)
	}
	return ids
}
