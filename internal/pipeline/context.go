package pipeline

import (
	"fmt"

	"github.com/jonathan/brd-pipeline/internal/artifacts"
	"github.com/jonathan/brd-pipeline/internal/generation"
	"github.com/jonathan/brd-pipeline/internal/types"
)

// stageInput builds the generation input of a first-run stage from the job
// snapshot taken when the stage started.
func stageInput(job *types.Job, stage types.Stage) generation.Input {
	in := generation.Input{
		Instructions: job.Instructions,
		GapFixes:     job.AcceptedGapFixes(),
	}
	doc := job.Document
	r := &job.Results

	switch stage {
	case types.StageValidation:
		// Gap fixes are produced by this stage, never consumed.
		in.GapFixes = nil
		if doc != nil {
			in.Sections = doc.Sections
			in.Chunks = doc.Chunks
		}
	case types.StageEpics:
		if doc != nil {
			in.Chunks = doc.Chunks
		}
	case types.StageFunctionalTests, types.StageGherkinTests, types.StageDataModel:
		in.Stories = r.UserStories
		in.ParentIDs = storyIDList(r.UserStories)
	case types.StageCodeGeneration:
		in.Stories = r.UserStories
		in.Entities = r.Entities
	}
	return in
}

// moreInput builds the generation input of a generate-more request. Tests,
// scenarios and entities are generated for the stories in scope; epics may
// reference any existing epic.
func moreInput(job *types.Job, stage types.Stage, instructions string, scope artifacts.Scope) generation.Input {
	in := generation.Input{
		Instructions: instructions,
		GapFixes:     job.AcceptedGapFixes(),
		Append:       true,
	}
	if in.Instructions == "" {
		in.Instructions = job.Instructions
	}
	r := &job.Results

	switch stage {
	case types.StageEpics:
		if job.Document != nil {
			in.Chunks = job.Document.Chunks
		}
		for _, e := range r.Epics {
			in.ParentIDs = append(in.ParentIDs, e.ID)
			in.Existing = append(in.Existing, fmt.Sprintf("%s: %s", e.ID, e.Name))
		}
		for _, s := range r.UserStories {
			in.Existing = append(in.Existing, fmt.Sprintf("%s (%s): %s", s.ID, s.EpicID, s.Title))
		}
	case types.StageFunctionalTests:
		in.Stories = scopedStories(r, scope)
		in.ParentIDs = storyIDList(r.UserStories)
		for _, t := range r.FunctionalTests {
			if scope.Admits(t.StoryID) {
				in.Existing = append(in.Existing, fmt.Sprintf("%s (%s): %s", t.ID, t.StoryID, t.Title))
			}
		}
	case types.StageGherkinTests:
		in.Stories = scopedStories(r, scope)
		in.ParentIDs = storyIDList(r.UserStories)
		for _, sc := range r.GherkinTests {
			if scope.Admits(sc.StoryID) {
				in.Existing = append(in.Existing, fmt.Sprintf("%s (%s): %s", sc.ID, sc.StoryID, sc.ScenarioName))
			}
		}
	case types.StageDataModel:
		in.Stories = scopedStories(r, scope)
		for _, e := range r.Entities {
			in.Existing = append(in.Existing, e.Name)
		}
	}
	return in
}

// storyTestsInput builds the input for regenerating one story's tests.
func storyTestsInput(job *types.Job, story types.UserStory) generation.Input {
	return generation.Input{
		Instructions: job.Instructions,
		GapFixes:     job.AcceptedGapFixes(),
		Stories:      []types.UserStory{story},
		ParentIDs:    []string{story.ID},
	}
}

// storyEntitiesInput builds the input for regenerating the entities fed by
// the affected stories.
func storyEntitiesInput(job *types.Job, affected []string) generation.Input {
	return generation.Input{
		Instructions: job.Instructions,
		GapFixes:     job.AcceptedGapFixes(),
		Stories:      scopedStories(&job.Results, artifacts.NewScope(affected)),
		ParentIDs:    affected,
	}
}

func scopedStories(r *types.Results, scope artifacts.Scope) []types.UserStory {
	var stories []types.UserStory
	for _, s := range r.UserStories {
		if scope.Admits(s.ID) {
			stories = append(stories, s)
		}
	}
	return stories
}

func storyIDList(stories []types.UserStory) []string {
	ids := make([]string, len(stories))
	for i, s := range stories {
		ids[i] = s.ID
	}
	return ids
}
