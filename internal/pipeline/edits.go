package pipeline

import (
	"log"

	"github.com/jonathan/brd-pipeline/internal/artifacts"
	"github.com/jonathan/brd-pipeline/internal/types"
)

// Edits and deletes run synchronously under the job's writer lock. They are
// allowed while a task is in flight; a running task merges into whatever
// results exist when it finishes.

// UpdateGapFix records the user's decision on a validation gap fix.
func (o *Orchestrator) UpdateGapFix(jobID, gapID string, req types.UpdateGapFixRequest) (*types.Job, error) {
	return o.registry.Update(jobID, func(j *types.Job) error {
		return artifacts.UpdateGapFix(&j.Results, gapID, req.Action, req.FinalText)
	})
}

// EditEpic updates an epic's name and description.
func (o *Orchestrator) EditEpic(jobID, epicID string, req types.UpdateEpicRequest) (*types.Job, error) {
	return o.registry.Update(jobID, func(j *types.Job) error {
		return artifacts.EditEpic(&j.Results, epicID, req.Name, req.Description, o.now().UTC())
	})
}

// EditStory replaces a story's content and flags it for regeneration.
func (o *Orchestrator) EditStory(jobID, storyID string, req types.UpdateStoryRequest) (*types.Job, error) {
	job, err := o.registry.Update(jobID, func(j *types.Job) error {
		fields := artifacts.StoryFields{Title: req.Title, Role: req.Role, Goal: req.Goal, Benefit: req.Benefit}
		return artifacts.EditStory(&j.Results, storyID, fields, o.now().UTC())
	})
	if err == nil {
		log.Printf("[pipeline] job %s: story %s edited, regeneration needed", jobID, storyID)
	}
	return job, err
}

// EditAcceptanceCriteria replaces a story's acceptance criteria and flags it
// for regeneration.
func (o *Orchestrator) EditAcceptanceCriteria(jobID, storyID string, req types.UpdateAcceptanceCriteriaRequest) (*types.Job, error) {
	job, err := o.registry.Update(jobID, func(j *types.Job) error {
		alloc := artifacts.NewIDAllocator(&j.Results)
		return artifacts.EditAcceptanceCriteria(&j.Results, storyID, req.Criteria, alloc, o.now().UTC())
	})
	if err == nil {
		log.Printf("[pipeline] job %s: acceptance criteria of %s edited, regeneration needed", jobID, storyID)
	}
	return job, err
}

// deleters are the artifact kinds a user can delete.
var deleters = map[artifacts.NodeKind]func(*types.Results, string) (artifacts.Removal, error){
	artifacts.NodeEpic:           artifacts.DeleteEpic,
	artifacts.NodeStory:          artifacts.DeleteStory,
	artifacts.NodeFunctionalTest: artifacts.DeleteFunctionalTest,
	artifacts.NodeGherkin:        artifacts.DeleteGherkinScenario,
}

// DeleteArtifact removes one artifact and everything it owns.
func (o *Orchestrator) DeleteArtifact(jobID string, node artifacts.Node) (*types.Job, artifacts.Removal, error) {
	del, ok := deleters[node.Kind]
	if !ok {
		return nil, artifacts.Removal{}, &artifacts.NotFoundError{Kind: node.Kind, ID: node.ID}
	}
	var removal artifacts.Removal
	job, err := o.registry.Update(jobID, func(j *types.Job) error {
		var err error
		removal, err = del(&j.Results, node.ID)
		return err
	})
	if err != nil {
		return nil, artifacts.Removal{}, err
	}
	log.Printf("[pipeline] job %s: deleted %s (%d artifacts removed)", jobID, node, removal.Count())
	return job, removal, nil
}

// Impact reports what regenerating a story's derived artifacts would touch.
func (o *Orchestrator) Impact(jobID, storyID string) (artifacts.ImpactReport, error) {
	job, err := o.registry.Get(jobID)
	if err != nil {
		return artifacts.ImpactReport{}, err
	}
	return artifacts.Impact(&job.Results, storyID)
}

// EpicStories returns the stories currently assigned to an epic.
func (o *Orchestrator) EpicStories(jobID, epicID string) ([]types.UserStory, error) {
	job, err := o.registry.Get(jobID)
	if err != nil {
		return nil, err
	}
	for _, e := range job.Results.Epics {
		if e.ID == epicID {
			stories := artifacts.StoriesForEpic(&job.Results, epicID)
			if stories == nil {
				stories = []types.UserStory{}
			}
			return stories, nil
		}
	}
	return nil, &artifacts.NotFoundError{Kind: artifacts.NodeEpic, ID: epicID}
}
