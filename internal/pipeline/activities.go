package pipeline

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/brd-pipeline/internal/artifacts"
	"github.com/jonathan/brd-pipeline/internal/generation"
	"github.com/jonathan/brd-pipeline/internal/jobs"
	"github.com/jonathan/brd-pipeline/internal/types"
)

// appendableStages may be extended with generate-more.
var appendableStages = map[types.Stage]bool{
	types.StageEpics:           true,
	types.StageFunctionalTests: true,
	types.StageGherkinTests:    true,
	types.StageDataModel:       true,
}

// activityTask is the body of a side task. It returns the number of items
// added.
type activityTask func(ctx context.Context, job *types.Job) (int, error)

// startActivity runs check under the job's lock, marks the job running with
// a fresh activity record and runs task in the background. The job status
// in place before the activity is restored when it ends.
func (o *Orchestrator) startActivity(ctx context.Context, jobID string, activity types.ActivityRecord, check func(job *types.Job) error, task activityTask) (*types.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closing {
		return nil, ErrShuttingDown
	}

	var previous string
	job, release, err := o.registry.Begin(jobID, func(j *types.Job, busy bool) (bool, error) {
		if err := check(j); err != nil {
			return false, err
		}
		if busy {
			return false, &jobs.BusyError{JobID: j.ID}
		}
		previous = j.Status
		activity.Status = types.StageStatusRunning
		activity.StartedAt = o.now().UTC()
		j.Activity = &activity
		j.Status = types.JobStatusRunning
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	o.tasks.Go(func() error {
		defer release()
		log.Printf("[pipeline] job %s: %s started", jobID, activity.Kind)
		o.emit(ProgressEvent{JobID: jobID, Stage: activity.Stage, Task: activity.Kind, Type: EventStarted, Message: fmt.Sprintf("%s started", activity.Kind)})

		added, err := task(o.ctx, job)
		o.finishActivity(jobID, previous, activity.Kind, activity.Stage, added, err)
		return nil
	})
	return job, nil
}

func (o *Orchestrator) finishActivity(jobID, previous, kind string, stage types.Stage, added int, cause error) {
	_, err := o.registry.Update(jobID, func(j *types.Job) error {
		if j.Activity != nil {
			now := o.now().UTC()
			j.Activity.CompletedAt = &now
			j.Activity.Added = added
			if cause != nil {
				j.Activity.Status = types.StageStatusFailed
				j.Activity.Error = cause.Error()
			} else {
				j.Activity.Status = types.StageStatusCompleted
			}
		}
		j.Status = previous
		return nil
	})
	if err != nil {
		log.Printf("[pipeline] job %s: failed to record %s outcome: %v", jobID, kind, err)
	}

	if cause != nil {
		log.Printf("[pipeline] job %s: %s failed: %v", jobID, kind, cause)
		o.emit(ProgressEvent{JobID: jobID, Stage: stage, Task: kind, Type: EventFailed, Message: cause.Error()})
		return
	}
	log.Printf("[pipeline] job %s: %s completed (%d added)", jobID, kind, added)
	o.emit(ProgressEvent{JobID: jobID, Stage: stage, Task: kind, Type: EventCompleted, Message: fmt.Sprintf("%s completed", kind), Added: added})
}

// GenerateMore appends new items to an already completed stage. Context ids
// restrict the append to the listed epics (for epics) or stories (for tests,
// scenarios and entities).
func (o *Orchestrator) GenerateMore(ctx context.Context, jobID string, req types.GenerateMoreRequest) (*types.Job, error) {
	stage := req.Stage
	scope := artifacts.NewScope(req.ContextIDs)

	check := func(j *types.Job) error {
		if !appendableStages[stage] {
			return &InvalidTransitionError{JobID: j.ID, Current: j.CurrentStage, Target: stage, Reason: "stage does not support generating more"}
		}
		if !j.Artifacts.Enabled(stage) || !j.StageCompleted(stage) {
			return &DependencyError{Stage: stage, MissingDependencies: []types.Stage{stage}}
		}
		return checkContextIDs(j, stage, req.ContextIDs)
	}

	task := func(ctx context.Context, job *types.Job) (int, error) {
		def := StageRegistry[stage]
		res, err := o.gen.Invoke(ctx, def.Kind, moreInput(job, stage, req.Instructions, scope))
		if err != nil {
			return 0, err
		}
		var stats artifacts.Stats
		_, err = o.registry.Update(jobID, func(j *types.Job) error {
			var mergeErr error
			stats, mergeErr = mergeResult(&j.Results, res, artifacts.ModeAppend, scope)
			return mergeErr
		})
		return stats.Added, err
	}

	activity := types.ActivityRecord{Kind: types.ActivityGenerateMore, Stage: stage}
	return o.startActivity(ctx, jobID, activity, check, task)
}

func checkContextIDs(j *types.Job, stage types.Stage, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	graph := artifacts.BuildGraph(&j.Results)
	kind := artifacts.NodeStory
	if stage == types.StageEpics {
		kind = artifacts.NodeEpic
	}
	for _, id := range ids {
		if !graph.Has(artifacts.Node{Kind: kind, ID: id}) {
			return &artifacts.NotFoundError{Kind: kind, ID: id}
		}
	}
	return nil
}

// RegenerateStoryTests replaces one story's functional tests and Gherkin
// scenarios. Only kinds whose stage has completed are regenerated; both run
// concurrently.
func (o *Orchestrator) RegenerateStoryTests(ctx context.Context, jobID, storyID string) (*types.Job, error) {
	var kinds []generation.Kind

	check := func(j *types.Job) error {
		if err := checkStory(j, storyID); err != nil {
			return err
		}
		kinds = kinds[:0]
		if j.StageCompleted(types.StageFunctionalTests) {
			kinds = append(kinds, generation.KindFunctionalTests)
		}
		if j.StageCompleted(types.StageGherkinTests) {
			kinds = append(kinds, generation.KindGherkinTests)
		}
		if len(kinds) == 0 {
			return &DependencyError{
				Stage:               types.StageFunctionalTests,
				MissingDependencies: []types.Stage{types.StageFunctionalTests, types.StageGherkinTests},
			}
		}
		return nil
	}

	task := func(ctx context.Context, job *types.Job) (int, error) {
		story := types.UserStory{ID: storyID}
		for _, s := range job.Results.UserStories {
			if s.ID == storyID {
				story = s
				break
			}
		}
		in := storyTestsInput(job, story)

		var (
			tests     []types.FunctionalTest
			scenarios []types.GherkinScenario
		)
		g, gctx := errgroup.WithContext(ctx)
		for _, kind := range kinds {
			kind := kind
			g.Go(func() error {
				res, err := o.gen.Invoke(gctx, kind, in)
				if err != nil {
					return fmt.Errorf("%s: %w", kind, err)
				}
				switch v := res.(type) {
				case *generation.FunctionalTestsResult:
					tests = v.Tests
				case *generation.GherkinResult:
					scenarios = v.Scenarios
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}

		var stats artifacts.Stats
		_, err := o.registry.Update(jobID, func(j *types.Job) error {
			var replaceErr error
			stats, replaceErr = artifacts.ReplaceStoryTests(&j.Results, story, tests, scenarios, artifacts.NewIDAllocator(&j.Results), o.now().UTC())
			return replaceErr
		})
		return stats.Added, err
	}

	activity := types.ActivityRecord{Kind: types.ActivityRegenerateTests, TargetID: storyID}
	return o.startActivity(ctx, jobID, activity, check, task)
}

// RegenerateStoryEntities regenerates the entities fed by a story together
// with every other story flagged for regeneration.
func (o *Orchestrator) RegenerateStoryEntities(ctx context.Context, jobID, storyID string) (*types.Job, error) {
	check := func(j *types.Job) error {
		if err := checkStory(j, storyID); err != nil {
			return err
		}
		if !j.StageCompleted(types.StageDataModel) {
			return &DependencyError{Stage: types.StageDataModel, MissingDependencies: []types.Stage{types.StageDataModel}}
		}
		return nil
	}

	task := func(ctx context.Context, job *types.Job) (int, error) {
		affected := []string{storyID}
		for _, s := range job.Results.UserStories {
			if s.RegenerationNeeded && s.ID != storyID {
				affected = append(affected, s.ID)
			}
		}

		res, err := o.gen.Invoke(ctx, generation.KindDataModel, storyEntitiesInput(job, affected))
		if err != nil {
			return 0, err
		}
		dm, ok := res.(*generation.DataModelResult)
		if !ok {
			return 0, fmt.Errorf("unexpected result type %T", res)
		}

		var stats artifacts.Stats
		_, err = o.registry.Update(jobID, func(j *types.Job) error {
			stats = artifacts.ReplaceEntities(&j.Results, affected, dm, o.now().UTC())
			return nil
		})
		return stats.Added, err
	}

	activity := types.ActivityRecord{Kind: types.ActivityRegenerateEntities, Stage: types.StageDataModel, TargetID: storyID}
	return o.startActivity(ctx, jobID, activity, check, task)
}

func checkStory(j *types.Job, storyID string) error {
	for _, s := range j.Results.UserStories {
		if s.ID == storyID {
			return nil
		}
	}
	return &artifacts.NotFoundError{Kind: artifacts.NodeStory, ID: storyID}
}
