package pipeline

import (
	"fmt"

	"github.com/jonathan/brd-pipeline/internal/jobs"
	"github.com/jonathan/brd-pipeline/internal/types"
)

// TransitionOutcome reports what a transition request did.
type TransitionOutcome string

// Transition outcomes
const (
	OutcomeStarted          TransitionOutcome = "started"
	OutcomeAlreadyCompleted TransitionOutcome = "already_completed"
)

// TransitionResult is returned to the caller of a transition request.
type TransitionResult struct {
	JobID   string            `json:"job_id"`
	Stage   types.Stage       `json:"stage"`
	Outcome TransitionOutcome `json:"status"`
	Job     *types.Job        `json:"-"`
}

// InvalidTransitionError is returned when a target stage is out of order for
// the job's current position.
type InvalidTransitionError struct {
	JobID   string
	Current types.Stage
	Target  types.Stage
	Reason  string
}

func (e *InvalidTransitionError) Error() string {
	from := string(e.Current)
	if from == "" {
		from = "<none>"
	}
	return fmt.Sprintf("invalid transition for job %s from %s to %s: %s", e.JobID, from, e.Target, e.Reason)
}

// checkTransition applies the ordering rules to a job snapshot. It reports
// whether the target already completed.
func checkTransition(job *types.Job, target types.Stage) (alreadyCompleted bool, err error) {
	invalid := func(reason string) error {
		return &InvalidTransitionError{JobID: job.ID, Current: job.CurrentStage, Target: target, Reason: reason}
	}

	if target.Index() < 0 {
		return false, invalid("unknown stage")
	}
	if !job.Artifacts.Enabled(target) {
		return false, invalid("stage is not enabled for this job")
	}
	if job.StageCompleted(target) {
		return true, nil
	}

	latest := job.LatestRecord()
	if target == job.CurrentStage && latest != nil {
		switch latest.Status {
		case types.StageStatusFailed:
			return false, nil
		case types.StageStatusRunning:
			return false, &jobs.BusyError{JobID: job.ID}
		}
	}

	next, ok := NextStage(job.Artifacts, job.CurrentStage)
	if !ok || target != next {
		if ok {
			return false, invalid(fmt.Sprintf("next stage is %s", next))
		}
		return false, invalid("job has no further stages")
	}
	if latest != nil && latest.Status != types.StageStatusCompleted {
		return false, invalid(fmt.Sprintf("stage %s has not completed", job.CurrentStage))
	}
	// Order alone does not prove every dependency ran.
	if err := ValidateDependencies(job, target); err != nil {
		return false, err
	}
	return false, nil
}

// beginTransition atomically validates a transition and, on success, appends
// a running record and takes the job's in-flight token.
func (o *Orchestrator) beginTransition(jobID string, target types.Stage) (TransitionResult, func(), error) {
	result := TransitionResult{JobID: jobID, Stage: target}

	job, release, err := o.registry.Begin(jobID, func(job *types.Job, busy bool) (bool, error) {
		done, err := checkTransition(job, target)
		if err != nil {
			return false, err
		}
		if done {
			result.Outcome = OutcomeAlreadyCompleted
			return false, nil
		}
		if busy {
			return false, &jobs.BusyError{JobID: job.ID}
		}

		now := o.now().UTC()
		job.CurrentStage = target
		job.Error = ""
		rec := types.StageRecord{Stage: target, StartedAt: now}
		if target == types.StageCompleted {
			rec.Status = types.StageStatusCompleted
			rec.CompletedAt = &now
			var zero int64
			rec.DurationMs = &zero
			job.Status = types.JobStatusCompleted
		} else {
			rec.Status = types.StageStatusRunning
			job.Status = types.JobStatusRunning
		}
		job.StageHistory = append(job.StageHistory, rec)
		result.Outcome = OutcomeStarted
		return true, nil
	})
	if err != nil {
		return TransitionResult{}, nil, err
	}
	result.Job = job
	return result, release, nil
}
