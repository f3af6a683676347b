// Package pipeline sequences the generation stages of a job and runs stage
// and side tasks in the background.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/brd-pipeline/internal/artifacts"
	"github.com/jonathan/brd-pipeline/internal/generation"
	"github.com/jonathan/brd-pipeline/internal/jobs"
	"github.com/jonathan/brd-pipeline/internal/types"
)

// ErrShuttingDown is returned for requests received after Shutdown started.
var ErrShuttingDown = errors.New("pipeline is shutting down")

// Generator produces a validated result for one generation call.
type Generator interface {
	Invoke(ctx context.Context, kind generation.Kind, in generation.Input) (generation.Result, error)
}

// Progress event types
const (
	EventStarted   = "started"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// ProgressEvent represents a progress update of a stage or side task
type ProgressEvent struct {
	JobID   string      `json:"job_id"`
	Stage   types.Stage `json:"stage,omitempty"`
	Task    string      `json:"task"`
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Added   int         `json:"added,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// taskStage names stage tasks in progress events.
const taskStage = "stage"

// Orchestrator schedules stage transitions and side tasks. Tasks outlive the
// request that started them and are awaited by Shutdown.
type Orchestrator struct {
	registry   *jobs.Registry
	gen        Generator
	now        func() time.Time
	onProgress ProgressCallback

	mu      sync.RWMutex
	closing bool
	tasks   errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNow overrides the time source used for records.
func WithNow(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithProgress registers a progress callback.
func WithProgress(cb ProgressCallback) Option {
	return func(o *Orchestrator) { o.onProgress = cb }
}

// New creates an Orchestrator over the job registry and generator.
func New(registry *jobs.Registry, gen Generator, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		registry: registry,
		gen:      gen,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry returns the job registry the orchestrator works on.
func (o *Orchestrator) Registry() *jobs.Registry {
	return o.registry
}

// RequestTransition validates and starts a stage transition. The stage runs
// in the background; the returned job is the snapshot with the new running
// record. A transition to completed is recorded immediately.
func (o *Orchestrator) RequestTransition(ctx context.Context, jobID string, target types.Stage) (TransitionResult, error) {
	if err := ctx.Err(); err != nil {
		return TransitionResult{}, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closing {
		return TransitionResult{}, ErrShuttingDown
	}

	result, release, err := o.beginTransition(jobID, target)
	if err != nil {
		return TransitionResult{}, err
	}
	if release == nil {
		return result, nil
	}
	if target == types.StageCompleted {
		release()
		log.Printf("[pipeline] job %s completed", jobID)
		o.emit(ProgressEvent{JobID: jobID, Stage: target, Task: taskStage, Type: EventCompleted, Message: "job completed"})
		return result, nil
	}

	snapshot := result.Job
	o.tasks.Go(func() error {
		defer release()
		o.runStage(o.ctx, snapshot, target)
		return nil
	})
	return result, nil
}

func (o *Orchestrator) runStage(ctx context.Context, job *types.Job, stage types.Stage) {
	def := StageRegistry[stage]
	log.Printf("[pipeline] job %s: stage %s started", job.ID, stage)
	o.emit(ProgressEvent{JobID: job.ID, Stage: stage, Task: taskStage, Type: EventStarted, Message: fmt.Sprintf("%s started", stage)})

	var stats artifacts.Stats
	res, err := o.gen.Invoke(ctx, def.Kind, stageInput(job, stage))
	if err == nil {
		_, err = o.registry.Update(job.ID, func(j *types.Job) error {
			rec := j.LatestRecordFor(stage)
			if rec == nil || rec.Status != types.StageStatusRunning {
				return fmt.Errorf("stage %s is not running", stage)
			}
			var mergeErr error
			stats, mergeErr = mergeResult(&j.Results, res, artifacts.ModeSet, nil)
			if mergeErr != nil {
				return mergeErr
			}
			o.finishRecord(rec, types.StageStatusCompleted, "")
			j.Status = types.JobStatusPending
			return nil
		})
	}
	if err != nil {
		o.failStage(job.ID, stage, err)
		return
	}

	log.Printf("[pipeline] job %s: stage %s completed (%d added, %d dropped)", job.ID, stage, stats.Added, stats.Dropped)
	o.emit(ProgressEvent{JobID: job.ID, Stage: stage, Task: taskStage, Type: EventCompleted, Message: fmt.Sprintf("%s completed", stage), Added: stats.Added})
}

func (o *Orchestrator) failStage(jobID string, stage types.Stage, cause error) {
	log.Printf("[pipeline] job %s: stage %s failed: %v", jobID, stage, cause)
	_, err := o.registry.Update(jobID, func(j *types.Job) error {
		if rec := j.LatestRecordFor(stage); rec != nil && rec.Status == types.StageStatusRunning {
			o.finishRecord(rec, types.StageStatusFailed, cause.Error())
		}
		j.Status = types.JobStatusFailed
		j.Error = cause.Error()
		return nil
	})
	if err != nil {
		log.Printf("[pipeline] job %s: failed to record failure: %v", jobID, err)
	}
	o.emit(ProgressEvent{JobID: jobID, Stage: stage, Task: taskStage, Type: EventFailed, Message: cause.Error()})
}

func (o *Orchestrator) finishRecord(rec *types.StageRecord, status, errMsg string) {
	now := o.now().UTC()
	duration := now.Sub(rec.StartedAt).Milliseconds()
	rec.Status = status
	rec.CompletedAt = &now
	rec.DurationMs = &duration
	rec.Error = errMsg
}

// mergeResult folds a generation result into the job's artifacts.
func mergeResult(r *types.Results, res generation.Result, mode artifacts.Mode, scope artifacts.Scope) (artifacts.Stats, error) {
	alloc := artifacts.NewIDAllocator(r)
	switch v := res.(type) {
	case *generation.ValidationResult:
		return artifacts.MergeValidation(r, v), nil
	case *generation.EpicsResult:
		return artifacts.MergeEpics(r, v, mode, scope, alloc), nil
	case *generation.FunctionalTestsResult:
		return artifacts.MergeFunctionalTests(r, v.Tests, mode, scope, alloc), nil
	case *generation.GherkinResult:
		return artifacts.MergeGherkin(r, v.Scenarios, mode, scope, alloc), nil
	case *generation.DataModelResult:
		return artifacts.MergeEntities(r, v, mode, scope), nil
	case *generation.CodeSkeletonResult:
		return artifacts.MergeCodeSkeleton(r, v), nil
	default:
		return artifacts.Stats{}, fmt.Errorf("unexpected result type %T", res)
	}
}

// Shutdown stops accepting new work and waits for running tasks. When ctx
// ends first, running tasks are cancelled and ctx's error is returned once
// they have exited.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closing = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = o.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
		log.Printf("[pipeline] shutdown deadline reached, cancelling running tasks")
		o.cancel()
		<-done
		return ctx.Err()
	}
}

func (o *Orchestrator) emit(event ProgressEvent) {
	if o.onProgress != nil {
		o.onProgress(event)
	}
}
