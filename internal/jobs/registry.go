// Package jobs provides the in-memory job registry. Each job has its own
// writer lock and in-flight token; readers load an immutable snapshot
// without taking the job's lock.
package jobs

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/brd-pipeline/internal/artifacts"
	"github.com/jonathan/brd-pipeline/internal/types"
)

// ErrClosed is returned by Create after the registry has been closed.
var ErrClosed = errors.New("job registry is closed")

type entry struct {
	mu       sync.Mutex
	inFlight atomic.Bool
	snapshot atomic.Pointer[types.Job]
}

// Registry holds every job of the process.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*entry
	closed bool
	now    func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithNow overrides the registry's time source.
func WithNow(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		jobs: make(map[string]*entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateParams are the inputs of a new job.
type CreateParams struct {
	Filename     string
	Instructions string
	Artifacts    types.ArtifactsConfig
	Document     *types.Document
}

// Create registers a new pending job that has not entered any stage.
func (r *Registry) Create(p CreateParams) (*types.Job, error) {
	now := r.now().UTC()
	job := &types.Job{
		ID:           uuid.New().String(),
		Status:       types.JobStatusPending,
		CurrentStage: types.StageNone,
		StageHistory: []types.StageRecord{},
		Artifacts:    p.Artifacts,
		Instructions: p.Instructions,
		Filename:     p.Filename,
		Results:      emptyResults(),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
		Document:     p.Document,
	}

	e := &entry{}
	e.snapshot.Store(job)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	r.jobs[job.ID] = e
	return job, nil
}

func emptyResults() types.Results {
	return types.Results{
		GapFixes:        []types.GapFix{},
		Epics:           []types.Epic{},
		UserStories:     []types.UserStory{},
		FunctionalTests: []types.FunctionalTest{},
		GherkinTests:    []types.GherkinScenario{},
		Entities:        []types.Entity{},
		CodeTree:        []types.CodeNode{},
	}
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return e, nil
}

// Get returns the current snapshot of a job. The snapshot must not be
// modified.
func (r *Registry) Get(id string) (*types.Job, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.snapshot.Load(), nil
}

// List returns summaries of every job, newest first.
func (r *Registry) List() []types.JobSummary {
	r.mu.RLock()
	summaries := make([]types.JobSummary, 0, len(r.jobs))
	for _, e := range r.jobs {
		summaries = append(summaries, e.snapshot.Load().Summary())
	}
	r.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries
}

// Update applies fn to a private copy of the job and publishes it. If fn
// fails, or the result breaks referential integrity, nothing is published.
func (r *Registry) Update(id string, fn func(job *types.Job) error) (*types.Job, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.snapshot.Load().Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	return r.publish(e, next)
}

// Begin runs fn under the job's writer lock together with the job's
// in-flight state. When fn reports start, the mutation is published and the
// in-flight token is taken; release must be called once the task ends. When
// fn does not start, the job is left untouched and release is nil.
func (r *Registry) Begin(id string, fn func(job *types.Job, busy bool) (start bool, err error)) (*types.Job, func(), error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.snapshot.Load()
	next := current.Clone()
	start, err := fn(next, e.inFlight.Load())
	if err != nil {
		return nil, nil, err
	}
	if !start {
		return current, nil, nil
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, nil, &BusyError{JobID: id}
	}

	published, err := r.publish(e, next)
	if err != nil {
		e.inFlight.Store(false)
		return nil, nil, err
	}

	var once sync.Once
	release := func() {
		once.Do(func() { e.inFlight.Store(false) })
	}
	return published, release, nil
}

// publish must be called with e.mu held.
func (r *Registry) publish(e *entry, next *types.Job) (*types.Job, error) {
	if err := artifacts.CheckIntegrity(&next.Results); err != nil {
		return nil, err
	}
	next.Version = e.snapshot.Load().Version + 1
	next.UpdatedAt = r.now().UTC()
	e.snapshot.Store(next)
	return next, nil
}

// InFlight reports whether a task currently holds the job's token.
func (r *Registry) InFlight(id string) bool {
	e, err := r.lookup(id)
	if err != nil {
		return false
	}
	return e.inFlight.Load()
}

// Delete removes a job. A job with a task in flight cannot be deleted.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	if e.inFlight.Load() {
		return &BusyError{JobID: id}
	}
	delete(r.jobs, id)
	return nil
}

// Len returns the number of jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Close drops every job and refuses new ones.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.jobs = make(map[string]*entry)
}
