package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathan/brd-pipeline/internal/generation"
	"github.com/jonathan/brd-pipeline/internal/jobs"
	"github.com/jonathan/brd-pipeline/internal/types"
	"github.com/stretchr/testify/require"
)

type outcome struct {
	res generation.Result
	err error
}

// fakeGenerator returns scripted outcomes per kind, repeating the last one.
// While gate is open (non-nil and not closed) every call blocks.
type fakeGenerator struct {
	mu       sync.Mutex
	outcomes map[generation.Kind][]outcome
	calls    map[generation.Kind]int
	inputs   map[generation.Kind][]generation.Input
	gate     chan struct{}
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		outcomes: make(map[generation.Kind][]outcome),
		calls:    make(map[generation.Kind]int),
		inputs:   make(map[generation.Kind][]generation.Input),
	}
}

func (g *fakeGenerator) on(kind generation.Kind, outcomes ...outcome) *fakeGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcomes[kind] = outcomes
	return g
}

func (g *fakeGenerator) hold() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gate = make(chan struct{})
}

func (g *fakeGenerator) releaseHold() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gate != nil {
		close(g.gate)
		g.gate = nil
	}
}

func (g *fakeGenerator) Invoke(ctx context.Context, kind generation.Kind, in generation.Input) (generation.Result, error) {
	g.mu.Lock()
	gate := g.gate
	g.inputs[kind] = append(g.inputs[kind], in)
	script := g.outcomes[kind]
	n := g.calls[kind]
	g.calls[kind]++
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &generation.FatalError{Kind: kind, Cause: ctx.Err()}
		}
	}
	if len(script) == 0 {
		return nil, &generation.FatalError{Kind: kind, Cause: context.Canceled}
	}
	o := script[min(n, len(script)-1)]
	return o.res, o.err
}

func (g *fakeGenerator) callCount(kind generation.Kind) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[kind]
}

func (g *fakeGenerator) lastInput(kind generation.Kind) generation.Input {
	g.mu.Lock()
	defer g.mu.Unlock()
	in := g.inputs[kind]
	return in[len(in)-1]
}

func ok(res generation.Result) outcome { return outcome{res: res} }

func fail(err error) outcome { return outcome{err: err} }

func validationResult() *generation.ValidationResult {
	return &generation.ValidationResult{
		ProjectName: "Billing Portal",
		Report: types.ValidationReport{
			Score:   72,
			Summary: "Mostly complete",
			Gaps:    []types.Gap{{Type: "missing_nfr", Severity: types.GapSeverityMedium, Description: "No latency target"}},
		},
		GapFixes: []types.GapFix{{
			GapID:      "gap_1",
			GapType:    "missing_nfr",
			Issue:      "No latency target",
			Suggestion: "Invoices render within 2 seconds",
			UserAction: types.GapActionPending,
		}},
	}
}

func epicsResult() *generation.EpicsResult {
	return &generation.EpicsResult{
		Epics: []types.Epic{
			{ID: "E1", Name: "Invoicing", Description: "Create and send invoices"},
			{ID: "E2", Name: "Reporting", Description: "Revenue reports"},
		},
		Stories: []types.UserStory{
			{ID: "S1", EpicID: "E1", Title: "Create invoice", Role: "clerk", Goal: "create an invoice", Benefit: "customers get billed",
				AcceptanceCriteria: []types.AcceptanceCriterion{{ID: "A1", Text: "Invoice has a number"}}},
			{ID: "S2", EpicID: "E1", Title: "Send invoice", Role: "clerk", Goal: "email an invoice", Benefit: "customers receive it"},
			{ID: "S3", EpicID: "E2", Title: "Monthly report", Role: "manager", Goal: "see revenue", Benefit: "plan budgets"},
		},
	}
}

func testsResult(storyIDs ...string) *generation.FunctionalTestsResult {
	res := &generation.FunctionalTestsResult{}
	for _, id := range storyIDs {
		res.Tests = append(res.Tests, types.FunctionalTest{
			StoryID:         id,
			Title:           "Verify " + id,
			TestSteps:       []string{"Open the page"},
			ExpectedResults: []string{"Page shows"},
		})
	}
	return res
}

func gherkinResult(storyIDs ...string) *generation.GherkinResult {
	res := &generation.GherkinResult{}
	for _, id := range storyIDs {
		res.Scenarios = append(res.Scenarios, types.GherkinScenario{
			StoryID:      id,
			FeatureName:  "Invoices",
			ScenarioName: "Scenario for " + id,
			Given:        []string{"a clerk"},
			When:         []string{"they act"},
			Then:         []string{"it works"},
		})
	}
	return res
}

func dataModelResult(names ...string) *generation.DataModelResult {
	res := &generation.DataModelResult{Mermaid: "erDiagram"}
	for _, name := range names {
		res.Entities = append(res.Entities, types.Entity{
			Name:           name,
			Fields:         []types.EntityField{{Name: "id", Type: "uuid", Required: true}},
			SourceStoryIDs: []string{"story_1"},
		})
	}
	return res
}

func codeResult() *generation.CodeSkeletonResult {
	return &generation.CodeSkeletonResult{Skeleton: types.CodeSkeleton{
		Language:   "go",
		RootFolder: "billing",
		Folders:    []types.CodeFolder{{Path: "internal/invoice", Files: []types.CodeFile{{Name: "invoice.go", Content: "package invoice"}}}},
	}}
}

// fullGenerator answers every kind successfully.
func fullGenerator() *fakeGenerator {
	return newFakeGenerator().
		on(generation.KindValidate, ok(validationResult())).
		on(generation.KindEpicsAndStories, ok(epicsResult())).
		on(generation.KindFunctionalTests, ok(testsResult("story_1", "story_2", "story_3"))).
		on(generation.KindGherkinTests, ok(gherkinResult("story_1", "story_3"))).
		on(generation.KindDataModel, ok(dataModelResult("Invoice", "Customer"))).
		on(generation.KindCodeSkeleton, ok(codeResult()))
}

type harness struct {
	orch     *Orchestrator
	registry *jobs.Registry
	gen      *fakeGenerator

	mu     sync.Mutex
	events []ProgressEvent
}

func newHarness(t *testing.T, gen *fakeGenerator) *harness {
	t.Helper()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	now := func() time.Time { return base.Add(time.Duration(tick.Add(1)) * 100 * time.Millisecond) }

	h := &harness{registry: jobs.NewRegistry(jobs.WithNow(now)), gen: gen}
	h.orch = New(h.registry, gen, WithNow(now), WithProgress(func(e ProgressEvent) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.events = append(h.events, e)
	}))
	t.Cleanup(func() {
		gen.releaseHold()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.orch.Shutdown(ctx)
		h.registry.Close()
	})
	return h
}

func (h *harness) createJob(t *testing.T, cfg types.ArtifactsConfig) *types.Job {
	t.Helper()
	job, err := h.registry.Create(jobs.CreateParams{
		Filename:     "billing.md",
		Instructions: "Focus on invoicing",
		Artifacts:    cfg,
		Document: &types.Document{
			Sections: []types.Section{{ID: "section_1", Title: "Invoicing", Text: "Clerks create invoices.", ChunkIDs: []string{"chunk_1"}}},
			Chunks:   []types.Chunk{{ID: "chunk_1", Type: types.ChunkParagraph, SectionID: "section_1", Text: "Clerks create invoices."}},
		},
	})
	require.NoError(t, err)
	return job
}

// wait blocks until the job has no task in flight and returns its snapshot.
func (h *harness) wait(t *testing.T, jobID string) *types.Job {
	t.Helper()
	require.Eventually(t, func() bool { return !h.registry.InFlight(jobID) }, 5*time.Second, 5*time.Millisecond)
	job, err := h.registry.Get(jobID)
	require.NoError(t, err)
	return job
}

// advance requests a transition and waits for it to finish.
func (h *harness) advance(t *testing.T, jobID string, stage types.Stage) *types.Job {
	t.Helper()
	_, err := h.orch.RequestTransition(context.Background(), jobID, stage)
	require.NoError(t, err)
	return h.wait(t, jobID)
}

func (h *harness) eventTypes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.events))
	for i, e := range h.events {
		out[i] = string(e.Stage) + ":" + e.Type
	}
	return out
}
