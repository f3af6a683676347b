package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/brd-pipeline/internal/generation"
	"github.com/jonathan/brd-pipeline/internal/jobs"
	"github.com/jonathan/brd-pipeline/internal/pipeline"
	"github.com/jonathan/brd-pipeline/internal/server/ratelimit"
	"github.com/jonathan/brd-pipeline/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBRD = `Billing Portal BRD

1. Invoicing
Clerks create invoices and send them to customers.

2. Reporting
Managers see monthly revenue.
`

// stubGenerator answers every call kind with a small fixed result. Calls
// block while the gate is closed.
type stubGenerator struct {
	mu    sync.Mutex
	fail  map[generation.Kind]error
	gate  chan struct{}
	calls map[generation.Kind]int
}

func newStubGenerator() *stubGenerator {
	return &stubGenerator{fail: map[generation.Kind]error{}, calls: map[generation.Kind]int{}}
}

func (g *stubGenerator) hold() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gate = make(chan struct{})
}

func (g *stubGenerator) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gate != nil {
		close(g.gate)
		g.gate = nil
	}
}

func (g *stubGenerator) failWith(kind generation.Kind, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[kind] = err
}

func (g *stubGenerator) Invoke(ctx context.Context, kind generation.Kind, in generation.Input) (generation.Result, error) {
	g.mu.Lock()
	gate := g.gate
	failure := g.fail[kind]
	g.calls[kind]++
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failure != nil {
		return nil, failure
	}

	switch kind {
	case generation.KindValidate:
		return &generation.ValidationResult{
			ProjectName: "Billing Portal",
			Report:      types.ValidationReport{Score: 80, Summary: "Good"},
			GapFixes: []types.GapFix{{
				GapID: "gap_1", GapType: "missing_nfr", Issue: "No latency target",
				Suggestion: "Pages load in 2s", UserAction: types.GapActionPending,
			}},
		}, nil
	case generation.KindEpicsAndStories:
		return &generation.EpicsResult{
			Epics: []types.Epic{{ID: "E1", Name: "Invoicing"}, {ID: "E2", Name: "Reporting"}},
			Stories: []types.UserStory{
				{ID: "S1", EpicID: "E1", Title: "Create invoice", Role: "clerk", Goal: "create", Benefit: "billing"},
				{ID: "S2", EpicID: "E2", Title: "Monthly report", Role: "manager", Goal: "see revenue", Benefit: "planning"},
			},
		}, nil
	case generation.KindFunctionalTests:
		res := &generation.FunctionalTestsResult{}
		for _, id := range in.ParentIDs {
			res.Tests = append(res.Tests, types.FunctionalTest{StoryID: id, Title: "Verify " + id, TestSteps: []string{"act"}, ExpectedResults: []string{"ok"}})
		}
		return res, nil
	case generation.KindGherkinTests:
		res := &generation.GherkinResult{}
		for _, id := range in.ParentIDs {
			res.Scenarios = append(res.Scenarios, types.GherkinScenario{StoryID: id, FeatureName: "F", ScenarioName: "Scenario " + id, Given: []string{"g"}, When: []string{"w"}, Then: []string{"t"}})
		}
		return res, nil
	case generation.KindDataModel:
		return &generation.DataModelResult{
			Entities: []types.Entity{{Name: "Invoice", SourceStoryIDs: []string{"story_1"}}},
			Mermaid:  "erDiagram",
		}, nil
	case generation.KindCodeSkeleton:
		return &generation.CodeSkeletonResult{Skeleton: types.CodeSkeleton{Language: "go", RootFolder: "billing"}}, nil
	}
	return nil, errors.New("unexpected kind")
}

type testServer struct {
	*Server
	gen     *stubGenerator
	handler http.Handler
}

func newTestServer(t *testing.T, rl *ratelimit.Config) *testServer {
	t.Helper()
	if rl == nil {
		rl = &ratelimit.Config{Enabled: false}
	}
	gen := newStubGenerator()
	orch := pipeline.New(jobs.NewRegistry(), gen)
	s := New(Config{
		MaxDocumentBytes: 4096,
		DefaultArtifacts: types.DefaultArtifactsConfig(),
		RateLimit:        rl,
		PollInterval:     5 * time.Millisecond,
	}, orch)
	t.Cleanup(func() {
		gen.release()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return &testServer{Server: s, gen: gen, handler: s.Handler()}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// waitIdle blocks until the job has no task in flight.
func (ts *testServer) waitIdle(t *testing.T, jobID string) *types.Job {
	t.Helper()
	require.Eventually(t, func() bool { return !ts.registry.InFlight(jobID) }, 5*time.Second, 5*time.Millisecond)
	job, err := ts.registry.Get(jobID)
	require.NoError(t, err)
	return job
}

// createJob uploads sampleBRD and waits for validation to finish.
// onlyRequiredStages disables every optional stage.
func onlyRequiredStages() *types.ArtifactsSelection {
	off := false
	return &types.ArtifactsSelection{FunctionalTests: &off, GherkinTests: &off, DataModel: &off, CodeGeneration: &off}
}

func (ts *testServer) createJob(t *testing.T, artifacts *types.ArtifactsSelection) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/jobs", types.CreateJobRequest{
		Filename: "billing.txt", Content: sampleBRD, Instructions: "Focus on invoicing", Artifacts: artifacts,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[CreateJobResponse](t, w)
	ts.waitIdle(t, resp.JobID)
	return resp.JobID
}

// advance requests a stage and waits for it to finish.
func (ts *testServer) advance(t *testing.T, jobID string, stage types.Stage) {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/jobs/"+jobID+"/stages/"+string(stage), nil)
	require.Contains(t, []int{http.StatusAccepted, http.StatusOK}, w.Code, w.Body.String())
	ts.waitIdle(t, jobID)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string]any](t, w)
	assert.Equal(t, "ok", resp["status"])
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodOptions, "/jobs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestCreateJob_StartsValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/jobs", types.CreateJobRequest{Filename: "billing.txt", Content: sampleBRD})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[CreateJobResponse](t, w)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, types.StageValidation, resp.Stage)
	assert.Equal(t, string(pipeline.OutcomeStarted), resp.Status)
	require.NotNil(t, resp.Document)
	assert.Equal(t, 3, resp.Document.Sections)

	ts.waitIdle(t, resp.JobID)
	w = ts.do(t, http.MethodGet, "/jobs/"+resp.JobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	job := decode[types.Job](t, w)
	assert.Equal(t, types.StageValidation, job.CurrentStage)
	assert.Equal(t, types.JobStatusPending, job.Status)
	require.Len(t, job.StageHistory, 1)
	assert.Equal(t, types.StageStatusCompleted, job.StageHistory[0].Status)
	assert.Equal(t, "Billing Portal", job.Results.ProjectName)
	assert.Equal(t, types.DefaultArtifactsConfig(), job.Artifacts)
}

func TestCreateJob_PartialArtifactsKeepDefaults(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/jobs", map[string]any{
		"filename":  "billing.txt",
		"content":   sampleBRD,
		"artifacts": map[string]bool{"data_model": false},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[CreateJobResponse](t, w)

	job := ts.waitIdle(t, resp.JobID)
	want := types.DefaultArtifactsConfig()
	want.DataModel = false
	assert.Equal(t, want, job.Artifacts)
}

func TestCreateJob_DiscardedWhenPipelineStopped(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ts.orch.Shutdown(ctx))

	w := ts.do(t, http.MethodPost, "/jobs", types.CreateJobRequest{Filename: "billing.txt", Content: sampleBRD})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	assert.Equal(t, 0, ts.registry.Len())

	w = ts.do(t, http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[map[string][]types.JobSummary](t, w)["jobs"])
}

func TestCreateJob_Rejects(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		body any
	}{
		{"malformed body", "{not json"},
		{"missing filename", types.CreateJobRequest{Content: sampleBRD}},
		{"missing content", types.CreateJobRequest{Filename: "brd.txt"}},
		{"unsupported format", types.CreateJobRequest{Filename: "brd.pdf", Content: sampleBRD}},
		{"empty document", types.CreateJobRequest{Filename: "brd.txt", Content: "  \n\n "}},
		{"oversized document", types.CreateJobRequest{Filename: "brd.txt", Content: strings.Repeat("a", 5000)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/jobs", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, decode[map[string]string](t, w), "error")
		})
	}
	assert.Equal(t, 0, ts.registry.Len())
}

func TestTransitions(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createJob(t, nil)

	w := ts.do(t, http.MethodPost, "/jobs/"+id+"/stages/epics", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	result := decode[pipeline.TransitionResult](t, w)
	assert.Equal(t, pipeline.OutcomeStarted, result.Outcome)
	ts.waitIdle(t, id)

	w = ts.do(t, http.MethodPost, "/jobs/"+id+"/stages/epics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pipeline.OutcomeAlreadyCompleted, decode[pipeline.TransitionResult](t, w).Outcome)

	w = ts.do(t, http.MethodPost, "/jobs/"+id+"/stages/code_generation", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "next stage is functional_tests")

	w = ts.do(t, http.MethodPost, "/jobs/"+id+"/stages/deployment", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/jobs/missing/stages/epics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTransition_BusyWhileRunning(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createJob(t, nil)

	ts.gen.hold()
	w := ts.do(t, http.MethodPost, "/jobs/"+id+"/stages/epics", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = ts.do(t, http.MethodPost, "/jobs/"+id+"/stages/epics", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodDelete, "/jobs/"+id, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	ts.gen.release()
	job := ts.waitIdle(t, id)
	assert.True(t, job.StageCompleted(types.StageEpics))
}

func TestCompletedJobLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createJob(t, onlyRequiredStages())

	ts.advance(t, id, types.StageEpics)
	w := ts.do(t, http.MethodPost, "/jobs/"+id+"/stages/completed", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/jobs/"+id, nil)
	job := decode[types.Job](t, w)
	assert.Equal(t, types.JobStatusCompleted, job.Status)
	assert.Equal(t, types.StageCompleted, job.CurrentStage)

	w = ts.do(t, http.MethodGet, "/jobs", nil)
	list := decode[map[string][]types.JobSummary](t, w)
	require.Len(t, list["jobs"], 1)
	assert.Equal(t, "Billing Portal", list["jobs"][0].ProjectName)

	w = ts.do(t, http.MethodDelete, "/jobs/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, http.MethodGet, "/jobs/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResults(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createJob(t, nil)
	ts.advance(t, id, types.StageEpics)

	w := ts.do(t, http.MethodGet, "/jobs/"+id+"/results", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ResultsResponse](t, w)
	assert.Equal(t, id, resp.JobID)
	assert.Len(t, resp.Results.Epics, 2)
	assert.Len(t, resp.Results.UserStories, 2)
}

func TestEpicStories(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createJob(t, nil)
	ts.advance(t, id, types.StageEpics)

	w := ts.do(t, http.MethodGet, "/jobs/"+id+"/epics/epic_1/stories", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[EpicStoriesResponse](t, w)
	assert.Equal(t, "epic_1", resp.EpicID)
	require.Len(t, resp.Stories, 1)
	assert.Equal(t, "story_1", resp.Stories[0].ID)

	w = ts.do(t, http.MethodDelete, "/jobs/"+id+"/stories/story_1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodGet, "/jobs/"+id+"/epics/epic_1/stories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"stories":[]`)

	w = ts.do(t, http.MethodGet, "/jobs/"+id+"/epics/epic_9/stories", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodGet, "/jobs/missing/epics/epic_1/stories", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEditsAndDeletes(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createJob(t, nil)
	ts.advance(t, id, types.StageEpics)
	ts.advance(t, id, types.StageFunctionalTests)
	ts.advance(t, id, types.StageGherkinTests)

	w := ts.do(t, http.MethodPut, "/jobs/"+id+"/stories/story_1", types.UpdateStoryRequest{
		Title: "Create draft invoice", Role: "clerk", Goal: "draft", Benefit: "review first",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"regeneration_needed":true`)

	w = ts.do(t, http.MethodPut, "/jobs/"+id+"/stories/story_1", map[string]string{"title": "only a title"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/jobs/"+id+"/stories/story_9", types.UpdateStoryRequest{Title: "x", Role: "x", Goal: "x", Benefit: "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPut, "/jobs/"+id+"/stories/story_2/acceptance-criteria", types.UpdateAcceptanceCriteriaRequest{Criteria: []string{"Totals match"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPut, "/jobs/"+id+"/epics/epic_1", types.UpdateEpicRequest{Name: "Billing"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Billing"`)

	w = ts.do(t, http.MethodPut, "/jobs/"+id+"/gap-fixes/gap_1", types.UpdateGapFixRequest{Action: "edit"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "edit requires final_text")
	w = ts.do(t, http.MethodPut, "/jobs/"+id+"/gap-fixes/gap_1", types.UpdateGapFixRequest{Action: "accept"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/jobs/"+id+"/stories/story_1/impact", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"regeneration_needed":true`)

	w = ts.do(t, http.MethodDelete, "/jobs/"+id+"/gherkin-tests/gherkin_2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodDelete, "/jobs/"+id+"/epics/epic_1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	del := decode[DeleteResponse](t, w)
	assert.Equal(t, []string{"story_1"}, del.Removed.Stories)
	assert.Len(t, del.Removed.FunctionalTests, 1)

	w = ts.do(t, http.MethodDelete, "/jobs/"+id+"/stories/story_1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	job, err := ts.registry.Get(id)
	require.NoError(t, err)
	for _, ft := range job.Results.FunctionalTests {
		assert.Equal(t, "story_2", ft.StoryID)
	}
	assert.Empty(t, job.Results.GherkinTests)
}

func TestGenerateMoreAndRegenerate(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createJob(t, nil)
	ts.advance(t, id, types.StageEpics)
	ts.advance(t, id, types.StageFunctionalTests)

	w := ts.do(t, http.MethodPost, "/jobs/"+id+"/generate-more", map[string]any{"stage": "validation"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/jobs/"+id+"/generate-more", types.GenerateMoreRequest{Stage: types.StageGherkinTests})
	assert.Equal(t, http.StatusConflict, w.Code, "stage not completed yet")

	w = ts.do(t, http.MethodPost, "/jobs/"+id+"/generate-more", types.GenerateMoreRequest{
		Stage: types.StageFunctionalTests, ContextIDs: []string{"story_2"},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	act := decode[ActivityResponse](t, w)
	require.NotNil(t, act.Activity)
	assert.Equal(t, types.ActivityGenerateMore, act.Activity.Kind)
	job := ts.waitIdle(t, id)
	assert.Len(t, job.Results.FunctionalTests, 3)
	assert.Equal(t, types.StageStatusCompleted, job.Activity.Status)

	w = ts.do(t, http.MethodPut, "/jobs/"+id+"/stories/story_1", types.UpdateStoryRequest{Title: "t", Role: "r", Goal: "g", Benefit: "b"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/jobs/"+id+"/stories/story_1/regenerate-tests", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	job = ts.waitIdle(t, id)
	assert.False(t, job.Results.UserStories[0].RegenerationNeeded)

	w = ts.do(t, http.MethodPost, "/jobs/"+id+"/stories/story_1/regenerate-entities", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "data model not generated")

	w = ts.do(t, http.MethodPost, "/jobs/"+id+"/stories/story_9/regenerate-tests", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// readEvents collects the event names of an SSE body.
func readEvents(t *testing.T, body string) []string {
	t.Helper()
	var events []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			events = append(events, name)
		}
	}
	return events
}

func TestJobEvents_EndsWhenCompleted(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createJob(t, onlyRequiredStages())
	ts.advance(t, id, types.StageEpics)
	ts.advance(t, id, types.StageCompleted)

	w := ts.do(t, http.MethodGet, "/jobs/"+id+"/events", nil)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, []string{"status", "complete"}, readEvents(t, w.Body.String()))
	assert.Contains(t, w.Body.String(), `"status":"completed"`)
}

func TestJobEvents_FollowsFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createJob(t, nil)

	ts.gen.failWith(generation.KindEpicsAndStories, &generation.ExhaustedError{Kind: generation.KindEpicsAndStories, Attempts: 5, Last: errors.New("503")})
	ts.gen.hold()
	w := ts.do(t, http.MethodPost, "/jobs/"+id+"/stages/epics", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- ts.do(t, http.MethodGet, "/jobs/"+id+"/events", nil) }()

	time.Sleep(20 * time.Millisecond)
	ts.gen.release()

	select {
	case w = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("event stream did not end")
	}
	events := readEvents(t, w.Body.String())
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, "complete", events[len(events)-1])
	assert.Contains(t, w.Body.String(), `"status":"failed"`)
	assert.Contains(t, w.Body.String(), "external service exhausted")
}

func TestJobEvents_UnknownJob(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/jobs/missing/events", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, &ratelimit.Config{
		Enabled: true, DefaultLimit: 1000, DefaultWindow: time.Minute,
		EndpointConfigs: []ratelimit.EndpointConfig{{Path: "/jobs", Method: "POST", Limit: 1, Window: time.Hour, Burst: 1}},
	})

	w := ts.do(t, http.MethodPost, "/jobs", types.CreateJobRequest{Filename: "brd.txt", Content: sampleBRD})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = ts.do(t, http.MethodPost, "/jobs", types.CreateJobRequest{Filename: "brd.txt", Content: sampleBRD})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decode[map[string]any](t, w)["error"])

	w = ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
