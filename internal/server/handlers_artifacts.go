package server

import (
	"net/http"

	"github.com/jonathan/brd-pipeline/internal/artifacts"
	"github.com/jonathan/brd-pipeline/internal/types"
)

// ActivityResponse is returned when a side task starts.
type ActivityResponse struct {
	JobID    string                `json:"job_id"`
	Activity *types.ActivityRecord `json:"activity"`
}

// MutationResponse is returned by edits.
type MutationResponse struct {
	JobID   string `json:"job_id"`
	Version int64  `json:"version"`
	Item    any    `json:"item"`
}

// DeleteResponse lists what a delete removed.
type DeleteResponse struct {
	JobID   string            `json:"job_id"`
	Version int64             `json:"version"`
	Removed artifacts.Removal `json:"removed"`
}

// EpicStoriesResponse lists the stories of one epic.
type EpicStoriesResponse struct {
	JobID   string            `json:"job_id"`
	EpicID  string            `json:"epic_id"`
	Stories []types.UserStory `json:"stories"`
}

// validatable is implemented by the request DTOs in internal/types.
type validatable interface {
	Validate() error
}

// decodeValid decodes and validates a request body.
func decodeValid(r *http.Request, req validatable) error {
	if err := decodeBody(r, req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return validationError(err)
	}
	return nil
}

func (s *Server) activityResponse(w http.ResponseWriter, job *types.Job, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, ActivityResponse{JobID: job.ID, Activity: job.Activity})
}

// handleGenerateMore appends artifacts to an already completed stage.
func (s *Server) handleGenerateMore(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateMoreRequest
	if err := decodeValid(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	job, err := s.orch.GenerateMore(r.Context(), r.PathValue("id"), req)
	s.activityResponse(w, job, err)
}

// handleRegenerateTests replaces the tests derived from one story.
func (s *Server) handleRegenerateTests(w http.ResponseWriter, r *http.Request) {
	job, err := s.orch.RegenerateStoryTests(r.Context(), r.PathValue("id"), r.PathValue("story_id"))
	s.activityResponse(w, job, err)
}

// handleRegenerateEntities rebuilds the entities fed by one story.
func (s *Server) handleRegenerateEntities(w http.ResponseWriter, r *http.Request) {
	job, err := s.orch.RegenerateStoryEntities(r.Context(), r.PathValue("id"), r.PathValue("story_id"))
	s.activityResponse(w, job, err)
}

// handleImpact reports what regenerating a story would touch.
func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	report, err := s.orch.Impact(r.PathValue("id"), r.PathValue("story_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, report)
}

func (s *Server) handleEpicStories(w http.ResponseWriter, r *http.Request) {
	jobID, epicID := r.PathValue("id"), r.PathValue("epic_id")
	stories, err := s.orch.EpicStories(jobID, epicID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, EpicStoriesResponse{JobID: jobID, EpicID: epicID, Stories: stories})
}

// handleUpdateGapFix records the user's decision on a gap fix.
func (s *Server) handleUpdateGapFix(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateGapFixRequest
	if err := decodeValid(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	gapID := r.PathValue("gap_id")
	job, err := s.orch.UpdateGapFix(r.PathValue("id"), gapID, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var item any
	for _, gf := range job.Results.GapFixes {
		if gf.GapID == gapID {
			item = gf
		}
	}
	s.jsonResponse(w, http.StatusOK, MutationResponse{JobID: job.ID, Version: job.Version, Item: item})
}

// handleUpdateEpic edits an epic's name and description.
func (s *Server) handleUpdateEpic(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateEpicRequest
	if err := decodeValid(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	epicID := r.PathValue("epic_id")
	job, err := s.orch.EditEpic(r.PathValue("id"), epicID, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var item any
	for _, e := range job.Results.Epics {
		if e.ID == epicID {
			item = e
		}
	}
	s.jsonResponse(w, http.StatusOK, MutationResponse{JobID: job.ID, Version: job.Version, Item: item})
}

// handleUpdateStory edits a story and flags it for regeneration.
func (s *Server) handleUpdateStory(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateStoryRequest
	if err := decodeValid(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	job, err := s.orch.EditStory(r.PathValue("id"), r.PathValue("story_id"), req)
	s.storyResponse(w, r, job, err)
}

// handleUpdateAcceptanceCriteria replaces a story's acceptance criteria.
func (s *Server) handleUpdateAcceptanceCriteria(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateAcceptanceCriteriaRequest
	if err := decodeValid(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	job, err := s.orch.EditAcceptanceCriteria(r.PathValue("id"), r.PathValue("story_id"), req)
	s.storyResponse(w, r, job, err)
}

func (s *Server) storyResponse(w http.ResponseWriter, r *http.Request, job *types.Job, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	storyID := r.PathValue("story_id")
	var item any
	for _, st := range job.Results.UserStories {
		if st.ID == storyID {
			item = st
		}
	}
	s.jsonResponse(w, http.StatusOK, MutationResponse{JobID: job.ID, Version: job.Version, Item: item})
}

func (s *Server) deleteArtifact(w http.ResponseWriter, r *http.Request, node artifacts.Node) {
	job, removal, err := s.orch.DeleteArtifact(r.PathValue("id"), node)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, DeleteResponse{JobID: job.ID, Version: job.Version, Removed: removal})
}

// handleDeleteEpic removes an epic with its stories and their tests.
func (s *Server) handleDeleteEpic(w http.ResponseWriter, r *http.Request) {
	s.deleteArtifact(w, r, artifacts.Node{Kind: artifacts.NodeEpic, ID: r.PathValue("epic_id")})
}

// handleDeleteStory removes a story with its tests and scenarios.
func (s *Server) handleDeleteStory(w http.ResponseWriter, r *http.Request) {
	s.deleteArtifact(w, r, artifacts.Node{Kind: artifacts.NodeStory, ID: r.PathValue("story_id")})
}

func (s *Server) handleDeleteFunctionalTest(w http.ResponseWriter, r *http.Request) {
	s.deleteArtifact(w, r, artifacts.Node{Kind: artifacts.NodeFunctionalTest, ID: r.PathValue("test_id")})
}

func (s *Server) handleDeleteGherkinScenario(w http.ResponseWriter, r *http.Request) {
	s.deleteArtifact(w, r, artifacts.Node{Kind: artifacts.NodeGherkin, ID: r.PathValue("scenario_id")})
}
