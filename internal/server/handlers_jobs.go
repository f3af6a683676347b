package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jonathan/brd-pipeline/internal/ingestion"
	"github.com/jonathan/brd-pipeline/internal/jobs"
	"github.com/jonathan/brd-pipeline/internal/pipeline"
	"github.com/jonathan/brd-pipeline/internal/types"
)

// requestOverhead is the JSON envelope allowance on top of the document size.
const requestOverhead = 64 << 10

// CreateJobResponse is returned when a BRD upload starts a job.
type CreateJobResponse struct {
	JobID    string              `json:"job_id"`
	Stage    types.Stage         `json:"stage"`
	Status   string              `json:"status"`
	Document *ingestion.Metadata `json:"document"`
}

// ResultsResponse is a referentially consistent snapshot of a job's artifacts.
type ResultsResponse struct {
	JobID   string        `json:"job_id"`
	Version int64         `json:"version"`
	Results types.Results `json:"results"`
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &ErrValidation{Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)}
		}
		return &ErrValidation{Message: "invalid request body: " + err.Error()}
	}
	return nil
}

// handleCreateJob parses an uploaded BRD, creates a job and starts validation.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if s.maxDocumentBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxDocumentBytes+requestOverhead)
	}

	var req types.CreateJobRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, validationError(err))
		return
	}
	if s.maxDocumentBytes > 0 && int64(len(req.Content)) > s.maxDocumentBytes {
		s.writeError(w, &ErrValidation{Field: "content", Message: fmt.Sprintf("document exceeds %d bytes", s.maxDocumentBytes)})
		return
	}

	doc, meta, err := ingestion.Parse(req.Filename, []byte(req.Content))
	if err != nil {
		s.writeError(w, err)
		return
	}

	job, err := s.registry.Create(jobs.CreateParams{
		Filename:     req.Filename,
		Instructions: req.Instructions,
		Artifacts:    req.Artifacts.Over(s.defaultArtifacts),
		Document:     doc,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	log.Printf("[server] job %s created from %s (%d sections, %d chunks)", job.ID, req.Filename, meta.Sections, meta.Chunks)

	result, err := s.orch.RequestTransition(r.Context(), job.ID, types.StageValidation)
	if err != nil {
		if delErr := s.registry.Delete(job.ID); delErr != nil {
			log.Printf("[server] job %s: failed to discard unstarted job: %v", job.ID, delErr)
		}
		s.writeError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusCreated, CreateJobResponse{
		JobID:    job.ID,
		Stage:    result.Stage,
		Status:   string(result.Outcome),
		Document: meta,
	})
}

// handleListJobs returns job summaries.
func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{"jobs": s.registry.List()})
}

// handleGetJob returns the job status snapshot.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleJobResults returns the job's artifacts.
func (s *Server) handleJobResults(w http.ResponseWriter, r *http.Request) {
	job, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, ResultsResponse{JobID: job.ID, Version: job.Version, Results: job.Results})
}

// handleDeleteJob removes a job that has no task in flight.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.registry.Delete(id); err != nil {
		s.writeError(w, err)
		return
	}
	log.Printf("[server] job %s deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleTransition requests the job's move to a stage.
func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	stage, err := types.ParseStage(r.PathValue("stage"))
	if err != nil {
		s.writeError(w, &ErrValidation{Field: "stage", Message: err.Error()})
		return
	}

	result, err := s.orch.RequestTransition(r.Context(), r.PathValue("id"), stage)
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := http.StatusAccepted
	if result.Outcome == pipeline.OutcomeAlreadyCompleted || stage == types.StageCompleted {
		status = http.StatusOK
	}
	s.jsonResponse(w, status, result)
}

// handleJobEvents streams a status snapshot every time the job changes. The
// stream ends once the job has completed or failed with nothing in flight.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.registry.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	lastVersion := int64(-1)
	for {
		if job.Version != lastVersion {
			if err := sse.WriteSnapshot(job); err != nil {
				return
			}
			lastVersion = job.Version
		}
		if terminal(job) && !s.registry.InFlight(id) {
			sse.WriteComplete(id, job.Status)
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			sse.WriteError("server shutting down")
			return
		case <-ticker.C:
		}

		job, err = s.registry.Get(id)
		if err != nil {
			sse.WriteError(err.Error())
			return
		}
	}
}

func terminal(job *types.Job) bool {
	return job.Status == types.JobStatusCompleted || job.Status == types.JobStatusFailed
}
