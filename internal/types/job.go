package types

import "time"

// JobStatus constants
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// StageStatus constants
const (
	StageStatusRunning   = "running"
	StageStatusCompleted = "completed"
	StageStatusFailed    = "failed"
)

// Activity kinds for side tasks that run outside of stage transitions
const (
	ActivityGenerateMore       = "generate_more"
	ActivityRegenerateTests    = "regenerate_tests"
	ActivityRegenerateEntities = "regenerate_entities"
)

// StageRecord is an append-only log entry describing one stage execution.
type StageRecord struct {
	Stage       Stage      `json:"stage"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMs  *int64     `json:"duration_ms,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ActivityRecord describes the latest side task (generate more, regenerate)
// run against a job.
type ActivityRecord struct {
	Kind        string     `json:"kind"`
	Stage       Stage      `json:"stage,omitempty"`
	TargetID    string     `json:"target_id,omitempty"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Added       int        `json:"added"`
	Error       string     `json:"error,omitempty"`
}

// Job is the unit of work for one end-to-end generation request.
// Jobs handed out by the registry are immutable snapshots; mutate through the
// registry only.
type Job struct {
	ID           string          `json:"job_id"`
	Status       string          `json:"status"`
	CurrentStage Stage           `json:"current_stage"`
	StageHistory []StageRecord   `json:"stage_history"`
	Artifacts    ArtifactsConfig `json:"artifacts"`
	Instructions string          `json:"instructions"`
	Filename     string          `json:"filename,omitempty"`
	Results      Results         `json:"results"`
	Activity     *ActivityRecord `json:"activity,omitempty"`
	Error        string          `json:"error,omitempty"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Document is the parsed BRD; it is read-only after creation.
	Document *Document `json:"-"`
}

// LatestRecord returns the most recent stage record, or nil for a new job.
func (j *Job) LatestRecord() *StageRecord {
	if len(j.StageHistory) == 0 {
		return nil
	}
	return &j.StageHistory[len(j.StageHistory)-1]
}

// LatestRecordFor returns the most recent record for the given stage.
func (j *Job) LatestRecordFor(stage Stage) *StageRecord {
	for i := len(j.StageHistory) - 1; i >= 0; i-- {
		if j.StageHistory[i].Stage == stage {
			return &j.StageHistory[i]
		}
	}
	return nil
}

// StageCompleted reports whether any record for the stage completed.
func (j *Job) StageCompleted(stage Stage) bool {
	for _, rec := range j.StageHistory {
		if rec.Stage == stage && rec.Status == StageStatusCompleted {
			return true
		}
	}
	return false
}

// AcceptedGapFixes returns the remediation inputs the user accepted or edited.
func (j *Job) AcceptedGapFixes() []AppliedGapFix {
	var applied []AppliedGapFix
	for _, gf := range j.Results.GapFixes {
		switch gf.UserAction {
		case GapActionAccept:
			applied = append(applied, AppliedGapFix{Type: gf.GapType, Issue: gf.Issue, Correction: gf.Suggestion})
		case GapActionEdit:
			if gf.FinalText != "" {
				applied = append(applied, AppliedGapFix{Type: gf.GapType, Issue: gf.Issue, Correction: gf.FinalText})
			}
		}
	}
	return applied
}

// Clone returns a deep copy of the job. The parsed document is shared since
// it is never mutated.
func (j *Job) Clone() *Job {
	c := *j
	c.StageHistory = make([]StageRecord, len(j.StageHistory))
	for i, rec := range j.StageHistory {
		c.StageHistory[i] = rec
		c.StageHistory[i].CompletedAt = cloneTime(rec.CompletedAt)
		if rec.DurationMs != nil {
			d := *rec.DurationMs
			c.StageHistory[i].DurationMs = &d
		}
	}
	if j.Activity != nil {
		a := *j.Activity
		a.CompletedAt = cloneTime(j.Activity.CompletedAt)
		c.Activity = &a
	}
	c.Results = j.Results.Clone()
	return &c
}

// JobSummary is the list view of a job.
type JobSummary struct {
	ID           string    `json:"job_id"`
	Status       string    `json:"status"`
	CurrentStage Stage     `json:"current_stage"`
	Filename     string    `json:"filename,omitempty"`
	ProjectName  string    `json:"project_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summary returns the list view of the job.
func (j *Job) Summary() JobSummary {
	return JobSummary{
		ID:           j.ID,
		Status:       j.Status,
		CurrentStage: j.CurrentStage,
		Filename:     j.Filename,
		ProjectName:  j.Results.ProjectName,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
