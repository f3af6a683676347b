package types

import "github.com/go-playground/validator/v10"

// CreateJobRequest uploads a BRD and starts a job.
type CreateJobRequest struct {
	Filename     string              `json:"filename" validate:"required,max=255"`
	Content      string              `json:"content" validate:"required"`
	Instructions string              `json:"instructions,omitempty" validate:"max=10000"`
	Artifacts    *ArtifactsSelection `json:"artifacts,omitempty"`
}

// ArtifactsSelection is a partial ArtifactsConfig. Omitted fields keep the
// server default.
type ArtifactsSelection struct {
	FunctionalTests *bool `json:"functional_tests,omitempty"`
	GherkinTests    *bool `json:"gherkin_tests,omitempty"`
	DataModel       *bool `json:"data_model,omitempty"`
	CodeGeneration  *bool `json:"code_generation,omitempty"`
}

// Over returns base with the fields set in s applied. A nil selection
// returns base unchanged.
func (s *ArtifactsSelection) Over(base ArtifactsConfig) ArtifactsConfig {
	if s == nil {
		return base
	}
	apply := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	apply(&base.FunctionalTests, s.FunctionalTests)
	apply(&base.GherkinTests, s.GherkinTests)
	apply(&base.DataModel, s.DataModel)
	apply(&base.CodeGeneration, s.CodeGeneration)
	return base
}

// GenerateMoreRequest asks for additional artifacts at an already completed stage.
type GenerateMoreRequest struct {
	Stage        Stage    `json:"stage" validate:"required,oneof=epics functional_tests gherkin_tests data_model"`
	Instructions string   `json:"instructions" validate:"max=10000"`
	ContextIDs   []string `json:"context_ids,omitempty" validate:"dive,required"`
}

// UpdateEpicRequest edits an epic's content.
type UpdateEpicRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// UpdateStoryRequest edits a story's content fields.
type UpdateStoryRequest struct {
	Title   string `json:"title" validate:"required"`
	Role    string `json:"role" validate:"required"`
	Goal    string `json:"goal" validate:"required"`
	Benefit string `json:"benefit" validate:"required"`
}

// UpdateAcceptanceCriteriaRequest replaces a story's acceptance criteria.
type UpdateAcceptanceCriteriaRequest struct {
	Criteria []string `json:"criteria" validate:"required,min=1,dive,required"`
}

// UpdateGapFixRequest records the user's decision on a gap fix.
type UpdateGapFixRequest struct {
	Action    string `json:"action" validate:"required,oneof=pending accept edit reject"`
	FinalText string `json:"final_text,omitempty" validate:"required_if=Action edit"`
}

var validate = validator.New()

// Validate validates the CreateJobRequest using the validator.
func (r *CreateJobRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the GenerateMoreRequest using the validator.
func (r *GenerateMoreRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the UpdateEpicRequest using the validator.
func (r *UpdateEpicRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the UpdateStoryRequest using the validator.
func (r *UpdateStoryRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the UpdateAcceptanceCriteriaRequest using the validator.
func (r *UpdateAcceptanceCriteriaRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the UpdateGapFixRequest using the validator.
func (r *UpdateGapFixRequest) Validate() error {
	return validate.Struct(r)
}
