// Package types provides type definitions for the jobs, stages and generated
// artifacts shared across the BRD pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "fmt"

// Stage identifies one phase of the generation pipeline.
type Stage string

// Stage constants in canonical order. StageNone is the position of a job that
// has not entered any stage yet.
const (
	StageNone            Stage = ""
	StageValidation      Stage = "validation"
	StageEpics           Stage = "epics"
	StageFunctionalTests Stage = "functional_tests"
	StageGherkinTests    Stage = "gherkin_tests"
	StageDataModel       Stage = "data_model"
	StageCodeGeneration  Stage = "code_generation"
	StageCompleted       Stage = "completed"
)

// CanonicalStages returns every stage in pipeline order.
func CanonicalStages() []Stage {
	return []Stage{
		StageValidation,
		StageEpics,
		StageFunctionalTests,
		StageGherkinTests,
		StageDataModel,
		StageCodeGeneration,
		StageCompleted,
	}
}

// Index returns the stage's position in the canonical order, or -1 for
// StageNone and unknown stages.
func (s Stage) Index() int {
	for i, stage := range CanonicalStages() {
		if stage == s {
			return i
		}
	}
	return -1
}

// ParseStage converts a raw string into a known Stage.
func ParseStage(raw string) (Stage, error) {
	stage := Stage(raw)
	if stage.Index() < 0 {
		return StageNone, fmt.Errorf("unknown stage: %q", raw)
	}
	return stage, nil
}

// ArtifactsConfig selects which optional stages run for a job.
// Validation and epics always run.
type ArtifactsConfig struct {
	FunctionalTests bool `json:"functional_tests" yaml:"functional_tests"`
	GherkinTests    bool `json:"gherkin_tests" yaml:"gherkin_tests"`
	DataModel       bool `json:"data_model" yaml:"data_model"`
	CodeGeneration  bool `json:"code_generation" yaml:"code_generation"`
}

// DefaultArtifactsConfig enables every optional stage.
func DefaultArtifactsConfig() ArtifactsConfig {
	return ArtifactsConfig{
		FunctionalTests: true,
		GherkinTests:    true,
		DataModel:       true,
		CodeGeneration:  true,
	}
}

// Enabled reports whether the given stage runs under this configuration.
func (c ArtifactsConfig) Enabled(stage Stage) bool {
	switch stage {
	case StageFunctionalTests:
		return c.FunctionalTests
	case StageGherkinTests:
		return c.GherkinTests
	case StageDataModel:
		return c.DataModel
	case StageCodeGeneration:
		return c.CodeGeneration
	case StageValidation, StageEpics, StageCompleted:
		return true
	default:
		return false
	}
}
