package pipeline

import (
	"fmt"

	"github.com/jonathan/brd-pipeline/internal/generation"
	"github.com/jonathan/brd-pipeline/internal/types"
)

// StageDefinition defines metadata for a pipeline stage
type StageDefinition struct {
	Stage        types.Stage
	Kind         generation.Kind
	Optional     bool
	Dependencies []types.Stage
	// Soft dependencies must be completed only when enabled.
	Soft []types.Stage
}

// StageRegistry holds all stage definitions
var StageRegistry = map[types.Stage]StageDefinition{
	types.StageValidation: {
		Stage: types.StageValidation,
		Kind:  generation.KindValidate,
	},
	types.StageEpics: {
		Stage:        types.StageEpics,
		Kind:         generation.KindEpicsAndStories,
		Dependencies: []types.Stage{types.StageValidation},
	},
	types.StageFunctionalTests: {
		Stage:        types.StageFunctionalTests,
		Kind:         generation.KindFunctionalTests,
		Optional:     true,
		Dependencies: []types.Stage{types.StageEpics},
	},
	types.StageGherkinTests: {
		Stage:        types.StageGherkinTests,
		Kind:         generation.KindGherkinTests,
		Optional:     true,
		Dependencies: []types.Stage{types.StageEpics},
	},
	types.StageDataModel: {
		Stage:        types.StageDataModel,
		Kind:         generation.KindDataModel,
		Optional:     true,
		Dependencies: []types.Stage{types.StageEpics},
	},
	types.StageCodeGeneration: {
		Stage:        types.StageCodeGeneration,
		Kind:         generation.KindCodeSkeleton,
		Optional:     true,
		Dependencies: []types.Stage{types.StageEpics},
		Soft:         []types.Stage{types.StageDataModel},
	},
	types.StageCompleted: {
		Stage:        types.StageCompleted,
		Dependencies: []types.Stage{types.StageEpics},
	},
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Stage               types.Stage
	MissingDependencies []types.Stage
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("stage %s is missing completed dependencies: %v", e.Stage, e.MissingDependencies)
}

// EnabledStages returns the canonical stage order filtered by the job's
// artifact selection.
func EnabledStages(cfg types.ArtifactsConfig) []types.Stage {
	var stages []types.Stage
	for _, stage := range types.CanonicalStages() {
		if cfg.Enabled(stage) {
			stages = append(stages, stage)
		}
	}
	return stages
}

// NextStage returns the first enabled stage after current. A job that has
// not entered any stage moves to validation. ok is false after completed.
func NextStage(cfg types.ArtifactsConfig, current types.Stage) (types.Stage, bool) {
	idx := current.Index()
	for _, stage := range EnabledStages(cfg) {
		if stage.Index() > idx {
			return stage, true
		}
	}
	return types.StageNone, false
}

// ValidateDependencies checks that every dependency of stage has completed.
func ValidateDependencies(job *types.Job, stage types.Stage) error {
	def, ok := StageRegistry[stage]
	if !ok {
		return fmt.Errorf("unknown stage: %s", stage)
	}

	var missing []types.Stage
	for _, dep := range def.Dependencies {
		if !job.StageCompleted(dep) {
			missing = append(missing, dep)
		}
	}
	for _, dep := range def.Soft {
		if job.Artifacts.Enabled(dep) && !job.StageCompleted(dep) {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{Stage: stage, MissingDependencies: missing}
	}
	return nil
}
