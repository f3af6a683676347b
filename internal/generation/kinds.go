// Package generation invokes the generative service for each call kind under
// a bounded retry policy and turns its JSON responses into typed results.
package generation

import (
	"fmt"

	"github.com/jonathan/brd-pipeline/internal/llm"
)

// Kind identifies one generation call.
type Kind string

// Call kinds
const (
	KindValidate        Kind = "validate"
	KindEpicsAndStories Kind = "epics_and_stories"
	KindFunctionalTests Kind = "functional_tests"
	KindGherkinTests    Kind = "gherkin_tests"
	KindDataModel       Kind = "data_model"
	KindCodeSkeleton    Kind = "code_skeleton"
)

// Kinds returns every call kind.
func Kinds() []Kind {
	return []Kind{
		KindValidate,
		KindEpicsAndStories,
		KindFunctionalTests,
		KindGherkinTests,
		KindDataModel,
		KindCodeSkeleton,
	}
}

// ParseKind converts a raw string into a Kind.
func ParseKind(raw string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == raw {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown generation kind: %q", raw)
}

// Tier returns the model tier used for the call kind.
func (k Kind) Tier() llm.ModelTier {
	switch k {
	case KindEpicsAndStories, KindCodeSkeleton:
		return llm.TierAdvanced
	case KindValidate:
		return llm.TierLite
	default:
		return llm.TierStandard
	}
}
