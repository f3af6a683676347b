package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/jonathan/brd-pipeline/internal/llm"
	"github.com/jonathan/brd-pipeline/internal/schemas"
)

// Adapter invokes the generative service with retries and returns typed,
// validated results.
type Adapter struct {
	client llm.Client
	policy RetryPolicy
	clock  Clock
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithPolicy overrides the retry policy.
func WithPolicy(p RetryPolicy) Option {
	return func(a *Adapter) { a.policy = p }
}

// WithClock overrides the clock used for backoff.
func WithClock(c Clock) Option {
	return func(a *Adapter) { a.clock = c }
}

// NewAdapter creates an Adapter over the given client.
func NewAdapter(client llm.Client, opts ...Option) *Adapter {
	a := &Adapter{
		client: client,
		policy: DefaultRetryPolicy(),
		clock:  RealClock(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.policy.MaxAttempts < 1 {
		a.policy.MaxAttempts = 1
	}
	if a.policy.AttemptTimeout <= 0 {
		a.policy.AttemptTimeout = DefaultAttemptTimeout
	}
	return a
}

// Policy returns the adapter's retry policy.
func (a *Adapter) Policy() RetryPolicy {
	return a.policy
}

// Invoke renders the prompt for kind, calls the service and decodes the
// response. Errors are *FatalError or *ExhaustedError.
func (a *Adapter) Invoke(ctx context.Context, kind Kind, in Input) (Result, error) {
	prompt, err := in.Render(kind)
	if err != nil {
		return nil, &FatalError{Kind: kind, Cause: err}
	}

	schema, err := responseSchema(kind)
	if err != nil {
		return nil, &FatalError{Kind: kind, Cause: err}
	}

	var result Result
	machine := newRetryMachine(kind, a.policy, a.clock)
	err = machine.run(ctx, func(ctx context.Context, attempt int) error {
		r, err := a.attempt(ctx, kind, prompt, schema, in)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		log.Printf("[generation] %s failed: %v", kind, err)
		return nil, err
	}

	if machine.attempt > 1 {
		log.Printf("[generation] %s succeeded on attempt %d", kind, machine.attempt)
	}
	return result, nil
}

var (
	responseSchemasMu sync.Mutex
	responseSchemas   = map[Kind]*genai.Schema{}
)

// responseSchema derives the request-side schema for kind from the same
// document its responses are validated against.
func responseSchema(kind Kind) (*genai.Schema, error) {
	responseSchemasMu.Lock()
	defer responseSchemasMu.Unlock()
	if s, ok := responseSchemas[kind]; ok {
		return s, nil
	}
	doc, err := schemas.Document(string(kind))
	if err != nil {
		return nil, err
	}
	s, err := llm.ResponseSchemaFromJSON(doc)
	if err != nil {
		return nil, fmt.Errorf("%s response schema: %w", kind, err)
	}
	responseSchemas[kind] = s
	return s, nil
}

func (a *Adapter) attempt(ctx context.Context, kind Kind, prompt string, schema *genai.Schema, in Input) (Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, a.policy.AttemptTimeout)
	defer cancel()

	raw, err := a.client.GenerateJSON(attemptCtx, prompt, kind.Tier(), schema)
	if err != nil {
		return nil, err
	}

	if err := schemas.ValidateKind(string(kind), raw); err != nil {
		return nil, &SchemaViolationError{Kind: kind, Reason: "schema validation failed", Cause: err}
	}

	result, err := decode(kind, raw)
	if err != nil {
		return nil, &SchemaViolationError{Kind: kind, Reason: "decode failed", Cause: err}
	}

	if err := result.check(in); err != nil {
		return nil, &SchemaViolationError{Kind: kind, Reason: "semantic check failed", Cause: err}
	}
	return result, nil
}

func decode(kind Kind, raw string) (Result, error) {
	data := []byte(raw)

	switch kind {
	case KindValidate:
		var v rawValidation
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v.result(), nil
	case KindEpicsAndStories:
		var r EpicsResult
		return &r, json.Unmarshal(data, &r)
	case KindFunctionalTests:
		var r FunctionalTestsResult
		return &r, json.Unmarshal(data, &r)
	case KindGherkinTests:
		var r GherkinResult
		return &r, json.Unmarshal(data, &r)
	case KindDataModel:
		var r DataModelResult
		return &r, json.Unmarshal(data, &r)
	case KindCodeSkeleton:
		var r CodeSkeletonResult
		return &r, json.Unmarshal(data, &r.Skeleton)
	default:
		return nil, fmt.Errorf("unknown generation kind: %q", kind)
	}
}
