package generation

import (
	"context"
	"log"
	"time"
)

// Defaults for the retry policy
const (
	DefaultMaxAttempts    = 5
	DefaultBaseDelay      = 2 * time.Second
	DefaultAttemptTimeout = 5 * time.Minute
)

// RetryPolicy bounds how a call kind is retried.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns 5 attempts with 2s exponential backoff and a
// 5 minute read timeout per attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxAttempts,
		BaseDelay:      DefaultBaseDelay,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

// Delay returns the wait before attempt n. The first attempt has no delay;
// attempt n >= 2 waits BaseDelay * 2^(n-2).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	return p.BaseDelay << uint(attempt-2)
}

// Delays returns every backoff wait of a fully exhausted budget, in order.
func (p RetryPolicy) Delays() []time.Duration {
	if p.MaxAttempts < 2 {
		return nil
	}
	delays := make([]time.Duration, 0, p.MaxAttempts-1)
	for n := 2; n <= p.MaxAttempts; n++ {
		delays = append(delays, p.Delay(n))
	}
	return delays
}

// Clock abstracts time so that backoff can be driven by tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall clock.
func RealClock() Clock {
	return realClock{}
}

// RetryState is a state of the retry machine.
type RetryState int

// Retry states
const (
	StateAttempting RetryState = iota
	StateWaitingBackoff
	StateSucceeded
	StateFailed
)

func (s RetryState) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateWaitingBackoff:
		return "waiting_backoff"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// retryMachine drives attempts of one call through the retry states.
type retryMachine struct {
	kind    Kind
	policy  RetryPolicy
	clock   Clock
	state   RetryState
	attempt int
	err     error

	// onTransition observes state changes; used by tests.
	onTransition func(state RetryState, attempt int)
}

func newRetryMachine(kind Kind, policy RetryPolicy, clock Clock) *retryMachine {
	return &retryMachine{kind: kind, policy: policy, clock: clock, state: StateAttempting}
}

func (m *retryMachine) transition(state RetryState) {
	m.state = state
	if m.onTransition != nil {
		m.onTransition(state, m.attempt)
	}
}

// run executes attempt until it succeeds, fails fatally or the budget is
// exhausted. The returned error is nil, a *FatalError or an *ExhaustedError.
func (m *retryMachine) run(ctx context.Context, attempt func(ctx context.Context, n int) error) error {
	for {
		switch m.state {
		case StateAttempting:
			m.attempt++
			err := attempt(ctx, m.attempt)
			switch {
			case err == nil:
				m.transition(StateSucceeded)
			case ctx.Err() != nil:
				m.err = &FatalError{Kind: m.kind, Attempt: m.attempt, Cause: ctx.Err()}
				m.transition(StateFailed)
			case !Retryable(err):
				m.err = &FatalError{Kind: m.kind, Attempt: m.attempt, Cause: err}
				m.transition(StateFailed)
			case m.attempt >= m.policy.MaxAttempts:
				m.err = &ExhaustedError{Kind: m.kind, Attempts: m.attempt, Last: err}
				m.transition(StateFailed)
			default:
				log.Printf("[generation] %s attempt %d/%d failed, retrying in %s: %v",
					m.kind, m.attempt, m.policy.MaxAttempts, m.policy.Delay(m.attempt+1), err)
				m.err = err
				m.transition(StateWaitingBackoff)
			}

		case StateWaitingBackoff:
			select {
			case <-m.clock.After(m.policy.Delay(m.attempt + 1)):
				m.transition(StateAttempting)
			case <-ctx.Done():
				m.err = &FatalError{Kind: m.kind, Attempt: m.attempt, Cause: ctx.Err()}
				m.transition(StateFailed)
			}

		case StateSucceeded:
			return nil

		case StateFailed:
			return m.err
		}
	}
}
