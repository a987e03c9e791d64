// Package retry wraps an ai.Client with classification-aware retry/backoff.
// One logical Analyze call maps to at most MaxAttempts outbound attempts;
// only transient failures are retried.
package retry

import (
	"context"
	"log"
	"time"

	"github.com/bryanwahyu/teknisi-ai/internal/domain/ai"
)

// Policy configures the backoff loop. Zero values fall back to defaults.
type Policy struct {
	MaxAttempts  int           // default 3
	InitialDelay time.Duration // default 2s
	Multiplier   int           // default 2, pure exponential (no jitter)
	Classifier   ai.ClassifierConfig
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 2 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2
	}
	if len(p.Classifier.AuthSignatures) == 0 && len(p.Classifier.TransientSignatures) == 0 {
		p.Classifier = ai.DefaultClassifierConfig()
	}
	return p
}

// phase of the retry state machine.
type phase int

const (
	phaseAttempting phase = iota
	phaseWaiting
	phaseSucceeded
	phaseFailed
)

// policyState holds the mutable loop state. Created fresh per Analyze call
// and discarded when the call resolves.
type policyState struct {
	phase        phase
	attemptsMade int
	currentDelay time.Duration
	failure      ai.FailureKind
}

// afterAttempt is the pure transition rule applied to an attempt outcome.
// Authorization and unclassified failures abort immediately; transient
// failures move to Waiting while attempts remain.
func afterAttempt(st policyState, p Policy, kind ai.FailureKind, failed bool) policyState {
	st.attemptsMade++
	if !failed {
		st.phase = phaseSucceeded
		return st
	}
	st.failure = kind
	if kind != ai.FailureTransient || st.attemptsMade >= p.MaxAttempts {
		st.phase = phaseFailed
		return st
	}
	st.phase = phaseWaiting
	return st
}

// afterWait advances Waiting back to Attempting, doubling the delay.
func afterWait(st policyState, p Policy) policyState {
	st.currentDelay *= time.Duration(p.Multiplier)
	st.phase = phaseAttempting
	return st
}

// Invoker decorates an ai.Client with the retry policy. It implements
// ai.Client itself so callers wire it in place of the raw adapter.
type Invoker struct {
	inner  ai.Client
	policy Policy

	// sleep is injectable for tests; default waits or aborts on ctx.Done().
	sleep func(ctx context.Context, d time.Duration) error
}

func New(inner ai.Client, policy Policy) *Invoker {
	return &Invoker{
		inner:  inner,
		policy: policy.withDefaults(),
		sleep:  ctxSleep,
	}
}

// Analyze executes one logical analysis call, retrying transient failures
// with exponential backoff. Returns the inner result, an *ai.InvocationError
// (matching ai.ErrAuthorization / ai.ErrMaxRetries via errors.Is and carrying
// the attempt count), or the original unclassified error untouched.
func (iv *Invoker) Analyze(ctx context.Context, req ai.AnalysisRequest) (*ai.AnalysisResult, error) {
	st := policyState{phase: phaseAttempting, currentDelay: iv.policy.InitialDelay}
	var lastErr error

	for {
		switch st.phase {
		case phaseAttempting:
			result, err := iv.inner.Analyze(ctx, req)
			if err == nil {
				st = afterAttempt(st, iv.policy, "", false)
				if st.attemptsMade > 1 {
					log.Printf("ai analyze recovered attempt=%d", st.attemptsMade)
				}
				return result, nil
			}
			lastErr = err
			kind := ai.Classify(iv.policy.Classifier, err)
			st = afterAttempt(st, iv.policy, kind, true)
			if st.phase == phaseWaiting {
				log.Printf("ai analyze transient failure attempt=%d retry_in=%s err=%v", st.attemptsMade, st.currentDelay, err)
			}

		case phaseWaiting:
			if err := iv.sleep(ctx, st.currentDelay); err != nil {
				return nil, err
			}
			st = afterWait(st, iv.policy)

		case phaseFailed:
			if st.failure == ai.FailureUnclassified {
				// surfaced untouched; caller sees the provider error as-is
				return nil, lastErr
			}
			return nil, &ai.InvocationError{Kind: st.failure, Attempts: st.attemptsMade, Err: lastErr}
		}
	}
}

// ctxSleep waits for d or aborts when the caller abandons the request.
func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
