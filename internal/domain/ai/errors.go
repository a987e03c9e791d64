package ai

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAuthorization indicates a bad/missing credential (401/403, invalid API
// key, or a "requested entity was not found" response which in this domain
// signals a bad key). Never retried; user must re-authorize.
var ErrAuthorization = errors.New("ai authorization failed")

// ErrTransient indicates a retryable network/server-side failure (5xx, 429,
// transport error, UNKNOWN status).
var ErrTransient = errors.New("ai service temporarily unavailable")

// ErrMaxRetries indicates the retry ceiling was exhausted on transient failures.
var ErrMaxRetries = errors.New("ai max retries reached")

// FailureKind enum hasil klasifikasi
type FailureKind string

const (
	FailureAuthorization FailureKind = "authorization"
	FailureTransient     FailureKind = "transient"
	FailureUnclassified  FailureKind = "unclassified"
)

// InvocationError is the terminal failure an invoker surfaces after its
// retry loop resolves. It keeps the classification and the attempt count
// alongside the last underlying error, so the audit log records what
// actually happened instead of re-deriving it from flattened text.
type InvocationError struct {
	Kind     FailureKind
	Attempts int
	Err      error
}

func (e *InvocationError) Error() string {
	switch e.Kind {
	case FailureAuthorization:
		return fmt.Sprintf("%v: %v", ErrAuthorization, e.Err)
	case FailureTransient:
		return fmt.Sprintf("%v after %d attempts: %v", ErrMaxRetries, e.Attempts, e.Err)
	}
	return e.Err.Error()
}

// Unwrap exposes both the matching sentinel and the underlying error, so
// errors.Is(err, ErrAuthorization/ErrMaxRetries) and errors.As on the
// provider's StatusError keep working through the wrap.
func (e *InvocationError) Unwrap() []error {
	switch e.Kind {
	case FailureAuthorization:
		return []error{ErrAuthorization, e.Err}
	case FailureTransient:
		return []error{ErrMaxRetries, e.Err}
	}
	return []error{e.Err}
}

// StatusError carries the provider's HTTP/RPC status alongside its message.
// Adapters wrap non-OK responses in this so classification can look at the
// code instead of parsing error strings.
type StatusError struct {
	Code    int    // HTTP status code, 0 when unknown
	Status  string // provider status string, e.g. PERMISSION_DENIED, UNAVAILABLE
	Message string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("ai request failed: status %d (%s): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("ai request failed: status %d: %s", e.Code, e.Message)
}

// ClassifierConfig holds the failure-signature heuristics. The exact
// substrings differ per provider, jadi dibiarkan configurable; defaults cover
// the error texts observed from Gemini and OpenAI-compatible endpoints.
type ClassifierConfig struct {
	AuthSignatures      []string
	TransientSignatures []string
}

// DefaultClassifierConfig returns the signature lists used in production.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		AuthSignatures: []string{
			"api key not valid",
			"api_key_invalid",
			"invalid api key",
			"incorrect api key",
			"invalid authentication",
			"unauthenticated",
			"permission denied",
			"permission_denied",
			"requested entity was not found",
		},
		TransientSignatures: []string{
			"rpc failed",
			"rpc error",
			"fetch failed",
			"network error",
			"connection refused",
			"connection reset",
			"broken pipe",
			"timeout",
			"deadline exceeded",
			"temporarily unavailable",
			"service unavailable",
			"internal server error",
			"bad gateway",
			"overloaded",
			"unknown",
		},
	}
}

var authStatuses = map[string]bool{
	"UNAUTHENTICATED":   true,
	"PERMISSION_DENIED": true,
	"NOT_FOUND":         true,
}

var transientStatuses = map[string]bool{
	"UNAVAILABLE":        true,
	"INTERNAL":           true,
	"UNKNOWN":            true,
	"RESOURCE_EXHAUSTED": true,
	"DEADLINE_EXCEEDED":  true,
}

// Classify maps an adapter error onto a FailureKind. Precedence:
// authorization > transient > unclassified. Status codes win over substring
// heuristics; substrings are the fallback for transport-level errors that
// never reached the remote service.
func Classify(cfg ClassifierConfig, err error) FailureKind {
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == 401 || se.Code == 403 || se.Code == 404:
			return FailureAuthorization
		case authStatuses[se.Status]:
			return FailureAuthorization
		case se.Code == 429 || se.Code >= 500:
			return FailureTransient
		case transientStatuses[se.Status]:
			return FailureTransient
		}
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range cfg.AuthSignatures {
		if strings.Contains(msg, sig) {
			return FailureAuthorization
		}
	}
	for _, sig := range cfg.TransientSignatures {
		if strings.Contains(msg, sig) {
			return FailureTransient
		}
	}
	return FailureUnclassified
}
