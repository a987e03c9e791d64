package ai

import "context"

// Client is the outbound port to the generative-AI collaborator.
type Client interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error)
}

// CredentialChecker is implemented by adapters that can report whether a
// usable credential is currently configured, supaya caller bisa minta
// re-authorize sebelum kirim request.
type CredentialChecker interface {
	CredentialConfigured() bool
}
