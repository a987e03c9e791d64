package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bryanwahyu/teknisi-ai/internal/domain/ai"
	"github.com/bryanwahyu/teknisi-ai/internal/infra/ai/prompt"
)

const maxOutputTokens = 8192

// Config holds configuration for the Gemini adapter.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		Model:   "gemini-2.5-flash",
		Timeout: 2 * time.Minute,
	}
}

// Client calls the Gemini generateContent endpoint with googleSearch
// grounding enabled, returning the summary text plus web citations.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CredentialConfigured implements ai.CredentialChecker.
func (c *Client) CredentialConfigured() bool {
	return strings.TrimSpace(c.apiKey) != ""
}

// Analyze executes exactly one request/response exchange. Retry and failure
// classification live in the invoker wrapper, not here.
func (c *Client) Analyze(ctx context.Context, req ai.AnalysisRequest) (*ai.AnalysisResult, error) {
	if !c.CredentialConfigured() {
		return nil, fmt.Errorf("%w: API key not configured", ai.ErrAuthorization)
	}

	// parts: foto dulu sesuai urutan upload, baru text part
	parts := make([]geminiPart, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MimeType: img.MediaType,
				Data:     base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	parts = append(parts, geminiPart{Text: prompt.UserText(req)})

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.4,
			MaxOutputTokens: maxOutputTokens,
		},
	}
	if req.SystemInstruction != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemInstruction}}}
	}
	if req.EnableWebSearch {
		body.Tools = []geminiTool{{GoogleSearch: &geminiGoogleSearch{}}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, raw)
	}

	var out geminiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Error != nil {
		return nil, &ai.StatusError{Code: out.Error.Code, Status: out.Error.Status, Message: out.Error.Message}
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no completion returned")
	}

	var sb strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	result := &ai.AnalysisResult{
		SummaryText: strings.TrimSpace(sb.String()),
		Citations:   extractCitations(&out),
		Model:       c.model,
	}
	return result, nil
}

// statusError decodes the API error envelope when present so the classifier
// can look at code/status instead of raw body text.
func statusError(code int, raw []byte) error {
	var envelope struct {
		Error *geminiError `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		return &ai.StatusError{Code: code, Status: envelope.Error.Status, Message: envelope.Error.Message}
	}
	return &ai.StatusError{Code: code, Message: string(raw)}
}

// extractCitations pulls {uri, title} pairs from grounding metadata.
// Entries missing either field are dropped.
func extractCitations(resp *geminiResponse) []ai.Citation {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	gm := resp.Candidates[0].GroundingMetadata
	citations := make([]ai.Citation, 0, len(gm.GroundingChunks))
	for _, chunk := range gm.GroundingChunks {
		if chunk.Web == nil || chunk.Web.URI == "" || chunk.Web.Title == "" {
			continue
		}
		citations = append(citations, ai.Citation{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	if len(citations) == 0 {
		return nil
	}
	return citations
}
