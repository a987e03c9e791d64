package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/bryanwahyu/teknisi-ai/internal/domain/ai"
	"github.com/bryanwahyu/teknisi-ai/internal/infra/ai/prompt"
	openai "github.com/sashabaranov/go-openai"
)

const maxTokens = 2048

// Client is the OpenAI-backed fallback adapter. It supports photo input but
// not web-search grounding, so results carry no citations.
type Client struct {
	*openai.Client
	Model  string
	apiKey string
}

func NewClient(apiKey, model string) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model, apiKey: apiKey}
}

// CredentialConfigured implements ai.CredentialChecker.
func (c *Client) CredentialConfigured() bool {
	return strings.TrimSpace(c.apiKey) != ""
}

func (c *Client) Analyze(ctx context.Context, req ai.AnalysisRequest) (*ai.AnalysisResult, error) {
	model := c.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	// foto dulu sesuai urutan upload, text part terakhir
	parts := make([]openai.ChatMessagePart, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: fmt.Sprintf("data:%s;base64,%s", img.MediaType, base64.StdEncoding.EncodeToString(img.Data)),
			},
		})
	}
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt.UserText(req),
	})

	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemInstruction},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		chatReq.MaxCompletionTokens = maxTokens
	} else {
		chatReq.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, translateError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no completion returned")
	}

	return &ai.AnalysisResult{
		SummaryText: strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:       model,
	}, nil
}

// translateError maps go-openai errors onto ai.StatusError so the shared
// classifier can use the HTTP status code.
func translateError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ai.StatusError{Code: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	return fmt.Errorf("failed to create chat completion: %w", err)
}
