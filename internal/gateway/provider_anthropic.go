package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ErrMalformedResponse reports an external reply that did not carry usable
// briefing text.
var ErrMalformedResponse = errors.New("malformed briefing response")

// UpstreamError reports a non-success status from the external service.
type UpstreamError struct {
	Status int
	Msg    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("briefing upstream error (status %d): %s", e.Status, e.Msg)
}

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// AnthropicProvider generates briefings through the Anthropic Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider builds the provider; model falls back to the default
// when empty.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Interpret sends only the structured request fields, rendered into the
// advisory prompt, and returns the first text block of the reply.
func (p *AnthropicProvider) Interpret(ctx context.Context, req Request) (string, error) {
	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: briefingSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(briefingUserPrompt(req))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in Anthropic response: %w", ErrMalformedResponse)
}

const briefingSystemPrompt = `You are a senior enrolment-operations policy advisor.
In plain English, explain to a government official:
1. What the forecast number means for ground operations (staff/capacity).
2. One specific action to take (e.g. move mobile vans, open more slots).
Style: simple, authoritative, no technical jargon. Max 45 words.`

// briefingUserPrompt renders the request's structured fields. Nothing else —
// no records, no series — is ever included.
func briefingUserPrompt(req Request) string {
	return fmt.Sprintf(
		"The %s model predicts %.0f updates with %.0f%% confidence for the next cycle (scope: %s).",
		req.Model, req.Volume, req.Confidence*100, req.ScopeLabel)
}
