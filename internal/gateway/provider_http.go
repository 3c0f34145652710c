package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPProvider calls a generic interpretation service: POST the structured
// request as JSON, expect {"interpretation": "..."} back. Any other shape is
// a malformed-response failure.
type HTTPProvider struct {
	endpoint string
	client   *http.Client
}

// NewHTTPProvider builds the provider around a shared HTTP client.
func NewHTTPProvider(endpoint string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{endpoint: endpoint, client: client}
}

func (p *HTTPProvider) Name() string { return "http" }

type interpretationReply struct {
	Interpretation *string `json:"interpretation"`
}

func (p *HTTPProvider) Interpret(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling briefing request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating briefing request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("briefing service error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading briefing response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{Status: resp.StatusCode, Msg: strings.TrimSpace(string(respBody))}
	}

	var reply interpretationReply
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return "", fmt.Errorf("parsing briefing response: %w", ErrMalformedResponse)
	}
	if reply.Interpretation == nil || strings.TrimSpace(*reply.Interpretation) == "" {
		return "", fmt.Errorf("briefing response missing interpretation: %w", ErrMalformedResponse)
	}
	return *reply.Interpretation, nil
}
