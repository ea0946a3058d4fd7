package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPAgent is a reference Agent (spec.md §6.1) implementation that posts
// the assembled prompt to an external HTTP endpoint and returns its text
// response. Grounded on the same request/deadline shape as Advisor's call
// to the advisory service — the scheduler treats both as opaque HTTP
// collaborators it must respect the deadline of.
type HTTPAgent struct {
	baseURL string
	http    *http.Client
}

// NewHTTPAgent returns an Agent that posts to baseURL + "/v1/complete".
func NewHTTPAgent(baseURL string) *HTTPAgent {
	return &HTTPAgent{
		baseURL: baseURL,
		http:    &http.Client{},
	}
}

type agentRequest struct {
	Prompt string `json:"prompt"`
}

type agentResponse struct {
	Text string `json:"text"`
}

// Run posts prompt and returns the Agent's text response. ctx's deadline
// (set by the executor's per-task timeout) governs how long this blocks.
func (a *HTTPAgent) Run(ctx context.Context, prompt string) (string, error) {
	raw, err := json.Marshal(agentRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("agent: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/complete", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("agent: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("agent: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("agent: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out agentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("agent: decode response: %w", err)
	}
	return out.Text, nil
}
