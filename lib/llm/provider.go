// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm provides minimal chat-completion clients for LLM APIs.
//
// Roster uses a language model for exactly one thing: mapping free-text
// requests onto catalog commands (lib/intent). That call is a single
// short completion, so this package deliberately implements only
// blocking completion — no streaming, no tool use. Implementations
// translate between the common types here and each vendor's wire
// format over plain net/http.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Provider is the interface for LLM API backends.
type Provider interface {
	// Complete sends a request and blocks until the full response is
	// available. Honors ctx cancellation and deadlines.
	Complete(ctx context.Context, request Request) (*Response, error)
}

// Message is one turn of a conversation.
type Message struct {
	// Role is "user" or "assistant".
	Role string

	// Content is the text of the turn.
	Content string
}

// Request is a provider-independent completion request.
type Request struct {
	// Model is the provider model name.
	Model string

	// System is the system prompt. Empty omits it.
	System string

	// Messages are the conversation turns, oldest first.
	Messages []Message

	// MaxTokens caps the completion length.
	MaxTokens int

	// Temperature overrides the sampling temperature when non-nil.
	Temperature *float64
}

// Usage reports token consumption for a completion.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Response is a provider-independent completion result.
type Response struct {
	// Model is the model that produced the completion.
	Model string

	// Text is the concatenated text content of the completion.
	Text string

	// StopReason is the provider's stop reason string ("end_turn",
	// "stop", "max_tokens", ...). Treated as informational.
	StopReason string

	// Usage reports token consumption.
	Usage Usage
}

// ProviderError is returned when the LLM API responds with an error.
type ProviderError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Type is the provider-specific error type string
	// (e.g., "invalid_request_error", "rate_limit_error").
	Type string

	// Message is the human-readable error description.
	Message string
}

func (err *ProviderError) Error() string {
	if err.Type != "" {
		return fmt.Sprintf("llm: HTTP %d: %s: %s", err.StatusCode, err.Type, err.Message)
	}
	return fmt.Sprintf("llm: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsRateLimited reports whether the error is a rate limit response.
func (err *ProviderError) IsRateLimited() bool {
	return err.StatusCode == http.StatusTooManyRequests
}

// doProviderRequest marshals wireRequest as JSON, POSTs it, applies
// the provider's headers, and returns the HTTP response. Returns a
// ProviderError for non-200 status codes. On success the caller closes
// the response body; on error it is already closed.
func doProviderRequest(ctx context.Context, httpClient *http.Client, endpoint string, headers http.Header, wireRequest any, prefix string) (*http.Response, error) {
	body, err := json.Marshal(wireRequest)
	if err != nil {
		return nil, fmt.Errorf("%s: marshaling request: %w", prefix, err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", prefix, err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	for key, values := range headers {
		for _, value := range values {
			httpRequest.Header.Add(key, value)
		}
	}

	httpResponse, err := httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("%s: sending request: %w", prefix, err)
	}

	if httpResponse.StatusCode != http.StatusOK {
		defer httpResponse.Body.Close()
		return nil, readProviderError(httpResponse)
	}

	return httpResponse, nil
}

// readProviderError parses an error response body in the common
// provider error format used by Anthropic, OpenAI, and compatible
// APIs: {"error":{"type":"...","message":"..."}}.
func readProviderError(httpResponse *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 4096))

	var wireError struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Error.Message != "" {
		return &ProviderError{
			StatusCode: httpResponse.StatusCode,
			Type:       wireError.Error.Type,
			Message:    wireError.Error.Message,
		}
	}

	return &ProviderError{
		StatusCode: httpResponse.StatusCode,
		Message:    string(body),
	}
}
