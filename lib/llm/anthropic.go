// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/roster-foundation/roster/lib/secret"
)

// anthropicVersion is the API version header value the Messages API
// requires.
const anthropicVersion = "2023-06-01"

// Anthropic implements Provider for the Anthropic Messages API.
type Anthropic struct {
	httpClient *http.Client
	baseURL    string
	apiKey     *secret.Buffer
}

// NewAnthropic creates an Anthropic provider. baseURL is the API root
// (e.g. "https://api.anthropic.com"); empty uses the public endpoint.
// The provider reads the key from the buffer on every request and
// never copies it elsewhere.
func NewAnthropic(httpClient *http.Client, baseURL string, apiKey *secret.Buffer) *Anthropic {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &Anthropic{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// anthropicRequest is the Messages API wire format.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// anthropicResponse is the Messages API response format, reduced to
// the fields Roster consumes.
type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      anthropicUsage `json:"usage"`
}

// Complete sends a blocking completion request.
func (provider *Anthropic) Complete(ctx context.Context, request Request) (*Response, error) {
	wireRequest := anthropicRequest{
		Model:       request.Model,
		MaxTokens:   request.MaxTokens,
		System:      request.System,
		Temperature: request.Temperature,
	}
	for _, message := range request.Messages {
		wireRequest.Messages = append(wireRequest.Messages, anthropicMessage(message))
	}

	headers := http.Header{}
	headers.Set("x-api-key", provider.apiKey.String())
	headers.Set("anthropic-version", anthropicVersion)

	httpResponse, err := doProviderRequest(ctx, provider.httpClient,
		provider.baseURL+"/v1/messages", headers, wireRequest, "llm/anthropic")
	if err != nil {
		return nil, err
	}
	defer httpResponse.Body.Close()

	var wireResponse anthropicResponse
	if err := json.NewDecoder(httpResponse.Body).Decode(&wireResponse); err != nil {
		return nil, fmt.Errorf("llm/anthropic: decoding response: %w", err)
	}

	response := &Response{
		Model:      wireResponse.Model,
		StopReason: wireResponse.StopReason,
		Usage:      Usage(wireResponse.Usage),
	}
	for _, block := range wireResponse.Content {
		if block.Type == "text" {
			response.Text += block.Text
		}
	}
	return response, nil
}
