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

// OpenAI implements Provider for the OpenAI Chat Completions API and
// compatible endpoints (local inference servers, gateways).
type OpenAI struct {
	httpClient *http.Client
	baseURL    string
	apiKey     *secret.Buffer
}

// NewOpenAI creates an OpenAI provider. baseURL is the API root
// (e.g. "https://api.openai.com"); empty uses the public endpoint.
func NewOpenAI(httpClient *http.Client, baseURL string, apiKey *secret.Buffer) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &OpenAI{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// openaiRequest is the Chat Completions wire format. The system prompt
// travels as the first message with role "system".
type openaiRequest struct {
	Model               string          `json:"model"`
	Messages            []openaiMessage `json:"messages"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	Temperature         *float64        `json:"temperature,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openaiResponse is the Chat Completions response format, reduced to
// the fields Roster consumes.
type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends a blocking completion request.
func (provider *OpenAI) Complete(ctx context.Context, request Request) (*Response, error) {
	wireRequest := openaiRequest{
		Model:               request.Model,
		MaxCompletionTokens: request.MaxTokens,
		Temperature:         request.Temperature,
	}
	if request.System != "" {
		wireRequest.Messages = append(wireRequest.Messages, openaiMessage{Role: "system", Content: request.System})
	}
	for _, message := range request.Messages {
		wireRequest.Messages = append(wireRequest.Messages, openaiMessage(message))
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+provider.apiKey.String())

	httpResponse, err := doProviderRequest(ctx, provider.httpClient,
		provider.baseURL+"/v1/chat/completions", headers, wireRequest, "llm/openai")
	if err != nil {
		return nil, err
	}
	defer httpResponse.Body.Close()

	var wireResponse openaiResponse
	if err := json.NewDecoder(httpResponse.Body).Decode(&wireResponse); err != nil {
		return nil, fmt.Errorf("llm/openai: decoding response: %w", err)
	}
	if len(wireResponse.Choices) == 0 {
		return nil, fmt.Errorf("llm/openai: response has no choices")
	}

	choice := wireResponse.Choices[0]
	return &Response{
		Model:      wireResponse.Model,
		Text:       choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage: Usage{
			InputTokens:  wireResponse.Usage.PromptTokens,
			OutputTokens: wireResponse.Usage.CompletionTokens,
		},
	}, nil
}
