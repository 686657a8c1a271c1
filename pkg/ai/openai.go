package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	dberrors "thornfield.dev/daybook/pkg/errors"
)

// OpenAI API configuration. The base URL is overridable so any
// OpenAI-compatible endpoint (Groq, Together, a local proxy) can serve as
// the backend.
const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIDefaultModel   = "gpt-4o-mini"
	openAIMaxTokens      = 4096
)

// OpenAIProvider implements Provider for OpenAI-compatible chat APIs.
type OpenAIProvider struct {
	apiKey      string
	endpoint    string
	model       string
	temperature float64
	logger      *slog.Logger
	client      *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider. baseURL may be empty for
// the official API, or point at any OpenAI-compatible server.
func NewOpenAIProvider(apiKey, baseURL, model string, temperature float64, logger *slog.Logger) *OpenAIProvider {
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAIProvider{
		apiKey:      apiKey,
		endpoint:    strings.TrimSuffix(baseURL, "/") + "/chat/completions",
		model:       model,
		temperature: temperature,
		logger:      logger,
		client:      &http.Client{},
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

// IsAvailable checks if the provider is configured and ready.
func (p *OpenAIProvider) IsAvailable() bool {
	return p.apiKey != ""
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	Delta        *openAIDelta  `json:"delta,omitempty"`
	FinishReason string        `json:"finish_reason"`
}

type openAIDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}

// Chat performs a single-turn chat completion.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	if !p.IsAvailable() {
		return nil, dberrors.NewAIError(ProviderOpenAI, "Chat", "provider not configured")
	}

	apiMessages := p.convertMessages(messages)

	reqBody := openAIRequest{
		Model:       p.model,
		Messages:    apiMessages,
		MaxTokens:   openAIMaxTokens,
		Temperature: p.temperature,
	}

	p.logDebug("sending chat request", "model", p.model, "message_count", len(apiMessages))

	respBody, err := p.doRequest(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	var resp openAIResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, dberrors.NewAIErrorWithCause(ProviderOpenAI, "Chat",
			"failed to parse response", err)
	}

	if len(resp.Choices) == 0 {
		return nil, dberrors.NewAIError(ProviderOpenAI, "Chat", "no choices in response")
	}

	choice := resp.Choices[0]

	p.logDebug("received response",
		"finish_reason", choice.FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return &Response{
		Content:      choice.Message.Content,
		StopReason:   choice.FinishReason,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// StreamChat performs a streaming chat completion.
func (p *OpenAIProvider) StreamChat(ctx context.Context, messages []Message) (<-chan StreamChunk, error) {
	if !p.IsAvailable() {
		return nil, dberrors.NewAIError(ProviderOpenAI, "StreamChat", "provider not configured")
	}

	apiMessages := p.convertMessages(messages)

	reqBody := openAIRequest{
		Model:       p.model,
		Messages:    apiMessages,
		MaxTokens:   openAIMaxTokens,
		Temperature: p.temperature,
		Stream:      true,
	}

	p.logDebug("sending streaming chat request", "model", p.model, "message_count", len(apiMessages))

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, dberrors.NewAIErrorWithCause(ProviderOpenAI, "StreamChat",
			"failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, dberrors.NewAIErrorWithCause(ProviderOpenAI, "StreamChat",
			"failed to create request", err)
	}

	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, dberrors.NewAIErrorWithCause(ProviderOpenAI, "StreamChat",
			"request failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, p.handleErrorResponse(resp, "StreamChat")
	}

	chunks := make(chan StreamChunk)
	go p.streamResponse(ctx, resp.Body, chunks)

	return chunks, nil
}

// streamResponse reads SSE events and sends chunks to the channel.
func (p *OpenAIProvider) streamResponse(ctx context.Context, body io.ReadCloser, chunks chan<- StreamChunk) {
	defer close(chunks)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			chunks <- StreamChunk{Error: ctx.Err(), Done: true}
			return
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			chunks <- StreamChunk{Done: true}
			return
		}

		var resp openAIResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			p.logDebug("failed to parse stream event", "error", err, "data", data)
			continue
		}

		if len(resp.Choices) > 0 && resp.Choices[0].Delta != nil {
			delta := resp.Choices[0].Delta
			if delta.Content != "" {
				chunks <- StreamChunk{Content: delta.Content}
			}
			if resp.Choices[0].FinishReason != "" {
				chunks <- StreamChunk{Done: true}
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		chunks <- StreamChunk{
			Error: dberrors.NewAIErrorWithCause(ProviderOpenAI, "StreamChat",
				"stream read error", err),
			Done: true,
		}
	}
}

func (p *OpenAIProvider) convertMessages(messages []Message) []openAIMessage {
	apiMessages := make([]openAIMessage, 0, len(messages))
	for _, msg := range messages {
		apiMessages = append(apiMessages, openAIMessage(msg))
	}
	return apiMessages
}

// doRequest performs an HTTP request and returns the response body.
func (p *OpenAIProvider) doRequest(ctx context.Context, reqBody openAIRequest) ([]byte, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, dberrors.NewAIErrorWithCause(ProviderOpenAI, "Chat",
			"failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, dberrors.NewAIErrorWithCause(ProviderOpenAI, "Chat",
			"failed to create request", err)
	}

	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, dberrors.NewAIErrorWithCause(ProviderOpenAI, "Chat",
			"request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.handleErrorResponse(resp, "Chat")
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dberrors.NewAIErrorWithCause(ProviderOpenAI, "Chat",
			"failed to read response", err)
	}

	return respBody, nil
}

func (p *OpenAIProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
}

// handleErrorResponse parses error responses from the API.
func (p *OpenAIProvider) handleErrorResponse(resp *http.Response, operation string) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr openAIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return dberrors.NewAIErrorWithStatus(ProviderOpenAI, operation,
			resp.StatusCode, apiErr.Error.Message)
	}

	return dberrors.NewAIErrorWithStatus(ProviderOpenAI, operation,
		resp.StatusCode, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
}

func (p *OpenAIProvider) logDebug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
