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

	dberrors "thornfield.dev/daybook/pkg/errors"
)

// Ollama API configuration.
const (
	ollamaDefaultHost  = "http://localhost:11434"
	ollamaDefaultModel = "llama3.2"
	ollamaChatPath     = "/api/chat"
)

// OllamaProvider implements Provider for a local Ollama instance.
type OllamaProvider struct {
	host        string
	model       string
	temperature float64
	logger      *slog.Logger
	client      *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(host, model string, temperature float64, logger *slog.Logger) *OllamaProvider {
	if host == "" {
		host = ollamaDefaultHost
	}
	if model == "" {
		model = ollamaDefaultModel
	}
	return &OllamaProvider{
		host:        host,
		model:       model,
		temperature: temperature,
		logger:      logger,
		client:      &http.Client{},
	}
}

// Name returns the provider name.
func (p *OllamaProvider) Name() string {
	return ProviderOllama
}

// IsAvailable checks if the provider is configured and ready. Ollama needs
// only a host; local instances take no API key.
func (p *OllamaProvider) IsAvailable() bool {
	return p.host != ""
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaResponse struct {
	Model     string        `json:"model"`
	CreatedAt string        `json:"created_at"`
	Message   ollamaMessage `json:"message"`
	Done      bool          `json:"done"`
	// Token usage fields (only present when done=true)
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// Chat performs a single-turn chat completion.
func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	if !p.IsAvailable() {
		return nil, dberrors.NewAIError(ProviderOllama, "Chat", "provider not configured")
	}

	apiMessages := p.convertMessages(messages)

	reqBody := ollamaRequest{
		Model:    p.model,
		Messages: apiMessages,
		Stream:   false,
		Options:  p.options(),
	}

	p.logDebug("sending chat request", "model", p.model, "message_count", len(apiMessages))

	respBody, err := p.doRequest(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, dberrors.NewAIErrorWithCause(ProviderOllama, "Chat",
			"failed to parse response", err)
	}

	p.logDebug("received response",
		"prompt_tokens", resp.PromptEvalCount,
		"completion_tokens", resp.EvalCount)

	stopReason := "stop"
	if !resp.Done {
		stopReason = "incomplete"
	}

	return &Response{
		Content:      resp.Message.Content,
		StopReason:   stopReason,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
	}, nil
}

// StreamChat performs a streaming chat completion.
func (p *OllamaProvider) StreamChat(ctx context.Context, messages []Message) (<-chan StreamChunk, error) {
	if !p.IsAvailable() {
		return nil, dberrors.NewAIError(ProviderOllama, "StreamChat", "provider not configured")
	}

	apiMessages := p.convertMessages(messages)

	reqBody := ollamaRequest{
		Model:    p.model,
		Messages: apiMessages,
		Stream:   true,
		Options:  p.options(),
	}

	p.logDebug("sending streaming chat request", "model", p.model, "message_count", len(apiMessages))

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, dberrors.NewAIErrorWithCause(ProviderOllama, "StreamChat",
			"failed to marshal request", err)
	}

	url := p.host + ollamaChatPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, dberrors.NewAIErrorWithCause(ProviderOllama, "StreamChat",
			"failed to create request", err)
	}

	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, dberrors.NewAIErrorWithCause(ProviderOllama, "StreamChat",
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

// streamResponse reads newline-delimited JSON and sends chunks to the channel.
func (p *OllamaProvider) streamResponse(ctx context.Context, body io.ReadCloser, chunks chan<- StreamChunk) {
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

		var resp ollamaResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			p.logDebug("failed to parse stream chunk", "error", err, "line", line)
			continue
		}

		if resp.Message.Content != "" {
			chunks <- StreamChunk{Content: resp.Message.Content}
		}

		if resp.Done {
			chunks <- StreamChunk{Done: true}
			return
		}
	}

	if err := scanner.Err(); err != nil {
		chunks <- StreamChunk{
			Error: dberrors.NewAIErrorWithCause(ProviderOllama, "StreamChat",
				"stream read error", err),
			Done: true,
		}
	}
}

func (p *OllamaProvider) convertMessages(messages []Message) []ollamaMessage {
	apiMessages := make([]ollamaMessage, 0, len(messages))
	for _, msg := range messages {
		apiMessages = append(apiMessages, ollamaMessage(msg))
	}
	return apiMessages
}

func (p *OllamaProvider) options() *ollamaOptions {
	if p.temperature == 0 {
		return nil
	}
	return &ollamaOptions{Temperature: p.temperature}
}

// doRequest performs an HTTP request and returns the response body.
func (p *OllamaProvider) doRequest(ctx context.Context, reqBody ollamaRequest) ([]byte, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, dberrors.NewAIErrorWithCause(ProviderOllama, "Chat",
			"failed to marshal request", err)
	}

	url := p.host + ollamaChatPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, dberrors.NewAIErrorWithCause(ProviderOllama, "Chat",
			"failed to create request", err)
	}

	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, dberrors.NewAIErrorWithCause(ProviderOllama, "Chat",
			"request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.handleErrorResponse(resp, "Chat")
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dberrors.NewAIErrorWithCause(ProviderOllama, "Chat",
			"failed to read response", err)
	}

	return respBody, nil
}

func (p *OllamaProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
}

// handleErrorResponse parses error responses from the Ollama API.
func (p *OllamaProvider) handleErrorResponse(resp *http.Response, operation string) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr ollamaError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return dberrors.NewAIErrorWithStatus(ProviderOllama, operation,
			resp.StatusCode, apiErr.Error)
	}

	return dberrors.NewAIErrorWithStatus(ProviderOllama, operation,
		resp.StatusCode, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
}

func (p *OllamaProvider) logDebug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
