package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/clarifai/internal/model"
)

// AnthropicClient implements Client for Anthropic's Messages API
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     model.LLMConfig
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float32            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
}

// anthropicStreamEvent covers the streamed event types we read
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(config model.LLMConfig, httpClient *http.Client) (*AnthropicClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeoutOf(config, 60*time.Second)}
	}

	return &AnthropicClient{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		config:     config,
	}, nil
}

func (c *AnthropicClient) Name() string {
	return "anthropic"
}

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	httpResp, err := c.do(ctx, c.messagesRequest(req, false))
	if err != nil {
		return "", err
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no content in Anthropic response")
	}

	return strings.TrimSpace(sb.String()), nil
}

// Stream reads the server-sent event stream and forwards text deltas
func (c *AnthropicClient) Stream(ctx context.Context, req Request, onToken func(string)) (string, error) {
	httpResp, err := c.do(ctx, c.messagesRequest(req, true))
	if err != nil {
		return "", err
	}
	defer func() { _ = httpResp.Body.Close() }()

	var sb strings.Builder
	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				sb.WriteString(event.Delta.Text)
				onToken(event.Delta.Text)
			}
		case "error":
			return sb.String(), fmt.Errorf("Anthropic stream error: %s - %s", event.Error.Type, event.Error.Message)
		case "message_stop":
			return sb.String(), nil
		}
	}

	if err := scanner.Err(); err != nil {
		return sb.String(), fmt.Errorf("read stream: %w", err)
	}
	return sb.String(), nil
}

func (c *AnthropicClient) messagesRequest(req Request, stream bool) anthropicRequest {
	req = withDefaults(req, c.config.MaxTokens, c.config.Temperature)
	if req.Model == "" {
		req.Model = "claude-3-5-haiku-latest"
	}

	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n\n" + jsonInstruction)
	}

	return anthropicRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		Stream:      stream,
	}
}

// do posts to /v1/messages and returns the response when it is a 200
func (c *AnthropicClient) do(ctx context.Context, apiReq anthropicRequest) (*http.Response, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("Anthropic API error: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer func() { _ = httpResp.Body.Close() }()
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))

		var apiErr anthropicError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("Anthropic API error (%d): %s - %s", httpResp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("Anthropic API error (%d): %s", httpResp.StatusCode, string(respBody))
	}

	return httpResp, nil
}
