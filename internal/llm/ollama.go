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

// OllamaClient implements Client for a local Ollama server
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	config     model.LLMConfig
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(config model.LLMConfig, httpClient *http.Client) (*OllamaClient, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	if httpClient == nil {
		// Local models can be slow
		httpClient = &http.Client{Timeout: timeoutOf(config, 120*time.Second)}
	}

	return &OllamaClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		config:     config,
	}, nil
}

func (c *OllamaClient) Name() string {
	return "ollama"
}

func (c *OllamaClient) Complete(ctx context.Context, req Request) (string, error) {
	apiReq, err := c.generateRequest(req, false)
	if err != nil {
		return "", err
	}

	httpResp, err := c.do(ctx, apiReq)
	if err != nil {
		return "", err
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	return strings.TrimSpace(resp.Response), nil
}

// Stream reads newline-delimited JSON chunks until one reports done
func (c *OllamaClient) Stream(ctx context.Context, req Request, onToken func(string)) (string, error) {
	apiReq, err := c.generateRequest(req, true)
	if err != nil {
		return "", err
	}

	httpResp, err := c.do(ctx, apiReq)
	if err != nil {
		return "", err
	}
	defer func() { _ = httpResp.Body.Close() }()

	var sb strings.Builder
	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ollamaResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return sb.String(), fmt.Errorf("unmarshal chunk: %w", err)
		}
		if chunk.Error != "" {
			return sb.String(), fmt.Errorf("ollama stream error: %s", chunk.Error)
		}
		if chunk.Response != "" {
			sb.WriteString(chunk.Response)
			onToken(chunk.Response)
		}
		if chunk.Done {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return sb.String(), fmt.Errorf("read stream: %w", err)
	}
	return sb.String(), nil
}

func (c *OllamaClient) generateRequest(req Request, stream bool) (ollamaRequest, error) {
	req = withDefaults(req, c.config.MaxTokens, c.config.Temperature)
	if req.Model == "" {
		return ollamaRequest{}, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	apiReq := ollamaRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Stream: stream,
		System: req.System,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
	if req.JSON {
		apiReq.Format = "json"
	}
	return apiReq, nil
}

func (c *OllamaClient) do(ctx context.Context, apiReq ollamaRequest) (*http.Response, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama API error: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer func() { _ = httpResp.Body.Close() }()
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))

		var apiErr ollamaResponse
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("ollama API error (%d): %s", httpResp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("ollama API error (%d): %s", httpResp.StatusCode, string(respBody))
	}

	return httpResp, nil
}
