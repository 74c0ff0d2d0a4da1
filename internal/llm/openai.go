package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/clarifai/internal/model"
)

// OpenAIClient implements Client for OpenAI and OpenAI-compatible endpoints
type OpenAIClient struct {
	client  *openai.Client
	config  model.LLMConfig
	timeout time.Duration
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(config model.LLMConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  config,
		timeout: timeoutOf(config, 60*time.Second),
	}, nil
}

func (c *OpenAIClient) Name() string {
	return "openai"
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, c.chatRequest(req))
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) Stream(ctx context.Context, req Request, onToken func(string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chatReq := c.chatRequest(req)
	chatReq.Stream = true

	stream, err := c.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sb.String(), fmt.Errorf("OpenAI stream error: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			sb.WriteString(delta)
			onToken(delta)
		}
	}

	return sb.String(), nil
}

func (c *OpenAIClient) chatRequest(req Request) openai.ChatCompletionRequest {
	req = withDefaults(req, c.config.MaxTokens, c.config.Temperature)
	if req.Model == "" {
		req.Model = openai.GPT4oMini
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return chatReq
}

func timeoutOf(config model.LLMConfig, fallback time.Duration) time.Duration {
	if config.Timeout > 0 {
		return time.Duration(config.Timeout) * time.Second
	}
	return fallback
}
