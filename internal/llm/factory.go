package llm

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ppiankov/clarifai/internal/model"
)

// NewClient creates a provider client from configuration. httpClient is used by
// the HTTP-based providers and may be nil.
func NewClient(config model.LLMConfig, httpClient *http.Client) (Client, error) {
	switch strings.ToLower(config.Provider) {
	case "openai", "":
		return NewOpenAIClient(config)

	case "anthropic", "claude":
		return NewAnthropicClient(config, httpClient)

	case "ollama":
		return NewOllamaClient(config, httpClient)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}
