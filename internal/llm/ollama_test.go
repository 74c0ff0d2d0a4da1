package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/clarifai/internal/model"
)

func newOllamaTestClient(t *testing.T, handler http.HandlerFunc) *OllamaClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOllamaClient(model.LLMConfig{BaseURL: server.URL + "/"}, server.Client())
	require.NoError(t, err)
	return client
}

func TestOllamaClient_Complete(t *testing.T) {
	var got ollamaRequest
	client := newOllamaTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3.1:8b","response":" {\"claims\":[]} ","done":true}`))
	})

	text, err := client.Complete(context.Background(), Request{Model: "llama3.1:8b", Prompt: "p", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"claims":[]}`, text)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
}

func TestOllamaClient_Stream(t *testing.T) {
	client := newOllamaTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"Hello ","done":false}` + "\n"))
		_, _ = w.Write([]byte(`{"response":"world","done":false}` + "\n\n"))
		_, _ = w.Write([]byte(`{"response":"","done":true}` + "\n"))
	})

	var tokens []string
	text, err := client.Stream(context.Background(), Request{Model: "m", Prompt: "p"}, func(tok string) {
		tokens = append(tokens, tok)
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
	assert.Equal(t, []string{"Hello ", "world"}, tokens)
}

func TestOllamaClient_RequiresModel(t *testing.T) {
	client := newOllamaTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := client.Complete(context.Background(), Request{Prompt: "p"})
	assert.Error(t, err)
}

func TestOllamaClient_APIError(t *testing.T) {
	client := newOllamaTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'nope' not found"}`))
	})

	_, err := client.Complete(context.Background(), Request{Model: "nope", Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
