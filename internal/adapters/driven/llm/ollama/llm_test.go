package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexis/internal/core/ports/driven"
)

func TestLLMService_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, "llama3.2", raw["model"])
		assert.Equal(t, false, raw["stream"])
		opts := raw["options"].(map[string]any)
		assert.Contains(t, opts, "temperature")
		assert.InDelta(t, 64, opts["num_predict"], 0)

		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: "The notice period is 30 days."}, Done: true})
	}))
	defer server.Close()

	svc := NewLLMService(LLMConfig{BaseURL: server.URL})
	out, err := svc.Generate(context.Background(), "question", driven.GenerationOptions{MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "The notice period is 30 days.", out)
}

func TestLLMService_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 3)
		assert.Equal(t, "assistant", req.Messages[1].Role)
		assert.InDelta(t, 0.1, req.Options.Temperature, 1e-9)

		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: "yes"}})
	}))
	defer server.Close()

	svc := NewLLMService(LLMConfig{BaseURL: server.URL, Model: "mistral"})
	out, err := svc.Chat(context.Background(), []driven.ChatMessage{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "user", Content: "c"},
	}, driven.GenerationOptions{Temperature: 0.1})
	require.NoError(t, err)
	assert.Equal(t, "yes", out)
	assert.Equal(t, "mistral", svc.ModelName())
}

func TestLLMService_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewLLMService(LLMConfig{BaseURL: server.URL})
	_, err := svc.Generate(context.Background(), "q", driven.GenerationOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Error(t, svc.Ping(context.Background()))
}

func TestLLMService_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:latest"},{"name":"mistral:7b"}]}`))
	}))
	defer server.Close()

	assert.NoError(t, NewLLMService(LLMConfig{BaseURL: server.URL}).Ping(context.Background()))
	assert.NoError(t, NewLLMService(LLMConfig{BaseURL: server.URL, Model: "mistral:7b"}).Ping(context.Background()))

	err := NewLLMService(LLMConfig{BaseURL: server.URL, Model: "qwen2"}).Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull qwen2")
}
