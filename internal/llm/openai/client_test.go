package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigist/internal/llm"
)

const completionBody = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"test-model","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],"action":"create_gist"}`

func TestCompleteNonStreaming(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody)
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})
	require.NoError(t, err)
	out, err := c.Complete(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: llm.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-model", gotPayload["model"])
	msgs, _ := gotPayload["messages"].([]any)
	require.Len(t, msgs, 2)
	_, streaming := gotPayload["stream"]
	assert.False(t, streaming)

	assert.Equal(t, "hello", out.Content)
	assert.Equal(t, "test-model", out.Model)
	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, completionBody, string(b))
}

func TestCompleteProviderErrorIsCompletionError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom"}}`)
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	var ce *llm.CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, calls, "no retries")
}

func TestCompleteRejectsUnknownRole(t *testing.T) {
	c, err := New(Options{BaseURL: "http://127.0.0.1:0", APIKey: "k", Model: "m"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), []llm.Message{{Role: "robot", Content: "hi"}})
	var ce *llm.CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, err.Error(), "unsupported role")
}

func TestNewRequiresModel(t *testing.T) {
	_, err := New(Options{APIKey: "k"})
	assert.Error(t, err)
}
