package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-go-golems/localmind/pkg/conversation"
	"github.com/go-go-golems/localmind/pkg/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeCompletionRequest(t *testing.T) {
	opts := inference.Options{}.WithTemperature(0.5).WithTopP(0.9).WithMaxTokens(64).WithStop("Observation:")
	req := MakeCompletionRequest("llama3", conversation.Conversation{
		conversation.NewSystemMessage("sys"),
		conversation.NewUserMessage("hi"),
	}, opts)

	assert.Equal(t, "llama3", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "hi", req.Messages[1].Content)
	assert.Equal(t, float32(0.5), req.Temperature)
	assert.Equal(t, float32(0.9), req.TopP)
	assert.Equal(t, 64, req.MaxTokens)
	assert.Equal(t, []string{"Observation:"}, req.Stop)
	assert.False(t, req.Stream)
}

func TestRunInferenceAgainstFakeServer(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"id":"1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"Final Answer: 4"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	e, err := NewEngine(Settings{Model: "m", BaseURL: srv.URL + "/v1", APIKey: "x"})
	require.NoError(t, err)

	out, err := e.RunInference(context.Background(),
		conversation.Conversation{conversation.NewUserMessage("2+2?")},
		inference.Options{}.WithStop("Observation:"))
	require.NoError(t, err)
	assert.Equal(t, "Final Answer: 4", out)
	assert.Equal(t, []any{"Observation:"}, got["stop"])
}

func TestRunInferenceStreamAgainstFakeServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range []string{"Hel", "lo"} {
			_, _ = fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", d)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	e, err := NewEngine(Settings{Model: "m", BaseURL: srv.URL})
	require.NoError(t, err)

	var deltas []string
	out, err := e.RunInferenceStream(context.Background(),
		conversation.Conversation{conversation.NewUserMessage("hi")},
		inference.Options{},
		func(d string) error {
			deltas = append(deltas, d)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, "Hello", out)
	assert.Equal(t, "Hello", strings.Join(deltas, ""))
}

func TestNewEngineRequiresModel(t *testing.T) {
	_, err := NewEngine(Settings{})
	require.Error(t, err)
}
