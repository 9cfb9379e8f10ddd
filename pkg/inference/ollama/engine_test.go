package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/go-go-golems/localmind/pkg/conversation"
	"github.com/go-go-golems/localmind/pkg/inference"
	"github.com/jmorganca/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatter struct {
	chunks []string
	req    *api.ChatRequest
	err    error
}

func (f *fakeChatter) Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error {
	f.req = req
	for _, c := range f.chunks {
		var resp api.ChatResponse
		payload := fmt.Sprintf(`{"model":%q,"message":{"role":"assistant","content":%q},"done":false}`, req.Model, c)
		if err := json.Unmarshal([]byte(payload), &resp); err != nil {
			return err
		}
		if err := fn(resp); err != nil {
			return err
		}
	}
	if f.err != nil {
		return f.err
	}
	var done api.ChatResponse
	if err := json.Unmarshal([]byte(`{"done":true}`), &done); err != nil {
		return err
	}
	return fn(done)
}

func TestMakeChatRequest(t *testing.T) {
	opts := inference.Options{}.WithTemperature(0.1).WithTopP(0.8).WithMaxTokens(32).WithStop("Observation:")
	req := MakeChatRequest(Settings{Model: "llama3", Extra: map[string]interface{}{"num_ctx": 4096}},
		conversation.Conversation{conversation.NewUserMessage("hi")}, opts)

	assert.Equal(t, "llama3", req.Model)
	require.NotNil(t, req.Stream)
	assert.True(t, *req.Stream)
	assert.Equal(t, 0.1, req.Options["temperature"])
	assert.Equal(t, 0.8, req.Options["top_p"])
	assert.Equal(t, 32, req.Options["num_predict"])
	assert.Equal(t, []string{"Observation:"}, req.Options["stop"])
	assert.Equal(t, 4096, req.Options["num_ctx"])
}

func TestRunInferenceStream(t *testing.T) {
	fake := &fakeChatter{chunks: []string{"Thought: add\n", "Action: Calculator"}}
	e := NewEngineWithClient(Settings{Model: "llama3"}, fake)

	var deltas []string
	out, err := e.RunInferenceStream(context.Background(),
		conversation.Conversation{conversation.NewUserMessage("2+2?")},
		inference.Options{},
		func(d string) error {
			deltas = append(deltas, d)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, "Thought: add\nAction: Calculator", out)
	assert.Equal(t, out, strings.Join(deltas, ""))
	assert.Equal(t, "user", fake.req.Messages[0].Role)
}

func TestRunInferenceWrapsErrors(t *testing.T) {
	fake := &fakeChatter{chunks: []string{"par"}, err: fmt.Errorf("connection reset")}
	e := NewEngineWithClient(Settings{Model: "llama3"}, fake)

	_, err := e.RunInference(context.Background(), conversation.Conversation{conversation.NewUserMessage("x")}, inference.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama chat failed")
	assert.Contains(t, err.Error(), "connection reset")
}
