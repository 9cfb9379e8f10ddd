package mock

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/go-go-golems/localmind/pkg/conversation"
	"github.com/go-go-golems/localmind/pkg/inference"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedEngine(t *testing.T) {
	boom := errors.New("boom")
	e := NewScriptedEngineWithReplies(Reply{Text: "one"}, Reply{Err: boom})
	conv := conversation.Conversation{conversation.NewUserMessage("hi")}

	out, err := e.RunInference(context.Background(), conv, inference.Options{})
	require.NoError(t, err)
	assert.Equal(t, "one", out)

	_, err = e.RunInference(context.Background(), conv, inference.Options{})
	assert.ErrorIs(t, err, boom)

	_, err = e.RunInference(context.Background(), conv, inference.Options{})
	assert.ErrorIs(t, err, ErrScriptExhausted)

	assert.Equal(t, 3, e.Calls())
	assert.Len(t, e.Requests(), 3)
}

func TestScriptedEngineRepeat(t *testing.T) {
	e := NewScriptedEngine("again").Repeat()
	for i := 0; i < 3; i++ {
		out, err := e.RunInference(context.Background(), nil, inference.Options{})
		require.NoError(t, err)
		assert.Equal(t, "again", out)
	}
}

func TestScriptedEngineRecordsCopies(t *testing.T) {
	e := NewScriptedEngine("ok")
	conv := conversation.Conversation{conversation.NewUserMessage("original")}
	_, err := e.RunInference(context.Background(), conv, inference.Options{})
	require.NoError(t, err)

	conv[0].Content = "mutated"
	assert.Equal(t, "original", e.Requests()[0][0].Content)
}

func TestEchoEngineStreams(t *testing.T) {
	e := NewEchoEngine()
	e.TimePerCharacter = 0

	var deltas []string
	out, err := e.RunInferenceStream(context.Background(),
		conversation.Conversation{
			conversation.NewSystemMessage("sys"),
			conversation.NewUserMessage("hello"),
		},
		inference.Options{},
		func(d string) error {
			deltas = append(deltas, d)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "hello", strings.Join(deltas, ""))
}

func TestEchoEngineMaxTokensKeepsWholeCharacters(t *testing.T) {
	e := NewEchoEngine()
	e.TimePerCharacter = 0

	out, err := e.RunInference(context.Background(),
		conversation.Conversation{conversation.NewUserMessage("héllo wörld")},
		inference.Options{}.WithMaxTokens(2))
	require.NoError(t, err)
	assert.Equal(t, "hé", out)
	assert.True(t, utf8.ValidString(out))
}

func TestEchoEngineInterrupt(t *testing.T) {
	e := NewEchoEngine()
	e.TimePerCharacter = 5 * time.Millisecond

	started := make(chan struct{})
	var once bool
	_, err := func() (string, error) {
		go func() {
			<-started
			e.Interrupt()
		}()
		return e.RunInferenceStream(context.Background(),
			conversation.Conversation{conversation.NewUserMessage(strings.Repeat("x", 200))},
			inference.Options{},
			func(d string) error {
				if !once {
					once = true
					close(started)
				}
				return nil
			})
	}()

	require.Error(t, err)
	assert.ErrorIs(t, err, inference.ErrInterrupted)
	partial, ok := inference.PartialText(err)
	require.True(t, ok)
	assert.NotEmpty(t, partial)
	assert.Less(t, len(partial), 200)
}
