// Package tokens estimates token counts for prompts and replies. Local models
// ship their own vocabularies, so counts are approximations: the cl100k_base
// encoding when it can be loaded, characters divided by four otherwise.
package tokens

import (
	"math"
	"sync"
	"unicode/utf8"

	"github.com/go-go-golems/localmind/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

const DefaultEncoding = tokenizer.Cl100kBase

type Counter interface {
	Name() string
	Count(text string) int
}

// CodecCounter counts tokens with a tiktoken codec.
type CodecCounter struct {
	codec tokenizer.Codec
	name  string
}

var _ Counter = (*CodecCounter)(nil)

// NewCodecCounter picks the codec for model when it is a known OpenAI model
// name, and the given encoding otherwise. An empty encoding means
// cl100k_base.
func NewCodecCounter(model, encoding string) (*CodecCounter, error) {
	if model != "" {
		c, err := tokenizer.ForModel(tokenizer.Model(model))
		if err == nil {
			return &CodecCounter{codec: c, name: model}, nil
		}
		log.Debug().Str("model", model).Msg("tokens: unknown model, using encoding")
	}
	if encoding == "" {
		encoding = string(DefaultEncoding)
	}
	c, err := tokenizer.Get(tokenizer.Encoding(encoding))
	if err != nil {
		return nil, errors.Wrapf(err, "could not load encoding %s", encoding)
	}
	return &CodecCounter{codec: c, name: encoding}, nil
}

func (c *CodecCounter) Name() string {
	return c.name
}

// Count falls back to the heuristic when the text cannot be encoded.
func (c *CodecCounter) Count(text string) int {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		log.Warn().Err(err).Str("codec", c.name).Msg("tokens: encoding failed")
		return Estimate(text)
	}
	return len(ids)
}

// Heuristic approximates a token as CharsPerToken characters.
type Heuristic struct {
	CharsPerToken float64
}

var _ Counter = Heuristic{}

func (h Heuristic) Name() string {
	return "heuristic"
}

func (h Heuristic) Count(text string) int {
	per := h.CharsPerToken
	if per <= 0 {
		per = 4
	}
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / per))
}

// Estimate is ceil(characters / 4).
func Estimate(text string) int {
	return Heuristic{}.Count(text)
}

var defaultCounter = sync.OnceValue(func() Counter {
	c, err := NewCodecCounter("", "")
	if err != nil {
		log.Warn().Err(err).Msg("tokens: falling back to heuristic counter")
		return Heuristic{}
	}
	return c
})

// DefaultCounter returns a shared cl100k_base counter, or the heuristic if
// the encoding is unavailable.
func DefaultCounter() Counter {
	return defaultCounter()
}

// CountConversation sums the counts of every message content.
func CountConversation(c Counter, conv conversation.Conversation) int {
	n := 0
	for _, m := range conv {
		n += c.Count(m.Content)
	}
	return n
}

// Usage is the token usage of one or more exchanges.
type Usage struct {
	Prompt     int `json:"prompt" yaml:"prompt"`
	Completion int `json:"completion" yaml:"completion"`
}

func (u Usage) Total() int {
	return u.Prompt + u.Completion
}

func (u Usage) Add(o Usage) Usage {
	return Usage{
		Prompt:     u.Prompt + o.Prompt,
		Completion: u.Completion + o.Completion,
	}
}

// Measure counts the prompt that was sent and the reply that came back.
func Measure(c Counter, prompt conversation.Conversation, reply string) Usage {
	return Usage{
		Prompt:     CountConversation(c, prompt),
		Completion: c.Count(reply),
	}
}
