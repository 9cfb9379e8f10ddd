package inference

import (
	"github.com/rs/zerolog"
)

// Options are the generation parameters passed along with every call. Nil
// pointers leave the engine's default in place.
type Options struct {
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	TopP        *float64 `yaml:"top_p,omitempty" json:"top_p,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Stream      bool     `yaml:"stream,omitempty" json:"stream,omitempty"`
	Stop        []string `yaml:"stop,omitempty" json:"stop,omitempty"`
}

func (o Options) WithTemperature(t float64) Options {
	o.Temperature = &t
	return o
}

func (o Options) WithTopP(p float64) Options {
	o.TopP = &p
	return o
}

func (o Options) WithMaxTokens(n int) Options {
	o.MaxTokens = &n
	return o
}

func (o Options) WithStream(stream bool) Options {
	o.Stream = stream
	return o
}

// WithStop replaces the stop sequences.
func (o Options) WithStop(stop ...string) Options {
	o.Stop = append([]string(nil), stop...)
	return o
}

func (o Options) MarshalZerologObject(e *zerolog.Event) {
	if o.Temperature != nil {
		e.Float64("temperature", *o.Temperature)
	}
	if o.TopP != nil {
		e.Float64("top_p", *o.TopP)
	}
	if o.MaxTokens != nil {
		e.Int("max_tokens", *o.MaxTokens)
	}
	e.Bool("stream", o.Stream)
	if len(o.Stop) > 0 {
		e.Strs("stop", o.Stop)
	}
}
