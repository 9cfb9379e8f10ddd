package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"gopkg.in/yaml.v3"
)

// PrintEvent writes a human-readable line for e.
func PrintEvent(w io.Writer, e Event) error {
	var err error
	switch e.Type {
	case EventTypeStart:
		_, err = fmt.Fprintf(w, "Question: %s\n", e.Text)
	case EventTypeThought:
		// models usually keep the marker in the thought text
		text := e.Text
		if !strings.HasPrefix(text, "Thought:") {
			text = "Thought: " + text
		}
		_, err = fmt.Fprintf(w, "%s\n", text)
	case EventTypeAction:
		suffix := ""
		if e.Ambiguous {
			suffix = " (ambiguous)"
		}
		_, err = fmt.Fprintf(w, "Action: %s%s\nAction Input: %s\n", e.Tool, suffix, e.Input)
	case EventTypeObservation:
		_, err = fmt.Fprintf(w, "%s\n", e.Text)
	case EventTypeFinal:
		_, err = fmt.Fprintf(w, "[%s] %s\n", e.Outcome, e.Text)
	case EventTypeError:
		_, err = fmt.Fprintf(w, "[error] %s\n", e.Error)
	case EventTypePartialCompletion:
		_, err = fmt.Fprintf(w, "%s", e.Text)
	case EventTypeInterrupt:
		_, err = fmt.Fprintf(w, "\n[interrupted]\n")
	default:
		var b []byte
		b, err = yaml.Marshal(e)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
	}
	return err
}

// StepPrinterFunc returns a watermill handler printing decoded events to w.
func StepPrinterFunc(w io.Writer) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}
		return PrintEvent(w, e)
	}
}
