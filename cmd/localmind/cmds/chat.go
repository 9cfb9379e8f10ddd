package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/go-go-golems/localmind/pkg/events"
	"github.com/go-go-golems/localmind/pkg/session"
	"github.com/go-go-golems/localmind/pkg/tokens"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tcnksm/go-input"
)

const chatHelp = `Commands:
  /agent on|off  switch between the agent loop and plain chat
  /reset         forget the conversation
  /usage         show the estimated token usage
  /exit          leave
Ctrl-C stops the current reply and keeps what was generated.
`

func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := LoadSettings(cmd)
			if err != nil {
				return err
			}
			agent, _ := cmd.Flags().GetBool("agent")

			ctx := cmd.Context()
			metrics, stopMetrics, err := startMetrics(ctx, viper.GetString("metrics-addr"))
			if err != nil {
				return err
			}
			defer stopMetrics()

			engine, err := newEngine(s, "")
			if err != nil {
				return err
			}
			steps := newPrinterSink(os.Stderr,
				events.EventTypeThought, events.EventTypeAction, events.EventTypeObservation)
			loop, err := newLoop(s, engine, steps, metrics)
			if err != nil {
				return err
			}
			persona, err := s.Persona()
			if err != nil {
				return err
			}

			sess, err := session.NewSession(engine,
				session.WithLoop(loop),
				session.WithSystemPrompt(persona),
				session.WithOptions(s.Options().WithStream(true)),
				session.WithCounter(tokens.DefaultCounter()),
				session.WithEventSink(newPrinterSink(os.Stdout, events.EventTypePartialCompletion)),
				session.WithMetrics(metrics),
			)
			if err != nil {
				return err
			}
			if err := sess.SetAgent(agent); err != nil {
				return err
			}

			ui := &input.UI{Writer: os.Stderr, Reader: os.Stdin}
			return chatLoop(ctx, sess, ui, os.Stdout)
		},
	}
	cmd.Flags().Bool("agent", true, "Start in agent mode")
	return cmd
}

func chatLoop(ctx context.Context, sess *session.Session, ui *input.UI, w io.Writer) error {
	_, _ = fmt.Fprintf(ui.Writer, "Chatting with %s. Type /help for commands.\n", sess.Model())
	for {
		mode := "chat"
		if sess.Agent() {
			mode = "agent"
		}
		line, err := ui.Ask(fmt.Sprintf("[%s]", mode), &input.Options{
			HideOrder: true,
			Loop:      false,
		})
		if errors.Is(err, input.ErrInterrupted) {
			return nil
		}
		if err != nil && !errors.Is(err, input.ErrEmpty) {
			return err
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == "/exit" || line == "/quit":
			return nil
		case line == "/help":
			_, _ = fmt.Fprint(ui.Writer, chatHelp)
		case line == "/reset":
			if err := sess.Reset(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(ui.Writer, "Conversation cleared.")
		case line == "/usage":
			u := sess.Usage()
			_, _ = fmt.Fprintf(ui.Writer, "Prompt: %d, Response: %d, Total: %d tokens\n", u.Prompt, u.Completion, u.Total())
		case strings.HasPrefix(line, "/agent"):
			switch strings.TrimSpace(strings.TrimPrefix(line, "/agent")) {
			case "on":
				if err := sess.SetAgent(true); err != nil {
					_, _ = fmt.Fprintln(ui.Writer, err)
				}
			case "off":
				_ = sess.SetAgent(false)
			default:
				_, _ = fmt.Fprintln(ui.Writer, "usage: /agent on|off")
			}
		case strings.HasPrefix(line, "/"):
			_, _ = fmt.Fprintf(ui.Writer, "Unknown command %s\n", line)
		default:
			if err := exchange(ctx, sess, line, w); err != nil {
				_, _ = fmt.Fprintf(ui.Writer, "Error: %v\n", err)
			}
		}
	}
}

// exchange runs one turn. Ctrl-C while the model is generating interrupts the
// reply instead of leaving the program.
func exchange(ctx context.Context, sess *session.Session, prompt string, w io.Writer) error {
	h, err := sess.Start(ctx, prompt)
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case <-sigs:
		if err := sess.Interrupt(); err != nil && !errors.Is(err, session.ErrSessionNoActive) {
			return err
		}
	case <-h.Done():
	}
	signal.Stop(sigs)

	reply, err := h.Wait()
	if err != nil {
		return err
	}
	switch {
	case reply.Interrupted:
		_, _ = fmt.Fprintln(w, "\n[interrupted]")
	case reply.Agent:
		return renderAnswer(w, reply.Text)
	default:
		// plain chat replies were streamed already
		_, _ = fmt.Fprintln(w)
	}
	return nil
}
