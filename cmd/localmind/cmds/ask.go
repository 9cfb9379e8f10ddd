package cmds

import (
	"context"
	"os"
	"strings"

	"github.com/go-go-golems/localmind/pkg/events"
	"github.com/go-go-golems/localmind/pkg/react"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question with the agent loop",
		Long: "Runs the Reason-Act-Observe loop once. Thoughts, actions and observations\n" +
			"are printed to stderr, the final answer to stdout.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := LoadSettings(cmd)
			if err != nil {
				return err
			}
			system, _ := cmd.Flags().GetString("system")
			printEvents, _ := cmd.Flags().GetBool("print-events")
			question := strings.Join(args, " ")

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

			run := func(ctx context.Context, sink events.Sink) error {
				loop, err := newLoop(s, engine, sink, metrics)
				if err != nil {
					return err
				}
				req := react.Request{Question: question, SystemPrompt: system}
				var final *events.Event
				for e, err := range loop.Run(ctx, req) {
					if err != nil {
						return err
					}
					switch e.Type {
					case events.EventTypeFinal:
						final = &e
					default:
						if !printEvents {
							if err := events.PrintEvent(os.Stderr, e); err != nil {
								return err
							}
						}
					}
				}
				if final == nil {
					return errors.New("run ended without an answer")
				}
				return renderAnswer(os.Stdout, final.Text)
			}

			if printEvents {
				return withEventRouter(ctx, os.Stderr, viper.GetBool("verbose"), run)
			}
			return run(ctx, nil)
		},
	}
	cmd.Flags().String("system", "", "System prompt replacing the compiled one")
	cmd.Flags().Bool("print-events", false, "Print every run event through the event bus")
	return cmd
}
