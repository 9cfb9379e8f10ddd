package cmds

import (
	"fmt"
	"strings"

	"github.com/go-go-golems/localmind/pkg/helpers"
	"github.com/go-go-golems/localmind/pkg/session"
	"github.com/go-go-golems/localmind/pkg/tokens"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare --models a,b [question]",
		Short: "Ask several models the same question side by side",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			models, _ := cmd.Flags().GetStringSlice("models")
			if len(models) < 2 {
				return errors.New("compare needs at least two models")
			}
			s, err := loadSettings(cmd, models[0])
			if err != nil {
				return err
			}
			agent, _ := cmd.Flags().GetBool("agent")
			parallel, _ := cmd.Flags().GetInt("parallel")
			question := strings.Join(args, " ")

			ctx := cmd.Context()
			metrics, stopMetrics, err := startMetrics(ctx, viper.GetString("metrics-addr"))
			if err != nil {
				return err
			}
			defer stopMetrics()

			persona, err := s.Persona()
			if err != nil {
				return err
			}

			contenders := []session.Contender{}
			for _, model := range models {
				engine, err := newEngine(s, model)
				if err != nil {
					return errors.Wrapf(err, "could not create engine for %s", model)
				}
				opts := []session.Option{
					session.WithSystemPrompt(persona),
					session.WithOptions(s.Options()),
					session.WithCounter(tokens.DefaultCounter()),
					session.WithMetrics(metrics),
				}
				if agent {
					loop, err := newLoop(s, engine, nil, metrics)
					if err != nil {
						return err
					}
					opts = append(opts, session.WithLoop(loop))
				}
				sess, err := session.NewSession(engine, opts...)
				if err != nil {
					return err
				}
				contenders = append(contenders, session.Contender{Name: model, Session: sess})
			}

			comparisons := session.Compare(ctx, question, parallel, contenders...)
			results := []helpers.Result[*session.Reply]{}
			for _, c := range comparisons {
				results = append(results, c.Result)
			}
			w := cmd.OutOrStdout()
			for _, c := range comparisons {
				_, _ = fmt.Fprintf(w, "## %s\n\n", c.Name)
				reply, err := c.Result.Value()
				if err != nil {
					_, _ = fmt.Fprintf(w, "Error: %v\n\n", err)
					continue
				}
				if err := renderAnswer(w, reply.Text); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(w, "\n(%d tokens)\n\n", reply.Usage.Total())
			}

			replies, err := helpers.Partition(results)
			if len(replies) == 0 {
				return errors.Wrap(err, "every model failed")
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("models", nil, "Models to compare (comma separated or repeated)")
	cmd.Flags().Bool("agent", false, "Use the agent loop instead of plain chat")
	cmd.Flags().Int("parallel", 1, "How many models run at the same time (0 for all)")
	return cmd
}
