package cmds

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-go-golems/localmind/pkg/tokens"
	"github.com/spf13/cobra"
)

func NewTokensCommand() *cobra.Command {
	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Commands related to tokens",
	}

	countCmd := &cobra.Command{
		Use:   "count [text|-]",
		Short: "Count the tokens of a text, read from stdin with - or no argument",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, _ := cmd.Flags().GetString("model")
			encoding, _ := cmd.Flags().GetString("encoding")

			var input string
			if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				input = string(b)
			} else {
				input = strings.Join(args, " ")
			}

			counter, err := tokens.NewCodecCounter(model, encoding)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "Codec: %s\n", counter.Name())
			_, _ = fmt.Fprintf(w, "Total tokens: %d\n", counter.Count(input))
			_, err = fmt.Fprintf(w, "Estimate (chars/4): %d\n", tokens.Estimate(input))
			return err
		},
	}
	countCmd.Flags().String("model", "", "Model whose encoding to use")
	countCmd.Flags().String("encoding", "", "Encoding to use (default cl100k_base)")

	tokensCmd.AddCommand(countCmd)
	return tokensCmd
}
