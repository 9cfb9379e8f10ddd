package cmds

import (
	"fmt"

	"github.com/go-go-golems/localmind/pkg/prompt"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewPromptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the compiled system prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := LoadSettings(cmd)
			if err != nil {
				return err
			}
			catalog, err := newCatalog(s)
			if err != nil {
				return err
			}
			persona, err := s.Persona()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), prompt.CompileSystemPrompt(catalog, persona))
			return err
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "presets",
		Short: "List the persona presets as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := LoadSettings(cmd)
			if err != nil {
				return err
			}
			presets, err := s.Presets()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer func() {
				_ = enc.Close()
			}()
			return enc.Encode(presets.List())
		},
	})
	return cmd
}
