package cmds

import (
	"github.com/go-go-golems/localmind/pkg/tools"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the enabled tools as YAML",
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

			defs := []tools.Definition{}
			for _, t := range catalog.List() {
				def, err := tools.Describe(t)
				if err != nil {
					return err
				}
				defs = append(defs, def)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer func() {
				_ = enc.Close()
			}()
			return enc.Encode(defs)
		},
	}
}
