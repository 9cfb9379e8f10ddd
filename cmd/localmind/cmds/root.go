package cmds

import "github.com/spf13/cobra"

func RegisterCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(
		NewAskCommand(),
		NewChatCommand(),
		NewPromptCommand(),
		NewToolsCommand(),
		NewCompareCommand(),
		NewTokensCommand(),
	)
}
