package main

import (
	"os"
	"strings"

	clay "github.com/go-go-golems/clay/pkg"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/go-go-golems/glazed/pkg/help"
	help_cmd "github.com/go-go-golems/glazed/pkg/help/cmd"
	"github.com/go-go-golems/localmind/cmd/localmind/cmds"
	"github.com/go-go-golems/localmind/pkg/config"
	"github.com/go-go-golems/localmind/pkg/doc"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "localmind",
	Short: "localmind answers questions with a local model and a few tools",
	// reinitialize the logger because we can now parse --log-level and co
	// from the command line flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.InitLoggerFromViper(); err != nil {
			return err
		}
		if viper.GetBool("verbose") && zerolog.GlobalLevel() > zerolog.DebugLevel {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		return nil
	},
	SilenceUsage: true,
}

// settingsKeys maps nested configuration keys to the flags overriding them.
// The generation flags are optional values and are applied in
// cmds.LoadSettings instead, so that an unset flag does not override the
// config file with zero.
var settingsKeys = map[string]string{
	"engine.type":        "engine",
	"engine.model":       "model",
	"engine.base-url":    "base-url",
	"engine.api-key":     "api-key",
	"agent.max-steps":    "max-steps",
	"agent.persona":      "persona",
	"agent.preset":       "preset",
	"agent.presets-file": "presets-file",
	"agent.tools":        "tools",
}

func initCommands(rootCmd *cobra.Command) error {
	helpSystem := help.NewHelpSystem()
	if err := doc.AddDocToHelpSystem(helpSystem); err != nil {
		return err
	}
	help_cmd.SetupCobraRootCommand(helpSystem, rootCmd)

	// adds the logging and --config flags, reads the config file and binds
	// every persistent flag defined so far
	if err := clay.InitViper("localmind", rootCmd); err != nil {
		return err
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	config.SetDefaults(viper.GetViper())

	// The flags below are bound explicitly: a flag bound under its own name
	// would shadow the nested "engine" section of the config file.
	flags := rootCmd.PersistentFlags()
	flags.Bool("verbose", false, "Verbose output")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	cmds.AddSettingsFlags(flags)

	for _, flag := range []string{"verbose", "metrics-addr"} {
		if err := viper.BindPFlag(flag, flags.Lookup(flag)); err != nil {
			return err
		}
	}
	for key, flag := range settingsKeys {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return err
		}
	}

	// this still won't pick up on --verbose to show debug logging when the commands
	// are parsed, but at least it will configure it based on the config file
	if err := logging.InitLoggerFromViper(); err != nil {
		return err
	}
	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")

	cmds.RegisterCommands(rootCmd)
	return nil
}

func main() {
	if err := initCommands(rootCmd); err != nil {
		_, _ = os.Stderr.WriteString("Error initializing localmind: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
