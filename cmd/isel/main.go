// Command isel inspects and persists the x86 instruction selection tables.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/eigerco/isel/pkg/log"
)

type rootOptions struct {
	logLevel string
	logJSON  bool
}

func newRootCommand() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "isel",
		Short:         "Inspect x86 instruction selection tables",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			format := log.Console
			if opts.logJSON {
				format = log.JSON
			}
			log.Init(log.Options{Level: level, Format: format, Output: cmd.ErrOrStderr()})
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error)")
	flags.BoolVar(&opts.logJSON, "log-json", false, "Log JSON lines instead of console output")

	cmd.AddCommand(
		newSettingsCommand(),
		newEncodeCommand(),
		newRecipesCommand(),
		newTablesCommand(),
		newConfigCommand(),
	)
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
