package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eigerco/isel/internal/settings"
)

func newSettingsCommand() *cobra.Command {
	var (
		opts       targetOptions
		predicates bool
	)

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Print the resolved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			shared, target, err := opts.flags()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, settings.Format(shared.Flags, target.Flags))
			if predicates {
				fmt.Fprintln(out)
				for _, f := range []*settings.Flags{shared.Flags, target.Flags} {
					for _, name := range f.Template().Predicates() {
						v, err := f.Bool(name)
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "# %s.%s = %t\n", f.Template().Group(), name, v)
					}
				}
			}
			return nil
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().BoolVar(&predicates, "predicates", false, "Also print computed predicates")
	return cmd
}
