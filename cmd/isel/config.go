package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eigerco/isel/internal/isa"
	"github.com/eigerco/isel/internal/isa/x86"
	"github.com/eigerco/isel/internal/settings"
	"github.com/eigerco/isel/internal/store"
	"github.com/eigerco/isel/pkg/db/pebble"
)

func newConfigCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage stored target configurations",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "isel.db", "Configuration database directory")

	open := func() (*store.Store, error) {
		kv, err := pebble.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", dbPath, err)
		}
		return store.New(kv), nil
	}

	cmd.AddCommand(
		newConfigSaveCommand(open),
		newConfigLoadCommand(open),
		newConfigListCommand(open),
		newConfigDeleteCommand(open),
	)
	return cmd
}

type openStore func() (*store.Store, error)

func newConfigSaveCommand(open openStore) *cobra.Command {
	var (
		opts       targetOptions
		withTables bool
	)

	cmd := &cobra.Command{
		Use:   "save NAME",
		Short: "Save the configuration given by the target flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := opts.isa()
			if err != nil {
				return err
			}
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()

			c := store.Config{
				Isa:    target.Name(),
				Mode:   target.Mode(),
				Shared: target.Shared().Bytes(),
				Target: target.Flags().Bytes(),
			}
			if withTables {
				c, err = s.PutConfig(args[0], c, target.Tables())
			} else {
				c, err = s.PutConfig(args[0], c, nil)
			}
			if err != nil {
				return err
			}
			if c.Tables.IsZero() {
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s with tables %s\n", args[0], c.Tables)
			}
			return nil
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().BoolVar(&withTables, "with-tables", false, "Store a snapshot of the tables with the configuration")
	return cmd
}

func newConfigLoadCommand(open openStore) *cobra.Command {
	return &cobra.Command{
		Use:   "load NAME",
		Short: "Load, validate and print a stored configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()

			target, err := loadConfig(s, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s %s\n", target.Name(), target.Mode())
			fmt.Fprint(out, settings.Format(target.Shared().Flags, target.Flags().Flags))
			fmt.Fprintln(out)
			printStats(out, target.Tables().Stats())
			return nil
		},
	}
}

// loadConfig rebuilds the target a stored configuration describes.
func loadConfig(s *store.Store, name string) (*x86.Isa, error) {
	c, err := s.GetConfig(name)
	if err != nil {
		return nil, err
	}
	if c.Isa != x86.Name {
		return nil, fmt.Errorf("config %s: unsupported isa %q", name, c.Isa)
	}
	shared, err := isa.SharedFromBytes(c.Shared)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", name, err)
	}
	flags, err := x86.FlagsFromBytes(c.Target)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", name, err)
	}
	if c.Tables.IsZero() {
		return x86.New(shared, flags, c.Mode)
	}
	tables, err := s.GetTables(c.Tables)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", name, err)
	}
	return x86.NewWithTables(tables, shared, flags, c.Mode)
}

func newConfigListCommand(open openStore) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored configurations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()

			names, err := s.ListConfigs()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newConfigDeleteCommand(open openStore) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a stored configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			return s.DeleteConfig(args[0])
		},
	}
}
