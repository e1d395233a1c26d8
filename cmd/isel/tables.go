package main

import (
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/eigerco/isel/internal/encoding"
	"github.com/eigerco/isel/internal/isa/x86"
	"github.com/eigerco/isel/internal/store"
	"github.com/eigerco/isel/pkg/log"
)

type tablesOptions struct {
	target targetOptions
	in     string
	out    string
	dump   bool
}

func newTablesCommand() *cobra.Command {
	var opts tablesOptions

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Show, export or check encoding tables",
		Example: `  isel tables
  isel tables --out x86.isel
  isel tables --in x86.isel --mode I32`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(cmd.OutOrStdout(), opts)
		},
	}
	opts.target.addFlags(cmd)
	flags := cmd.Flags()
	flags.StringVar(&opts.in, "in", "", "Load and validate a tables blob instead of the built-in tables")
	flags.StringVar(&opts.out, "out", "", "Write the tables blob to this file")
	flags.BoolVar(&opts.dump, "dump", false, "Dump the decoded table structures")
	return cmd
}

func runTables(out io.Writer, opts tablesOptions) error {
	shared, flags, err := opts.target.flags()
	if err != nil {
		return err
	}

	var target *x86.Isa
	if opts.in != "" {
		blob, err := os.ReadFile(opts.in)
		if err != nil {
			return err
		}
		tables, err := encoding.UnmarshalTables(blob)
		if err != nil {
			return fmt.Errorf("%s: %w", opts.in, err)
		}
		if target, err = x86.NewWithTables(tables, shared, flags, opts.target.mode); err != nil {
			return fmt.Errorf("%s: %w", opts.in, err)
		}
		fmt.Fprintf(out, "digest:  %s\n", store.DigestOf(blob))
	} else if target, err = x86.New(shared, flags, opts.target.mode); err != nil {
		return err
	}

	tables := target.Tables()
	printStats(out, tables.Stats())

	if opts.out != "" {
		blob, err := tables.MarshalBinary()
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.out, blob, 0o644); err != nil {
			return err
		}
		log.Root.Info().Str("file", opts.out).Int("bytes", len(blob)).Msg("wrote tables")
		fmt.Fprintf(out, "wrote:   %s (%s)\n", opts.out, store.DigestOf(blob))
	}
	if opts.dump {
		spew.Fdump(out, tables)
	}
	return nil
}

func printStats(out io.Writer, s encoding.Stats) {
	fmt.Fprintf(out, "modes:   %d\n", s.Modes)
	fmt.Fprintf(out, "types:   %d (%d level1 slots)\n", s.Types, s.Level1Slots)
	fmt.Fprintf(out, "opcodes: %d (%d level2 slots)\n", s.Opcodes, s.Level2Slots)
	fmt.Fprintf(out, "list:    %d words, longest region %d\n", s.ListWords, s.MaxRegionOps)
	fmt.Fprintf(out, "actions: %d\n", s.Actions)
}
