package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/arch/x86/x86asm"

	"github.com/eigerco/isel/internal/encoding"
	"github.com/eigerco/isel/internal/isa/x86"
	"github.com/eigerco/isel/internal/recipe"
)

func newRecipesCommand() *cobra.Command {
	var (
		opts   targetOptions
		disasm bool
	)

	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "List the recipe catalog",
		Long: `List the recipe catalog.

With --disasm every encoding in the tables of the selected mode is rendered in its
register-direct form and decoded, which makes a quick cross-check of the opcode bits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := opts.isa()
			if err != nil {
				return err
			}
			if disasm {
				return disassemble(cmd.OutOrStdout(), target)
			}
			return listRecipes(cmd.OutOrStdout(), target)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().BoolVar(&disasm, "disasm", false, "Decode every encoding of the selected mode")
	return cmd
}

func listRecipes(out io.Writer, target *x86.Isa) error {
	c := target.Catalog()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tNAME\tFORMAT\tSIZE\tBRANCH\tCONSTRAINTS")
	for i := 0; i < c.Len(); i++ {
		r := c.Recipe(recipe.Index(i))
		branch := "-"
		if br, ok := c.BranchRange(recipe.Index(i)); ok {
			branch = br.String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d+%s\t%s\t%s\n", i, r.Name, r.Format, r.Sizing.Base, r.Sizing.Rule,
			branch, formatConstraints(target.Registers(), &r.Constraints))
	}
	return w.Flush()
}

// disassemble decodes the register-direct rendering of every encoding reachable in the
// target's mode. Guards are ignored: each data word is shown once.
func disassemble(out io.Writer, target *x86.Isa) error {
	tables := target.Tables()
	mode, _ := tables.ModeByName(target.Mode())
	cpuMode := 64
	if target.Mode() == x86.ModeI32 {
		cpuMode = 32
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, region := range tables.Regions() {
		if region.Mode != mode {
			continue
		}
		ops, err := encoding.DecodeRegion(tables.List, region.Offset)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", region.Opcode, region.Type, err)
		}
		for _, op := range ops {
			if op.Kind != encoding.OpData {
				continue
			}
			bits := x86.BitsOf(op.Bits)
			fmt.Fprintf(w, "%s.%s\t%s\t%s\t%s\n", region.Opcode, region.Type,
				target.Catalog().Name(op.Recipe), bits, decode(bits, cpuMode))
		}
	}
	return w.Flush()
}

func decode(bits x86.EncodingBits, cpuMode int) string {
	// Trailing zeros stand in for immediates and displacements.
	code := append(bits.Render(bits.RRR(), 1), make([]byte, 8)...)
	inst, err := x86asm.Decode(code, cpuMode)
	if err != nil {
		return "?"
	}
	return fmt.Sprintf("% x\t%s", code[:inst.Len], x86asm.IntelSyntax(inst, 0, nil))
}
