package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SrJuanF/UnitPoints-System/internal/chains"
	"github.com/SrJuanF/UnitPoints-System/internal/chains/evm"
)

func createSizeCmd() *cobra.Command {
	var target int
	var exclude []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "size [dir]",
		Short: "Analyse compiled contract sizes",
		Long: `Rank compiled contracts by initcode size and find the set of largest
contracts whose combined size reaches the target.

The project is detected from hardhat.config.ts|js or foundry.toml. The
directory defaults to project_dir from unitpoints.toml.

Size classes:
  🚨 over network limit  > 131072 bytes
  ⚠️  large              > 65536 bytes
  🟡 over EIP-170        > 24576 bytes
  ✅ ok

EXAMPLES:
  unitpoints size
  unitpoints size ../contracts --target 120000 --json
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := projectDirFrom(loadProjectConfigSilent())
			if len(args) == 1 {
				dir = args[0]
			}

			builder, artifacts, err := evm.NewChain().LoadArtifacts(dir, chains.DiscoverOptions{Exclude: exclude})
			if err != nil {
				return err
			}
			if len(artifacts) == 0 {
				return fmt.Errorf("no compiled artifacts found in %s (run the %s build first)", dir, builder.DisplayName())
			}

			report := chains.AnalyzeSizes(artifacts, target)
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return printSizeReport(cmd.OutOrStdout(), builder.DisplayName(), report)
		},
	}

	cmd.Flags().IntVar(&target, "target", chains.DefaultSizeTarget, "combined initcode size to look for, in bytes")
	cmd.Flags().StringSliceVar(&exclude, "exclude", []string{"Test", "Mock", "Script"}, "contract name patterns to skip")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func sizeIcon(c chains.SizeClass) string {
	switch c {
	case chains.SizeOverLimit:
		return "🚨"
	case chains.SizeLarge:
		return "⚠️ "
	case chains.SizeOverEIP:
		return "🟡"
	}
	return "✅"
}

func kb(bytes int) string {
	return fmt.Sprintf("%.2f KB", float64(bytes)/1024)
}

func printSizeReport(out io.Writer, builder string, r *chains.SizeReport) error {
	fmt.Fprintf(out, "🔍 Deployment size analysis (%s, %d contracts)\n\n", builder, len(r.Contracts))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tCONTRACT\tINITCODE\tBYTES\tCLASS")
	for i, c := range r.Contracts {
		fmt.Fprintf(w, "%d\t%s %s\t%s\t%d\t%s\n", i+1, sizeIcon(c.Class), c.Name, kb(c.InitcodeSize), c.InitcodeSize, c.Class)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n📊 Total: %s (%d bytes)\n", kb(r.Total), r.Total)
	fmt.Fprintf(out, "🎯 Target: %s (%d bytes), network limit %s (%d bytes)\n",
		kb(r.Target), r.Target, kb(chains.NetworkInitcodeLimit), chains.NetworkInitcodeLimit)

	if len(r.Combination) == 0 {
		fmt.Fprintln(out, "✅ All contracts together stay below the target")
	} else {
		names := make([]string, len(r.Combination))
		for i, c := range r.Combination {
			names[i] = c.Name
		}
		fmt.Fprintf(out, "🔍 The %d largest contracts reach the target: %s = %s (%d bytes)\n",
			len(r.Combination), strings.Join(names, " + "), kb(r.CombinationSize), r.CombinationSize)
	}

	if r.Largest != nil {
		fmt.Fprintf(out, "📈 Largest: %s, %.1f%% of the target\n", r.Largest.Name, r.LargestShare*100)
	}

	if len(r.OverEIP170) > 0 {
		fmt.Fprintf(out, "\n⚠️  %d contract(s) over the EIP-170 limit (%s):\n", len(r.OverEIP170), kb(chains.EIP170Limit))
		for _, c := range r.OverEIP170 {
			marker := ""
			if c.InitcodeSize > chains.OversizedContract {
				marker = " (consider splitting)"
			}
			fmt.Fprintf(out, "  • %s: %s%s\n", c.Name, kb(c.InitcodeSize), marker)
		}
	}
	return nil
}
