package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
	"github.com/SrJuanF/UnitPoints-System/pkg/client"
)

func createRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse runs recorded in the registry",
	}

	cmd.AddCommand(createRunsListCmd())
	cmd.AddCommand(createRunsShowCmd())

	return cmd
}

func createRunsListCmd() *cobra.Command {
	var opts client.ListRunsOptions
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Long: `List configure runs recorded with 'unitpoints configure --record'.

EXAMPLES:
  unitpoints runs list
  unitpoints runs list --network passetHubTestnet --status failed
  unitpoints runs list --limit 50 --json
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(getServer(), getAPIKey())
			resp, err := c.ListRuns(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, map[string]any{
					"runs":       resp.Data,
					"count":      len(resp.Data),
					"hasMore":    resp.Pagination.HasMore,
					"nextCursor": resp.Pagination.NextCursor,
				})
			}
			return printRunList(out, resp)
		},
	}

	cmd.Flags().StringVar(&opts.Network, "network", "", "filter by network")
	cmd.Flags().StringVar(&opts.Status, "status", "", "filter by status (completed, failed)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of runs to show (1-100)")
	cmd.Flags().StringVar(&opts.Cursor, "cursor", "", "pagination cursor from a previous listing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func createRunsShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a recorded run with its calls and checks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(getServer(), getAPIKey())
			run, err := c.GetRun(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, run)
			}
			return printRun(out, run)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func printRunList(out io.Writer, resp *client.ListRunsResponse) error {
	if len(resp.Data) == 0 {
		fmt.Fprintln(out, "No runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNETWORK\tSTATUS\tREACHED\tCHECKS\tCREATED")
	for _, r := range resp.Data {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			r.ID, r.Network, r.Status, r.Reached, r.Summary.Pass, r.Summary.Total,
			r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if resp.Pagination.HasMore {
		fmt.Fprintf(out, "\n(showing %d runs, more with --cursor %s)\n", len(resp.Data), resp.Pagination.NextCursor)
	}
	return nil
}

func printRun(out io.Writer, run *client.Run) error {
	icon := "✅"
	if run.Status != "completed" {
		icon = "❌"
	}
	fmt.Fprintf(out, "%s Run %s\n", icon, run.ID)
	fmt.Fprintf(out, "   Network:  %s (chain %d)\n", run.Network, run.ChainID)
	fmt.Fprintf(out, "   Mode:     %s\n", run.Mode)
	if run.Deployer != "" {
		fmt.Fprintf(out, "   Deployer: %s\n", run.Deployer)
	}
	fmt.Fprintf(out, "   Status:   %s at %s\n", run.Status, run.Reached)
	if run.SectorID != "" {
		fmt.Fprintf(out, "   Sector:   %s\n", run.SectorID)
	}
	if run.Error != "" {
		fmt.Fprintf(out, "   Error:    %s\n", run.Error)
	}
	if run.RecordedBy != "" {
		fmt.Fprintf(out, "   Recorded: %s by %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"), run.RecordedBy)
	} else {
		fmt.Fprintf(out, "   Recorded: %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	fmt.Fprintln(out, "\nAddresses:")
	printAddresses(out, run.Addresses)

	if len(run.Calls) > 0 {
		fmt.Fprintln(out, "\nTransactions:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STAGE\tCALL\tTX\tBLOCK")
		for _, c := range run.Calls {
			fmt.Fprintf(w, "%s\t%s.%s(%s)\t%s\t%d\n", c.Stage, c.Contract, c.Method, strings.Join(c.Args, ", "), c.TxHash, c.BlockNumber)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(run.Results) > 0 {
		fmt.Fprintln(out)
		return ecosystem.WriteText(out, run.Results)
	}
	return nil
}
