package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
	"github.com/SrJuanF/UnitPoints-System/pkg/client"
)

type verifyOptions struct {
	chainFlags
	sector int64
	remote bool
}

func createVerifyCmd() *cobra.Command {
	var opts verifyOptions

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the on-chain ecosystem configuration",
		Long: `Re-read the deployed contracts and report whether the ecosystem is wired.

Checks admin permissions, auxiliary contract references, the EventManager's
DAOGovernance and CompanyManager references, and the sector token
registration. Nothing is written. Read errors are reported as FAIL.

EXAMPLES:
  # Verify a local node
  unitpoints verify --network localhost

  # Expect UPT at sector 2 and fail the command on any FAIL
  unitpoints verify --network passetHubTestnet --sector 2 --fail-on-error

  # Let the registry server run the checks
  unitpoints verify --network passetHubTestnet --remote
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, &opts)
		},
	}

	opts.chainFlags.register(cmd)
	cmd.Flags().Int64Var(&opts.sector, "sector", 1, "expected sector id of the UPT token")
	cmd.Flags().BoolVar(&opts.remote, "remote", false, "run the checks on the registry server")

	return cmd
}

func runVerify(cmd *cobra.Command, opts *verifyOptions) error {
	ctx, cancel := opts.withTimeout(cmd.Context())
	defer cancel()
	out := cmd.OutOrStdout()

	t, err := resolveTarget(opts.network, opts.rpcURL, opts.manual)
	if err != nil {
		return err
	}

	var result *client.VerifyResult
	if opts.remote {
		if opts.checkCode {
			return fmt.Errorf("--check-code is not available with --remote")
		}
		c := client.New(getServer(), getAPIKey())
		result, err = c.Verify(ctx, client.VerifyRequest{
			Network:        t.network.Name,
			RPCURL:         t.network.RPCURL,
			ChainID:        t.network.ChainID,
			Addresses:      t.addrs,
			ExpectedSector: opts.sector,
		})
		if err != nil {
			return fmt.Errorf("remote verification: %w", err)
		}
	} else {
		evmClient, backend, err := t.dial(ctx, &opts.chainFlags, nil)
		if err != nil {
			return err
		}
		defer evmClient.Close()

		verifierOpts, err := t.verifierOptions(&opts.chainFlags, backend)
		if err != nil {
			return err
		}
		results := ecosystem.NewVerifier(backend, verifierOpts...).Verify(ctx, t.addrs, opts.sector)
		if err := ctx.Err(); err != nil {
			return err
		}
		result = &client.VerifyResult{
			Network: t.network.Name,
			ChainID: evmClient.ChainID(),
			Results: results,
			Summary: ecosystem.Summarize(results),
		}
	}

	if opts.jsonOutput {
		if err := writeJSON(out, result); err != nil {
			return err
		}
		return checkSummary(&opts.chainFlags, result.Summary)
	}

	fmt.Fprintf(out, "🔍 Verifying UnitPoints ecosystem on %s (chain %d)\n", result.Network, result.ChainID)
	fmt.Fprintf(out, "   Addresses (%s):\n", t.sourceLabel())
	printAddresses(out, t.addrs)
	fmt.Fprintln(out)
	if err := ecosystem.WriteText(out, result.Results); err != nil {
		return err
	}
	if result.Summary.OK() {
		fmt.Fprintln(out, "\n✅ Ecosystem configuration verified")
	} else {
		fmt.Fprintln(out, "\n❌ Ecosystem configuration incomplete")
	}
	return checkSummary(&opts.chainFlags, result.Summary)
}
