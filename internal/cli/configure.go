package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
	runs "github.com/SrJuanF/UnitPoints-System/internal/runs/domain"
	"github.com/SrJuanF/UnitPoints-System/pkg/client"
)

type configureOptions struct {
	chainFlags
	steps          string
	keyFile        string
	record         bool
	expectedSector int64
}

func createConfigureCmd() *cobra.Command {
	var opts configureOptions

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Wire the deployed ecosystem contracts together",
		Long: `Run the configuration sequence against a deployed UnitPoints ecosystem.

Stages run in a fixed order and every transaction is confirmed before the
next one is sent:

  grant     7 grantAdmin calls between the contracts
  wire      setDAOGovernance, setCompanyManager, setAuxiliaryContracts
  register  registerSectorToken(UnitpointsTokens) on TokenAdministrator
  verify    re-read the on-chain state and report PASS/FAIL per check

A failed transaction stops the run. Completed writes are not rolled back;
rerun with --steps to resume from the failed stage.

EXAMPLES:
  # Configure a local Hardhat node from ignition/deployments
  unitpoints configure --network localhost

  # Use the addresses in unitpoints.toml
  unitpoints configure --network passetHubTestnet --manual

  # Only rerun the wiring and verification
  unitpoints configure --network passetHubTestnet --steps wire,verify

  # Report the run to the registry
  unitpoints configure --network passetHubTestnet --record
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(cmd, &opts)
		},
	}

	opts.chainFlags.register(cmd)
	cmd.Flags().StringVar(&opts.steps, "steps", "", "comma-separated stages to run (grant,wire,register,verify; default all)")
	cmd.Flags().StringVar(&opts.keyFile, "private-key-file", "", "file holding the deployer's hex private key")
	cmd.Flags().BoolVar(&opts.record, "record", false, "record the run in the registry")
	cmd.Flags().Int64Var(&opts.expectedSector, "sector", 1, "sector id to verify when the register stage is skipped")

	return cmd
}

func runConfigure(cmd *cobra.Command, opts *configureOptions) error {
	ctx, cancel := opts.withTimeout(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	progress := out
	if opts.jsonOutput {
		progress = cmd.ErrOrStderr()
	}

	stages, err := ecosystem.ParseStages(opts.steps)
	if err != nil {
		return err
	}

	t, err := resolveTarget(opts.network, opts.rpcURL, opts.manual)
	if err != nil {
		return err
	}

	key, err := loadDeployerKey(cmd.ErrOrStderr(), opts.keyFile)
	if err != nil {
		return err
	}

	evmClient, backend, err := t.dial(ctx, &opts.chainFlags, key)
	if err != nil {
		return err
	}
	defer evmClient.Close()

	verifierOpts, err := t.verifierOptions(&opts.chainFlags, backend)
	if err != nil {
		return err
	}

	fmt.Fprintf(progress, "🔧 Configuring UnitPoints ecosystem on %s (chain %d)\n", t.network.Name, evmClient.ChainID())
	fmt.Fprintf(progress, "   Deployer: %s\n", evmClient.From().Hex())
	fmt.Fprintf(progress, "   Addresses (%s):\n", t.sourceLabel())
	printAddresses(progress, t.addrs)

	seq := ecosystem.NewSequencer(backend, ecosystem.NewVerifier(backend, verifierOpts...), slog.Default())
	outcome, runErr := seq.Run(ctx, t.addrs, ecosystem.Options{
		Stages:         stages,
		ExpectedSector: opts.expectedSector,
		Hooks:          progressHooks(progress),
	})
	runErr = describeRunError(runErr)

	run := runs.FromOutcome(runs.RunParams{
		Network:  t.network.Name,
		ChainID:  evmClient.ChainID(),
		Mode:     t.source.Mode(),
		Deployer: evmClient.From().Hex(),
	}, outcome, runErr)

	if opts.record {
		recordRun(ctx, progress, run)
	}

	if opts.jsonOutput {
		if err := writeJSON(out, run); err != nil {
			return err
		}
	} else if len(run.Results) > 0 {
		fmt.Fprintln(out)
		if err := ecosystem.WriteText(out, run.Results); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}

	if !opts.jsonOutput {
		fmt.Fprintf(out, "\n✅ Configuration finished at %s", run.Reached)
		if run.SectorID != "" {
			fmt.Fprintf(out, " (sector %s)", run.SectorID)
		}
		fmt.Fprintln(out)
	}
	return checkSummary(&opts.chainFlags, run.Summary)
}

// stageTitles are printed when a stage starts
var stageTitles = map[ecosystem.Stage]string{
	ecosystem.StageGrant:    "Granting admin permissions",
	ecosystem.StageWire:     "Wiring cross-contract references",
	ecosystem.StageRegister: "Registering UPT as a sector token",
	ecosystem.StageVerify:   "Verifying configuration",
}

func progressHooks(out io.Writer) ecosystem.Hooks {
	stageCalls := map[ecosystem.Stage]int{
		ecosystem.StageGrant:    len(ecosystem.PermissionGraph()),
		ecosystem.StageWire:     len(ecosystem.WiringCalls()),
		ecosystem.StageRegister: 1,
	}

	return ecosystem.Hooks{
		OnStage: func(stage ecosystem.Stage, skipped bool) {
			if skipped {
				fmt.Fprintf(out, "\n⏭️  %s (skipped)\n", stageTitles[stage])
				return
			}
			fmt.Fprintf(out, "\n📋 %s\n", stageTitles[stage])
		},
		BeforeCall: func(stage ecosystem.Stage, index int, contract ecosystem.Contract, method string, args []ecosystem.Contract) {
			names := make([]string, len(args))
			for i, a := range args {
				names[i] = string(a)
			}
			fmt.Fprintf(out, "   [%d/%d] %s.%s(%s)\n", index, stageCalls[stage], contract, method, strings.Join(names, ", "))
		},
		AfterCall: func(rec ecosystem.CallRecord) {
			fmt.Fprintf(out, "         ✅ %s (block %d, gas %d)\n", rec.TxHash, rec.BlockNumber, rec.GasUsed)
		},
	}
}

// stageActions name what a stage was doing when it failed
var stageActions = map[ecosystem.Stage]string{
	ecosystem.StageGrant:    "granting permissions",
	ecosystem.StageWire:     "wiring addresses",
	ecosystem.StageRegister: "registering sector token",
}

func describeRunError(err error) error {
	var stepErr *ecosystem.StepError
	if errors.As(err, &stepErr) {
		return fmt.Errorf("%s: %w", stageActions[stepErr.Stage], err)
	}
	return err
}

// recordRun reports run to the registry. A registry failure does not fail
// the command: the on-chain work is already done.
func recordRun(ctx context.Context, out io.Writer, run runs.Run) {
	c := client.New(getServer(), getAPIKey())
	resp, err := c.RecordRun(ctx, run)
	if err != nil {
		slog.Warn("recording run failed", "server", getServer(), "error", err)
		fmt.Fprintf(out, "⚠️  Failed to record run: %v\n", err)
		return
	}
	fmt.Fprintf(out, "📝 Run recorded as %s\n", resp.ID)
}
