package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
)

func createAddressesCmd() *cobra.Command {
	var network string
	var rpcURL string
	var manual bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "addresses",
		Short: "Show the resolved contract addresses",
		Long: `Resolve and validate the six ecosystem addresses without touching the chain.

By default addresses come from the Ignition deployment artifacts under the
project directory, tried in this order:

  ignition/deployments/chain-<chainId>/deployed_addresses.json
  ignition/deployments/chain-31337/deployed_addresses.json   (local networks)
  deployments/<network>/deployed_addresses.json

With --manual the [addresses] table of unitpoints.toml is used.

EXAMPLES:
  unitpoints addresses --network localhost
  unitpoints addresses --network passetHubTestnet --manual --json
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := resolveTarget(network, rpcURL, manual)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				payload := map[string]any{
					"network":   t.network.Name,
					"chainId":   t.network.ChainID,
					"mode":      t.source.Mode(),
					"addresses": t.addrs,
				}
				if s, ok := t.source.(*ecosystem.ArtifactSource); ok {
					payload["path"] = s.Path
				}
				return writeJSON(out, payload)
			}

			fmt.Fprintf(out, "📦 %s (chain %d)\n", t.network.Name, t.network.ChainID)
			fmt.Fprintf(out, "   Source: %s\n", t.sourceLabel())
			printAddresses(out, t.addrs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&network, "network", "n", "", "network name")
	cmd.Flags().StringVar(&rpcURL, "rpc-url", "", "JSON-RPC endpoint (overrides the network's)")
	cmd.Flags().BoolVar(&manual, "manual", false, "use [addresses] from unitpoints.toml")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	_ = cmd.MarkFlagRequired("network")

	return cmd
}
