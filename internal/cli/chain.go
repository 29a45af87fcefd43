package cli

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/SrJuanF/UnitPoints-System/internal/chains"
	"github.com/SrJuanF/UnitPoints-System/internal/chains/evm"
	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
)

// chainFlags are shared by the commands that talk to a node
type chainFlags struct {
	network     string
	rpcURL      string
	manual      bool
	rpcRate     float64
	timeout     time.Duration
	checkCode   bool
	jsonOutput  bool
	failOnError bool
}

func (f *chainFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.network, "network", "n", "", "network name (localhost, hardhat, passetHubTestnet, or from unitpoints.toml)")
	cmd.Flags().StringVar(&f.rpcURL, "rpc-url", "", "JSON-RPC endpoint (overrides the network's)")
	cmd.Flags().BoolVar(&f.manual, "manual", false, "use [addresses] from unitpoints.toml instead of deployment artifacts")
	cmd.Flags().Float64Var(&f.rpcRate, "rpc-rate", 0, "maximum RPC calls per second (0 = unlimited)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "abort the run after this long (0 = no limit)")
	cmd.Flags().BoolVar(&f.checkCode, "check-code", false, "also compare deployed code against compiled artifacts")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&f.failOnError, "fail-on-error", false, "exit non-zero when any check fails")
	_ = cmd.MarkFlagRequired("network")
}

// withTimeout bounds ctx by f.timeout when one is set
func (f *chainFlags) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout > 0 {
		return context.WithTimeout(ctx, f.timeout)
	}
	return context.WithCancel(ctx)
}

// target is a resolved network plus the address record for it
type target struct {
	config  *ProjectConfig
	network ecosystem.NetworkConfig
	source  ecosystem.Source
	addrs   ecosystem.Addresses
}

// resolveTarget loads the project config, finds the network and resolves and
// validates the addresses. Nothing touches the chain here.
func resolveTarget(network, rpcURL string, manual bool) (*target, error) {
	config := loadProjectConfigSilent()

	n, err := resolveNetwork(config, network, rpcURL)
	if err != nil {
		return nil, err
	}

	t := &target{config: config, network: n, source: newSource(config, n, manual)}
	addrs, err := ecosystem.ResolveAndValidate(t.source)
	if err != nil {
		return t, err
	}
	t.addrs = addrs
	return t, nil
}

func newSource(config *ProjectConfig, n ecosystem.NetworkConfig, manual bool) ecosystem.Source {
	if manual {
		var addrs ecosystem.Addresses
		if config != nil {
			addrs = config.Addresses
		}
		return &ecosystem.ManualSource{Addresses: addrs}
	}
	return &ecosystem.ArtifactSource{Root: projectDirFrom(config), Network: n.Network()}
}

// sourceLabel describes where the addresses came from
func (t *target) sourceLabel() string {
	if s, ok := t.source.(*ecosystem.ArtifactSource); ok && s.Path != "" {
		return "artifacts: " + s.Path
	}
	return t.source.Mode()
}

// dial connects to the target network. A nil key gives a read-only client.
func (t *target) dial(ctx context.Context, f *chainFlags, key *ecdsa.PrivateKey) (*evm.Client, *ecosystem.ChainBackend, error) {
	if t.network.RPCURL == "" {
		return nil, nil, fmt.Errorf("unknown network %q: add [networks.%s] to unitpoints.toml or pass --rpc-url", t.network.Name, t.network.Name)
	}
	client, err := evm.Dial(ctx, evm.ClientConfig{
		RPCURL:     t.network.RPCURL,
		ChainID:    t.network.ChainID,
		PrivateKey: key,
		RPCRate:    f.rpcRate,
		Logger:     slog.Default(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", t.network.Name, err)
	}
	backend, err := ecosystem.NewChainBackend(client)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return client, backend, nil
}

// verifierOptions enables the code check when requested
func (t *target) verifierOptions(f *chainFlags, backend *ecosystem.ChainBackend) ([]ecosystem.VerifierOption, error) {
	if !f.checkCode {
		return nil, nil
	}
	artifacts, err := loadCodeArtifacts(projectDirFrom(t.config))
	if err != nil {
		return nil, err
	}
	return []ecosystem.VerifierOption{ecosystem.WithCodeCheck(backend, artifacts)}, nil
}

// loadCodeArtifacts reads the compiled ecosystem contracts from a Hardhat or
// Foundry project. Contracts without an artifact are only checked for code presence.
func loadCodeArtifacts(dir string) (map[ecosystem.Contract]*chains.Artifact, error) {
	names := make([]string, len(ecosystem.Contracts))
	for i, c := range ecosystem.Contracts {
		names[i] = string(c)
	}

	_, artifacts, err := evm.NewChain().LoadArtifacts(dir, chains.DiscoverOptions{Contracts: names})
	if err != nil {
		return nil, fmt.Errorf("loading artifacts for code check: %w", err)
	}

	byContract := make(map[ecosystem.Contract]*chains.Artifact)
	for _, a := range artifacts {
		c, err := ecosystem.ParseContract(a.Name)
		if err != nil {
			continue
		}
		byContract[c] = a
	}
	slog.Debug("loaded code artifacts", "dir", dir, "count", len(byContract))
	return byContract, nil
}

func printAddresses(out io.Writer, addrs ecosystem.Addresses) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range ecosystem.Contracts {
		fmt.Fprintf(w, "     %s\t%s\n", c, addrs.Get(c))
	}
	w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// checkSummary turns failed checks into an error when --fail-on-error is set
func checkSummary(f *chainFlags, s ecosystem.Summary) error {
	if f.failOnError && !s.OK() {
		return fmt.Errorf("verification failed: %d of %d checks failed", s.Fail, s.Total)
	}
	return nil
}
