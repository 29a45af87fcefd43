// Package hardhat reads compiled contract artifacts from Hardhat projects.
package hardhat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/SrJuanF/UnitPoints-System/internal/chains"
)

// configFiles are checked in order by Detect
var configFiles = []string{"hardhat.config.ts", "hardhat.config.js", "hardhat.config.cjs", "hardhat.config.mjs"}

// Builder implements chains.Builder for Hardhat projects
type Builder struct{}

// New creates a new Hardhat builder
func New() *Builder {
	return &Builder{}
}

// Name returns the builder identifier
func (b *Builder) Name() string {
	return "hardhat"
}

// DisplayName returns a human-readable name
func (b *Builder) DisplayName() string {
	return "Hardhat"
}

// ConfigFile returns the primary config file name
func (b *Builder) ConfigFile() string {
	return configFiles[0]
}

// Detect checks if a directory is a Hardhat project
func (b *Builder) Detect(dir string) (bool, error) {
	for _, name := range configFiles {
		_, err := os.Stat(filepath.Join(dir, name))
		if err == nil {
			return true, nil
		}
		if !os.IsNotExist(err) {
			return false, err
		}
	}
	return false, nil
}

// Discover finds contract artifacts under artifacts/contracts. Debug files
// (*.dbg.json) and artifacts from node_modules are skipped.
func (b *Builder) Discover(dir string, opts chains.DiscoverOptions) ([]string, error) {
	artifactsDir := filepath.Join(dir, "artifacts", "contracts")
	if _, err := os.Stat(artifactsDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("artifacts directory not found - run 'npx hardhat compile' first")
	}

	var artifacts []string
	seen := make(map[string]bool)

	err := filepath.Walk(artifactsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		name := info.Name()
		if !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".dbg.json") {
			return nil
		}
		// artifacts/contracts/{path}/{Source}.sol/{Contract}.json
		if !strings.HasSuffix(filepath.Dir(path), ".sol") {
			return nil
		}

		contractName := strings.TrimSuffix(name, ".json")
		if seen[contractName] {
			return nil
		}
		if !chains.Included(contractName, opts.Contracts) || chains.Excluded(contractName, opts.Exclude) {
			return nil
		}

		seen[contractName] = true
		artifacts = append(artifacts, path)
		return nil
	})

	return artifacts, err
}

// Parse parses a Hardhat artifact file
func (b *Builder) Parse(artifactPath string) (*chains.Artifact, error) {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	var raw Artifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing artifact JSON: %w", err)
	}
	if raw.Format != "" && !strings.HasPrefix(raw.Format, "hh-sol-artifact") {
		return nil, fmt.Errorf("unsupported artifact format %q", raw.Format)
	}
	if raw.Bytecode == "" || raw.Bytecode == "0x" {
		return nil, fmt.Errorf("contract has no bytecode (likely an interface)")
	}

	name := raw.ContractName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(artifactPath), ".json")
	}

	return &chains.Artifact{
		Name:             name,
		SourcePath:       raw.SourceName,
		Builder:          b.Name(),
		ABI:              raw.ABI,
		Bytecode:         raw.Bytecode,
		DeployedBytecode: raw.DeployedBytecode,
	}, nil
}

// Artifact is the on-disk shape of a Hardhat contract artifact (hh-sol-artifact-1)
type Artifact struct {
	Format           string          `json:"_format"`
	ContractName     string          `json:"contractName"`
	SourceName       string          `json:"sourceName"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         string          `json:"bytecode"`
	DeployedBytecode string          `json:"deployedBytecode"`
}
