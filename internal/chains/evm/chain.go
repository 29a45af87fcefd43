// Package evm provides the EVM chain module: artifact builders, bytecode
// comparison and the JSON-RPC client used to read and configure contracts.
package evm

import (
	"fmt"

	"github.com/SrJuanF/UnitPoints-System/internal/chains"
)

// Chain groups the EVM build tools this module understands
type Chain struct {
	builders []chains.Builder
}

// NewChain creates a new EVM chain module
func NewChain() *Chain {
	return &Chain{
		builders: []chains.Builder{
			NewHardhatBuilder(),
			NewFoundryBuilder(),
		},
	}
}

// Name returns the chain identifier
func (c *Chain) Name() string {
	return "evm"
}

// DisplayName returns a human-readable name
func (c *Chain) DisplayName() string {
	return "Ethereum/EVM"
}

// Builders returns all available builders for this chain
func (c *Chain) Builders() []chains.Builder {
	return c.builders
}

// Builder returns the builder with the given name
func (c *Chain) Builder(name string) (chains.Builder, error) {
	for _, b := range c.builders {
		if b.Name() == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("unknown builder %q", name)
}

// DetectBuilder detects which builder is used in the given directory
func (c *Chain) DetectBuilder(dir string) (chains.Builder, error) {
	for _, b := range c.builders {
		detected, err := b.Detect(dir)
		if err != nil {
			continue
		}
		if detected {
			return b, nil
		}
	}
	return nil, fmt.Errorf("no EVM builder detected in %s", dir)
}

// LoadArtifacts discovers and parses every artifact in dir. Artifacts that
// cannot be parsed (interfaces, abstract contracts) are skipped.
func (c *Chain) LoadArtifacts(dir string, opts chains.DiscoverOptions) (chains.Builder, []*chains.Artifact, error) {
	b, err := c.DetectBuilder(dir)
	if err != nil {
		return nil, nil, err
	}
	paths, err := b.Discover(dir, opts)
	if err != nil {
		return b, nil, fmt.Errorf("discovering %s artifacts: %w", b.DisplayName(), err)
	}
	artifacts := make([]*chains.Artifact, 0, len(paths))
	for _, p := range paths {
		a, err := b.Parse(p)
		if err != nil {
			continue
		}
		artifacts = append(artifacts, a)
	}
	return b, artifacts, nil
}
