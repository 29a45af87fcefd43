// Package chains provides the artifact and verification types shared by the
// chain modules and their build-tool readers.
package chains

import (
	"encoding/json"
	"strings"
)

// Builder reads compiled contract artifacts produced by a specific build tool
type Builder interface {
	// Metadata
	Name() string        // "hardhat", "foundry"
	DisplayName() string // "Hardhat", "Foundry"

	// Detection
	Detect(dir string) (bool, error)
	ConfigFile() string // "hardhat.config.ts", "foundry.toml"

	// Artifact handling
	Discover(dir string, opts DiscoverOptions) ([]string, error)
	Parse(artifactPath string) (*Artifact, error)
}

// DiscoverOptions configures artifact discovery
type DiscoverOptions struct {
	// Contracts to include (empty = all)
	Contracts []string
	// Patterns to exclude (e.g., "Test", "Mock")
	Exclude []string
}

// VerifyResult contains bytecode comparison results
type VerifyResult struct {
	Match     bool   // Whether the bytecode matches
	MatchType string // "full", "partial", "none"
	Message   string // Human-readable explanation
}

// Match types reported in VerifyResult.MatchType
const (
	MatchFull    = "full"
	MatchPartial = "partial"
	MatchNone    = "none"
)

// Artifact is a compiled EVM contract
type Artifact struct {
	Name             string          `json:"name"`
	SourcePath       string          `json:"sourcePath"`
	Builder          string          `json:"builder"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         string          `json:"bytecode"`
	DeployedBytecode string          `json:"deployedBytecode"`
}

// InitcodeSize returns the creation bytecode size in bytes.
func (a *Artifact) InitcodeSize() int {
	return HexSize(a.Bytecode)
}

// RuntimeSize returns the deployed bytecode size in bytes.
func (a *Artifact) RuntimeSize() int {
	return HexSize(a.DeployedBytecode)
}

// HexSize returns the number of bytes encoded by a 0x-prefixed hex string.
// Empty strings and a bare "0x" are zero.
func HexSize(code string) int {
	code = strings.TrimPrefix(strings.TrimSpace(code), "0x")
	return len(code) / 2
}

// Excluded reports whether name matches one of the exclusion patterns as a
// prefix or a suffix ("Mock" excludes "MockToken", "Test" excludes "TokenTest").
func Excluded(name string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.HasPrefix(name, p) || strings.HasSuffix(name, p) {
			return true
		}
	}
	return false
}

// Included reports whether name is in the explicit contract list. An empty list includes everything.
func Included(name string, contracts []string) bool {
	if len(contracts) == 0 {
		return true
	}
	for _, c := range contracts {
		if c == name {
			return true
		}
	}
	return false
}
