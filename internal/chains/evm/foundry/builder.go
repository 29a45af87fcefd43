// Package foundry reads compiled contract artifacts from Foundry projects.
package foundry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/SrJuanF/UnitPoints-System/internal/chains"
)

// Builder implements chains.Builder for Foundry projects
type Builder struct{}

// New creates a new Foundry builder
func New() *Builder {
	return &Builder{}
}

// Name returns the builder identifier
func (b *Builder) Name() string {
	return "foundry"
}

// DisplayName returns a human-readable name
func (b *Builder) DisplayName() string {
	return "Foundry"
}

// ConfigFile returns the config file name
func (b *Builder) ConfigFile() string {
	return "foundry.toml"
}

// Detect checks if a directory is a Foundry project
func (b *Builder) Detect(dir string) (bool, error) {
	_, err := os.Stat(filepath.Join(dir, b.ConfigFile()))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Layout holds the directories of the default profile in foundry.toml
type Layout struct {
	Src string `toml:"src"`
	Out string `toml:"out"`
}

// ReadLayout reads [profile.default] from dir/foundry.toml. Missing keys
// fall back to forge's defaults, src and out.
func ReadLayout(dir string) (Layout, error) {
	layout := Layout{Src: "src", Out: "out"}

	var doc struct {
		Profile map[string]Layout `toml:"profile"`
	}
	if _, err := toml.DecodeFile(filepath.Join(dir, "foundry.toml"), &doc); err != nil {
		if os.IsNotExist(err) {
			return layout, nil
		}
		return layout, fmt.Errorf("parsing foundry.toml: %w", err)
	}
	if p, ok := doc.Profile["default"]; ok {
		if p.Src != "" {
			layout.Src = filepath.ToSlash(filepath.Clean(p.Src))
		}
		if p.Out != "" {
			layout.Out = p.Out
		}
	}
	return layout, nil
}

// Discover finds the contract artifacts compiled from the project's source tree
func (b *Builder) Discover(dir string, opts chains.DiscoverOptions) ([]string, error) {
	layout, err := ReadLayout(dir)
	if err != nil {
		return nil, err
	}
	outDir := filepath.Join(dir, layout.Out)
	if _, err := os.Stat(outDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s directory not found - run 'forge build' first", layout.Out)
	}

	var artifacts []string
	seen := make(map[string]bool)

	err = filepath.Walk(outDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(info.Name(), ".json") {
			return nil
		}

		// out/{Source}.sol/{Contract}.json
		if !strings.HasSuffix(filepath.Dir(path), ".sol") {
			return nil
		}

		contractName := strings.TrimSuffix(info.Name(), ".json")
		if seen[contractName] {
			return nil
		}
		if !chains.Included(contractName, opts.Contracts) || chains.Excluded(contractName, opts.Exclude) {
			return nil
		}

		sourcePath, err := artifactSourcePath(path)
		if err != nil {
			return nil // unreadable artifacts are not ours
		}
		if !strings.HasPrefix(sourcePath, layout.Src+"/") {
			return nil
		}

		seen[contractName] = true
		artifacts = append(artifacts, path)
		return nil
	})

	return artifacts, err
}

// Parse parses a Foundry artifact file
func (b *Builder) Parse(artifactPath string) (*chains.Artifact, error) {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	var raw Artifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing artifact JSON: %w", err)
	}

	// Interfaces and abstract contracts have no bytecode
	if raw.Bytecode.Object == "" || raw.Bytecode.Object == "0x" {
		return nil, fmt.Errorf("contract has no bytecode (likely an interface)")
	}

	var metadata Metadata
	if raw.RawMetadata != "" {
		_ = json.Unmarshal([]byte(raw.RawMetadata), &metadata)
	}

	return &chains.Artifact{
		Name:             strings.TrimSuffix(filepath.Base(artifactPath), ".json"),
		SourcePath:       firstKey(metadata.Settings.CompilationTarget),
		Builder:          b.Name(),
		ABI:              raw.ABI,
		Bytecode:         raw.Bytecode.Object,
		DeployedBytecode: raw.DeployedBytecode.Object,
	}, nil
}

func artifactSourcePath(artifactPath string) (string, error) {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return "", err
	}

	var raw Artifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", err
	}
	if raw.RawMetadata == "" {
		return "", fmt.Errorf("no metadata")
	}

	var metadata Metadata
	if err := json.Unmarshal([]byte(raw.RawMetadata), &metadata); err != nil {
		return "", err
	}
	return firstKey(metadata.Settings.CompilationTarget), nil
}

// Artifact is the on-disk shape of out/{Source}.sol/{Contract}.json
type Artifact struct {
	ABI              json.RawMessage `json:"abi"`
	Bytecode         BytecodeObject  `json:"bytecode"`
	DeployedBytecode BytecodeObject  `json:"deployedBytecode"`
	RawMetadata      string          `json:"rawMetadata"`
}

// BytecodeObject holds hex code plus its link references
type BytecodeObject struct {
	Object         string                                `json:"object"`
	LinkReferences map[string]map[string][]LinkReference `json:"linkReferences,omitempty"`
}

// LinkReference locates a library placeholder inside bytecode
type LinkReference struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// Metadata is the subset of solc metadata read from rawMetadata
type Metadata struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
	Settings struct {
		CompilationTarget map[string]string `json:"compilationTarget"`
	} `json:"settings"`
}

func firstKey(m map[string]string) string {
	for k := range m {
		return k
	}
	return ""
}
