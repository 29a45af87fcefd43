package ecosystem

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LocalChainID is the chain id of Hardhat's in-process and localhost networks
const LocalChainID = 31337

// DeploymentModules are the Ignition modules searched, in merge order
var DeploymentModules = []string{
	"UnitPointsEcosystemStep1",
	"UnitPointsEcosystemStep2",
	"UnitPointsEcosystemStep3",
	"UnitPointsEcosystemStep4",
	"UnitPointsEcosystemStep5",
	"UnitPointsEcosystemStep6",
}

// deploymentKeys maps each Ignition future id to its contract
var deploymentKeys = []struct {
	key      string
	contract Contract
}{
	{"userManager", UserManager},
	{"companyManager", CompanyManager},
	{"eventManager", EventManager},
	{"daoGovernance", DAOGovernance},
	{"TokenAdministrator", TokenAdministrator},
	{"unitpointsTokens", UnitpointsTokens},
}

// Network identifies the chain a run targets
type Network struct {
	Name    string `json:"name"`
	ChainID int64  `json:"chainId"`
}

// IsLocal reports whether n is a local development chain
func (n Network) IsLocal() bool {
	return n.ChainID == LocalChainID || n.Name == "localhost" || n.Name == "hardhat"
}

// MissingDeploymentError is returned when no deployment artifact could be
// read, or the artifact found lacks some contract addresses.
type MissingDeploymentError struct {
	Network  string
	Searched []string // candidate paths, when no file was found
	Path     string   // artifact used, when addresses are missing
	Missing  []string // field names without an address
}

func (e *MissingDeploymentError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing contract addresses in %s: %s", e.Path, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("no deployment artifacts found for network %q (searched: %s)", e.Network, strings.Join(e.Searched, ", "))
}

// Address source modes
const (
	ModeArtifacts = "artifacts"
	ModeManual    = "manual"
)

// Source produces the address record for a run
type Source interface {
	Resolve() (Addresses, error)
	// Mode is ModeArtifacts or ModeManual
	Mode() string
}

// ArtifactSource resolves addresses from Ignition deployment artifacts under Root
type ArtifactSource struct {
	Root    string
	Network Network

	// Path is set to the artifact file used after a successful Resolve
	Path string
}

// Mode implements Source
func (s *ArtifactSource) Mode() string { return ModeArtifacts }

// Resolve implements Source
func (s *ArtifactSource) Resolve() (Addresses, error) {
	addrs, path, err := ResolveFile(s.Root, s.Network)
	if err != nil {
		return Addresses{}, err
	}
	s.Path = path
	return addrs, nil
}

// ManualSource returns literal addresses from configuration or flags
type ManualSource struct {
	Addresses Addresses
}

// Mode implements Source
func (s *ManualSource) Mode() string { return ModeManual }

// Resolve implements Source
func (s *ManualSource) Resolve() (Addresses, error) {
	return s.Addresses, nil
}

// ResolveAndValidate resolves src and validates the result before any write happens
func ResolveAndValidate(src Source) (Addresses, error) {
	addrs, err := src.Resolve()
	if err != nil {
		return Addresses{}, fmt.Errorf("resolving addresses: %w", err)
	}
	if err := ValidateAddresses(addrs); err != nil {
		return Addresses{}, fmt.Errorf("validating addresses: %w", err)
	}
	return addrs, nil
}

// CandidatePaths lists the artifact files tried for n, in order, without duplicates
func CandidatePaths(root string, n Network) []string {
	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	if n.ChainID > 0 {
		add(filepath.Join(root, "ignition", "deployments", "chain-"+strconv.FormatInt(n.ChainID, 10), "deployed_addresses.json"))
	}
	if n.IsLocal() {
		add(filepath.Join(root, "ignition", "deployments", "chain-"+strconv.Itoa(LocalChainID), "deployed_addresses.json"))
	}
	if n.Name != "" {
		add(filepath.Join(root, "deployments", n.Name, "deployed_addresses.json"))
	}
	return paths
}

// Resolve reads the first readable and parseable artifact for n and returns
// a fully populated address record.
func Resolve(root string, n Network) (Addresses, error) {
	addrs, _, err := ResolveFile(root, n)
	return addrs, err
}

// ResolveFile is Resolve that also returns the artifact path used
func ResolveFile(root string, n Network) (Addresses, string, error) {
	candidates := CandidatePaths(root, n)
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		addrs, err := ParseDeployment(data)
		if err != nil {
			continue
		}
		if missing := addrs.Missing(); len(missing) > 0 {
			return Addresses{}, path, &MissingDeploymentError{Network: n.Name, Path: path, Missing: missing}
		}
		return addrs, path, nil
	}
	return Addresses{}, "", &MissingDeploymentError{Network: n.Name, Searched: candidates}
}

// ParseDeployment extracts contract addresses from a deployed_addresses.json document.
// Both the nested {"Module": {"contract": {"address": ...}}} form and Ignition's flat
// {"Module#contract": "0x..."} form are accepted. Modules merge in DeploymentModules
// order; later modules override earlier ones.
func ParseDeployment(data []byte) (Addresses, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return Addresses{}, fmt.Errorf("parsing deployment artifact: %w", err)
	}

	var addrs Addresses
	for _, module := range DeploymentModules {
		nested := map[string]struct {
			Address string `json:"address"`
		}{}
		if raw, ok := doc[module]; ok {
			if err := json.Unmarshal(raw, &nested); err != nil {
				return Addresses{}, fmt.Errorf("parsing module %s: %w", module, err)
			}
		}

		for _, k := range deploymentKeys {
			if entry, ok := nested[k.key]; ok && entry.Address != "" {
				addrs = addrs.With(k.contract, entry.Address)
			}
			if raw, ok := doc[module+"#"+k.key]; ok {
				var flat string
				if err := json.Unmarshal(raw, &flat); err != nil {
					return Addresses{}, fmt.Errorf("parsing %s#%s: %w", module, k.key, err)
				}
				if flat != "" {
					addrs = addrs.With(k.contract, flat)
				}
			}
		}
	}
	return addrs, nil
}
