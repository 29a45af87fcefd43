package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
)

// projectConfigFiles is the search order for project config files
var projectConfigFiles = []string{"unitpoints.toml", "up.toml"}

// ProjectConfig is the project-level TOML configuration
type ProjectConfig struct {
	Server string `toml:"server"`
	// ProjectDir is the Hardhat project holding ignition/deployments and artifacts
	ProjectDir string                             `toml:"project_dir,omitempty"`
	Networks   map[string]ecosystem.NetworkConfig `toml:"networks,omitempty"`
	// Addresses are used by --manual runs
	Addresses ecosystem.Addresses `toml:"addresses,omitempty"`
}

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var serverURL string
	var projectDir string
	var force bool
	var global bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file",
		Long: `Create a unitpoints.toml configuration file in the current directory.

This file stores project-specific settings: the registry server URL, the
Hardhat project directory, extra networks, and literal addresses for
--manual runs.

EXAMPLES:
  # Create config with default server
  unitpoints config init

  # Point at a Hardhat project in another directory
  unitpoints config init --project-dir ../contracts

  # Store the registry URL in ~/.unitpoints/config.yaml instead
  unitpoints config init --global --server https://registry.example.com

  # Overwrite existing config
  unitpoints config init --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if global {
				return runConfigInitGlobal(cmd.OutOrStdout(), serverURL, force)
			}
			return runConfigInit(cmd.OutOrStdout(), serverURL, projectDir, force)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "registry server URL")
	cmd.Flags().StringVar(&projectDir, "project-dir", ".", "Hardhat project directory")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")
	cmd.Flags().BoolVar(&global, "global", false, "write ~/.unitpoints/config.yaml")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display the current configuration.

Shows the local project config (unitpoints.toml), the global config from
~/.unitpoints/config.yaml, stored credentials, and the networks that
--network accepts.

EXAMPLES:
  unitpoints config show
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	return cmd
}

func runConfigInit(out io.Writer, serverURL, projectDir string, force bool) error {
	configPath := "unitpoints.toml"

	for _, name := range projectConfigFiles {
		if _, err := os.Stat(name); err == nil && !force {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", name)
		}
	}

	content := fmt.Sprintf(`# UnitPoints configurator project configuration

server = "%s"
project_dir = "%s"

# Extra networks, or overrides of the built-in localhost, hardhat and passetHubTestnet
# [networks.myTestnet]
# rpc_url = "https://rpc.example.com"
# chain_id = 12345

# Addresses used by --manual runs
# [addresses]
# user_manager = "0x..."
# company_manager = "0x..."
# event_manager = "0x..."
# dao_governance = "0x..."
# token_administrator = "0x..."
# unitpoints_tokens = "0x..."
`, serverURL, projectDir)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", configPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Server:      %s\n", serverURL)
	fmt.Fprintf(out, "  Project dir: %s\n", projectDir)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Run 'unitpoints addresses --network <name>' to check the deployment artifacts")
	fmt.Fprintln(out, "  2. Run 'unitpoints configure --network <name>' to wire the ecosystem")

	return nil
}

func runConfigInitGlobal(out io.Writer, serverURL string, force bool) error {
	path := globalConfigPath()
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(credentialsDir(), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(GlobalConfig{Server: serverURL})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(out, "Created %s\n", path)
	return nil
}

func runConfigShow(out io.Writer) error {
	fmt.Fprintln(out, "Configuration sources (in order of precedence):")
	fmt.Fprintln(out)

	// 1. Command line flags
	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "   --server, --api-key, --config, --rpc-url, --private-key-file")
	fmt.Fprintln(out)

	// 2. Environment variables
	fmt.Fprintln(out, "2. Environment variables")
	for _, name := range []string{"UNITPOINTS_SERVER", "UNITPOINTS_API_KEY", "UNITPOINTS_RPC_URL", "UNITPOINTS_PRIVATE_KEY"} {
		v := os.Getenv(name)
		switch {
		case v == "":
			fmt.Fprintf(out, "   %s=(not set)\n", name)
		case name == "UNITPOINTS_SERVER" || name == "UNITPOINTS_RPC_URL":
			fmt.Fprintf(out, "   %s=%s\n", name, v)
		default:
			fmt.Fprintf(out, "   %s=%s\n", name, maskAPIKey(v))
		}
	}
	fmt.Fprintln(out)

	// 3. Local project config
	fmt.Fprintln(out, "3. Local project config (unitpoints.toml or up.toml)")
	projectConfig, configPath, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(out, "   (not found)")
		} else {
			fmt.Fprintf(out, "   Error: %v\n", err)
		}
	} else {
		fmt.Fprintf(out, "   Loaded from: %s\n", configPath)
		if projectConfig.Server != "" {
			fmt.Fprintf(out, "   server: %s\n", projectConfig.Server)
		}
		if projectConfig.ProjectDir != "" {
			fmt.Fprintf(out, "   project_dir: %s\n", projectConfig.ProjectDir)
		}
		if missing := projectConfig.Addresses.Missing(); len(missing) < len(ecosystem.Contracts) {
			fmt.Fprintf(out, "   addresses: %d of %d set\n", len(ecosystem.Contracts)-len(missing), len(ecosystem.Contracts))
		}
	}
	fmt.Fprintln(out)

	// 4. Global config
	fmt.Fprintln(out, "4. Global config (~/.unitpoints/config.yaml)")
	globalConfig, err := loadGlobalConfig()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(out, "   (not found)")
		} else {
			fmt.Fprintf(out, "   Error: %v\n", err)
		}
	} else if globalConfig.Server != "" {
		fmt.Fprintf(out, "   server: %s\n", globalConfig.Server)
	}
	fmt.Fprintln(out)

	// 5. Credentials
	fmt.Fprintln(out, "5. Credentials (~/.unitpoints/credentials)")
	creds, err := loadCredentials()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(out, "   (not found)")
		} else {
			fmt.Fprintf(out, "   Error: %v\n", err)
		}
	} else if len(creds.Servers) == 0 {
		fmt.Fprintln(out, "   (no credentials stored)")
	} else {
		for server, cred := range creds.Servers {
			fmt.Fprintf(out, "   %s: %s\n", server, maskAPIKey(cred.APIKey))
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Networks:")
	networks := knownNetworks(projectConfig)
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		n := networks[name]
		fmt.Fprintf(out, "   %s: chain %d, %s\n", name, n.ChainID, n.RPCURL)
	}
	fmt.Fprintln(out)

	// Effective config
	fmt.Fprintln(out, "Effective configuration:")
	fmt.Fprintf(out, "   Server:      %s\n", getServer())
	fmt.Fprintf(out, "   Project dir: %s\n", projectDirFrom(projectConfig))
	if key := getAPIKey(); key != "" {
		fmt.Fprintf(out, "   API Key:     %s\n", maskAPIKey(key))
	} else {
		fmt.Fprintln(out, "   API Key:     (not set)")
	}

	return nil
}

// loadProjectConfig loads the project config from the first matching config file.
// Returns the config, the path it was loaded from, and an error.
func loadProjectConfig() (*ProjectConfig, string, error) {
	if cfgFile != "" {
		config, err := loadProjectConfigFromPath(cfgFile)
		if err != nil {
			return nil, cfgFile, err
		}
		return config, cfgFile, nil
	}

	for _, name := range projectConfigFiles {
		if _, err := os.Stat(name); err == nil {
			config, err := loadProjectConfigFromPath(name)
			if err != nil {
				return nil, name, err
			}
			return config, name, nil
		}
	}
	return nil, "", os.ErrNotExist
}

// loadProjectConfigFromPath loads a project config from a specific path
func loadProjectConfigFromPath(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config ProjectConfig
	if _, err := toml.Decode(string(data), &config); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}
	for name, n := range config.Networks {
		n.Name = name
		config.Networks[name] = n
	}

	// project_dir is relative to the config file
	if config.ProjectDir != "" && !filepath.IsAbs(config.ProjectDir) {
		config.ProjectDir = filepath.Join(filepath.Dir(path), config.ProjectDir)
	}

	return &config, nil
}

// loadProjectConfigSilent loads the project config without returning errors for missing files.
// Returns nil if the file doesn't exist, but warns about parse failures.
func loadProjectConfigSilent() *ProjectConfig {
	config, _, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		fmt.Fprintf(os.Stderr, "Warning: failed to load project config: %v\n", err)
		return nil
	}
	return config
}

func projectDirFrom(config *ProjectConfig) string {
	if config != nil && config.ProjectDir != "" {
		return config.ProjectDir
	}
	return "."
}

// knownNetworks merges the built-in networks with the project's [networks] tables
func knownNetworks(config *ProjectConfig) map[string]ecosystem.NetworkConfig {
	networks := make(map[string]ecosystem.NetworkConfig)
	for _, n := range ecosystem.BuiltinNetworks() {
		networks[n.Name] = n
	}
	if config == nil {
		return networks
	}
	for name, n := range config.Networks {
		base := networks[name]
		base.Name = name
		if n.RPCURL != "" {
			base.RPCURL = n.RPCURL
		}
		if n.ChainID != 0 {
			base.ChainID = n.ChainID
		}
		networks[name] = base
	}
	return networks
}

// resolveNetwork finds name among the known networks. rpcURL, when set, overrides
// the configured endpoint; UNITPOINTS_RPC_URL is consulted next. Unknown names
// resolve without an endpoint.
func resolveNetwork(config *ProjectConfig, name, rpcURL string) (ecosystem.NetworkConfig, error) {
	if name == "" {
		return ecosystem.NetworkConfig{}, fmt.Errorf("--network is required")
	}
	n, ok := knownNetworks(config)[name]
	if !ok {
		n = ecosystem.NetworkConfig{Name: name}
	}
	if rpcURL == "" {
		rpcURL = os.Getenv("UNITPOINTS_RPC_URL")
	}
	if rpcURL != "" {
		n.RPCURL = rpcURL
	}
	return n, nil
}
