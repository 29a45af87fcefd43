package ecosystem

import "slices"

// NetworkConfig is a named chain with its JSON-RPC endpoint
type NetworkConfig struct {
	Name    string `json:"name" toml:"-"`
	RPCURL  string `json:"rpcUrl" toml:"rpc_url"`
	ChainID int64  `json:"chainId" toml:"chain_id"`
}

// Network returns the resolver view of c
func (c NetworkConfig) Network() Network {
	return Network{Name: c.Name, ChainID: c.ChainID}
}

// PassetHubChainID is the chain id of the Passet Hub testnet
const PassetHubChainID = 420420422

var builtinNetworks = []NetworkConfig{
	{Name: "localhost", RPCURL: "http://127.0.0.1:8545", ChainID: LocalChainID},
	{Name: "hardhat", RPCURL: "http://127.0.0.1:8545", ChainID: LocalChainID},
	{Name: "passetHubTestnet", RPCURL: "https://testnet-passet-hub-eth-rpc.polkadot.io", ChainID: PassetHubChainID},
}

// BuiltinNetworks returns the networks known without configuration
func BuiltinNetworks() []NetworkConfig {
	return slices.Clone(builtinNetworks)
}

// LookupNetwork returns the built-in network called name
func LookupNetwork(name string) (NetworkConfig, bool) {
	for _, n := range builtinNetworks {
		if n.Name == name {
			return n, true
		}
	}
	return NetworkConfig{}, false
}
