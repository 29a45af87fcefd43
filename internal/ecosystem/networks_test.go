package ecosystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupNetwork(t *testing.T) {
	n, ok := LookupNetwork("passetHubTestnet")
	assert.True(t, ok)
	assert.Equal(t, int64(420420422), n.ChainID)
	assert.Equal(t, "https://testnet-passet-hub-eth-rpc.polkadot.io", n.RPCURL)
	assert.False(t, n.Network().IsLocal())

	n, ok = LookupNetwork("hardhat")
	assert.True(t, ok)
	assert.True(t, n.Network().IsLocal())

	_, ok = LookupNetwork("mainnet")
	assert.False(t, ok)
}

func TestBuiltinNetworks_Copy(t *testing.T) {
	nets := BuiltinNetworks()
	nets[0].RPCURL = "changed"
	n, _ := LookupNetwork(nets[0].Name)
	assert.NotEqual(t, "changed", n.RPCURL)
}
