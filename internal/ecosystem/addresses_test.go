package ecosystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddresses_GetWith(t *testing.T) {
	var a Addresses
	for i, c := range Contracts {
		a = a.With(c, sampleAddresses.Get(Contracts[i]))
	}
	assert.Equal(t, sampleAddresses, a)
	assert.Empty(t, a.Missing())
}

func TestAddresses_Merge(t *testing.T) {
	base := Addresses{UserManager: "0xaaaa", EventManager: "0xbbbb"}
	merged := base.Merge(Addresses{EventManager: "0xcccc", DAOGovernance: "0xdddd"})

	assert.Equal(t, "0xaaaa", merged.UserManager)
	assert.Equal(t, "0xcccc", merged.EventManager)
	assert.Equal(t, "0xdddd", merged.DAOGovernance)
	assert.Equal(t, []string{"companyManager", "tokenAdministrator", "unitpointsTokens"}, merged.Missing())
}

func TestParseContract(t *testing.T) {
	for _, in := range []string{"TokenAdministrator", "tokenAdministrator", "TOKENADMINISTRATOR"} {
		c, err := ParseContract(in)
		require.NoError(t, err)
		assert.Equal(t, TokenAdministrator, c)
	}
	_, err := ParseContract("tokenSwap")
	assert.Error(t, err)
}

func TestValidateAddresses(t *testing.T) {
	tests := []struct {
		name    string
		addrs   Addresses
		invalid []string
	}{
		{"all valid", sampleAddresses, nil},
		{"empty record", Addresses{}, []string{"userManager", "companyManager", "eventManager", "daoGovernance", "tokenAdministrator", "unitpointsTokens"}},
		{"placeholder", sampleAddresses.With(EventManager, "0x..."), []string{"eventManager"}},
		{"zero address", sampleAddresses.With(UserManager, "0x0000000000000000000000000000000000000000"), []string{"userManager"}},
		{"short hex", sampleAddresses.With(UnitpointsTokens, "0x1234"), []string{"unitpointsTokens"}},
		{"non-hex", sampleAddresses.With(CompanyManager, "0xZZBA22891A1847963A3417491819AeD1C6A1E391"), []string{"companyManager"}},
		{"lowercase accepted", sampleAddresses.With(DAOGovernance, "0x665c7f3477b78c83e531c29746e58508a938afbe"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddresses(tt.addrs)
			if tt.invalid == nil {
				assert.NoError(t, err)
				return
			}
			var invalid *InvalidAddressesError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.invalid, invalid.FieldNames())
		})
	}
}

func TestPermissionGraph(t *testing.T) {
	edges := PermissionGraph()
	require.Len(t, edges, 7)
	assert.Equal(t, PermissionEdge{UserManager, TokenAdministrator}, edges[0])
	assert.Equal(t, PermissionEdge{UnitpointsTokens, TokenAdministrator}, edges[6])

	// callers get a copy
	edges[0].Grantee = UserManager
	assert.Equal(t, TokenAdministrator, PermissionGraph()[0].Grantee)

	calls := WiringCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, []Contract{EventManager, UserManager, DAOGovernance}, calls[2].Args)
}
