// Package ecosystem wires the deployed UnitPoints contracts together and
// verifies the resulting on-chain configuration.
package ecosystem

import (
	"fmt"
	"strings"
)

// Contract names one of the six ecosystem contracts
type Contract string

// The six ecosystem contracts
const (
	UserManager        Contract = "UserManager"
	CompanyManager     Contract = "CompanyManager"
	EventManager       Contract = "EventManager"
	DAOGovernance      Contract = "DAOGovernance"
	TokenAdministrator Contract = "TokenAdministrator"
	UnitpointsTokens   Contract = "UnitpointsTokens"
)

// Contracts lists every contract in deployment order
var Contracts = []Contract{
	UserManager,
	CompanyManager,
	EventManager,
	DAOGovernance,
	TokenAdministrator,
	UnitpointsTokens,
}

// Field returns the address record field name for the contract
func (c Contract) Field() string {
	switch c {
	case UserManager:
		return "userManager"
	case CompanyManager:
		return "companyManager"
	case EventManager:
		return "eventManager"
	case DAOGovernance:
		return "daoGovernance"
	case TokenAdministrator:
		return "tokenAdministrator"
	case UnitpointsTokens:
		return "unitpointsTokens"
	}
	return string(c)
}

// ParseContract resolves a contract name or field name, case-insensitively
func ParseContract(s string) (Contract, error) {
	for _, c := range Contracts {
		if strings.EqualFold(s, string(c)) || strings.EqualFold(s, c.Field()) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown contract %q", s)
}

// Addresses holds the deployed address of every ecosystem contract.
// It is resolved once per run and not modified afterwards.
type Addresses struct {
	UserManager        string `json:"userManager" toml:"user_manager"`
	CompanyManager     string `json:"companyManager" toml:"company_manager"`
	EventManager       string `json:"eventManager" toml:"event_manager"`
	DAOGovernance      string `json:"daoGovernance" toml:"dao_governance"`
	TokenAdministrator string `json:"tokenAdministrator" toml:"token_administrator"`
	UnitpointsTokens   string `json:"unitpointsTokens" toml:"unitpoints_tokens"`
}

// Get returns the address of c
func (a Addresses) Get(c Contract) string {
	switch c {
	case UserManager:
		return a.UserManager
	case CompanyManager:
		return a.CompanyManager
	case EventManager:
		return a.EventManager
	case DAOGovernance:
		return a.DAOGovernance
	case TokenAdministrator:
		return a.TokenAdministrator
	case UnitpointsTokens:
		return a.UnitpointsTokens
	}
	return ""
}

// With returns a copy of a with the address of c replaced
func (a Addresses) With(c Contract, addr string) Addresses {
	switch c {
	case UserManager:
		a.UserManager = addr
	case CompanyManager:
		a.CompanyManager = addr
	case EventManager:
		a.EventManager = addr
	case DAOGovernance:
		a.DAOGovernance = addr
	case TokenAdministrator:
		a.TokenAdministrator = addr
	case UnitpointsTokens:
		a.UnitpointsTokens = addr
	}
	return a
}

// Merge returns a with every non-empty field of other applied on top
func (a Addresses) Merge(other Addresses) Addresses {
	for _, c := range Contracts {
		if v := other.Get(c); v != "" {
			a = a.With(c, v)
		}
	}
	return a
}

// Missing returns the field names of contracts without an address
func (a Addresses) Missing() []string {
	var missing []string
	for _, c := range Contracts {
		if strings.TrimSpace(a.Get(c)) == "" {
			missing = append(missing, c.Field())
		}
	}
	return missing
}
