package ecosystem

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/SrJuanF/UnitPoints-System/internal/chains/evm"
)

// ContractsABI is the slice of the ecosystem ABI this package calls.
// Every contract shares grantAdmin/admins; the rest live on EventManager and TokenAdministrator.
const ContractsABI = `[
	{"type":"function","name":"grantAdmin","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"}],"outputs":[]},
	{"type":"function","name":"admins","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"setDAOGovernance","stateMutability":"nonpayable","inputs":[{"name":"daoGovernance","type":"address"}],"outputs":[]},
	{"type":"function","name":"setCompanyManager","stateMutability":"nonpayable","inputs":[{"name":"companyManager","type":"address"}],"outputs":[]},
	{"type":"function","name":"daoGovernance","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"companyManager","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"setAuxiliaryContracts","stateMutability":"nonpayable","inputs":[{"name":"eventManager","type":"address"},{"name":"userManager","type":"address"},{"name":"daoGovernance","type":"address"}],"outputs":[]},
	{"type":"function","name":"getAuxiliaryContracts","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"},{"name":"","type":"address"},{"name":"","type":"address"}]},
	{"type":"function","name":"registerSectorToken","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getTotalSectors","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getSectorToken","stateMutability":"view","inputs":[{"name":"sectorId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
]`

// Method names
const (
	MethodGrantAdmin            = "grantAdmin"
	MethodAdmins                = "admins"
	MethodSetDAOGovernance      = "setDAOGovernance"
	MethodSetCompanyManager     = "setCompanyManager"
	MethodDAOGovernance         = "daoGovernance"
	MethodCompanyManager        = "companyManager"
	MethodSetAuxiliaryContracts = "setAuxiliaryContracts"
	MethodGetAuxiliaryContracts = "getAuxiliaryContracts"
	MethodRegisterSectorToken   = "registerSectorToken"
	MethodGetTotalSectors       = "getTotalSectors"
	MethodGetSectorToken        = "getSectorToken"
)

// Backend performs contract calls. Call is read-only; Transact blocks until
// the transaction is mined and fails on a reverted receipt.
type Backend interface {
	Call(ctx context.Context, contract common.Address, method string, args ...any) ([]any, error)
	Transact(ctx context.Context, contract common.Address, method string, args ...any) (*types.Receipt, error)
}

// CodeReader reads deployed runtime code
type CodeReader interface {
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
}

// ChainBackend adapts an evm.Client to Backend and CodeReader using ContractsABI
type ChainBackend struct {
	client *evm.Client
	abi    abi.ABI
}

// NewChainBackend binds the ecosystem ABI to client
func NewChainBackend(client *evm.Client) (*ChainBackend, error) {
	parsed, err := abi.JSON(strings.NewReader(ContractsABI))
	if err != nil {
		return nil, fmt.Errorf("parsing ecosystem ABI: %w", err)
	}
	return &ChainBackend{client: client, abi: parsed}, nil
}

// Call implements Backend
func (b *ChainBackend) Call(ctx context.Context, contract common.Address, method string, args ...any) ([]any, error) {
	return b.client.Call(ctx, contract, b.abi, method, args...)
}

// Transact implements Backend
func (b *ChainBackend) Transact(ctx context.Context, contract common.Address, method string, args ...any) (*types.Receipt, error) {
	return b.client.Transact(ctx, contract, b.abi, method, args...)
}

// CodeAt implements CodeReader
func (b *ChainBackend) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	return b.client.CodeAt(ctx, addr)
}

// Ecosystem is a typed view over the six deployed contracts
type Ecosystem struct {
	backend Backend
	addrs   Addresses
}

// NewEcosystem binds addrs to backend. addrs must already be validated.
func NewEcosystem(backend Backend, addrs Addresses) *Ecosystem {
	return &Ecosystem{backend: backend, addrs: addrs}
}

// Address returns the address of c
func (e *Ecosystem) Address(c Contract) common.Address {
	return common.HexToAddress(e.addrs.Get(c))
}

// GrantAdmin makes grantee an admin of grantor
func (e *Ecosystem) GrantAdmin(ctx context.Context, grantor, grantee Contract) (*types.Receipt, error) {
	return e.backend.Transact(ctx, e.Address(grantor), MethodGrantAdmin, e.Address(grantee))
}

// IsAdmin reports whether grantee is an admin of grantor
func (e *Ecosystem) IsAdmin(ctx context.Context, grantor, grantee Contract) (bool, error) {
	out, err := e.backend.Call(ctx, e.Address(grantor), MethodAdmins, e.Address(grantee))
	if err != nil {
		return false, err
	}
	return decodeBool(out, MethodAdmins)
}

// SetDAOGovernance points EventManager at DAOGovernance
func (e *Ecosystem) SetDAOGovernance(ctx context.Context) (*types.Receipt, error) {
	return e.backend.Transact(ctx, e.Address(EventManager), MethodSetDAOGovernance, e.Address(DAOGovernance))
}

// SetCompanyManager points EventManager at CompanyManager
func (e *Ecosystem) SetCompanyManager(ctx context.Context) (*types.Receipt, error) {
	return e.backend.Transact(ctx, e.Address(EventManager), MethodSetCompanyManager, e.Address(CompanyManager))
}

// EventManagerDAOGovernance reads EventManager.daoGovernance()
func (e *Ecosystem) EventManagerDAOGovernance(ctx context.Context) (common.Address, error) {
	out, err := e.backend.Call(ctx, e.Address(EventManager), MethodDAOGovernance)
	if err != nil {
		return common.Address{}, err
	}
	return decodeAddress(out, 0, MethodDAOGovernance)
}

// EventManagerCompanyManager reads EventManager.companyManager()
func (e *Ecosystem) EventManagerCompanyManager(ctx context.Context) (common.Address, error) {
	out, err := e.backend.Call(ctx, e.Address(EventManager), MethodCompanyManager)
	if err != nil {
		return common.Address{}, err
	}
	return decodeAddress(out, 0, MethodCompanyManager)
}

// SetAuxiliaryContracts sets (eventManager, userManager, daoGovernance) on TokenAdministrator
func (e *Ecosystem) SetAuxiliaryContracts(ctx context.Context) (*types.Receipt, error) {
	return e.backend.Transact(ctx, e.Address(TokenAdministrator), MethodSetAuxiliaryContracts,
		e.Address(EventManager), e.Address(UserManager), e.Address(DAOGovernance))
}

// AuxiliaryContracts holds the TokenAdministrator.getAuxiliaryContracts() tuple
type AuxiliaryContracts struct {
	EventManager  common.Address
	UserManager   common.Address
	DAOGovernance common.Address
}

// GetAuxiliaryContracts reads the auxiliary tuple from TokenAdministrator
func (e *Ecosystem) GetAuxiliaryContracts(ctx context.Context) (AuxiliaryContracts, error) {
	out, err := e.backend.Call(ctx, e.Address(TokenAdministrator), MethodGetAuxiliaryContracts)
	if err != nil {
		return AuxiliaryContracts{}, err
	}
	var aux AuxiliaryContracts
	for i, dst := range []*common.Address{&aux.EventManager, &aux.UserManager, &aux.DAOGovernance} {
		if *dst, err = decodeAddress(out, i, MethodGetAuxiliaryContracts); err != nil {
			return AuxiliaryContracts{}, err
		}
	}
	return aux, nil
}

// RegisterSectorToken registers UnitpointsTokens as a sector token
func (e *Ecosystem) RegisterSectorToken(ctx context.Context) (*types.Receipt, error) {
	return e.backend.Transact(ctx, e.Address(TokenAdministrator), MethodRegisterSectorToken, e.Address(UnitpointsTokens))
}

// TotalSectors reads TokenAdministrator.getTotalSectors()
func (e *Ecosystem) TotalSectors(ctx context.Context) (*big.Int, error) {
	out, err := e.backend.Call(ctx, e.Address(TokenAdministrator), MethodGetTotalSectors)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s: expected 1 output, got %d", MethodGetTotalSectors, len(out))
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output type %T", MethodGetTotalSectors, out[0])
	}
	return n, nil
}

// SectorToken reads TokenAdministrator.getSectorToken(id)
func (e *Ecosystem) SectorToken(ctx context.Context, id *big.Int) (common.Address, error) {
	out, err := e.backend.Call(ctx, e.Address(TokenAdministrator), MethodGetSectorToken, id)
	if err != nil {
		return common.Address{}, err
	}
	return decodeAddress(out, 0, MethodGetSectorToken)
}

func decodeBool(out []any, method string) (bool, error) {
	if len(out) != 1 {
		return false, fmt.Errorf("%s: expected 1 output, got %d", method, len(out))
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("%s: unexpected output type %T", method, out[0])
	}
	return v, nil
}

func decodeAddress(out []any, i int, method string) (common.Address, error) {
	if len(out) <= i {
		return common.Address{}, fmt.Errorf("%s: expected at least %d outputs, got %d", method, i+1, len(out))
	}
	v, ok := out[i].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unexpected output type %T", method, out[i])
	}
	return v, nil
}
