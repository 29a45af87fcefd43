package ecosystem

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/SrJuanF/UnitPoints-System/internal/chains/evm"
)

// sampleAddresses is a fully populated record from a passetHub deployment
var sampleAddresses = Addresses{
	UserManager:        "0x4FAB7A85e148E20357026853fB40c3988b1f06FB",
	CompanyManager:     "0x77BA22891A1847963A3417491819AeD1C6A1E391",
	EventManager:       "0x69E974fD8FE0016CCDB059f6e1De302Ff690A3A5",
	DAOGovernance:      "0x665C7F3477B78C83E531c29746e58508a938afbe",
	TokenAdministrator: "0xB8aEd07360FeBB97087eE47322B4457A83aD6D54",
	UnitpointsTokens:   "0x6359B710A473f62A31f5aB74031FC3177e4a7B75",
}

// fakeChain is an in-memory ecosystem that applies writes to its own state
type fakeChain struct {
	mu sync.Mutex

	admins       map[[2]common.Address]bool
	eventDAO     common.Address
	eventCompany common.Address
	aux          [3]common.Address
	sectors      []common.Address
	code         map[common.Address][]byte

	writes  []string
	reads   int
	failAt  int // 1-based write that reverts; 0 never
	readErr map[string]error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		admins:  make(map[[2]common.Address]bool),
		code:    make(map[common.Address][]byte),
		readErr: make(map[string]error),
	}
}

var errUnknownMethod = errors.New("unknown method")

func (f *fakeChain) Transact(_ context.Context, contract common.Address, method string, args ...any) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writes = append(f.writes, fmt.Sprintf("%s:%s", contract.Hex(), method))
	n := len(f.writes)
	if f.failAt == n {
		return &types.Receipt{Status: types.ReceiptStatusFailed}, fmt.Errorf("%s: %w", method, evm.ErrReverted)
	}

	addrArg := func(i int) common.Address { return args[i].(common.Address) }
	switch method {
	case MethodGrantAdmin:
		f.admins[[2]common.Address{contract, addrArg(0)}] = true
	case MethodSetDAOGovernance:
		f.eventDAO = addrArg(0)
	case MethodSetCompanyManager:
		f.eventCompany = addrArg(0)
	case MethodSetAuxiliaryContracts:
		f.aux = [3]common.Address{addrArg(0), addrArg(1), addrArg(2)}
	case MethodRegisterSectorToken:
		f.sectors = append(f.sectors, addrArg(0))
	default:
		return nil, errUnknownMethod
	}

	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      common.BigToHash(big.NewInt(int64(n))),
		BlockNumber: big.NewInt(int64(100 + n)),
		GasUsed:     21000,
	}, nil
}

func (f *fakeChain) Call(_ context.Context, contract common.Address, method string, args ...any) ([]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++
	if err := f.readErr[method]; err != nil {
		return nil, err
	}
	switch method {
	case MethodAdmins:
		return []any{f.admins[[2]common.Address{contract, args[0].(common.Address)}]}, nil
	case MethodDAOGovernance:
		return []any{f.eventDAO}, nil
	case MethodCompanyManager:
		return []any{f.eventCompany}, nil
	case MethodGetAuxiliaryContracts:
		return []any{f.aux[0], f.aux[1], f.aux[2]}, nil
	case MethodGetTotalSectors:
		return []any{big.NewInt(int64(len(f.sectors)))}, nil
	case MethodGetSectorToken:
		id := args[0].(*big.Int).Int64()
		if id < 1 || int(id) > len(f.sectors) {
			return []any{common.Address{}}, nil
		}
		return []any{f.sectors[id-1]}, nil
	}
	return nil, errUnknownMethod
}

func (f *fakeChain) CodeAt(_ context.Context, addr common.Address) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code[addr], nil
}

// writeCount returns the number of Transact calls seen
func (f *fakeChain) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeChain) writeLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

// expectedWrite formats a write the way fakeChain logs it
func expectedWrite(a Addresses, c Contract, method string) string {
	return fmt.Sprintf("%s:%s", common.HexToAddress(a.Get(c)).Hex(), method)
}
