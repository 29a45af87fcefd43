package ecosystem

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/SrJuanF/UnitPoints-System/internal/chains"
	"github.com/SrJuanF/UnitPoints-System/internal/chains/evm"
)

// Status is the outcome of a single check
type Status string

// Check statuses
const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusWarn Status = "WARN"
)

// VerificationResult is one check against on-chain state
type VerificationResult struct {
	Contract Contract `json:"contract"`
	Check    string   `json:"check"`
	Status   Status   `json:"status"`
	Message  string   `json:"message"`
}

// Verifier re-reads on-chain state and reports whether the wiring is in place.
// It never writes and never fails: read errors become FAIL results.
type Verifier struct {
	backend   Backend
	code      CodeReader
	artifacts map[Contract]*chains.Artifact
}

// VerifierOption configures a Verifier
type VerifierOption func(*Verifier)

// WithCodeCheck enables deployed-code checks. Contracts with an entry in
// artifacts are compared against its runtime bytecode.
func WithCodeCheck(code CodeReader, artifacts map[Contract]*chains.Artifact) VerifierOption {
	return func(v *Verifier) {
		v.code = code
		v.artifacts = artifacts
	}
}

// NewVerifier creates a verifier reading through backend
func NewVerifier(backend Backend, opts ...VerifierOption) *Verifier {
	v := &Verifier{backend: backend}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs every check in a fixed order. expectedSector below 1 is treated as 1.
func (v *Verifier) Verify(ctx context.Context, addrs Addresses, expectedSector int64) []VerificationResult {
	if expectedSector < 1 {
		expectedSector = 1
	}
	eco := NewEcosystem(v.backend, addrs)

	var results []VerificationResult
	results = append(results, v.checkAdmins(ctx, eco)...)
	results = append(results, v.checkAuxiliary(ctx, eco, addrs)...)
	results = append(results, v.checkEventManager(ctx, eco, addrs)...)
	results = append(results, v.checkSectors(ctx, eco, addrs, expectedSector)...)
	if v.code != nil {
		results = append(results, v.checkCode(ctx, eco)...)
	}
	return results
}

func (v *Verifier) checkAdmins(ctx context.Context, eco *Ecosystem) []VerificationResult {
	var results []VerificationResult
	for _, edge := range PermissionGraph() {
		r := VerificationResult{Contract: edge.Grantor, Check: fmt.Sprintf("admins(%s)", edge.Grantee)}
		ok, err := eco.IsAdmin(ctx, edge.Grantor, edge.Grantee)
		switch {
		case err != nil:
			r.Status, r.Message = StatusFail, fmt.Sprintf("reading admins: %v", err)
		case ok:
			r.Status, r.Message = StatusPass, fmt.Sprintf("%s is admin", edge.Grantee)
		default:
			r.Status, r.Message = StatusFail, fmt.Sprintf("%s is not admin", edge.Grantee)
		}
		results = append(results, r)
	}
	return results
}

func (v *Verifier) checkAuxiliary(ctx context.Context, eco *Ecosystem, addrs Addresses) []VerificationResult {
	aux, err := eco.GetAuxiliaryContracts(ctx)
	if err != nil {
		return []VerificationResult{{
			Contract: TokenAdministrator,
			Check:    MethodGetAuxiliaryContracts + "()",
			Status:   StatusFail,
			Message:  fmt.Sprintf("reading auxiliary contracts: %v", err),
		}}
	}
	return []VerificationResult{
		addressResult(TokenAdministrator, "auxiliary.eventManager", aux.EventManager, addrs.EventManager),
		addressResult(TokenAdministrator, "auxiliary.userManager", aux.UserManager, addrs.UserManager),
		addressResult(TokenAdministrator, "auxiliary.daoGovernance", aux.DAOGovernance, addrs.DAOGovernance),
	}
}

func (v *Verifier) checkEventManager(ctx context.Context, eco *Ecosystem, addrs Addresses) []VerificationResult {
	var results []VerificationResult

	dao, err := eco.EventManagerDAOGovernance(ctx)
	if err != nil {
		results = append(results, readFailure(EventManager, MethodDAOGovernance+"()", err))
	} else {
		results = append(results, addressResult(EventManager, MethodDAOGovernance+"()", dao, addrs.DAOGovernance))
	}

	company, err := eco.EventManagerCompanyManager(ctx)
	if err != nil {
		results = append(results, readFailure(EventManager, MethodCompanyManager+"()", err))
	} else {
		results = append(results, addressResult(EventManager, MethodCompanyManager+"()", company, addrs.CompanyManager))
	}
	return results
}

func (v *Verifier) checkSectors(ctx context.Context, eco *Ecosystem, addrs Addresses, expected int64) []VerificationResult {
	check := MethodGetTotalSectors + "()"
	total, err := eco.TotalSectors(ctx)
	if err != nil {
		return []VerificationResult{readFailure(TokenAdministrator, check, err)}
	}

	want := big.NewInt(expected)
	r := VerificationResult{Contract: TokenAdministrator, Check: check}
	switch {
	case total.Sign() == 0:
		r.Status, r.Message = StatusFail, "no sectors registered"
	case total.Cmp(want) < 0:
		r.Status, r.Message = StatusFail, fmt.Sprintf("%s sectors registered, expected at least %d", total, expected)
	case total.Cmp(want) > 0:
		r.Status, r.Message = StatusWarn, fmt.Sprintf("%s sectors registered, more than the expected %d", total, expected)
	default:
		r.Status, r.Message = StatusPass, fmt.Sprintf("%s sectors registered", total)
	}
	results := []VerificationResult{r}
	if r.Status == StatusFail {
		return results
	}

	sectorCheck := fmt.Sprintf("%s(%d)", MethodGetSectorToken, expected)
	token, err := eco.SectorToken(ctx, want)
	if err != nil {
		return append(results, readFailure(TokenAdministrator, sectorCheck, err))
	}
	return append(results, addressResult(TokenAdministrator, sectorCheck, token, addrs.UnitpointsTokens))
}

func (v *Verifier) checkCode(ctx context.Context, eco *Ecosystem) []VerificationResult {
	var results []VerificationResult
	for _, c := range Contracts {
		r := VerificationResult{Contract: c, Check: "code"}
		code, err := v.code.CodeAt(ctx, eco.Address(c))
		if err != nil {
			results = append(results, readFailure(c, "code", err))
			continue
		}
		if len(code) == 0 {
			r.Status, r.Message = StatusFail, "no code at address"
			results = append(results, r)
			continue
		}

		artifact := v.artifacts[c]
		if artifact == nil || artifact.DeployedBytecode == "" {
			r.Status, r.Message = StatusPass, fmt.Sprintf("code present (%d bytes)", len(code))
			results = append(results, r)
			continue
		}

		cmp := evm.CompareBytecode(code, []byte(artifact.DeployedBytecode), nil)
		switch cmp.MatchType {
		case chains.MatchFull:
			r.Status = StatusPass
		case chains.MatchPartial:
			r.Status = StatusWarn
		default:
			r.Status = StatusFail
		}
		r.Message = cmp.Message
		results = append(results, r)
	}
	return results
}

func addressResult(c Contract, check string, got common.Address, want string) VerificationResult {
	r := VerificationResult{Contract: c, Check: check}
	if got == common.HexToAddress(want) {
		r.Status, r.Message = StatusPass, got.Hex()
	} else {
		r.Status, r.Message = StatusFail, fmt.Sprintf("got %s, expected %s", got.Hex(), common.HexToAddress(want).Hex())
	}
	return r
}

func readFailure(c Contract, check string, err error) VerificationResult {
	return VerificationResult{Contract: c, Check: check, Status: StatusFail, Message: err.Error()}
}
