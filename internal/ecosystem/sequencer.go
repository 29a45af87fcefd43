package ecosystem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Stage is one selectable phase of the configuration sequence
type Stage string

// Stages in execution order
const (
	StageGrant    Stage = "grant"
	StageWire     Stage = "wire"
	StageRegister Stage = "register"
	StageVerify   Stage = "verify"
)

// AllStages lists every stage in execution order
var AllStages = []Stage{StageGrant, StageWire, StageRegister, StageVerify}

// ParseStages parses a comma-separated stage list. Empty input selects every stage;
// a list that names no stage, such as ",", is an error.
// The result is always in execution order regardless of input order.
func ParseStages(s string) ([]Stage, error) {
	if strings.TrimSpace(s) == "" {
		return append([]Stage(nil), AllStages...), nil
	}
	selected := make(map[Stage]bool)
	for _, part := range strings.Split(s, ",") {
		st := Stage(strings.ToLower(strings.TrimSpace(part)))
		if st == "" {
			continue
		}
		if !st.valid() {
			return nil, fmt.Errorf("unknown stage %q (valid: grant, wire, register, verify)", part)
		}
		selected[st] = true
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no stage selected in %q (valid: grant, wire, register, verify)", s)
	}
	var stages []Stage
	for _, st := range AllStages {
		if selected[st] {
			stages = append(stages, st)
		}
	}
	return stages, nil
}

func (s Stage) valid() bool {
	for _, st := range AllStages {
		if s == st {
			return true
		}
	}
	return false
}

// State is the position of a run in the sequence
type State string

// States in order; each stage advances to the next one
const (
	StateAddressesResolved  State = "AddressesResolved"
	StatePermissionsGranted State = "PermissionsGranted"
	StateAddressesWired     State = "AddressesWired"
	StateTokenRegistered    State = "TokenRegistered"
	StateVerified           State = "Verified"
)

var stageTarget = map[Stage]State{
	StageGrant:    StatePermissionsGranted,
	StageWire:     StateAddressesWired,
	StageRegister: StateTokenRegistered,
	StageVerify:   StateVerified,
}

// CallRecord is one confirmed write
type CallRecord struct {
	Stage       Stage    `json:"stage"`
	Contract    Contract `json:"contract"`
	Method      string   `json:"method"`
	Args        []string `json:"args"`
	TxHash      string   `json:"txHash"`
	BlockNumber uint64   `json:"blockNumber"`
	GasUsed     uint64   `json:"gasUsed"`
}

// StepError is a failed write. Index is the 1-based position of the call within its stage.
type StepError struct {
	Stage    Stage
	Index    int
	Contract Contract
	Method   string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s call %d (%s.%s): %v", e.Stage, e.Index, e.Contract, e.Method, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Hooks observe a run. Any hook may be nil.
type Hooks struct {
	OnStage    func(stage Stage, skipped bool)
	BeforeCall func(stage Stage, index int, contract Contract, method string, args []Contract)
	AfterCall  func(rec CallRecord)
}

// Options configures a run
type Options struct {
	// Stages to execute; nil runs every stage
	Stages []Stage
	// ExpectedSector is checked by the verify stage when the register stage is skipped.
	// Zero means 1.
	ExpectedSector int64
	Hooks          Hooks
}

// Outcome is the result of a run. It is returned with partial contents on error.
type Outcome struct {
	Addresses Addresses            `json:"addresses"`
	Stages    []Stage              `json:"stages"`
	Reached   State                `json:"reached"`
	Calls     []CallRecord         `json:"calls"`
	SectorID  *big.Int             `json:"sectorId,omitempty"`
	Results   []VerificationResult `json:"results,omitempty"`
}

// Sequencer runs the configuration sequence: grant, wire, register, verify.
// Writes are strictly sequential; each is confirmed before the next is sent.
type Sequencer struct {
	backend  Backend
	verifier *Verifier
	logger   *slog.Logger
}

// NewSequencer creates a sequencer. verifier may be nil to verify with a plain read-only pass.
func NewSequencer(backend Backend, verifier *Verifier, logger *slog.Logger) *Sequencer {
	if verifier == nil {
		verifier = NewVerifier(backend)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequencer{backend: backend, verifier: verifier, logger: logger}
}

var errNoStages = errors.New("no stages selected")

// Run validates addrs and executes the selected stages in order. Nil Stages
// selects every stage. Reached only advances past stages that ran.
// Any error halts the run; completed writes are not rolled back.
func (s *Sequencer) Run(ctx context.Context, addrs Addresses, opts Options) (*Outcome, error) {
	out := &Outcome{Addresses: addrs}
	if err := ValidateAddresses(addrs); err != nil {
		return out, fmt.Errorf("validating addresses: %w", err)
	}
	out.Reached = StateAddressesResolved

	if opts.Stages == nil {
		opts.Stages = AllStages
	}
	if len(opts.Stages) == 0 {
		return out, errNoStages
	}
	selected := make(map[Stage]bool)
	for _, st := range opts.Stages {
		if !st.valid() {
			return out, fmt.Errorf("unknown stage %q", st)
		}
		selected[st] = true
	}

	eco := NewEcosystem(s.backend, addrs)
	expected := big.NewInt(opts.ExpectedSector)
	if expected.Sign() <= 0 {
		expected = big.NewInt(1)
	}

	for _, stage := range AllStages {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if !selected[stage] {
			s.logger.Debug("stage skipped", "stage", stage)
			if opts.Hooks.OnStage != nil {
				opts.Hooks.OnStage(stage, true)
			}
			continue
		}
		if opts.Hooks.OnStage != nil {
			opts.Hooks.OnStage(stage, false)
		}
		s.logger.Info("stage started", "stage", stage)
		out.Stages = append(out.Stages, stage)

		var err error
		switch stage {
		case StageGrant:
			err = s.grant(ctx, eco, out, opts.Hooks)
		case StageWire:
			err = s.wire(ctx, eco, out, opts.Hooks)
		case StageRegister:
			err = s.register(ctx, eco, out, opts.Hooks)
			if err == nil && out.SectorID != nil {
				expected = out.SectorID
			}
		case StageVerify:
			out.Results = s.verifier.Verify(ctx, addrs, expected.Int64())
		}
		if err != nil {
			return out, err
		}
		out.Reached = stageTarget[stage]
	}
	return out, nil
}

func (s *Sequencer) grant(ctx context.Context, eco *Ecosystem, out *Outcome, hooks Hooks) error {
	for i, edge := range PermissionGraph() {
		err := s.write(ctx, out, hooks, StageGrant, i+1, edge.Grantor, MethodGrantAdmin, []Contract{edge.Grantee}, func() (*types.Receipt, error) {
			return eco.GrantAdmin(ctx, edge.Grantor, edge.Grantee)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) wire(ctx context.Context, eco *Ecosystem, out *Outcome, hooks Hooks) error {
	for i, call := range WiringCalls() {
		var send func() (*types.Receipt, error)
		switch call.Method {
		case MethodSetDAOGovernance:
			send = func() (*types.Receipt, error) { return eco.SetDAOGovernance(ctx) }
		case MethodSetCompanyManager:
			send = func() (*types.Receipt, error) { return eco.SetCompanyManager(ctx) }
		case MethodSetAuxiliaryContracts:
			send = func() (*types.Receipt, error) { return eco.SetAuxiliaryContracts(ctx) }
		default:
			return fmt.Errorf("unknown wiring method %s", call.Method)
		}
		if err := s.write(ctx, out, hooks, StageWire, i+1, call.Contract, call.Method, call.Args, send); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) register(ctx context.Context, eco *Ecosystem, out *Outcome, hooks Hooks) error {
	err := s.write(ctx, out, hooks, StageRegister, 1, TokenAdministrator, MethodRegisterSectorToken, []Contract{UnitpointsTokens}, func() (*types.Receipt, error) {
		return eco.RegisterSectorToken(ctx)
	})
	if err != nil {
		return err
	}
	// The return value of a transaction is not observable; the new sector is the last one
	total, err := eco.TotalSectors(ctx)
	if err != nil {
		return &StepError{Stage: StageRegister, Index: 2, Contract: TokenAdministrator, Method: MethodGetTotalSectors, Err: err}
	}
	out.SectorID = total
	s.logger.Info("sector token registered", "sector_id", total)
	return nil
}

func (s *Sequencer) write(ctx context.Context, out *Outcome, hooks Hooks, stage Stage, index int, contract Contract, method string, args []Contract, send func() (*types.Receipt, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if hooks.BeforeCall != nil {
		hooks.BeforeCall(stage, index, contract, method, args)
	}

	receipt, err := send()
	if err != nil {
		s.logger.Error("write failed", "stage", stage, "index", index, "contract", contract, "method", method, "error", err)
		return &StepError{Stage: stage, Index: index, Contract: contract, Method: method, Err: err}
	}

	rec := CallRecord{
		Stage:    stage,
		Contract: contract,
		Method:   method,
		Args:     make([]string, len(args)),
	}
	for i, a := range args {
		rec.Args[i] = common.HexToAddress(out.Addresses.Get(a)).Hex()
	}
	if receipt != nil {
		rec.TxHash = receipt.TxHash.Hex()
		rec.GasUsed = receipt.GasUsed
		if receipt.BlockNumber != nil {
			rec.BlockNumber = receipt.BlockNumber.Uint64()
		}
	}
	out.Calls = append(out.Calls, rec)

	s.logger.Debug("write confirmed", "stage", stage, "contract", contract, "method", method, "tx", rec.TxHash)
	if hooks.AfterCall != nil {
		hooks.AfterCall(rec)
	}
	return nil
}
