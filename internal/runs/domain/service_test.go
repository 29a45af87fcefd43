package domain

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
	"github.com/SrJuanF/UnitPoints-System/internal/storage"
)

func addresses() ecosystem.Addresses {
	return ecosystem.Addresses{
		UserManager:        "0x4FAB7A85e148E20357026853fB40c3988b1f06FB",
		CompanyManager:     "0x77BA22891A1847963A3417491819AeD1C6A1E391",
		EventManager:       "0x69E974fD8FE0016CCDB059f6e1De302Ff690A3A5",
		DAOGovernance:      "0x665C7F3477B78C83E531c29746e58508a938afbe",
		TokenAdministrator: "0xB8aEd07360FeBB97087eE47322B4457A83aD6D54",
		UnitpointsTokens:   "0x6359B710A473f62A31f5aB74031FC3177e4a7B75",
	}
}

func completedRun() Run {
	return Run{
		Network:   "passetHubTestnet",
		ChainID:   420420422,
		Mode:      ecosystem.ModeArtifacts,
		Deployer:  "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		Status:    StatusCompleted,
		Reached:   ecosystem.StateVerified,
		SectorID:  "1",
		Addresses: addresses(),
		Stages:    ecosystem.AllStages,
		Calls: []ecosystem.CallRecord{
			{Stage: ecosystem.StageGrant, Contract: ecosystem.UserManager, Method: "grantAdmin", Args: []string{"0x77BA22891A1847963A3417491819AeD1C6A1E391"}, TxHash: "0xaa", BlockNumber: 10, GasUsed: 46000},
		},
		Results: []ecosystem.VerificationResult{
			{Contract: ecosystem.UserManager, Check: "admins(CompanyManager)", Status: ecosystem.StatusPass, Message: "granted"},
			{Contract: ecosystem.TokenAdministrator, Check: "getTotalSectors()", Status: ecosystem.StatusWarn, Message: "2 sectors, expected 1"},
		},
		// a forged summary is recomputed
		Summary: ecosystem.Summary{Pass: 99},
	}
}

func newSQLiteService(t *testing.T) Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return LoggingMiddleware(logger)(NewService(store))
}

func TestService_RecordAndGet(t *testing.T) {
	svc := newSQLiteService(t)
	ctx := context.Background()

	recorded, err := svc.Record(ctx, completedRun(), "key-1")
	require.NoError(t, err)
	require.NotEmpty(t, recorded.ID)
	assert.False(t, recorded.CreatedAt.IsZero())
	assert.Equal(t, ecosystem.Summary{Pass: 1, Warn: 1, Total: 2}, recorded.Summary)

	got, err := svc.Get(ctx, recorded.ID)
	require.NoError(t, err)
	assert.Equal(t, "key-1", got.RecordedBy)
	assert.Equal(t, addresses(), got.Addresses)
	assert.Equal(t, ecosystem.AllStages, got.Stages)
	assert.Equal(t, completedRun().Calls, got.Calls)
	assert.Equal(t, completedRun().Results, got.Results)
	assert.Equal(t, recorded.Summary, got.Summary)
	assert.Equal(t, ecosystem.StateVerified, got.Reached)
}

func TestService_GetNotFound(t *testing.T) {
	svc := newSQLiteService(t)
	_, err := svc.Get(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_List(t *testing.T) {
	svc := newSQLiteService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Record(ctx, completedRun(), "")
		require.NoError(t, err)
	}
	failed := completedRun()
	failed.Network = "localhost"
	failed.ChainID = 31337
	failed.Status = StatusFailed
	failed.Error = "granting permissions: execution reverted"
	_, err := svc.Record(ctx, failed, "")
	require.NoError(t, err)

	page, err := svc.List(ctx, ListFilter{Network: "passetHubTestnet"}, PaginationParams{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Runs, 2)
	assert.True(t, page.HasMore)

	rest, err := svc.List(ctx, ListFilter{Network: "passetHubTestnet"}, PaginationParams{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Len(t, rest.Runs, 1)
	assert.False(t, rest.HasMore)

	onlyFailed, err := svc.List(ctx, ListFilter{Status: StatusFailed}, PaginationParams{})
	require.NoError(t, err)
	require.Len(t, onlyFailed.Runs, 1)
	assert.Equal(t, "localhost", onlyFailed.Runs[0].Network)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Run)
		errMsg string
	}{
		{"valid", func(r *Run) {}, ""},
		{"missing network", func(r *Run) { r.Network = "" }, "network name cannot be empty"},
		{"bad chain id", func(r *Run) { r.ChainID = 0 }, "chain ID must be positive"},
		{"bad mode", func(r *Run) { r.Mode = "guess" }, "mode must be one of"},
		{"bad status", func(r *Run) { r.Status = "running" }, "status must be"},
		{"unknown stage", func(r *Run) { r.Stages = []ecosystem.Stage{"deploy"} }, `unknown stage "deploy"`},
		{"completed with placeholder", func(r *Run) { r.Addresses.DAOGovernance = "" }, "daoGovernance"},
		{"failed without error", func(r *Run) { r.Status = StatusFailed }, "needs an error"},
		{"failed with bad addresses", func(r *Run) {
			r.Status = StatusFailed
			r.Error = "invalid addresses"
			r.Addresses = ecosystem.Addresses{}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := completedRun()
			tt.mutate(&run)
			err := Validate(run)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRun)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

type failingStore struct{ err error }

func (f failingStore) CreateRun(ctx context.Context, run *storage.Run) error { return f.err }
func (f failingStore) GetRun(ctx context.Context, id string) (*storage.Run, error) {
	return nil, f.err
}
func (f failingStore) ListRuns(ctx context.Context, filter storage.RunFilter, p storage.PaginationParams) (*storage.PaginatedResult[storage.Run], error) {
	return nil, f.err
}

func TestService_StorageErrors(t *testing.T) {
	ctx := context.Background()

	svc := NewService(failingStore{err: errors.New("disk full")})
	_, err := svc.Record(ctx, completedRun(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording run: disk full")

	svc = NewService(failingStore{err: storage.ErrInvalidCursor})
	_, err = svc.List(ctx, ListFilter{}, PaginationParams{Cursor: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestFromOutcome(t *testing.T) {
	out := &ecosystem.Outcome{
		Addresses: addresses(),
		Stages:    []ecosystem.Stage{ecosystem.StageGrant},
		Reached:   ecosystem.StateAddressesResolved,
		SectorID:  big.NewInt(3),
	}
	p := RunParams{Network: "localhost", ChainID: 31337, Mode: ecosystem.ModeManual}

	run := FromOutcome(p, out, nil)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, "3", run.SectorID)
	assert.Equal(t, ecosystem.StateAddressesResolved, run.Reached)

	run = FromOutcome(p, out, errors.New("granting permissions: boom"))
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "granting permissions: boom", run.Error)
	assert.NoError(t, Validate(run))

	run = FromOutcome(p, nil, errors.New("no deployment artifacts found"))
	assert.Equal(t, StatusFailed, run.Status)
	assert.Empty(t, run.SectorID)
}

type countingRecorder map[string]int

func (c countingRecorder) RunRecorded(network, status string) { c[network+"/"+status]++ }

func TestMetricsMiddleware(t *testing.T) {
	rec := countingRecorder{}
	svc := MetricsMiddleware(rec)(newSQLiteService(t))
	ctx := context.Background()

	_, err := svc.Record(ctx, completedRun(), "")
	require.NoError(t, err)

	bad := completedRun()
	bad.Network = ""
	_, err = svc.Record(ctx, bad, "")
	require.Error(t, err)

	assert.Equal(t, countingRecorder{"passetHubTestnet/completed": 1}, rec)
}
