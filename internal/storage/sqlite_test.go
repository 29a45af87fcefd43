package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func sampleRun(network, status string, createdAt time.Time) *Run {
	return &Run{
		Network:   network,
		ChainID:   420420422,
		Mode:      "artifacts",
		Deployer:  "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		Status:    status,
		Reached:   "Verified",
		SectorID:  "1",
		Addresses: json.RawMessage(`{"userManager":"0x4FAB7A85e148E20357026853fB40c3988b1f06FB"}`),
		Stages:    json.RawMessage(`["grant","wire","register","verify"]`),
		Calls:     json.RawMessage(`[{"stage":"grant","method":"grantAdmin"}]`),
		Results:   json.RawMessage(`[{"status":"PASS"}]`),
		Pass:      14,
		CreatedAt: createdAt,
	}
}

func TestSQLiteStore_Runs(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		created := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
		run := sampleRun("passetHubTestnet", "completed", created)
		require.NoError(t, store.CreateRun(ctx, run))
		require.NotEmpty(t, run.ID)

		got, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.Network, got.Network)
		assert.Equal(t, int64(420420422), got.ChainID)
		assert.Equal(t, run.Deployer, got.Deployer)
		assert.Equal(t, "1", got.SectorID)
		assert.JSONEq(t, string(run.Addresses), string(got.Addresses))
		assert.JSONEq(t, string(run.Calls), string(got.Calls))
		assert.Equal(t, 14, got.Pass)
		assert.True(t, created.Equal(got.CreatedAt))
		assert.Empty(t, got.RecordedBy)
	})

	t.Run("defaults for empty documents", func(t *testing.T) {
		run := &Run{Network: "localhost", ChainID: 31337, Mode: "manual", Status: "failed", Error: "validating addresses"}
		require.NoError(t, store.CreateRun(ctx, run))

		got, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(got.Addresses))
		assert.JSONEq(t, `[]`, string(got.Results))
		assert.Equal(t, "validating addresses", got.Error)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("duplicate id", func(t *testing.T) {
		run := sampleRun("localhost", "completed", time.Now())
		require.NoError(t, store.CreateRun(ctx, run))
		dup := sampleRun("localhost", "completed", time.Now())
		dup.ID = run.ID
		assert.ErrorIs(t, store.CreateRun(ctx, dup), ErrAlreadyExists)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.GetRun(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 5; i++ {
		network := "passetHubTestnet"
		if i%2 == 1 {
			network = "localhost"
		}
		status := "completed"
		if i == 4 {
			status = "failed"
		}
		run := sampleRun(network, status, base.Add(time.Duration(i)*time.Minute))
		run.ID = fmt.Sprintf("run-%d", i)
		require.NoError(t, store.CreateRun(ctx, run))
		ids = append(ids, run.ID)
	}

	t.Run("newest first with pagination", func(t *testing.T) {
		page, err := store.ListRuns(ctx, RunFilter{}, PaginationParams{Limit: 2})
		require.NoError(t, err)
		require.Len(t, page.Data, 2)
		assert.Equal(t, []string{"run-4", "run-3"}, []string{page.Data[0].ID, page.Data[1].ID})
		assert.True(t, page.HasMore)
		assert.Equal(t, "run-3", page.NextCursor)

		page, err = store.ListRuns(ctx, RunFilter{}, PaginationParams{Limit: 2, Cursor: page.NextCursor})
		require.NoError(t, err)
		assert.Equal(t, []string{"run-2", "run-1"}, []string{page.Data[0].ID, page.Data[1].ID})

		page, err = store.ListRuns(ctx, RunFilter{}, PaginationParams{Limit: 2, Cursor: page.NextCursor})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, "run-0", page.Data[0].ID)
		assert.False(t, page.HasMore)
		assert.Empty(t, page.NextCursor)
	})

	t.Run("filter by network and status", func(t *testing.T) {
		page, err := store.ListRuns(ctx, RunFilter{Network: "localhost"}, PaginationParams{})
		require.NoError(t, err)
		assert.Len(t, page.Data, 2)

		page, err = store.ListRuns(ctx, RunFilter{Status: "failed"}, PaginationParams{})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, "run-4", page.Data[0].ID)
	})

	t.Run("unknown cursor", func(t *testing.T) {
		_, err := store.ListRuns(ctx, RunFilter{}, PaginationParams{Cursor: "nope"})
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})
}

func TestSQLiteStore_APIKeys(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	key, err := store.CreateAPIKey(ctx, "ci")
	require.NoError(t, err)

	ak, err := store.ValidateAPIKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "ci", ak.Name)

	keys, err := store.ListAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotEmpty(t, keys[0].LastUsedAt)

	t.Run("runs reference the recording key", func(t *testing.T) {
		run := sampleRun("localhost", "completed", time.Now())
		run.RecordedBy = ak.ID
		require.NoError(t, store.CreateRun(ctx, run))

		got, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, ak.ID, got.RecordedBy)
	})

	require.NoError(t, store.RevokeAPIKey(ctx, ak.ID))
	_, err = store.ValidateAPIKey(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.RevokeAPIKey(ctx, ak.ID), ErrNotFound)

	keys, err = store.ListAPIKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
