//go:build e2e

package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
	"github.com/SrJuanF/UnitPoints-System/pkg/client"
)

// TestRuns_RecordAndGet records a run and reads it back in full
func TestRuns_RecordAndGet(t *testing.T) {
	apiKey := createTestAPIKey(t, testCtx.Store, "test-record")
	c := newClient(testCtx.TestServer, apiKey)

	run := completedRun("record-get-net")
	resp := recordRun(t, c, run)

	t.Run("record response carries id and summary", func(t *testing.T) {
		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, "completed", resp.Status)
		assert.Equal(t, ecosystem.Summary{Pass: 1, Warn: 1, Total: 2}, resp.Summary)
		assert.False(t, resp.CreatedAt.IsZero())
	})

	t.Run("get returns the stored run", func(t *testing.T) {
		got, err := c.GetRun(context.Background(), resp.ID)
		require.NoError(t, err)

		assert.Equal(t, resp.ID, got.ID)
		assert.Equal(t, run.Network, got.Network)
		assert.Equal(t, int64(31337), got.ChainID)
		assert.Equal(t, ecosystem.StateVerified, got.Reached)
		assert.Equal(t, "1", got.SectorID)
		assert.Equal(t, testAddresses(), got.Addresses)
		assert.Equal(t, run.Stages, got.Stages)
		require.Len(t, got.Calls, 1)
		assert.Equal(t, ecosystem.MethodGrantAdmin, got.Calls[0].Method)
		assert.Equal(t, uint64(7), got.Calls[0].BlockNumber)
		assert.Len(t, got.Results, 2)
		assert.NotEmpty(t, got.RecordedBy, "run should be attributed to the API key")
	})

	t.Run("get unknown run returns 404", func(t *testing.T) {
		_, err := c.GetRun(context.Background(), "00000000-0000-0000-0000-000000000000")
		assertHTTPError(t, err, "NOT_FOUND")
	})

	t.Run("get malformed id returns 404", func(t *testing.T) {
		_, err := c.GetRun(context.Background(), "not-a-uuid")
		assertHTTPError(t, err, "NOT_FOUND")
	})
}

// TestRuns_SummaryDerivedFromResults checks that submitted counts are ignored
func TestRuns_SummaryDerivedFromResults(t *testing.T) {
	apiKey := createTestAPIKey(t, testCtx.Store, "test-summary")
	c := newClient(testCtx.TestServer, apiKey)

	run := completedRun("summary-net")
	run.Summary = ecosystem.Summary{Pass: 99, Total: 99}
	resp := recordRun(t, c, run)

	assert.Equal(t, 1, resp.Summary.Pass)
	assert.Equal(t, 2, resp.Summary.Total)
}

// TestRuns_FailedRun records a run that stopped part way
func TestRuns_FailedRun(t *testing.T) {
	apiKey := createTestAPIKey(t, testCtx.Store, "test-failed")
	c := newClient(testCtx.TestServer, apiKey)

	run := client.Run{
		Network: "failed-net",
		ChainID: 420420422,
		Mode:    ecosystem.ModeManual,
		Status:  "failed",
		Reached: ecosystem.StatePermissionsGranted,
		Error:   "wiring addresses: EventManager.setDAOGovernance: execution reverted",
		Addresses: ecosystem.Addresses{
			UserManager: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		},
		Stages: []ecosystem.Stage{ecosystem.StageGrant, ecosystem.StageWire},
	}
	resp := recordRun(t, c, run)
	assert.Equal(t, "failed", resp.Status)

	got, err := c.GetRun(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, ecosystem.StatePermissionsGranted, got.Reached)
	assert.Contains(t, got.Error, "execution reverted")
	assert.Empty(t, got.Calls)
	assert.Empty(t, got.Results)
}

// TestRuns_Validation rejects runs the registry cannot accept
func TestRuns_Validation(t *testing.T) {
	apiKey := createTestAPIKey(t, testCtx.Store, "test-validation")
	c := newClient(testCtx.TestServer, apiKey)

	tests := []struct {
		name   string
		mutate func(r *client.Run)
	}{
		{"invalid network name", func(r *client.Run) { r.Network = "bad network!" }},
		{"non-positive chain id", func(r *client.Run) { r.ChainID = 0 }},
		{"unknown mode", func(r *client.Run) { r.Mode = "guess" }},
		{"unknown status", func(r *client.Run) { r.Status = "pending" }},
		{"placeholder address on completed run", func(r *client.Run) { r.Addresses.EventManager = "0x..." }},
		{"zero address on completed run", func(r *client.Run) {
			r.Addresses.DAOGovernance = "0x0000000000000000000000000000000000000000"
		}},
		{"failed run without error", func(r *client.Run) { r.Status = "failed" }},
		{"unknown stage", func(r *client.Run) { r.Stages = append(r.Stages, "deploy") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := completedRun("validation-net")
			tt.mutate(&run)
			_, err := c.RecordRun(context.Background(), run)
			assertHTTPError(t, err, "INVALID_RUN")
		})
	}
}

// TestRuns_ListAndFilter exercises filters and cursor pagination
func TestRuns_ListAndFilter(t *testing.T) {
	apiKey := createTestAPIKey(t, testCtx.Store, "test-list")
	c := newClient(testCtx.TestServer, apiKey)
	ctx := context.Background()

	var ids []string
	for range 3 {
		ids = append(ids, recordRun(t, c, completedRun("list-net")).ID)
	}
	failed := completedRun("list-net")
	failed.Status = "failed"
	failed.Error = "registering sector token: execution reverted"
	failedID := recordRun(t, c, failed).ID

	t.Run("filter by network returns newest first", func(t *testing.T) {
		resp, err := c.ListRuns(ctx, client.ListRunsOptions{Network: "list-net"})
		require.NoError(t, err)
		require.Len(t, resp.Data, 4)
		assert.Equal(t, failedID, resp.Data[0].ID)
		assert.Equal(t, ids[2], resp.Data[1].ID)
		assert.Equal(t, ids[0], resp.Data[3].ID)
		assert.False(t, resp.Pagination.HasMore)
		assert.Equal(t, 20, resp.Pagination.Limit, "Default limit is 20")
	})

	t.Run("filter by status", func(t *testing.T) {
		resp, err := c.ListRuns(ctx, client.ListRunsOptions{Network: "list-net", Status: "failed"})
		require.NoError(t, err)
		require.Len(t, resp.Data, 1)
		assert.Equal(t, failedID, resp.Data[0].ID)
	})

	t.Run("paginate with cursor", func(t *testing.T) {
		first, err := c.ListRuns(ctx, client.ListRunsOptions{Network: "list-net", Limit: 3})
		require.NoError(t, err)
		require.Len(t, first.Data, 3)
		require.True(t, first.Pagination.HasMore)
		require.NotEmpty(t, first.Pagination.NextCursor)

		second, err := c.ListRuns(ctx, client.ListRunsOptions{Network: "list-net", Limit: 3, Cursor: first.Pagination.NextCursor})
		require.NoError(t, err)
		require.Len(t, second.Data, 1)
		assert.Equal(t, ids[0], second.Data[0].ID)
		assert.False(t, second.Pagination.HasMore)
	})

	t.Run("unknown network is empty", func(t *testing.T) {
		resp, err := c.ListRuns(ctx, client.ListRunsOptions{Network: "nowhere"})
		require.NoError(t, err)
		assert.Empty(t, resp.Data)
	})

	t.Run("invalid cursor", func(t *testing.T) {
		_, err := c.ListRuns(ctx, client.ListRunsOptions{Cursor: "00000000-0000-0000-0000-000000000000"})
		assertHTTPError(t, err, "INVALID_CURSOR")
	})

	t.Run("limit out of range", func(t *testing.T) {
		_, err := c.ListRuns(ctx, client.ListRunsOptions{Limit: 500})
		assertHTTPError(t, err, "INVALID_REQUEST")
	})
}
