//go:build e2e

package e2e

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SrJuanF/UnitPoints-System/internal/config"
	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
	"github.com/SrJuanF/UnitPoints-System/internal/observability/metrics"
	"github.com/SrJuanF/UnitPoints-System/internal/server"
	"github.com/SrJuanF/UnitPoints-System/internal/storage"
	"github.com/SrJuanF/UnitPoints-System/pkg/client"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// allowedRPCHost is the only host the test server may dial for verification
const allowedRPCHost = "rpc.allowed.invalid"

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	TestServer        *httptest.Server
	Store             storage.Store
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("unitpoints"),
		postgres.WithUsername("unitpoints"),
		postgres.WithPassword("unitpoints"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// startServerE starts the registry server in-process against Postgres
func startServerE(connString string) (*httptest.Server, storage.Store, error) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:          8080,
			Host:          "0.0.0.0",
			MaxBodySizeKB: 1024,
		},
		Storage: config.StorageConfig{
			Type: "postgres",
			Postgres: config.PostgresConfig{
				URL: connString,
			},
		},
		Auth:      config.AuthConfig{Type: "api-key"},
		Logging:   config.LoggingConfig{Level: "debug", Format: "text"},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Proxy:     config.ProxyConfig{TrustProxy: false},
		Metrics:   config.MetricsConfig{Enabled: true},
		Verify: config.VerifyConfig{
			TimeoutSeconds:  5,
			AllowedRPCHosts: []string{allowedRPCHost},
		},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	srv := server.New(cfg, store, logger, server.WithMetrics(metrics.New(true, "unitpoints-e2e")))
	return httptest.NewServer(srv.Handler()), store, nil
}

// newClient creates a new API client for the test server
func newClient(testServer *httptest.Server, apiKey string) *client.Client {
	return client.New(testServer.URL, apiKey)
}

// createTestAPIKey creates a test API key using the store directly
func createTestAPIKey(t *testing.T, store storage.Store, name string) string {
	key, err := store.CreateAPIKey(context.Background(), name)
	require.NoError(t, err, "Failed to create API key")
	return key
}

// testAddresses is a complete, well-formed ecosystem deployment
func testAddresses() ecosystem.Addresses {
	return ecosystem.Addresses{
		UserManager:        "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		CompanyManager:     "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
		EventManager:       "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0",
		DAOGovernance:      "0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9",
		TokenAdministrator: "0xDc64a140Aa3E981100a9becA4E685f962f0cF6C9",
		UnitpointsTokens:   "0x5FC8d32690cc91D4c39d9d3abcBD16989F875707",
	}
}

// completedRun builds a run that went through every stage on network
func completedRun(network string) client.Run {
	return client.Run{
		Network:  network,
		ChainID:  31337,
		Mode:     ecosystem.ModeArtifacts,
		Deployer: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		Status:   "completed",
		Reached:  ecosystem.StateVerified,
		SectorID: "1",
		Addresses: testAddresses(),
		Stages: []ecosystem.Stage{
			ecosystem.StageGrant, ecosystem.StageWire, ecosystem.StageRegister, ecosystem.StageVerify,
		},
		Calls: []ecosystem.CallRecord{{
			Stage:       ecosystem.StageGrant,
			Contract:    ecosystem.UserManager,
			Method:      ecosystem.MethodGrantAdmin,
			Args:        []string{"0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"},
			TxHash:      "0x" + fmt.Sprintf("%064x", 1),
			BlockNumber: 7,
			GasUsed:     46000,
		}},
		Results: []ecosystem.VerificationResult{
			{Contract: ecosystem.UserManager, Check: "admin CompanyManager", Status: ecosystem.StatusPass, Message: "ok"},
			{Contract: ecosystem.UnitpointsTokens, Check: "sector count", Status: ecosystem.StatusWarn, Message: "2 sectors registered"},
		},
	}
}

// recordRun records run and fails the test on error
func recordRun(t *testing.T, c *client.Client, run client.Run) *client.RecordResponse {
	t.Helper()
	resp, err := c.RecordRun(context.Background(), run)
	require.NoError(t, err, "Failed to record run")
	return resp
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "Error should be an APIError")
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}
