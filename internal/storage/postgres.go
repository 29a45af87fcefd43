package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		last_used_at TIMESTAMPTZ,
		revoked_at TIMESTAMPTZ
	);

	-- Configuration runs
	CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		network TEXT NOT NULL,
		chain_id BIGINT NOT NULL,
		mode TEXT NOT NULL,
		deployer TEXT,
		status TEXT NOT NULL,
		reached TEXT,
		error TEXT,
		sector_id TEXT,
		addresses JSONB NOT NULL,
		stages JSONB NOT NULL,
		calls JSONB NOT NULL,
		results JSONB NOT NULL,
		pass_count INTEGER NOT NULL DEFAULT 0,
		fail_count INTEGER NOT NULL DEFAULT 0,
		warn_count INTEGER NOT NULL DEFAULT 0,
		recorded_by UUID REFERENCES api_keys(id),
		created_at TIMESTAMPTZ NOT NULL
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_network ON runs(network, created_at DESC);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

// CreateRun stores a run. ID and CreatedAt are assigned when empty.
func (s *PostgresStore) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = generateID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO runs (id, network, chain_id, mode, deployer, status, reached, error, sector_id,
			addresses, stages, calls, results, pass_count, fail_count, warn_count, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Network, run.ChainID, run.Mode, run.Deployer, run.Status, run.Reached, run.Error, run.SectorID,
		jsonOrDefault(run.Addresses, "{}"), jsonOrDefault(run.Stages, "[]"), jsonOrDefault(run.Calls, "[]"), jsonOrDefault(run.Results, "[]"),
		run.Pass, run.Fail, run.Warn, nullString(run.RecordedBy), run.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

const postgresRunColumns = `id::text, network, chain_id, mode, deployer, status, reached, error, sector_id,
	addresses::text, stages::text, calls::text, results::text, pass_count, fail_count, warn_count,
	recorded_by::text, created_at`

// GetRun retrieves a run by ID
func (s *PostgresStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+postgresRunColumns+" FROM runs WHERE id::text = $1", id)
	run, err := scanPostgresRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// ListRuns lists runs newest first. The cursor is the ID of the last run on the previous page.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter, pagination PaginationParams) (*PaginatedResult[Run], error) {
	limit := pageLimit(pagination.Limit)

	var where []string
	var args []any
	argIdx := 1

	if pagination.Cursor != "" {
		var exists bool
		if err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM runs WHERE id::text = $1)", pagination.Cursor).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrInvalidCursor
		}
		where = append(where, fmt.Sprintf("(created_at, id) < (SELECT created_at, id FROM runs WHERE id::text = $%d)", argIdx))
		args = append(args, pagination.Cursor)
		argIdx++
	}
	if filter.Network != "" {
		where = append(where, fmt.Sprintf("network = $%d", argIdx))
		args = append(args, filter.Network)
		argIdx++
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	query := "SELECT " + postgresRunColumns + " FROM runs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIdx)
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanPostgresRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &PaginatedResult[Run]{Data: runs}
	if len(runs) > limit {
		result.Data = runs[:limit]
		result.HasMore = true
		result.NextCursor = result.Data[limit-1].ID
	}
	return result, nil
}

func scanPostgresRun(row rowScanner) (*Run, error) {
	var run Run
	var deployer, reached, errText, sectorID, recordedBy sql.NullString
	var addresses, stages, calls, results string
	err := row.Scan(
		&run.ID, &run.Network, &run.ChainID, &run.Mode, &deployer, &run.Status, &reached, &errText, &sectorID,
		&addresses, &stages, &calls, &results, &run.Pass, &run.Fail, &run.Warn, &recordedBy, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Deployer = deployer.String
	run.Reached = reached.String
	run.Error = errText.String
	run.SectorID = sectorID.String
	run.RecordedBy = recordedBy.String
	run.Addresses = []byte(addresses)
	run.Stages = []byte(stages)
	run.Calls = []byte(calls)
	run.Results = []byte(results)
	run.CreatedAt = run.CreatedAt.UTC()
	return &run, nil
}

// CreateAPIKey creates a new API key and returns the plaintext key
func (s *PostgresStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := generateAPIKey()
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name) VALUES ($1, $2, $3)",
		generateID(), hashAPIKey(key), name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *PostgresStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	var ak APIKey
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, "SELECT id::text, key_hash, name, created_at FROM api_keys WHERE key_hash = $1 AND revoked_at IS NULL", hashAPIKey(key)).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ak.CreatedAt = createdAt.Format(time.RFC3339)
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = NOW() WHERE id = $1", ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all active API keys
func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id::text, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var createdAt time.Time
		var lastUsed sql.NullTime
		if err := rows.Scan(&k.ID, &k.Name, &createdAt, &lastUsed); err != nil {
			return nil, err
		}
		k.CreatedAt = createdAt.Format(time.RFC3339)
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.Time.Format(time.RFC3339)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = NOW() WHERE id::text = $1 AND revoked_at IS NULL", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
