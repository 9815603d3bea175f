package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/api/schemas"
	"github.com/xkilldash9x/cartographer/internal/graph"
)

// DBPool abstracts the pgxpool.Pool so the store can be mocked in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps each application's document as a single jsonb row. The
// upsert is one statement, so the previous document survives any failed
// write, same as the file backend's rename discipline.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

var _ DocumentStore = (*PostgresStore)(nil)

// NewPostgresStore verifies the connection and returns the store.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool, log: logger.Named("pgstore")}, nil
}

// EnsureSchema creates the documents table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	sql := `
        CREATE TABLE IF NOT EXISTS exploration_documents (
            app_name   TEXT PRIMARY KEY,
            document   JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        );
    `
	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to create exploration_documents table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, appName string) (*schemas.ExplorationGraph, error) {
	query := `SELECT document FROM exploration_documents WHERE app_name = $1;`

	var data []byte
	err := s.pool.QueryRow(ctx, query, appName).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("app %q: %w", appName, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	var doc schemas.ExplorationGraph
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &MalformedDocumentError{App: appName, Err: err}
	}
	graph.Rehydrate(&doc)
	if err := graph.Validate(&doc); err != nil {
		return nil, &MalformedDocumentError{App: appName, Err: err}
	}

	s.log.Debug("Document loaded",
		zap.String("app", appName),
		zap.Int("screens", len(doc.Screens)))
	return &doc, nil
}

func (s *PostgresStore) Save(ctx context.Context, doc *schemas.ExplorationGraph) error {
	graph.RecomputeStats(doc)
	doc.LastUpdated = time.Now().UTC()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling document: %w", err)
	}

	sql := `
        INSERT INTO exploration_documents (app_name, document, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (app_name) DO UPDATE SET
            document = EXCLUDED.document,
            updated_at = EXCLUDED.updated_at;
    `
	if _, err := s.pool.Exec(ctx, sql, doc.AppName, data, doc.LastUpdated); err != nil {
		return fmt.Errorf("failed to upsert document for %s: %w", doc.AppName, err)
	}

	s.log.Debug("Document saved", zap.String("app", doc.AppName), zap.Int("bytes", len(data)))
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, appName string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM exploration_documents WHERE app_name = $1);`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, appName).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query document existence: %w", err)
	}
	return exists, nil
}
