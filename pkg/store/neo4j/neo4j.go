// Package neo4j implements store.GraphStore on Neo4j. Every node hangs under
// a per user anchor node through an OWNS edge so all reads and writes are
// scoped to the owner.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/aletheia-codex/backend/pkg/logger"
	"github.com/aletheia-codex/backend/pkg/store"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// runner executes a single statement in a managed transaction and returns
// all records.
type runner interface {
	write(ctx context.Context, cypher string, params map[string]any) ([]*neo4jdrv.Record, error)
	read(ctx context.Context, cypher string, params map[string]any) ([]*neo4jdrv.Record, error)
}

type driverRunner struct {
	driver   neo4jdrv.DriverWithContext
	database string
}

func (r *driverRunner) session(ctx context.Context, mode neo4jdrv.AccessMode) neo4jdrv.SessionWithContext {
	return r.driver.NewSession(ctx, neo4jdrv.SessionConfig{
		AccessMode:   mode,
		DatabaseName: r.database,
	})
}

func collect(ctx context.Context, cypher string, params map[string]any) neo4jdrv.ManagedTransactionWork {
	return func(tx neo4jdrv.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	}
}

// write runs in a managed transaction, the driver retries transient
// failures such as leader switches and dropped connections.
func (r *driverRunner) write(ctx context.Context, cypher string, params map[string]any) ([]*neo4jdrv.Record, error) {
	s := r.session(ctx, neo4jdrv.AccessModeWrite)
	defer s.Close(ctx)

	out, err := s.ExecuteWrite(ctx, collect(ctx, cypher, params))
	if err != nil {
		return nil, err
	}
	return out.([]*neo4jdrv.Record), nil
}

func (r *driverRunner) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4jdrv.Record, error) {
	s := r.session(ctx, neo4jdrv.AccessModeRead)
	defer s.Close(ctx)

	out, err := s.ExecuteRead(ctx, collect(ctx, cypher, params))
	if err != nil {
		return nil, err
	}
	return out.([]*neo4jdrv.Record), nil
}

// GraphNeo4jStorage implements store.GraphStore.
type GraphNeo4jStorage struct {
	run    runner
	driver neo4jdrv.DriverWithContext
}

var _ store.GraphStore = (*GraphNeo4jStorage)(nil)

type NewGraphNeo4jStorageParams struct {
	URI      string
	User     string
	Password string
	Database string

	MaxPoolSize int
	Timeout     time.Duration
}

// NewGraphNeo4jStorage connects to Neo4j and verifies connectivity.
func NewGraphNeo4jStorage(ctx context.Context, params NewGraphNeo4jStorageParams) (*GraphNeo4jStorage, error) {
	if params.URI == "" {
		return nil, fmt.Errorf("neo4j uri is empty")
	}
	if params.User == "" {
		params.User = "neo4j"
	}
	if params.MaxPoolSize <= 0 {
		params.MaxPoolSize = 50
	}
	if params.Timeout <= 0 {
		params.Timeout = 10 * time.Second
	}

	auth := neo4jdrv.BasicAuth(params.User, params.Password, "")
	driver, err := neo4jdrv.NewDriverWithContext(params.URI, auth, func(cfg *neo4jdrv.Config) {
		cfg.MaxConnectionPoolSize = params.MaxPoolSize
		cfg.SocketConnectTimeout = params.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to reach neo4j: %w", err)
	}

	return &GraphNeo4jStorage{
		run:    &driverRunner{driver: driver, database: params.Database},
		driver: driver,
	}, nil
}

func (s *GraphNeo4jStorage) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

var schemaStatements = []string{
	`CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.user_id IS UNIQUE`,
}

// EnsureSchema creates constraints and lookup indexes. Failures are logged
// since restricted users may not manage schema.
func (s *GraphNeo4jStorage) EnsureSchema(ctx context.Context) {
	stmts := append([]string{}, schemaStatements...)
	for _, label := range entityLabels() {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX %s_owner_name IF NOT EXISTS FOR (e:`%s`) ON (e.user_id, e.name)",
			label, label,
		))
	}
	for _, stmt := range stmts {
		if _, err := s.run.write(ctx, stmt, nil); err != nil {
			logger.Warn("[Neo4j] Schema statement failed, continuing", "statement", stmt, "err", err)
		}
	}
}
