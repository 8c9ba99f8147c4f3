// Package postgres provides a Postgres-backed store that mirrors the
// in-memory semantics, snapshotting state into a JSONB table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"staircore/internal/infra/persistence/memory"
	"staircore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/staircore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while serving reads and transition
// logic from the in-memory implementation.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls
// back to defaultDSN), ensures the snapshot table exists, and hydrates the
// in-memory store from any existing snapshot.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore()
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

var postgresBuckets = []string{"baselines", "templates", "instances", "faults"}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	targets := map[string]any{
		"baselines": &snapshot.Baselines,
		"templates": &snapshot.Templates,
		"instances": &snapshot.Instances,
		"faults":    &snapshot.Faults,
	}
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		if target, ok := targets[bucket]; ok {
			if err := json.Unmarshal(payload, target); err != nil {
				return memory.Snapshot{}, fmt.Errorf("decode %s: %w", bucket, err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate state: %w", err)
	}
	return snapshot, nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range postgresBuckets {
		var data []byte
		switch bucket {
		case "baselines":
			data, err = json.Marshal(snapshot.Baselines)
		case "templates":
			data, err = json.Marshal(snapshot.Templates)
		case "instances":
			data, err = json.Marshal(snapshot.Instances)
		case "faults":
			data, err = json.Marshal(snapshot.Faults)
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// SeedBaseline stores the snapshot and persists it.
func (s *Store) SeedBaseline(ctx context.Context, snapshot domain.BaselineSnapshot) error {
	if err := s.Store.SeedBaseline(ctx, snapshot); err != nil {
		return err
	}
	return s.persist(ctx)
}

// UpsertTemplates commits the batch and persists it.
func (s *Store) UpsertTemplates(ctx context.Context, templates []domain.InstanceTemplate) ([]domain.InstanceTemplate, error) {
	out, err := s.Store.UpsertTemplates(ctx, templates)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// CloneTemplatesToSession materializes session instances and persists them.
func (s *Store) CloneTemplatesToSession(ctx context.Context, sessionID string, templates []domain.InstanceTemplate) ([]domain.TestInstance, error) {
	out, err := s.Store.CloneTemplatesToSession(ctx, sessionID, templates)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateInstance applies the mutator and persists the committed instance.
func (s *Store) UpdateInstance(ctx context.Context, id string, mutator func(*domain.TestInstance) error) (domain.TestInstance, error) {
	out, err := s.Store.UpdateInstance(ctx, id, mutator)
	if err != nil {
		return domain.TestInstance{}, err
	}
	if err := s.persist(ctx); err != nil {
		return domain.TestInstance{}, err
	}
	return out, nil
}

// CreateFault records the fault and persists it.
func (s *Store) CreateFault(ctx context.Context, fault domain.Fault) (domain.Fault, error) {
	out, err := s.Store.CreateFault(ctx, fault)
	if err != nil {
		return domain.Fault{}, err
	}
	if err := s.persist(ctx); err != nil {
		return domain.Fault{}, err
	}
	return out, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a
// restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
