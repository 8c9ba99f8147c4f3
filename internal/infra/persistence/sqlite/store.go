// Package sqlite persists the in-memory staircore state to a single
// SQLite table as JSON buckets, snapshotting after every successful
// mutation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"staircore/internal/infra/persistence/memory"
	"staircore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.Store = (*Store)(nil)

// Store wraps the in-memory store and mirrors its state into SQLite. Reads
// are served from memory; each mutation rewrites the affected buckets.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed store at path, creating
// parent directories and loading any previously persisted state.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "staircore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

var sqliteBuckets = []string{"baselines", "templates", "instances", "faults"}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	type raw struct {
		bucket  string
		payload []byte
	}
	var raws []raw
	for rows.Next() {
		var r raw
		if err := rows.Scan(&r.bucket, &r.payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		raws = append(raws, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if len(raws) == 0 {
		return nil
	}
	snapshot := memory.Snapshot{}
	for _, r := range raws {
		switch r.bucket {
		case "baselines":
			if err := json.Unmarshal(r.payload, &snapshot.Baselines); err != nil {
				return fmt.Errorf("decode baselines: %w", err)
			}
		case "templates":
			if err := json.Unmarshal(r.payload, &snapshot.Templates); err != nil {
				return fmt.Errorf("decode templates: %w", err)
			}
		case "instances":
			if err := json.Unmarshal(r.payload, &snapshot.Instances); err != nil {
				return fmt.Errorf("decode instances: %w", err)
			}
		case "faults":
			if err := json.Unmarshal(r.payload, &snapshot.Faults); err != nil {
				return fmt.Errorf("decode faults: %w", err)
			}
		}
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
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
			retErr = err
			return retErr
		}
		if _, err = tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// SeedBaseline stores the snapshot and persists it.
func (s *Store) SeedBaseline(ctx context.Context, snapshot domain.BaselineSnapshot) error {
	if err := s.Store.SeedBaseline(ctx, snapshot); err != nil {
		return err
	}
	return s.persist()
}

// UpsertTemplates commits the batch and persists it.
func (s *Store) UpsertTemplates(ctx context.Context, templates []domain.InstanceTemplate) ([]domain.InstanceTemplate, error) {
	out, err := s.Store.UpsertTemplates(ctx, templates)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
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
	if err := s.persist(); err != nil {
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
	if err := s.persist(); err != nil {
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
	if err := s.persist(); err != nil {
		return domain.Fault{}, err
	}
	return out, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
