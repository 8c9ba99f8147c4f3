// Package memory provides an in-memory implementation of the staircore
// persistence store used for tests and ephemeral environments.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"staircore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.Store = (*Store)(nil)

type (
	// BaselineSnapshot aliases domain.BaselineSnapshot for in-memory persistence.
	BaselineSnapshot = domain.BaselineSnapshot
	// InstanceTemplate aliases domain.InstanceTemplate.
	InstanceTemplate = domain.InstanceTemplate
	// TestInstance aliases domain.TestInstance.
	TestInstance = domain.TestInstance
	// Fault aliases domain.Fault.
	Fault = domain.Fault
	// Frequency aliases domain.Frequency.
	Frequency = domain.Frequency
)

type memoryState struct {
	baselines map[string]BaselineSnapshot // keyed by building ID
	templates map[string]InstanceTemplate // keyed by natural key
	instances map[string]TestInstance     // keyed by instance ID
	faults    map[string]Fault            // keyed by fault ID
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Baselines map[string]BaselineSnapshot `json:"baselines"`
	Templates map[string]InstanceTemplate `json:"templates"`
	Instances map[string]TestInstance     `json:"instances"`
	Faults    map[string]Fault            `json:"faults"`
}

func newMemoryState() memoryState {
	return memoryState{
		baselines: make(map[string]BaselineSnapshot),
		templates: make(map[string]InstanceTemplate),
		instances: make(map[string]TestInstance),
		faults:    make(map[string]Fault),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	snap := Snapshot{
		Baselines: make(map[string]BaselineSnapshot, len(state.baselines)),
		Templates: make(map[string]InstanceTemplate, len(state.templates)),
		Instances: make(map[string]TestInstance, len(state.instances)),
		Faults:    make(map[string]Fault, len(state.faults)),
	}
	for k, v := range state.baselines {
		snap.Baselines[k] = v.Clone()
	}
	for k, v := range state.templates {
		snap.Templates[k] = v.Clone()
	}
	for k, v := range state.instances {
		snap.Instances[k] = v.Clone()
	}
	for k, v := range state.faults {
		snap.Faults[k] = v.Clone()
	}
	return snap
}

func memoryStateFromSnapshot(snap Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range snap.Baselines {
		state.baselines[k] = v.Clone()
	}
	for k, v := range snap.Templates {
		state.templates[k] = v.Clone()
	}
	for k, v := range snap.Instances {
		state.instances[k] = v.Clone()
	}
	for k, v := range snap.Faults {
		state.faults[k] = v.Clone()
	}
	return state
}

// Store is a mutex-guarded in-memory store. Reads hand out deep copies;
// writes replace whole records, so callers never observe partial mutation.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		state: newMemoryState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the store's time provider. Intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// SeedBaseline stores a deep copy of the snapshot, replacing any previous
// baseline for the same building.
func (s *Store) SeedBaseline(_ context.Context, snapshot BaselineSnapshot) error {
	if snapshot.BuildingID == "" {
		return fmt.Errorf("baseline snapshot missing building id")
	}
	cp := snapshot.Clone()
	if cp.CapturedAt.IsZero() {
		cp.CapturedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.baselines[cp.BuildingID] = cp
	return nil
}

// GetBaseline returns a deep copy of the building's baseline.
func (s *Store) GetBaseline(_ context.Context, buildingID string) (BaselineSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.state.baselines[buildingID]
	if !ok {
		return BaselineSnapshot{}, domain.NotFoundError{Entity: "baseline", ID: buildingID}
	}
	return snapshot.Clone(), nil
}

// UpsertTemplates commits the batch atomically. Templates are keyed by
// natural key: an existing template keeps its ID and CreatedAt, so repeated
// generation converges instead of multiplying.
func (s *Store) UpsertTemplates(_ context.Context, templates []InstanceTemplate) ([]InstanceTemplate, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make([]InstanceTemplate, 0, len(templates))
	for _, tpl := range templates {
		cp := tpl.Clone()
		if cp.Context == nil {
			return nil, fmt.Errorf("template missing context for archetype %s", cp.ArchetypeID)
		}
		key := cp.NaturalKey()
		if existing, ok := s.state.templates[key]; ok {
			cp.ID = existing.ID
			cp.CreatedAt = existing.CreatedAt
		} else {
			cp.ID = s.newID()
			cp.CreatedAt = now
		}
		cp.UpdatedAt = now
		staged = append(staged, cp)
	}
	out := make([]InstanceTemplate, 0, len(staged))
	for _, cp := range staged {
		s.state.templates[cp.NaturalKey()] = cp
		out = append(out, cp.Clone())
	}
	return out, nil
}

// ListTemplates returns the building's templates for one frequency, sorted
// by natural key.
func (s *Store) ListTemplates(_ context.Context, buildingID string, freq Frequency) ([]InstanceTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []InstanceTemplate
	for _, tpl := range s.state.templates {
		if tpl.BuildingID == buildingID && tpl.Frequency == freq {
			out = append(out, tpl.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NaturalKey() < out[j].NaturalKey() })
	return out, nil
}

// CloneTemplatesToSession materializes pending instances from the supplied
// templates, preserving their order as the session execution order. A
// session can only be planned once.
func (s *Store) CloneTemplatesToSession(_ context.Context, sessionID string, templates []InstanceTemplate) ([]TestInstance, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id required")
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inst := range s.state.instances {
		if inst.SessionID == sessionID {
			return nil, fmt.Errorf("session %s already has instances", sessionID)
		}
	}

	out := make([]TestInstance, 0, len(templates))
	for i, tpl := range templates {
		cp := tpl.Clone()
		inst := TestInstance{
			SessionID:      sessionID,
			TemplateID:     cp.ID,
			BuildingID:     cp.BuildingID,
			ArchetypeID:    cp.ArchetypeID,
			Kind:           cp.Kind,
			Frequency:      cp.Frequency,
			Context:        cp.Context,
			BaselineValue:  cp.BaselineValue,
			DesignSetpoint: cp.DesignSetpoint,
			Rule:           cp.Rule.Clone(),
			SequenceOrder:  i + 1,
			Status:         domain.StatusPending,
		}
		inst.ID = s.newID()
		inst.CreatedAt = now
		inst.UpdatedAt = now
		s.state.instances[inst.ID] = inst
		out = append(out, inst.Clone())
	}
	return out, nil
}

// GetInstance returns a deep copy of one instance.
func (s *Store) GetInstance(_ context.Context, id string) (TestInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.state.instances[id]
	if !ok {
		return TestInstance{}, domain.NotFoundError{Entity: "test instance", ID: id}
	}
	return inst.Clone(), nil
}

// UpdateInstance applies the mutator to a copy of the instance under the
// write lock and commits the result only when the mutator succeeds.
// Concurrent submissions therefore serialize and the last successful
// transition wins.
func (s *Store) UpdateInstance(_ context.Context, id string, mutator func(*TestInstance) error) (TestInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.state.instances[id]
	if !ok {
		return TestInstance{}, domain.NotFoundError{Entity: "test instance", ID: id}
	}
	working := current.Clone()
	if err := mutator(&working); err != nil {
		return TestInstance{}, err
	}
	working.ID = current.ID
	working.CreatedAt = current.CreatedAt
	working.UpdatedAt = s.now()
	s.state.instances[id] = working
	return working.Clone(), nil
}

// ListSessionInstances returns the session's instances in execution order.
func (s *Store) ListSessionInstances(_ context.Context, sessionID string) ([]TestInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []TestInstance
	for _, inst := range s.state.instances {
		if inst.SessionID == sessionID {
			out = append(out, inst.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SequenceOrder != out[j].SequenceOrder {
			return out[i].SequenceOrder < out[j].SequenceOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateFault persists a fault record and returns it with identity fields
// assigned.
func (s *Store) CreateFault(_ context.Context, fault Fault) (Fault, error) {
	now := s.now()
	cp := fault.Clone()
	cp.ID = s.newID()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	if cp.RaisedAt.IsZero() {
		cp.RaisedAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.faults[cp.ID] = cp
	return cp.Clone(), nil
}

// ListFaults returns the faults raised within a session, oldest first.
func (s *Store) ListFaults(_ context.Context, sessionID string) ([]Fault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Fault
	for _, f := range s.state.faults {
		if f.SessionID == sessionID {
			out = append(out, f.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RaisedAt.Equal(out[j].RaisedAt) {
			return out[i].RaisedAt.Before(out[j].RaisedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) now() time.Time {
	if s.nowFn == nil {
		return time.Now().UTC()
	}
	return s.nowFn()
}
