package domain

import "context"

// BaselineSource provides read-only access to a building's baseline. The
// returned snapshot is an immutable deep copy, never a live cursor, so a
// generation call always expands against a single consistent view.
type BaselineSource interface {
	GetBaseline(ctx context.Context, buildingID string) (BaselineSnapshot, error)
}

// TemplateStore persists instance templates keyed by their natural key.
// UpsertTemplates is atomic: either every template in the batch lands or
// none does, and repeated batches for the same (building, frequency)
// converge to the same template set.
type TemplateStore interface {
	UpsertTemplates(ctx context.Context, templates []InstanceTemplate) ([]InstanceTemplate, error)
	ListTemplates(ctx context.Context, buildingID string, freq Frequency) ([]InstanceTemplate, error)
}

// InstanceStore owns session-scoped test instances. UpdateInstance applies
// the mutator to a copy and commits the result; the compare-and-swap needed
// for concurrent submissions is the store's responsibility.
type InstanceStore interface {
	CloneTemplatesToSession(ctx context.Context, sessionID string, templates []InstanceTemplate) ([]TestInstance, error)
	GetInstance(ctx context.Context, id string) (TestInstance, error)
	UpdateInstance(ctx context.Context, id string, mutator func(*TestInstance) error) (TestInstance, error)
	ListSessionInstances(ctx context.Context, sessionID string) ([]TestInstance, error)
}

// FaultStore persists fault records emitted by validation.
type FaultStore interface {
	CreateFault(ctx context.Context, fault Fault) (Fault, error)
	ListFaults(ctx context.Context, sessionID string) ([]Fault, error)
}

// Store is the full collaborator contract staircore requires from its
// host. SeedBaseline ingests a collaborator-owned baseline snapshot; the
// core itself only ever reads baselines back.
type Store interface {
	BaselineSource
	TemplateStore
	InstanceStore
	FaultStore
	SeedBaseline(ctx context.Context, snapshot BaselineSnapshot) error
}
