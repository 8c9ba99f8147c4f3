package core

import (
	"context"
	"time"

	"staircore/internal/blob"
	"staircore/pkg/domain"
)

// Service exposes the staircore operations: template generation, session
// instantiation, instance execution, and reporting. Generation and
// validation are stateless synchronous computations; all durable state
// lives behind the domain.Store collaborator.
type Service struct {
	store      domain.Store
	archetypes []Archetype
	rules      *RuleTable
	metrics    MetricsRecorder
	reports    blob.Store
	nowFn      func() time.Time
}

// Config carries the optional collaborators of a service. Zero values fall
// back to the built-in archetype library, the default rule table, and wall
// clock time.
type Config struct {
	Rules    *RuleTable
	Rotation RotationConfig
	Metrics  MetricsRecorder
	Reports  blob.Store
	Now      func() time.Time
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.Store, cfg Config) *Service {
	rules := cfg.Rules
	if rules == nil {
		rules = domain.DefaultRuleTable()
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:      store,
		archetypes: DefaultArchetypes(cfg.Rotation),
		rules:      rules,
		metrics:    cfg.Metrics,
		reports:    cfg.Reports,
		nowFn:      nowFn,
	}
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.Store { return s.store }

// Archetypes returns the configured archetype library in canonical order.
func (s *Service) Archetypes() []Archetype {
	return append([]Archetype(nil), s.archetypes...)
}

// Rules returns the immutable rule table in use.
func (s *Service) Rules() *RuleTable { return s.rules }

func (s *Service) observe(ctx context.Context, operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
}
