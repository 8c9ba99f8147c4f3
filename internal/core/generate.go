package core

import (
	"context"
	"fmt"
	"time"

	"staircore/pkg/domain"
)

// GenerationReport summarises a generation run.
type GenerationReport struct {
	BuildingID   string         `json:"building_id"`
	Frequency    Frequency      `json:"frequency"`
	PerArchetype map[string]int `json:"per_archetype"`
	Total        int            `json:"total"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// GenerateTemplates expands every applicable archetype against the
// building's baseline for the requested frequency and upserts the result
// as instance templates keyed by natural key.
//
// Ordering of the pipeline is strict: the completeness gate runs first and
// fails closed; each expansion is then checked against its cardinality
// formula and against duplicate keys before anything is written. A
// mismatch aborts with no partial writes. Repeated calls for the same
// (building, frequency) converge to the identical template set.
func (s *Service) GenerateTemplates(ctx context.Context, buildingID string, freq Frequency) (report GenerationReport, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "generate_templates", start, err) }()

	snapshot, err := s.store.GetBaseline(ctx, buildingID)
	if err != nil {
		return GenerationReport{}, fmt.Errorf("get baseline: %w", err)
	}
	if err = CheckCompleteness(snapshot, freq, s.archetypes); err != nil {
		return GenerationReport{}, err
	}

	counts := snapshot.Counts()
	now := s.nowFn()
	perArchetype := make(map[string]int)
	var templates []InstanceTemplate
	seen := make(map[string]struct{})

	for _, archetype := range ArchetypesFor(s.archetypes, freq) {
		contexts, expandErr := archetype.Expand(snapshot, freq)
		if expandErr != nil {
			err = expandErr
			return GenerationReport{}, err
		}
		if expected := archetype.Cardinality(counts, freq); len(contexts) != expected {
			err = domain.CardinalityMismatchError{
				ArchetypeID: archetype.ID(),
				Frequency:   freq,
				Expected:    expected,
				Actual:      len(contexts),
			}
			return GenerationReport{}, err
		}
		rule, ruleErr := s.rules.Active(archetype.Kind(), now)
		if ruleErr != nil {
			err = ruleErr
			return GenerationReport{}, err
		}
		for _, tctx := range contexts {
			template := InstanceTemplate{
				BuildingID:     buildingID,
				ArchetypeID:    archetype.ID(),
				Kind:           archetype.Kind(),
				Frequency:      freq,
				Context:        tctx,
				Rule:           rule.Clone(),
				GeneratedAt:    now,
				DesignSetpoint: designSetpoint(rule),
			}
			resolved := resolveBaseline(snapshot, tctx)
			template.BaselineValue = resolved.value
			key := template.NaturalKey()
			if _, dup := seen[key]; dup {
				err = domain.CardinalityMismatchError{
					ArchetypeID: archetype.ID(),
					Frequency:   freq,
					Expected:    len(contexts),
					Actual:      len(contexts) + 1,
				}
				return GenerationReport{}, err
			}
			seen[key] = struct{}{}
			templates = append(templates, template)
		}
		perArchetype[archetype.ID()] = len(contexts)
	}

	if _, err = s.store.UpsertTemplates(ctx, templates); err != nil {
		return GenerationReport{}, fmt.Errorf("upsert templates: %w", err)
	}
	return GenerationReport{
		BuildingID:   buildingID,
		Frequency:    freq,
		PerArchetype: perArchetype,
		Total:        len(templates),
		GeneratedAt:  now,
	}, nil
}

// designSetpoint derives the engineering design target from the rule
// thresholds: the band midpoint when both bounds exist, otherwise the sole
// bound.
func designSetpoint(rule Rule) *float64 {
	switch {
	case rule.MinThreshold != nil && rule.MaxThreshold != nil:
		return ptrFloat((*rule.MinThreshold + *rule.MaxThreshold) / 2)
	case rule.MinThreshold != nil:
		return ptrFloat(*rule.MinThreshold)
	case rule.MaxThreshold != nil:
		return ptrFloat(*rule.MaxThreshold)
	default:
		return nil
	}
}
