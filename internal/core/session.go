package core

import (
	"context"
	"fmt"
	"sort"

	"staircore/pkg/domain"
)

// PlanSessionRequest describes the instances a testing session should be
// issued.
type PlanSessionRequest struct {
	SessionID  string
	BuildingID string
	Frequency  Frequency
	// IncludeLowerFrequencies folds lower-frequency templates into the
	// session for an explicitly combined cycle. The domain convention is
	// cumulative per request, never implicit: an annual session uses
	// annual templates only unless this is set.
	IncludeLowerFrequencies bool
}

// PlanSession clones the applicable templates into pending test instances
// scoped to the session. Every template value is copied, so template
// regeneration after planning never alters the issued instances. Instances
// receive a stable sequence order grouped by stair, then location ordinal,
// then archetype.
func (s *Service) PlanSession(ctx context.Context, req PlanSessionRequest) (instances []TestInstance, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "plan_session", start, err) }()

	if req.SessionID == "" {
		return nil, fmt.Errorf("session id required")
	}
	var templates []InstanceTemplate
	for _, freq := range sessionFrequencies(req.Frequency, req.IncludeLowerFrequencies) {
		batch, listErr := s.store.ListTemplates(ctx, req.BuildingID, freq)
		if listErr != nil {
			err = fmt.Errorf("list templates: %w", listErr)
			return nil, err
		}
		templates = append(templates, batch...)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("no templates generated for building %s at %s", req.BuildingID, req.Frequency)
	}

	snapshot, err := s.store.GetBaseline(ctx, req.BuildingID)
	if err != nil {
		return nil, fmt.Errorf("get baseline: %w", err)
	}
	s.orderTemplates(templates, snapshot)

	instances, err = s.store.CloneTemplatesToSession(ctx, req.SessionID, templates)
	if err != nil {
		return nil, fmt.Errorf("clone templates: %w", err)
	}
	return instances, nil
}

// sessionFrequencies resolves which template frequencies a session draws
// from.
func sessionFrequencies(freq Frequency, combined bool) []Frequency {
	if !combined {
		return []Frequency{freq}
	}
	switch freq {
	case FrequencyAnnual:
		return []Frequency{FrequencyAnnual, FrequencySixMonthly, FrequencyMonthly}
	case FrequencySixMonthly:
		return []Frequency{FrequencySixMonthly, FrequencyMonthly}
	default:
		return []Frequency{freq}
	}
}

// orderTemplates sorts templates into session sequence order: stair name,
// then location ordinal, then archetype canonical order, then context key
// as the final deterministic tie-break.
func (s *Service) orderTemplates(templates []InstanceTemplate, snapshot BaselineSnapshot) {
	stairNames := make(map[string]string, len(snapshot.Stairs))
	for _, stair := range snapshot.Stairs {
		stairNames[stair.ID] = stair.Name
	}
	archetypeOrder := make(map[string]int, len(s.archetypes))
	for i, a := range s.archetypes {
		archetypeOrder[a.ID()] = i
	}
	sort.SliceStable(templates, func(i, j int) bool {
		ci, cj := templates[i].Context, templates[j].Context
		ni, nj := stairKey(stairNames, ci), stairKey(stairNames, cj)
		if ni != nj {
			return ni < nj
		}
		if ci.Ordinal() != cj.Ordinal() {
			return ci.Ordinal() < cj.Ordinal()
		}
		oi, oj := archetypeOrder[templates[i].ArchetypeID], archetypeOrder[templates[j].ArchetypeID]
		if oi != oj {
			return oi < oj
		}
		return ci.Key() < cj.Key()
	})
}

func stairKey(names map[string]string, ctx domain.TestContext) string {
	if ctx == nil {
		return ""
	}
	if name, ok := names[ctx.Stair()]; ok {
		return name + "/" + ctx.Stair()
	}
	return ctx.Stair()
}
