// Package core implements the staircore engines: the measurement archetype
// library, baseline completeness gate, instance generation, session
// instantiation, the execution state machine, and measurement validation.
package core

import "staircore/pkg/domain"

// Archetype is a parameterized measurement-test definition. Expand must be
// deterministic and duplicate/omission-free for identical input: an omitted
// context is a silent compliance gap, which is the single most
// safety-critical failure mode of this package.
type Archetype interface {
	// ID is the stable archetype identifier recorded on templates.
	ID() string
	// Kind is the measurement kind every expanded context carries.
	Kind() MeasurementKind
	// AppliesTo reports whether the archetype participates in a frequency.
	AppliesTo(freq Frequency) bool
	// RequiredBaselineKinds lists the baseline categories the archetype
	// needs before it can expand for a frequency.
	RequiredBaselineKinds(freq Frequency) []BaselineKind
	// Cardinality predicts the exact expansion size from baseline counts.
	// A disagreement with Expand is a programming fault, surfaced as
	// CardinalityMismatchError and never as a shortened instance set.
	Cardinality(counts BaselineCounts, freq Frequency) int
	// Expand produces one context per unique test combination, ordered by
	// stair name, then location ordinal, then sub-key.
	Expand(snapshot BaselineSnapshot, freq Frequency) ([]TestContext, error)
}

// RotationConfig parameterises the six-monthly cause-and-effect zone
// rotation. ZonesPerStair bounds how many zones are exercised per stair per
// cycle; CycleIndex advances the rotation window so successive cycles cover
// different zones.
type RotationConfig struct {
	ZonesPerStair int
	CycleIndex    int
}

// DefaultZonesPerStair is the rotation window used when none is configured.
const DefaultZonesPerStair = 2

func (c RotationConfig) normalize() RotationConfig {
	if c.ZonesPerStair <= 0 {
		c.ZonesPerStair = DefaultZonesPerStair
	}
	if c.CycleIndex < 0 {
		c.CycleIndex = 0
	}
	return c
}

// DefaultArchetypes returns the built-in archetype library in its canonical
// order. The order is load-bearing: session sequencing and report grouping
// use it as the archetype axis.
func DefaultArchetypes(rotation RotationConfig) []Archetype {
	return []Archetype{
		pressureArchetype{},
		velocityArchetype{},
		doorForceArchetype{},
		causeEffectArchetype{rotation: rotation.normalize()},
		interfaceArchetype{},
	}
}

// ArchetypesFor filters the library down to the archetypes applicable to a
// frequency, preserving canonical order.
func ArchetypesFor(archetypes []Archetype, freq Frequency) []Archetype {
	var out []Archetype
	for _, a := range archetypes {
		if a.AppliesTo(freq) {
			out = append(out, a)
		}
	}
	return out
}

// resolvedBaseline captures the outcome of resolving a context against the
// baseline measurements: the commissioning value when one is required and
// present, and whether the context is satisfiable at all.
type resolvedBaseline struct {
	value    *float64
	required bool
	ok       bool
	reason   string
}

// resolveBaseline looks up the baseline measurement a context validates
// against. Contexts that are not numerically validated (monthly visual
// pressure, cause-and-effect, interface tests) resolve with no value.
func resolveBaseline(snapshot BaselineSnapshot, ctx TestContext) resolvedBaseline {
	switch c := ctx.(type) {
	case domain.PressureContext:
		if c.Config == domain.DoorConfigVisual {
			return resolvedBaseline{ok: true}
		}
		p, ok := snapshot.PressureFor(c.StairID, c.FloorID, c.Config)
		if !ok {
			return resolvedBaseline{required: true, reason: "no baseline pressure for (stair, floor, config)"}
		}
		return resolvedBaseline{value: ptrFloat(p.ValuePa), required: true, ok: true}
	case domain.VelocityContext:
		v, ok := snapshot.VelocityFor(c.StairID, c.DoorwayID, c.Scenario)
		if !ok {
			return resolvedBaseline{required: true, reason: "no baseline velocity for (stair, doorway, scenario)"}
		}
		return resolvedBaseline{value: ptrFloat(v.ValueMS), required: true, ok: true}
	case domain.DoorForceContext:
		f, ok := snapshot.ForceFor(c.StairID, c.DoorID, true)
		if !ok {
			return resolvedBaseline{required: true, reason: "no baseline door force for (stair, door) under pressurization"}
		}
		return resolvedBaseline{value: ptrFloat(f.ValueN), required: true, ok: true}
	default:
		return resolvedBaseline{ok: true}
	}
}

func ptrFloat(v float64) *float64 { return &v }
