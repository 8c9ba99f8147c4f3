package core

import "staircore/pkg/domain"

// doorForceArchetype expands door-opening-force tests: one per
// (stair, door), annual only, measured with the pressurization system
// running since the egress-force ceiling only matters under pressure.
type doorForceArchetype struct{}

func (doorForceArchetype) ID() string            { return "door_opening_force" }
func (doorForceArchetype) Kind() MeasurementKind { return KindDoorOpeningForce }

func (doorForceArchetype) AppliesTo(freq Frequency) bool { return freq == FrequencyAnnual }

func (doorForceArchetype) RequiredBaselineKinds(Frequency) []BaselineKind {
	return []BaselineKind{domain.BaselineStairs, domain.BaselineDoors, domain.BaselineForces}
}

func (doorForceArchetype) Cardinality(counts BaselineCounts, freq Frequency) int {
	if freq != FrequencyAnnual {
		return 0
	}
	return counts.Doors
}

func (doorForceArchetype) Expand(snapshot BaselineSnapshot, freq Frequency) ([]TestContext, error) {
	if freq != FrequencyAnnual {
		return nil, nil
	}
	ordinals := make(map[string]int, len(snapshot.Floors))
	for _, f := range snapshot.Floors {
		ordinals[f.ID] = f.Ordinal
	}
	var out []TestContext
	for _, stair := range snapshot.StairsSorted() {
		for _, door := range snapshot.DoorsOf(stair.ID) {
			out = append(out, domain.DoorForceContext{
				StairID:      stair.ID,
				DoorID:       door.ID,
				FloorOrdinal: ordinals[door.FloorID],
			})
		}
	}
	return out, nil
}
