package core

import "staircore/pkg/domain"

// velocityArchetype expands air-velocity tests: one per (stair, doorway),
// annual only, always under the fixed worst-case scenario.
type velocityArchetype struct{}

func (velocityArchetype) ID() string            { return "air_velocity" }
func (velocityArchetype) Kind() MeasurementKind { return KindAirVelocity }

func (velocityArchetype) AppliesTo(freq Frequency) bool { return freq == FrequencyAnnual }

func (velocityArchetype) RequiredBaselineKinds(Frequency) []BaselineKind {
	return []BaselineKind{domain.BaselineStairs, domain.BaselineDoorways, domain.BaselineVelocities}
}

func (velocityArchetype) Cardinality(counts BaselineCounts, freq Frequency) int {
	if freq != FrequencyAnnual {
		return 0
	}
	return counts.Doorways
}

func (velocityArchetype) Expand(snapshot BaselineSnapshot, freq Frequency) ([]TestContext, error) {
	if freq != FrequencyAnnual {
		return nil, nil
	}
	ordinals := make(map[string]int, len(snapshot.Floors))
	for _, f := range snapshot.Floors {
		ordinals[f.ID] = f.Ordinal
	}
	var out []TestContext
	for _, stair := range snapshot.StairsSorted() {
		for _, doorway := range snapshot.DoorwaysOf(stair.ID) {
			out = append(out, domain.VelocityContext{
				StairID:      stair.ID,
				DoorwayID:    doorway.ID,
				FloorOrdinal: ordinals[doorway.FloorID],
				Scenario:     domain.ScenarioEvacDoorsOpenFanMax,
			})
		}
	}
	return out, nil
}
