package core

import "staircore/pkg/domain"

// pressureArchetype expands pressure-differential tests. Annually every
// (stair, floor) is probed under both door configurations; monthly checks
// cover every (stair, floor) once, visually, with no configuration axis.
type pressureArchetype struct{}

func (pressureArchetype) ID() string            { return "pressure_differential" }
func (pressureArchetype) Kind() MeasurementKind { return KindPressureDifferential }

func (pressureArchetype) AppliesTo(freq Frequency) bool {
	return freq == FrequencyAnnual || freq == FrequencyMonthly
}

func (pressureArchetype) RequiredBaselineKinds(freq Frequency) []BaselineKind {
	kinds := []BaselineKind{domain.BaselineStairs, domain.BaselineFloors}
	if freq == FrequencyAnnual {
		kinds = append(kinds, domain.BaselinePressures)
	}
	return kinds
}

func (pressureArchetype) Cardinality(counts BaselineCounts, freq Frequency) int {
	if freq == FrequencyAnnual {
		return counts.Floors * 2
	}
	return counts.Floors
}

func (pressureArchetype) Expand(snapshot BaselineSnapshot, freq Frequency) ([]TestContext, error) {
	var configs []domain.DoorConfig
	switch freq {
	case FrequencyAnnual:
		configs = []domain.DoorConfig{domain.DoorConfigAllClosed, domain.DoorConfigEvacOpen}
	case FrequencyMonthly:
		configs = []domain.DoorConfig{domain.DoorConfigVisual}
	default:
		return nil, nil
	}
	var out []TestContext
	for _, stair := range snapshot.StairsSorted() {
		for _, floor := range snapshot.FloorsOf(stair.ID) {
			for _, config := range configs {
				out = append(out, domain.PressureContext{
					StairID:      stair.ID,
					FloorID:      floor.ID,
					FloorOrdinal: floor.Ordinal,
					Config:       config,
				})
			}
		}
	}
	return out, nil
}
