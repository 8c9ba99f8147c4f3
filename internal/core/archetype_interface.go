package core

import "staircore/pkg/domain"

// interfaceExpectation is the qualitative outcome and response time a
// correctly wired interface of each type must exhibit.
type interfaceExpectation struct {
	outcome         string
	responseSeconds float64
}

var interfaceExpectations = map[domain.InterfaceType]interfaceExpectation{
	domain.InterfaceFIP:             {outcome: "alarm_signal_received", responseSeconds: 5},
	domain.InterfaceEWS:             {outcome: "warning_broadcast", responseSeconds: 10},
	domain.InterfaceBMS:             {outcome: "status_point_updated", responseSeconds: 15},
	domain.InterfaceLiftSupervisory: {outcome: "lift_recall_initiated", responseSeconds: 30},
}

// interfaceArchetype expands interface tests: one per
// (stair, interface type, equipment location). Annual cycles cover all
// four interface types; six-monthly cycles keep the two highest-priority
// types only.
type interfaceArchetype struct{}

func (interfaceArchetype) ID() string            { return "interface_test" }
func (interfaceArchetype) Kind() MeasurementKind { return KindInterfaceTest }

func (interfaceArchetype) AppliesTo(freq Frequency) bool {
	return freq == FrequencyAnnual || freq == FrequencySixMonthly
}

func (interfaceArchetype) RequiredBaselineKinds(Frequency) []BaselineKind {
	return []BaselineKind{domain.BaselineStairs, domain.BaselineEquipment}
}

func (interfaceArchetype) Cardinality(counts BaselineCounts, freq Frequency) int {
	total := 0
	for _, ifType := range interfaceTypesFor(freq) {
		total += counts.Equipment[ifType]
	}
	return total
}

func (interfaceArchetype) Expand(snapshot BaselineSnapshot, freq Frequency) ([]TestContext, error) {
	types := interfaceTypesFor(freq)
	if len(types) == 0 {
		return nil, nil
	}
	var out []TestContext
	for _, stair := range snapshot.StairsSorted() {
		for _, ifType := range types {
			expect := interfaceExpectations[ifType]
			for _, eq := range snapshot.EquipmentOf(stair.ID, ifType) {
				out = append(out, domain.InterfaceContext{
					StairID:                 stair.ID,
					EquipmentID:             eq.ID,
					Interface:               ifType,
					Location:                eq.Location,
					EquipmentOrdinal:        eq.Ordinal,
					ExpectedOutcome:         expect.outcome,
					ExpectedResponseSeconds: expect.responseSeconds,
				})
			}
		}
	}
	return out, nil
}

func interfaceTypesFor(freq Frequency) []domain.InterfaceType {
	switch freq {
	case FrequencyAnnual:
		return domain.InterfaceTypes()
	case FrequencySixMonthly:
		return domain.HighPriorityInterfaceTypes()
	default:
		return nil
	}
}
