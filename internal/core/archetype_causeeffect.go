package core

import "staircore/pkg/domain"

// causeEffectScenario names the alarm scenario driving the expected
// activation sequence.
const causeEffectScenario = "zone_alarm_activation"

// Expected activation delays for the standard pressurization sequence,
// relative to zone alarm, in seconds.
const (
	fanStartDelaySeconds     = 10
	reliefDamperDelaySeconds = 15
)

// causeEffectArchetype expands cause-and-effect logic tests: one per
// (stair, zone) annually; six-monthly cycles exercise a rotating window of
// zones per stair so coverage spreads across cycles without retesting the
// same zones every time.
type causeEffectArchetype struct {
	rotation RotationConfig
}

func (causeEffectArchetype) ID() string            { return "cause_effect" }
func (causeEffectArchetype) Kind() MeasurementKind { return KindCauseEffect }

func (causeEffectArchetype) AppliesTo(freq Frequency) bool {
	return freq == FrequencyAnnual || freq == FrequencySixMonthly
}

func (causeEffectArchetype) RequiredBaselineKinds(Frequency) []BaselineKind {
	return []BaselineKind{domain.BaselineStairs, domain.BaselineZones}
}

func (a causeEffectArchetype) Cardinality(counts BaselineCounts, freq Frequency) int {
	switch freq {
	case FrequencyAnnual:
		return counts.Zones
	case FrequencySixMonthly:
		total := 0
		for _, n := range counts.ZonesByStair {
			total += min(a.rotation.ZonesPerStair, n)
		}
		return total
	default:
		return 0
	}
}

func (a causeEffectArchetype) Expand(snapshot BaselineSnapshot, freq Frequency) ([]TestContext, error) {
	if freq != FrequencyAnnual && freq != FrequencySixMonthly {
		return nil, nil
	}
	var out []TestContext
	for _, stair := range snapshot.StairsSorted() {
		zones := snapshot.ZonesOf(stair.ID)
		if freq == FrequencySixMonthly {
			zones = a.rotationWindow(zones)
		}
		for _, zone := range zones {
			out = append(out, domain.CauseEffectContext{
				StairID:       stair.ID,
				ZoneID:        zone.ID,
				ZoneOrdinal:   zone.Ordinal,
				Scenario:      causeEffectScenario,
				ExpectedSteps: expectedSequence(stair, zone),
			})
		}
	}
	return out, nil
}

// rotationWindow selects the zones exercised this cycle: a window of
// ZonesPerStair zones starting at an offset that advances with CycleIndex,
// wrapping modulo the stair's zone count.
func (a causeEffectArchetype) rotationWindow(zones []domain.Zone) []domain.Zone {
	n := len(zones)
	if n == 0 {
		return nil
	}
	width := min(a.rotation.ZonesPerStair, n)
	start := (a.rotation.CycleIndex * a.rotation.ZonesPerStair) % n
	out := make([]domain.Zone, 0, width)
	for i := 0; i < width; i++ {
		out = append(out, zones[(start+i)%n])
	}
	return out
}

// expectedSequence derives the expected activation order for a zone alarm:
// the zone detector trips, the stair pressurization fan starts, then the
// relief damper opens.
func expectedSequence(stair domain.Stair, zone domain.Zone) []domain.SequenceStep {
	return []domain.SequenceStep{
		{Component: "smoke_detector:" + zone.Name, Action: "alarm", DelaySeconds: 0},
		{Component: "pressurization_fan:" + stair.Name, Action: "start", DelaySeconds: fanStartDelaySeconds},
		{Component: "relief_damper:" + stair.Name, Action: "open", DelaySeconds: reliefDamperDelaySeconds},
	}
}
