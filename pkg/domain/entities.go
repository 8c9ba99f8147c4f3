// Package domain defines the core entities, value types, and rule
// primitives used by staircore: building baselines, measurement
// archetype contexts, instance templates, live test instances, and
// severity-classified fault records.
package domain

import (
	"sort"
	"time"
)

// Frequency identifies a recurring AS1851 test cycle.
type Frequency string

// Supported test frequencies. Six-monthly selections are a deterministic
// subset of the annual set.
const (
	FrequencyMonthly    Frequency = "monthly"
	FrequencySixMonthly Frequency = "six_monthly"
	FrequencyAnnual     Frequency = "annual"
)

// Frequencies lists the supported cycles in ascending coverage order.
func Frequencies() []Frequency {
	return []Frequency{FrequencyMonthly, FrequencySixMonthly, FrequencyAnnual}
}

// MeasurementKind identifies one of the five measurement archetype families.
type MeasurementKind string

// Measurement kinds covered by the archetype library.
const (
	KindPressureDifferential MeasurementKind = "pressure_differential"
	KindAirVelocity          MeasurementKind = "air_velocity"
	KindDoorOpeningForce     MeasurementKind = "door_opening_force"
	KindCauseEffect          MeasurementKind = "cause_effect"
	KindInterfaceTest        MeasurementKind = "interface_test"
)

// DoorConfig is the door configuration axis for pressure tests.
type DoorConfig string

// Door configurations probed during pressure-differential testing.
const (
	// DoorConfigAllClosed has every stair door closed.
	DoorConfigAllClosed DoorConfig = "all_closed"
	// DoorConfigEvacOpen has the nominated evacuation doors held open.
	DoorConfigEvacOpen DoorConfig = "evac_open"
	// DoorConfigVisual marks the monthly visual-only check, which has no
	// configuration axis and is never numerically validated.
	DoorConfigVisual DoorConfig = "visual"
)

// InterfaceType identifies an external system interfaced to the
// pressurization control equipment. Declaration order is priority order:
// six-monthly cycles keep only the two highest-priority types.
type InterfaceType string

// Interface types exercised by the interface-test archetype.
const (
	InterfaceFIP             InterfaceType = "fip"
	InterfaceEWS             InterfaceType = "ews"
	InterfaceBMS             InterfaceType = "bms"
	InterfaceLiftSupervisory InterfaceType = "lift_supervisory"
)

// InterfaceTypes returns all interface types in priority order.
func InterfaceTypes() []InterfaceType {
	return []InterfaceType{InterfaceFIP, InterfaceEWS, InterfaceBMS, InterfaceLiftSupervisory}
}

// HighPriorityInterfaceTypes returns the subset retained on six-monthly cycles.
func HighPriorityInterfaceTypes() []InterfaceType {
	return []InterfaceType{InterfaceFIP, InterfaceEWS}
}

// VelocityScenario identifies the fan/door scenario under which an air
// velocity baseline or measurement was taken.
type VelocityScenario string

// ScenarioEvacDoorsOpenFanMax is the fixed worst-case scenario used for
// annual air velocity testing.
const ScenarioEvacDoorsOpenFanMax VelocityScenario = "evac_doors_open_fan_max"

// BaselineKind names a category of baseline data an archetype depends on.
type BaselineKind string

// Baseline record categories referenced by archetype requirements.
const (
	BaselineStairs     BaselineKind = "stairs"
	BaselineFloors     BaselineKind = "floors"
	BaselineDoors      BaselineKind = "doors"
	BaselineDoorways   BaselineKind = "doorways"
	BaselineZones      BaselineKind = "zones"
	BaselineEquipment  BaselineKind = "control_equipment"
	BaselinePressures  BaselineKind = "baseline_pressures"
	BaselineVelocities BaselineKind = "baseline_velocities"
	BaselineForces     BaselineKind = "baseline_door_forces"
)

// Base contains common fields for records owned by the staircore store.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stair is a pressurized stair shaft within a building.
type Stair struct {
	ID           string `json:"id"`
	BuildingID   string `json:"building_id"`
	Name         string `json:"name"`
	Orientation  string `json:"orientation"`
	LowestLevel  int    `json:"lowest_level"`
	HighestLevel int    `json:"highest_level"`
}

// Floor is a level served by a stair. Ordinal gives the numeric order used
// for deterministic expansion and session sequencing.
type Floor struct {
	ID      string `json:"id"`
	StairID string `json:"stair_id"`
	Level   string `json:"level"`
	Ordinal int    `json:"ordinal"`
}

// Door is a stair door whose opening force is tested under pressurization.
type Door struct {
	ID         string  `json:"id"`
	StairID    string  `json:"stair_id"`
	FloorID    string  `json:"floor_id"`
	WidthMM    int     `json:"width_mm"`
	HeightMM   int     `json:"height_mm"`
	LeafMassKG float64 `json:"leaf_mass_kg"`
}

// Doorway is an open doorway through which air velocity is measured.
type Doorway struct {
	ID       string `json:"id"`
	StairID  string `json:"stair_id"`
	FloorID  string `json:"floor_id"`
	WidthMM  int    `json:"width_mm"`
	HeightMM int    `json:"height_mm"`
}

// Zone is a smoke detection control zone associated with a stair. FloorIDs
// are ordered bottom-up; Ordinal positions the zone within its stair for
// six-monthly rotation.
type Zone struct {
	ID       string   `json:"id"`
	StairID  string   `json:"stair_id"`
	Name     string   `json:"name"`
	Ordinal  int      `json:"ordinal"`
	FloorIDs []string `json:"floor_ids"`
}

// ControlEquipment is an interfaced control device (panel, warning system,
// BMS point, lift supervisory relay) relevant to interface testing.
type ControlEquipment struct {
	ID            string        `json:"id"`
	StairID       string        `json:"stair_id"`
	ZoneID        *string       `json:"zone_id,omitempty"`
	InterfaceType InterfaceType `json:"interface_type"`
	Location      string        `json:"location"`
	Ordinal       int           `json:"ordinal"`
}

// BaselinePressure is the as-commissioned pressure differential for a
// (stair, floor, door configuration) combination.
type BaselinePressure struct {
	StairID    string     `json:"stair_id"`
	FloorID    string     `json:"floor_id"`
	Config     DoorConfig `json:"config"`
	ValuePa    float64    `json:"value_pa"`
	MeasuredAt time.Time  `json:"measured_at"`
}

// BaselineVelocity is the as-commissioned air velocity through a doorway
// under a given scenario. GridMS optionally retains the commissioning
// 9-point traverse.
type BaselineVelocity struct {
	StairID    string           `json:"stair_id"`
	DoorwayID  string           `json:"doorway_id"`
	Scenario   VelocityScenario `json:"scenario"`
	ValueMS    float64          `json:"value_ms"`
	GridMS     []float64        `json:"grid_ms,omitempty"`
	MeasuredAt time.Time        `json:"measured_at"`
}

// BaselineDoorForce is the as-commissioned door opening force for a stair
// door, distinguished by pressurization state.
type BaselineDoorForce struct {
	StairID     string    `json:"stair_id"`
	DoorID      string    `json:"door_id"`
	Pressurized bool      `json:"pressurized"`
	ValueN      float64   `json:"value_n"`
	MeasuredAt  time.Time `json:"measured_at"`
}

// BaselineSnapshot is an immutable structural and measurement description
// of a building, captured once per generation call. Expansion determinism
// depends on the snapshot never mutating after capture.
type BaselineSnapshot struct {
	BuildingID string              `json:"building_id"`
	Stairs     []Stair             `json:"stairs"`
	Floors     []Floor             `json:"floors"`
	Doors      []Door              `json:"doors"`
	Doorways   []Doorway           `json:"doorways"`
	Zones      []Zone              `json:"zones"`
	Equipment  []ControlEquipment  `json:"equipment"`
	Pressures  []BaselinePressure  `json:"pressures"`
	Velocities []BaselineVelocity  `json:"velocities"`
	Forces     []BaselineDoorForce `json:"forces"`
	CapturedAt time.Time           `json:"captured_at"`
}

// Clone returns a deep copy of the snapshot.
func (s BaselineSnapshot) Clone() BaselineSnapshot {
	cp := s
	cp.Stairs = append([]Stair(nil), s.Stairs...)
	cp.Floors = append([]Floor(nil), s.Floors...)
	cp.Doors = append([]Door(nil), s.Doors...)
	cp.Doorways = append([]Doorway(nil), s.Doorways...)
	cp.Zones = make([]Zone, len(s.Zones))
	for i, z := range s.Zones {
		z.FloorIDs = append([]string(nil), z.FloorIDs...)
		cp.Zones[i] = z
	}
	cp.Equipment = make([]ControlEquipment, len(s.Equipment))
	for i, e := range s.Equipment {
		if e.ZoneID != nil {
			id := *e.ZoneID
			e.ZoneID = &id
		}
		cp.Equipment[i] = e
	}
	cp.Pressures = append([]BaselinePressure(nil), s.Pressures...)
	cp.Velocities = make([]BaselineVelocity, len(s.Velocities))
	for i, v := range s.Velocities {
		v.GridMS = append([]float64(nil), v.GridMS...)
		cp.Velocities[i] = v
	}
	cp.Forces = append([]BaselineDoorForce(nil), s.Forces...)
	return cp
}

// BaselineCounts summarises entity counts used by cardinality formulas.
type BaselineCounts struct {
	Stairs       int
	Floors       int
	Doors        int
	Doorways     int
	Zones        int
	ZonesByStair map[string]int
	Equipment    map[InterfaceType]int
}

// Counts derives the cardinality inputs from the snapshot.
func (s BaselineSnapshot) Counts() BaselineCounts {
	counts := BaselineCounts{
		Stairs:       len(s.Stairs),
		Floors:       len(s.Floors),
		Doors:        len(s.Doors),
		Doorways:     len(s.Doorways),
		Zones:        len(s.Zones),
		ZonesByStair: make(map[string]int),
		Equipment:    make(map[InterfaceType]int),
	}
	for _, z := range s.Zones {
		counts.ZonesByStair[z.StairID]++
	}
	for _, eq := range s.Equipment {
		counts.Equipment[eq.InterfaceType]++
	}
	return counts
}

// StairsSorted returns the stairs ordered by name then ID.
func (s BaselineSnapshot) StairsSorted() []Stair {
	out := append([]Stair(nil), s.Stairs...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FloorsOf returns the floors of a stair ordered by ordinal.
func (s BaselineSnapshot) FloorsOf(stairID string) []Floor {
	var out []Floor
	for _, f := range s.Floors {
		if f.StairID == stairID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ordinal != out[j].Ordinal {
			return out[i].Ordinal < out[j].Ordinal
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DoorsOf returns the doors of a stair ordered by floor ordinal then ID.
func (s BaselineSnapshot) DoorsOf(stairID string) []Door {
	ordinals := s.floorOrdinals()
	var out []Door
	for _, d := range s.Doors {
		if d.StairID == stairID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := ordinals[out[i].FloorID], ordinals[out[j].FloorID]
		if oi != oj {
			return oi < oj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DoorwaysOf returns the doorways of a stair ordered by floor ordinal then ID.
func (s BaselineSnapshot) DoorwaysOf(stairID string) []Doorway {
	ordinals := s.floorOrdinals()
	var out []Doorway
	for _, d := range s.Doorways {
		if d.StairID == stairID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := ordinals[out[i].FloorID], ordinals[out[j].FloorID]
		if oi != oj {
			return oi < oj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ZonesOf returns the zones of a stair ordered by ordinal.
func (s BaselineSnapshot) ZonesOf(stairID string) []Zone {
	var out []Zone
	for _, z := range s.Zones {
		if z.StairID == stairID {
			out = append(out, z)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ordinal != out[j].Ordinal {
			return out[i].Ordinal < out[j].Ordinal
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// EquipmentOf returns a stair's equipment of the given interface type,
// ordered by ordinal then ID.
func (s BaselineSnapshot) EquipmentOf(stairID string, ifType InterfaceType) []ControlEquipment {
	var out []ControlEquipment
	for _, eq := range s.Equipment {
		if eq.StairID == stairID && eq.InterfaceType == ifType {
			out = append(out, eq)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ordinal != out[j].Ordinal {
			return out[i].Ordinal < out[j].Ordinal
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FindFloor resolves a floor by ID.
func (s BaselineSnapshot) FindFloor(id string) (Floor, bool) {
	for _, f := range s.Floors {
		if f.ID == id {
			return f, true
		}
	}
	return Floor{}, false
}

// FindStair resolves a stair by ID.
func (s BaselineSnapshot) FindStair(id string) (Stair, bool) {
	for _, st := range s.Stairs {
		if st.ID == id {
			return st, true
		}
	}
	return Stair{}, false
}

// PressureFor resolves the commissioning pressure for an exact
// (stair, floor, configuration) combination.
func (s BaselineSnapshot) PressureFor(stairID, floorID string, config DoorConfig) (BaselinePressure, bool) {
	for _, p := range s.Pressures {
		if p.StairID == stairID && p.FloorID == floorID && p.Config == config {
			return p, true
		}
	}
	return BaselinePressure{}, false
}

// VelocityFor resolves the commissioning velocity for a doorway under a scenario.
func (s BaselineSnapshot) VelocityFor(stairID, doorwayID string, scenario VelocityScenario) (BaselineVelocity, bool) {
	for _, v := range s.Velocities {
		if v.StairID == stairID && v.DoorwayID == doorwayID && v.Scenario == scenario {
			return v, true
		}
	}
	return BaselineVelocity{}, false
}

// ForceFor resolves the commissioning opening force for a door.
func (s BaselineSnapshot) ForceFor(stairID, doorID string, pressurized bool) (BaselineDoorForce, bool) {
	for _, f := range s.Forces {
		if f.StairID == stairID && f.DoorID == doorID && f.Pressurized == pressurized {
			return f, true
		}
	}
	return BaselineDoorForce{}, false
}

func (s BaselineSnapshot) floorOrdinals() map[string]int {
	ordinals := make(map[string]int, len(s.Floors))
	for _, f := range s.Floors {
		ordinals[f.ID] = f.Ordinal
	}
	return ordinals
}
