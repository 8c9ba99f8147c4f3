package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TestContext is the per-archetype locational context of a template or
// instance. It is a closed sum: exactly one variant exists per measurement
// kind, so a pressure instance can never lack a door configuration and a
// cause-and-effect instance can never carry one.
type TestContext interface {
	// Kind returns the measurement kind the context belongs to.
	Kind() MeasurementKind
	// Stair returns the stair ID the context is anchored to.
	Stair() string
	// Key returns a deterministic natural-key fragment unique within
	// (building, archetype, frequency).
	Key() string
	// LocationIDs returns every baseline entity ID the context touches,
	// copied into fault records for locational traceability.
	LocationIDs() []string
	// Ordinal positions the context within its stair for session sequencing.
	Ordinal() int

	isTestContext()
}

// SequenceStep is one expected step of a cause-and-effect sequence.
type SequenceStep struct {
	Component    string  `json:"component"`
	Action       string  `json:"action"`
	DelaySeconds float64 `json:"delay_seconds"`
}

// PressureContext locates a pressure-differential test. Config is
// DoorConfigVisual for monthly visual checks.
type PressureContext struct {
	StairID      string     `json:"stair_id"`
	FloorID      string     `json:"floor_id"`
	FloorOrdinal int        `json:"floor_ordinal"`
	Config       DoorConfig `json:"config"`
}

func (c PressureContext) Kind() MeasurementKind { return KindPressureDifferential }
func (c PressureContext) Stair() string         { return c.StairID }
func (c PressureContext) Key() string {
	return strings.Join([]string{c.StairID, c.FloorID, string(c.Config)}, "/")
}
func (c PressureContext) LocationIDs() []string { return []string{c.StairID, c.FloorID} }
func (c PressureContext) Ordinal() int          { return c.FloorOrdinal }
func (c PressureContext) isTestContext()        {}

// VelocityContext locates an air-velocity test through an open doorway.
type VelocityContext struct {
	StairID      string           `json:"stair_id"`
	DoorwayID    string           `json:"doorway_id"`
	FloorOrdinal int              `json:"floor_ordinal"`
	Scenario     VelocityScenario `json:"scenario"`
}

func (c VelocityContext) Kind() MeasurementKind { return KindAirVelocity }
func (c VelocityContext) Stair() string         { return c.StairID }
func (c VelocityContext) Key() string {
	return strings.Join([]string{c.StairID, c.DoorwayID, string(c.Scenario)}, "/")
}
func (c VelocityContext) LocationIDs() []string { return []string{c.StairID, c.DoorwayID} }
func (c VelocityContext) Ordinal() int          { return c.FloorOrdinal }
func (c VelocityContext) isTestContext()        {}

// DoorForceContext locates a door-opening-force test under active
// pressurization.
type DoorForceContext struct {
	StairID      string `json:"stair_id"`
	DoorID       string `json:"door_id"`
	FloorOrdinal int    `json:"floor_ordinal"`
}

func (c DoorForceContext) Kind() MeasurementKind { return KindDoorOpeningForce }
func (c DoorForceContext) Stair() string         { return c.StairID }
func (c DoorForceContext) Key() string {
	return strings.Join([]string{c.StairID, c.DoorID, "pressurized"}, "/")
}
func (c DoorForceContext) LocationIDs() []string { return []string{c.StairID, c.DoorID} }
func (c DoorForceContext) Ordinal() int          { return c.FloorOrdinal }
func (c DoorForceContext) isTestContext()        {}

// CauseEffectContext locates a cause-and-effect logic test for a control
// zone, carrying the expected activation sequence derived from the baseline.
type CauseEffectContext struct {
	StairID       string         `json:"stair_id"`
	ZoneID        string         `json:"zone_id"`
	ZoneOrdinal   int            `json:"zone_ordinal"`
	Scenario      string         `json:"scenario"`
	ExpectedSteps []SequenceStep `json:"expected_steps"`
}

func (c CauseEffectContext) Kind() MeasurementKind { return KindCauseEffect }
func (c CauseEffectContext) Stair() string         { return c.StairID }
func (c CauseEffectContext) Key() string {
	return strings.Join([]string{c.StairID, c.ZoneID, c.Scenario}, "/")
}
func (c CauseEffectContext) LocationIDs() []string { return []string{c.StairID, c.ZoneID} }
func (c CauseEffectContext) Ordinal() int          { return c.ZoneOrdinal }
func (c CauseEffectContext) isTestContext()        {}

// InterfaceContext locates an interface test against a specific piece of
// interfaced control equipment.
type InterfaceContext struct {
	StairID                 string        `json:"stair_id"`
	EquipmentID             string        `json:"equipment_id"`
	Interface               InterfaceType `json:"interface_type"`
	Location                string        `json:"location"`
	EquipmentOrdinal        int           `json:"equipment_ordinal"`
	ExpectedOutcome         string        `json:"expected_outcome"`
	ExpectedResponseSeconds float64       `json:"expected_response_seconds"`
}

func (c InterfaceContext) Kind() MeasurementKind { return KindInterfaceTest }
func (c InterfaceContext) Stair() string         { return c.StairID }
func (c InterfaceContext) Key() string {
	return strings.Join([]string{c.StairID, string(c.Interface), c.EquipmentID}, "/")
}
func (c InterfaceContext) LocationIDs() []string { return []string{c.StairID, c.EquipmentID} }
func (c InterfaceContext) Ordinal() int          { return c.EquipmentOrdinal }
func (c InterfaceContext) isTestContext()        {}

// CloneContext returns a deep copy of a context value.
func CloneContext(c TestContext) TestContext {
	switch v := c.(type) {
	case PressureContext:
		return v
	case VelocityContext:
		return v
	case DoorForceContext:
		return v
	case CauseEffectContext:
		v.ExpectedSteps = append([]SequenceStep(nil), v.ExpectedSteps...)
		return v
	case InterfaceContext:
		return v
	default:
		return c
	}
}

type contextEnvelope struct {
	Kind    MeasurementKind `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalContext serialises a context into its kind-tagged envelope.
func MarshalContext(c TestContext) ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(contextEnvelope{Kind: c.Kind(), Payload: payload})
}

// UnmarshalContext decodes a kind-tagged context envelope. The switch is
// exhaustive over the variant set; an unknown kind is an error, never a
// silently dropped context.
func UnmarshalContext(data []byte) (TestContext, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var env contextEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode context envelope: %w", err)
	}
	switch env.Kind {
	case KindPressureDifferential:
		var c PressureContext
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return nil, fmt.Errorf("decode pressure context: %w", err)
		}
		return c, nil
	case KindAirVelocity:
		var c VelocityContext
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return nil, fmt.Errorf("decode velocity context: %w", err)
		}
		return c, nil
	case KindDoorOpeningForce:
		var c DoorForceContext
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return nil, fmt.Errorf("decode door force context: %w", err)
		}
		return c, nil
	case KindCauseEffect:
		var c CauseEffectContext
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return nil, fmt.Errorf("decode cause-effect context: %w", err)
		}
		return c, nil
	case KindInterfaceTest:
		var c InterfaceContext
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return nil, fmt.Errorf("decode interface context: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown context kind %q", env.Kind)
	}
}
