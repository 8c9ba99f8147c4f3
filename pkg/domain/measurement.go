package domain

import (
	"encoding/json"
	"fmt"
)

// MeasurementType discriminates the structural shape of a submitted result.
type MeasurementType string

// Measurement shapes accepted by the execution state machine.
const (
	MeasurementNumeric   MeasurementType = "numeric"
	MeasurementSequence  MeasurementType = "sequence"
	MeasurementInterface MeasurementType = "interface"
	MeasurementVisual    MeasurementType = "visual"
)

// Measurement is the value a technician submits against a test instance.
// Like TestContext it is a closed sum; the validation engine dispatches
// exhaustively over its variants.
type Measurement interface {
	// Type returns the structural shape of the measurement.
	Type() MeasurementType

	isMeasurement()
}

// NumericReading carries a single measured value for pressure, velocity,
// or door force tests. GridMS holds the raw 9-point traverse for air
// velocity; the stored value is then the grid mean.
type NumericReading struct {
	Value  float64   `json:"value"`
	Unit   string    `json:"unit"`
	GridMS []float64 `json:"grid_ms,omitempty"`
}

func (NumericReading) Type() MeasurementType { return MeasurementNumeric }
func (NumericReading) isMeasurement()        {}

// StepResult is one observed step of a cause-and-effect sequence.
// Responded false means the component never actuated.
type StepResult struct {
	Component    string  `json:"component"`
	Action       string  `json:"action"`
	DelaySeconds float64 `json:"delay_seconds"`
	Responded    bool    `json:"responded"`
}

// SequenceResult carries the observed step sequence of a cause-and-effect
// test, ordered to match the expected sequence.
type SequenceResult struct {
	Steps []StepResult `json:"steps"`
}

func (SequenceResult) Type() MeasurementType { return MeasurementSequence }
func (SequenceResult) isMeasurement()        {}

// InterfaceResult carries the observed qualitative outcome of an interface
// test and the time the interfaced system took to respond.
type InterfaceResult struct {
	Outcome         string  `json:"outcome"`
	Responded       bool    `json:"responded"`
	ResponseSeconds float64 `json:"response_seconds"`
}

func (InterfaceResult) Type() MeasurementType { return MeasurementInterface }
func (InterfaceResult) isMeasurement()        {}

// VisualCheck carries the outcome of a monthly visual-only pressure check.
// Satisfactory false records an adverse observation.
type VisualCheck struct {
	Satisfactory bool   `json:"satisfactory"`
	Notes        string `json:"notes,omitempty"`
}

func (VisualCheck) Type() MeasurementType { return MeasurementVisual }
func (VisualCheck) isMeasurement()        {}

// CloneMeasurement returns a deep copy of a measurement value.
func CloneMeasurement(m Measurement) Measurement {
	switch v := m.(type) {
	case NumericReading:
		v.GridMS = append([]float64(nil), v.GridMS...)
		return v
	case SequenceResult:
		v.Steps = append([]StepResult(nil), v.Steps...)
		return v
	case InterfaceResult:
		return v
	case VisualCheck:
		return v
	default:
		return m
	}
}

type measurementEnvelope struct {
	Type    MeasurementType `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalMeasurement serialises a measurement into its type-tagged envelope.
func MarshalMeasurement(m Measurement) ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(measurementEnvelope{Type: m.Type(), Payload: payload})
}

// UnmarshalMeasurement decodes a type-tagged measurement envelope.
func UnmarshalMeasurement(data []byte) (Measurement, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var env measurementEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode measurement envelope: %w", err)
	}
	switch env.Type {
	case MeasurementNumeric:
		var m NumericReading
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("decode numeric reading: %w", err)
		}
		return m, nil
	case MeasurementSequence:
		var m SequenceResult
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("decode sequence result: %w", err)
		}
		return m, nil
	case MeasurementInterface:
		var m InterfaceResult
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("decode interface result: %w", err)
		}
		return m, nil
	case MeasurementVisual:
		var m VisualCheck
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("decode visual check: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown measurement type %q", env.Type)
	}
}
