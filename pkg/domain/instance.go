package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// InstanceStatus is the lifecycle state of a test instance.
type InstanceStatus string

// Test instance lifecycle states. Completed and skipped are terminal;
// failed may retry back to pending.
const (
	StatusPending    InstanceStatus = "pending"
	StatusInProgress InstanceStatus = "in_progress"
	StatusCompleted  InstanceStatus = "completed"
	StatusSkipped    InstanceStatus = "skipped"
	StatusFailed     InstanceStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s InstanceStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusSkipped
}

// InstanceTemplate is a fully-resolved, building-specific expansion of an
// archetype for one frequency, prior to session assignment. Templates are
// upserted by natural key and never deleted by this core.
type InstanceTemplate struct {
	Base
	BuildingID     string          `json:"building_id"`
	ArchetypeID    string          `json:"archetype_id"`
	Kind           MeasurementKind `json:"kind"`
	Frequency      Frequency       `json:"frequency"`
	Context        TestContext     `json:"-"`
	BaselineValue  *float64        `json:"baseline_value,omitempty"`
	DesignSetpoint *float64        `json:"design_setpoint,omitempty"`
	Rule           Rule            `json:"rule"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// NaturalKey is the upsert identity of the template within its building.
func (t InstanceTemplate) NaturalKey() string {
	key := ""
	if t.Context != nil {
		key = t.Context.Key()
	}
	return strings.Join([]string{t.BuildingID, t.ArchetypeID, string(t.Frequency), key}, "|")
}

// Clone returns a deep copy of the template.
func (t InstanceTemplate) Clone() InstanceTemplate {
	cp := t
	if t.Context != nil {
		cp.Context = CloneContext(t.Context)
	}
	cp.BaselineValue = clonePtr(t.BaselineValue)
	cp.DesignSetpoint = clonePtr(t.DesignSetpoint)
	cp.Rule = t.Rule.Clone()
	return cp
}

type templateAlias InstanceTemplate

// MarshalJSON serialises the template with its context in the kind-tagged
// envelope form.
func (t InstanceTemplate) MarshalJSON() ([]byte, error) {
	ctx, err := MarshalContext(t.Context)
	if err != nil {
		return nil, err
	}
	type payload struct {
		templateAlias
		Context json.RawMessage `json:"context"`
	}
	return json.Marshal(payload{templateAlias: templateAlias(t), Context: ctx})
}

// UnmarshalJSON hydrates the template context from its envelope.
func (t *InstanceTemplate) UnmarshalJSON(data []byte) error {
	type payload struct {
		templateAlias
		Context json.RawMessage `json:"context"`
	}
	var aux payload
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = InstanceTemplate(aux.templateAlias)
	ctx, err := UnmarshalContext(aux.Context)
	if err != nil {
		return err
	}
	t.Context = ctx
	return nil
}

// TestInstance is a session-scoped, mutable execution of a template. All
// template values are copied, never referenced, so template regeneration
// cannot retroactively alter instances already issued to a technician.
type TestInstance struct {
	Base
	SessionID      string            `json:"session_id"`
	TemplateID     string            `json:"template_id"`
	BuildingID     string            `json:"building_id"`
	ArchetypeID    string            `json:"archetype_id"`
	Kind           MeasurementKind   `json:"kind"`
	Frequency      Frequency         `json:"frequency"`
	Context        TestContext       `json:"-"`
	BaselineValue  *float64          `json:"baseline_value,omitempty"`
	DesignSetpoint *float64          `json:"design_setpoint,omitempty"`
	Rule           Rule              `json:"rule"`
	SequenceOrder  int               `json:"sequence_order"`
	Status         InstanceStatus    `json:"status"`
	Technician     string            `json:"technician,omitempty"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	Measured       Measurement       `json:"-"`
	Verdict        *ValidationResult `json:"verdict,omitempty"`
	SkipReason     string            `json:"skip_reason,omitempty"`
	FaultIDs       []string          `json:"fault_ids,omitempty"`
}

// Clone returns a deep copy of the instance.
func (i TestInstance) Clone() TestInstance {
	cp := i
	if i.Context != nil {
		cp.Context = CloneContext(i.Context)
	}
	cp.BaselineValue = clonePtr(i.BaselineValue)
	cp.DesignSetpoint = clonePtr(i.DesignSetpoint)
	cp.Rule = i.Rule.Clone()
	cp.StartedAt = clonePtr(i.StartedAt)
	cp.CompletedAt = clonePtr(i.CompletedAt)
	if i.Measured != nil {
		cp.Measured = CloneMeasurement(i.Measured)
	}
	if i.Verdict != nil {
		v := i.Verdict.Clone()
		cp.Verdict = &v
	}
	cp.FaultIDs = append([]string(nil), i.FaultIDs...)
	return cp
}

type instanceAlias TestInstance

// MarshalJSON serialises the instance with context and measurement in
// their tagged envelope forms.
func (i TestInstance) MarshalJSON() ([]byte, error) {
	ctx, err := MarshalContext(i.Context)
	if err != nil {
		return nil, err
	}
	measured, err := MarshalMeasurement(i.Measured)
	if err != nil {
		return nil, err
	}
	type payload struct {
		instanceAlias
		Context  json.RawMessage `json:"context"`
		Measured json.RawMessage `json:"measured,omitempty"`
	}
	return json.Marshal(payload{instanceAlias: instanceAlias(i), Context: ctx, Measured: measured})
}

// UnmarshalJSON hydrates the instance context and measurement envelopes.
func (i *TestInstance) UnmarshalJSON(data []byte) error {
	type payload struct {
		instanceAlias
		Context  json.RawMessage `json:"context"`
		Measured json.RawMessage `json:"measured"`
	}
	var aux payload
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*i = TestInstance(aux.instanceAlias)
	ctx, err := UnmarshalContext(aux.Context)
	if err != nil {
		return err
	}
	i.Context = ctx
	measured, err := UnmarshalMeasurement(aux.Measured)
	if err != nil {
		return err
	}
	i.Measured = measured
	return nil
}
