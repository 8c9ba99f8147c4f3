package domain

import "time"

// FaultSeverity grades a non-compliance finding.
type FaultSeverity string

// Fault severities from least to most severe.
const (
	SeverityLow      FaultSeverity = "low"
	SeverityMedium   FaultSeverity = "medium"
	SeverityHigh     FaultSeverity = "high"
	SeverityCritical FaultSeverity = "critical"
)

// ClassificationTier is the AS1851 defect classification associated with a
// fault severity.
type ClassificationTier string

// Defect classification tiers.
const (
	Tier1A ClassificationTier = "1A"
	Tier1B ClassificationTier = "1B"
	Tier2  ClassificationTier = "2"
	Tier3  ClassificationTier = "3"
)

// Tier maps a severity onto its classification tier.
func (s FaultSeverity) Tier() ClassificationTier {
	switch s {
	case SeverityCritical:
		return Tier1A
	case SeverityHigh:
		return Tier1B
	case SeverityMedium:
		return Tier2
	default:
		return Tier3
	}
}

// FaultStatus tracks the remediation workflow state of a fault. The status
// field is the only mutable part of a fault and is owned by an external
// rectification workflow, not by this core.
type FaultStatus string

// Fault workflow states.
const (
	FaultOpen         FaultStatus = "open"
	FaultAcknowledged FaultStatus = "acknowledged"
	FaultResolved     FaultStatus = "resolved"
)

// Fault is a severity-classified non-compliance record. Every field except
// Status is immutable once raised; locational and rule context is copied by
// value so later baseline or rule changes never alter a recorded fault's
// meaning.
type Fault struct {
	Base
	InstanceID    string             `json:"instance_id"`
	SessionID     string             `json:"session_id"`
	BuildingID    string             `json:"building_id"`
	Kind          MeasurementKind    `json:"kind"`
	LocationIDs   []string           `json:"location_ids"`
	StepComponent *string            `json:"step_component,omitempty"`
	MeasuredValue *float64           `json:"measured_value,omitempty"`
	BaselineValue *float64           `json:"baseline_value,omitempty"`
	MinThreshold  *float64           `json:"min_threshold,omitempty"`
	MaxThreshold  *float64           `json:"max_threshold,omitempty"`
	Unit          string             `json:"unit,omitempty"`
	DeviationPct  *float64           `json:"deviation_pct,omitempty"`
	Severity      FaultSeverity      `json:"severity"`
	Tier          ClassificationTier `json:"tier"`
	RuleID        string             `json:"rule_id"`
	RuleVersion   int                `json:"rule_version"`
	Message       string             `json:"message"`
	RaisedAt      time.Time          `json:"raised_at"`
	Status        FaultStatus        `json:"status"`
}

// Clone returns a deep copy of the fault.
func (f Fault) Clone() Fault {
	cp := f
	cp.LocationIDs = append([]string(nil), f.LocationIDs...)
	cp.StepComponent = clonePtr(f.StepComponent)
	cp.MeasuredValue = clonePtr(f.MeasuredValue)
	cp.BaselineValue = clonePtr(f.BaselineValue)
	cp.MinThreshold = clonePtr(f.MinThreshold)
	cp.MaxThreshold = clonePtr(f.MaxThreshold)
	cp.DeviationPct = clonePtr(f.DeviationPct)
	return cp
}

// ValidationResult is the pure outcome of validating a submitted
// measurement. Non-compliance is a normal result carrying fault values;
// persistence of the faults is the caller's responsibility.
type ValidationResult struct {
	Compliant    bool      `json:"compliant"`
	DeviationPct *float64  `json:"deviation_pct,omitempty"`
	MeanValue    *float64  `json:"mean_value,omitempty"`
	Faults       []Fault   `json:"faults,omitempty"`
	RuleID       string    `json:"rule_id"`
	RuleVersion  int       `json:"rule_version"`
	ValidatedAt  time.Time `json:"validated_at"`
}

// Clone returns a deep copy of the validation result.
func (r ValidationResult) Clone() ValidationResult {
	cp := r
	cp.DeviationPct = clonePtr(r.DeviationPct)
	cp.MeanValue = clonePtr(r.MeanValue)
	cp.Faults = make([]Fault, len(r.Faults))
	for i, f := range r.Faults {
		cp.Faults[i] = f.Clone()
	}
	return cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
