package domain

import (
	"fmt"
	"sort"
	"time"
)

// Rule is a versioned engineering threshold definition for one measurement
// kind. Updates insert a new version with a fresh effective window; an
// existing rule is never mutated, so a validation performed against rule
// version N stays reproducible forever.
type Rule struct {
	ID               string             `json:"id"`
	Kind             MeasurementKind    `json:"kind"`
	Version          int                `json:"version"`
	MinThreshold     *float64           `json:"min_threshold,omitempty"`
	MaxThreshold     *float64           `json:"max_threshold,omitempty"`
	Unit             string             `json:"unit"`
	SeverityIfFailed FaultSeverity      `json:"severity_if_failed"`
	Tier             ClassificationTier `json:"tier"`
	EffectiveFrom    time.Time          `json:"effective_from"`
	EffectiveUntil   *time.Time         `json:"effective_until,omitempty"`
	Reference        string             `json:"reference"`
}

// IsZero reports whether the rule is the zero value (no snapshot attached).
func (r Rule) IsZero() bool { return r.ID == "" }

// Covers reports whether the rule's effective window contains at.
func (r Rule) Covers(at time.Time) bool {
	if at.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveUntil == nil || at.Before(*r.EffectiveUntil)
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	cp := r
	cp.MinThreshold = clonePtr(r.MinThreshold)
	cp.MaxThreshold = clonePtr(r.MaxThreshold)
	cp.EffectiveUntil = clonePtr(r.EffectiveUntil)
	return cp
}

// RuleTable is a process-wide immutable lookup of versioned rules. It is
// built once at startup and never mutated; there is deliberately no update
// API.
type RuleTable struct {
	byKind map[MeasurementKind][]Rule
}

// NewRuleTable builds a table from the given rules, ordering versions by
// effective date per kind.
func NewRuleTable(rules ...Rule) (*RuleTable, error) {
	byKind := make(map[MeasurementKind][]Rule)
	seen := make(map[string]struct{})
	for _, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule for kind %s has empty id", r.Kind)
		}
		key := fmt.Sprintf("%s@%d", r.ID, r.Version)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate rule %s version %d", r.ID, r.Version)
		}
		seen[key] = struct{}{}
		byKind[r.Kind] = append(byKind[r.Kind], r.Clone())
	}
	for kind := range byKind {
		rs := byKind[kind]
		sort.Slice(rs, func(i, j int) bool { return rs[i].EffectiveFrom.Before(rs[j].EffectiveFrom) })
	}
	return &RuleTable{byKind: byKind}, nil
}

// Active returns the rule in force for the kind at the given time. A kind
// with no registered rules is UnknownRuleError; a kind whose windows do not
// cover the time is RuleExpiredError. No default thresholds are ever
// assumed.
func (t *RuleTable) Active(kind MeasurementKind, at time.Time) (Rule, error) {
	rules, ok := t.byKind[kind]
	if !ok || len(rules) == 0 {
		return Rule{}, UnknownRuleError{Kind: kind}
	}
	// Later effective windows win when they overlap.
	for i := len(rules) - 1; i >= 0; i-- {
		if rules[i].Covers(at) {
			return rules[i].Clone(), nil
		}
	}
	return Rule{}, RuleExpiredError{Kind: kind, At: at}
}

// Version returns a specific historical rule version for re-validation.
func (t *RuleTable) Version(kind MeasurementKind, version int) (Rule, error) {
	rules, ok := t.byKind[kind]
	if !ok || len(rules) == 0 {
		return Rule{}, UnknownRuleError{Kind: kind}
	}
	for _, r := range rules {
		if r.Version == version {
			return r.Clone(), nil
		}
	}
	return Rule{}, UnknownRuleError{Kind: kind, Version: version}
}

// Kinds returns the measurement kinds with registered rules, sorted.
func (t *RuleTable) Kinds() []MeasurementKind {
	out := make([]MeasurementKind, 0, len(t.byKind))
	for kind := range t.byKind {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func ptr[T any](v T) *T { return &v }

// DefaultRuleTable returns the built-in AS1851-1:2012 threshold set.
// Effective from the 2012 edition adoption date with open-ended windows.
func DefaultRuleTable() *RuleTable {
	from := time.Date(2012, time.September, 1, 0, 0, 0, 0, time.UTC)
	table, err := NewRuleTable(
		Rule{
			ID:               "as1851-13.2-pressure",
			Kind:             KindPressureDifferential,
			Version:          1,
			MinThreshold:     ptr(20.0),
			MaxThreshold:     ptr(80.0),
			Unit:             "Pa",
			SeverityIfFailed: SeverityCritical,
			Tier:             Tier1A,
			EffectiveFrom:    from,
			Reference:        "AS1851-1 Table 13.4.3 item 2",
		},
		Rule{
			ID:               "as1851-13.2-velocity",
			Kind:             KindAirVelocity,
			Version:          1,
			MinThreshold:     ptr(1.0),
			Unit:             "m/s",
			SeverityIfFailed: SeverityHigh,
			Tier:             Tier1B,
			EffectiveFrom:    from,
			Reference:        "AS1851-1 Table 13.4.3 item 4",
		},
		Rule{
			ID:               "as1851-13.2-door-force",
			Kind:             KindDoorOpeningForce,
			Version:          1,
			MaxThreshold:     ptr(110.0),
			Unit:             "N",
			SeverityIfFailed: SeverityCritical,
			Tier:             Tier1A,
			EffectiveFrom:    from,
			Reference:        "AS1851-1 Table 13.4.3 item 5",
		},
		Rule{
			ID:               "as1851-13.2-cause-effect",
			Kind:             KindCauseEffect,
			Version:          1,
			Unit:             "s",
			SeverityIfFailed: SeverityCritical,
			Tier:             Tier1A,
			EffectiveFrom:    from,
			Reference:        "AS1851-1 Table 13.4.3 item 7",
		},
		Rule{
			ID:               "as1851-13.2-interface",
			Kind:             KindInterfaceTest,
			Version:          1,
			Unit:             "s",
			SeverityIfFailed: SeverityCritical,
			Tier:             Tier1A,
			EffectiveFrom:    from,
			Reference:        "AS1851-1 Table 13.4.3 item 8",
		},
	)
	if err != nil {
		panic(err)
	}
	return table
}
