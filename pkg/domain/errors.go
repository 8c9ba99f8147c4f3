package domain

import (
	"fmt"
	"strings"
	"time"
)

// MissingBaseline identifies one (archetype, context) combination whose
// required baseline data is absent.
type MissingBaseline struct {
	ArchetypeID string `json:"archetype_id"`
	ContextKey  string `json:"context_key,omitempty"`
	Reason      string `json:"reason"`
}

// BaselineIncompleteError is returned by the completeness gate when a
// building's baseline cannot support generation for a frequency. It carries
// the exhaustive missing list; generation never partially proceeds.
type BaselineIncompleteError struct {
	BuildingID string
	Frequency  Frequency
	Missing    []MissingBaseline
}

func (e BaselineIncompleteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "baseline for building %s incomplete for %s generation: %d requirement(s) missing", e.BuildingID, e.Frequency, len(e.Missing))
	for i, m := range e.Missing {
		if i >= 5 {
			fmt.Fprintf(&b, "; and %d more", len(e.Missing)-i)
			break
		}
		fmt.Fprintf(&b, "; %s", m.describe())
	}
	return b.String()
}

func (m MissingBaseline) describe() string {
	if m.ContextKey == "" {
		return fmt.Sprintf("%s: %s", m.ArchetypeID, m.Reason)
	}
	return fmt.Sprintf("%s[%s]: %s", m.ArchetypeID, m.ContextKey, m.Reason)
}

// CardinalityMismatchError reports that an archetype expansion produced a
// different instance count than its cardinality formula predicts. It marks
// a defect in an archetype definition, not bad user input, and always
// aborts generation before any write.
type CardinalityMismatchError struct {
	ArchetypeID string
	Frequency   Frequency
	Expected    int
	Actual      int
}

func (e CardinalityMismatchError) Error() string {
	return fmt.Sprintf("archetype %s/%s expansion produced %d contexts, cardinality formula predicts %d", e.ArchetypeID, e.Frequency, e.Actual, e.Expected)
}

// UnknownRuleError reports a measurement kind (or explicit version) with no
// registered rule.
type UnknownRuleError struct {
	Kind    MeasurementKind
	Version int
}

func (e UnknownRuleError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("no rule registered for %s version %d", e.Kind, e.Version)
	}
	return fmt.Sprintf("no rule registered for measurement kind %s", e.Kind)
}

// RuleExpiredError reports that no rule window for the kind covers the
// requested time.
type RuleExpiredError struct {
	Kind MeasurementKind
	At   time.Time
}

func (e RuleExpiredError) Error() string {
	return fmt.Sprintf("no rule for %s in force at %s", e.Kind, e.At.Format(time.RFC3339))
}

// InvalidTransitionError reports a state-machine guard violation. The
// transition is rejected locally and never auto-corrected.
type InvalidTransitionError struct {
	InstanceID string
	From       InstanceStatus
	To         InstanceStatus
	Reason     string
}

func (e InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("instance %s: invalid transition %s -> %s", e.InstanceID, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// NotFoundError reports a missing store record.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
