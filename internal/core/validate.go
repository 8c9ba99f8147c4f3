package core

import (
	"fmt"
	"time"

	"staircore/pkg/domain"
)

// Cause-and-effect delay deviation bands in seconds. A band boundary is
// inclusive of the less severe classification.
const (
	ceCompliantBand = 2.0
	ceLowBand       = 5.0
	ceHighBand      = 10.0
)

// interfaceResponseToleranceSeconds is the permitted response-time drift
// for an otherwise correct interface outcome.
const interfaceResponseToleranceSeconds = 2.0

// Validate applies an instance's rule snapshot to a submitted measurement
// and returns the pure validation outcome. Non-compliance is a normal
// result carrying fault values; an error means the call itself was invalid
// (missing rule snapshot or measurement shape mismatch), never a failed
// threshold.
func Validate(instance TestInstance, measurement Measurement, now time.Time) (ValidationResult, error) {
	return ValidateWithRule(instance, measurement, instance.Rule, now)
}

// ValidateWithRule validates against an explicit rule version, used for
// historical re-validation where the caller supplies the rule in force at
// the original test date.
func ValidateWithRule(instance TestInstance, measurement Measurement, rule Rule, now time.Time) (ValidationResult, error) {
	if rule.IsZero() {
		return ValidationResult{}, domain.UnknownRuleError{Kind: instance.Kind}
	}
	if measurement == nil {
		return ValidationResult{}, fmt.Errorf("instance %s: no measurement submitted", instance.ID)
	}
	if got, want := measurement.Type(), expectedMeasurementType(instance); got != want {
		return ValidationResult{}, fmt.Errorf("instance %s: measurement shape %s does not match expected %s", instance.ID, got, want)
	}

	result := ValidationResult{
		Compliant:   true,
		RuleID:      rule.ID,
		RuleVersion: rule.Version,
		ValidatedAt: now,
	}

	switch m := measurement.(type) {
	case domain.VisualCheck:
		validateVisual(instance, rule, m, &result)
	case domain.NumericReading:
		validateNumeric(instance, rule, m, &result)
	case domain.SequenceResult:
		validateSequence(instance, rule, m, &result)
	case domain.InterfaceResult:
		validateInterface(instance, rule, m, &result)
	default:
		return ValidationResult{}, fmt.Errorf("instance %s: unsupported measurement type %T", instance.ID, measurement)
	}
	return result, nil
}

// validateNumeric handles pressure, velocity, and door-force readings.
// Velocity readings carrying a 9-point grid validate the grid mean; raw
// points stay on the instance for audit.
func validateNumeric(instance TestInstance, rule Rule, m domain.NumericReading, result *ValidationResult) {
	value := m.Value
	if instance.Kind == KindAirVelocity && len(m.GridMS) > 0 {
		value = gridMean(m.GridMS)
		result.MeanValue = ptrFloat(value)
	}

	result.DeviationPct = deviationPct(value, instance.BaselineValue)

	belowMin := rule.MinThreshold != nil && value < *rule.MinThreshold
	aboveMax := rule.MaxThreshold != nil && value > *rule.MaxThreshold
	if !belowMin && !aboveMax {
		return
	}

	severity := rule.SeverityIfFailed
	tier := rule.Tier
	if instance.Kind == KindDoorOpeningForce {
		// The egress-force ceiling is always the highest severity.
		severity = domain.SeverityCritical
		tier = domain.Tier1A
	}

	var message string
	switch {
	case belowMin:
		message = fmt.Sprintf("measured %.2f %s below minimum %.2f %s", value, rule.Unit, *rule.MinThreshold, rule.Unit)
	default:
		message = fmt.Sprintf("measured %.2f %s above maximum %.2f %s", value, rule.Unit, *rule.MaxThreshold, rule.Unit)
	}

	fault := newFault(instance, rule, severity, tier, message)
	fault.MeasuredValue = ptrFloat(value)
	fault.DeviationPct = result.DeviationPct
	result.Compliant = false
	result.Faults = append(result.Faults, fault)
}

// validateVisual handles the monthly visual-only pressure check. It never
// computes deviations; an adverse observation raises one fault at the
// rule's severity.
func validateVisual(instance TestInstance, rule Rule, m domain.VisualCheck, result *ValidationResult) {
	if m.Satisfactory {
		return
	}
	message := "visual check unsatisfactory"
	if m.Notes != "" {
		message += ": " + m.Notes
	}
	result.Compliant = false
	result.Faults = append(result.Faults, newFault(instance, rule, rule.SeverityIfFailed, rule.Tier, message))
}

// validateSequence compares the expected cause-and-effect activation
// sequence to the observed one, step by step in order. A silent component
// is always critical; a responding component is classified by the absolute
// delay deviation band. One fault is emitted per non-compliant step and
// the instance is compliant only when every step is.
func validateSequence(instance TestInstance, rule Rule, m domain.SequenceResult, result *ValidationResult) {
	ctx, ok := instance.Context.(domain.CauseEffectContext)
	if !ok {
		return
	}
	for i, expected := range ctx.ExpectedSteps {
		var actual *domain.StepResult
		if i < len(m.Steps) {
			actual = &m.Steps[i]
		}
		if actual == nil || !actual.Responded {
			fault := newFault(instance, rule, domain.SeverityCritical, domain.Tier1A,
				fmt.Sprintf("step %d (%s %s): no response", i+1, expected.Component, expected.Action))
			fault.StepComponent = ptrString(expected.Component)
			result.Compliant = false
			result.Faults = append(result.Faults, fault)
			continue
		}
		delta := actual.DelaySeconds - expected.DelaySeconds
		if delta < 0 {
			delta = -delta
		}
		severity, breached := sequenceBand(delta)
		if !breached {
			continue
		}
		fault := newFault(instance, rule, severity, severity.Tier(),
			fmt.Sprintf("step %d (%s %s): responded %.1fs from expected %.1fs (deviation %.1fs)",
				i+1, expected.Component, expected.Action, actual.DelaySeconds, expected.DelaySeconds, delta))
		fault.StepComponent = ptrString(expected.Component)
		fault.MeasuredValue = ptrFloat(actual.DelaySeconds)
		fault.BaselineValue = ptrFloat(expected.DelaySeconds)
		result.Compliant = false
		result.Faults = append(result.Faults, fault)
	}
}

// sequenceBand classifies an absolute delay deviation. Within the
// compliant band it reports breached=false.
func sequenceBand(delta float64) (domain.FaultSeverity, bool) {
	switch {
	case delta <= ceCompliantBand:
		return "", false
	case delta <= ceLowBand:
		return domain.SeverityLow, true
	case delta <= ceHighBand:
		return domain.SeverityHigh, true
	default:
		return domain.SeverityCritical, true
	}
}

// validateInterface checks the qualitative outcome and response time of an
// interface test. A wrong or absent response is always critical; a correct
// but late (or early) response is medium.
func validateInterface(instance TestInstance, rule Rule, m domain.InterfaceResult, result *ValidationResult) {
	ctx, ok := instance.Context.(domain.InterfaceContext)
	if !ok {
		return
	}
	if !m.Responded || m.Outcome != ctx.ExpectedOutcome {
		observed := m.Outcome
		if !m.Responded {
			observed = "no response"
		}
		fault := newFault(instance, rule, domain.SeverityCritical, domain.Tier1A,
			fmt.Sprintf("interface %s at %s: expected %q, observed %q", ctx.Interface, ctx.Location, ctx.ExpectedOutcome, observed))
		result.Compliant = false
		result.Faults = append(result.Faults, fault)
		return
	}
	delta := m.ResponseSeconds - ctx.ExpectedResponseSeconds
	if delta < 0 {
		delta = -delta
	}
	if delta <= interfaceResponseToleranceSeconds {
		return
	}
	fault := newFault(instance, rule, domain.SeverityMedium, domain.Tier2,
		fmt.Sprintf("interface %s at %s: correct response %.1fs outside +/-%.0fs of expected %.1fs",
			ctx.Interface, ctx.Location, m.ResponseSeconds, interfaceResponseToleranceSeconds, ctx.ExpectedResponseSeconds))
	fault.MeasuredValue = ptrFloat(m.ResponseSeconds)
	fault.BaselineValue = ptrFloat(ctx.ExpectedResponseSeconds)
	result.Compliant = false
	result.Faults = append(result.Faults, fault)
}

// newFault builds a fault with the instance's full locational and rule
// context copied by value.
func newFault(instance TestInstance, rule Rule, severity domain.FaultSeverity, tier domain.ClassificationTier, message string) Fault {
	var locations []string
	if instance.Context != nil {
		locations = append([]string(nil), instance.Context.LocationIDs()...)
	}
	return Fault{
		InstanceID:    instance.ID,
		SessionID:     instance.SessionID,
		BuildingID:    instance.BuildingID,
		Kind:          instance.Kind,
		LocationIDs:   locations,
		BaselineValue: clonePtrFloat(instance.BaselineValue),
		MinThreshold:  clonePtrFloat(rule.MinThreshold),
		MaxThreshold:  clonePtrFloat(rule.MaxThreshold),
		Unit:          rule.Unit,
		Severity:      severity,
		Tier:          tier,
		RuleID:        rule.ID,
		RuleVersion:   rule.Version,
		Message:       message,
		Status:        domain.FaultOpen,
	}
}

// deviationPct computes the percentage difference from baseline. It is nil
// when no baseline exists or the baseline is zero.
func deviationPct(value float64, baseline *float64) *float64 {
	if baseline == nil || *baseline == 0 {
		return nil
	}
	dev := (value - *baseline) / *baseline * 100
	return &dev
}

func gridMean(grid []float64) float64 {
	sum := 0.0
	for _, v := range grid {
		sum += v
	}
	return sum / float64(len(grid))
}

func ptrString(v string) *string { return &v }

func clonePtrFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
