package core

import "staircore/pkg/domain"

// validTransitions enumerates the instance lifecycle edges. Everything not
// listed is rejected; terminal states have no outgoing edges.
var validTransitions = map[InstanceStatus][]InstanceStatus{
	StatusPending:    {StatusInProgress, StatusSkipped},
	StatusInProgress: {StatusCompleted, StatusFailed, StatusSkipped},
	StatusFailed:     {StatusPending},
}

// CanTransition reports whether the lifecycle permits the edge, ignoring
// guards.
func CanTransition(from, to InstanceStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// guardTransition enforces the lifecycle edge plus its guard conditions on
// the instance being mutated. It never auto-corrects: a violated guard
// surfaces as InvalidTransitionError and leaves the instance untouched.
func guardTransition(instance *TestInstance, to InstanceStatus) error {
	from := instance.Status
	if !CanTransition(from, to) {
		return domain.InvalidTransitionError{InstanceID: instance.ID, From: from, To: to}
	}
	switch to {
	case StatusInProgress:
		if instance.Technician == "" {
			return domain.InvalidTransitionError{
				InstanceID: instance.ID, From: from, To: to,
				Reason: "technician identity required",
			}
		}
	case StatusCompleted:
		if instance.Measured == nil {
			return domain.InvalidTransitionError{
				InstanceID: instance.ID, From: from, To: to,
				Reason: "no measured value submitted",
			}
		}
		if instance.Verdict == nil {
			return domain.InvalidTransitionError{
				InstanceID: instance.ID, From: from, To: to,
				Reason: "validation verdict not attached",
			}
		}
	case StatusSkipped:
		if instance.SkipReason == "" {
			return domain.InvalidTransitionError{
				InstanceID: instance.ID, From: from, To: to,
				Reason: "skip reason required",
			}
		}
	}
	instance.Status = to
	return nil
}

// expectedMeasurementType returns the measurement shape an instance's
// result submission must carry.
func expectedMeasurementType(instance TestInstance) domain.MeasurementType {
	switch instance.Kind {
	case KindPressureDifferential:
		if ctx, ok := instance.Context.(domain.PressureContext); ok && ctx.Config == domain.DoorConfigVisual {
			return domain.MeasurementVisual
		}
		return domain.MeasurementNumeric
	case KindAirVelocity, KindDoorOpeningForce:
		return domain.MeasurementNumeric
	case KindCauseEffect:
		return domain.MeasurementSequence
	case KindInterfaceTest:
		return domain.MeasurementInterface
	default:
		return domain.MeasurementNumeric
	}
}
