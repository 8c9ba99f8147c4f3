package core

import (
	"context"
	"fmt"

	"staircore/pkg/domain"
)

// StartInstance moves a pending instance to in_progress under a technician
// identity.
func (s *Service) StartInstance(ctx context.Context, id, technician string) (instance TestInstance, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "start_instance", start, err) }()

	instance, err = s.store.UpdateInstance(ctx, id, func(inst *TestInstance) error {
		inst.Technician = technician
		if err := guardTransition(inst, StatusInProgress); err != nil {
			return err
		}
		now := s.nowFn()
		inst.StartedAt = &now
		return nil
	})
	return instance, err
}

// SubmitResult validates a measurement against the instance's rule
// snapshot, persists any resulting faults, and completes the instance.
// A non-compliant measurement still completes the instance: non-compliance
// is business data carried by the verdict and its faults, not an execution
// failure.
func (s *Service) SubmitResult(ctx context.Context, id string, measurement Measurement) (instance TestInstance, verdict ValidationResult, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "submit_result", start, err) }()

	instance, err = s.store.GetInstance(ctx, id)
	if err != nil {
		return TestInstance{}, ValidationResult{}, err
	}
	if instance.Status != StatusInProgress {
		err = domain.InvalidTransitionError{
			InstanceID: id,
			From:       instance.Status,
			To:         StatusCompleted,
			Reason:     "result submission requires an in_progress instance",
		}
		return TestInstance{}, ValidationResult{}, err
	}

	now := s.nowFn()
	verdict, err = Validate(instance, measurement, now)
	if err != nil {
		return TestInstance{}, ValidationResult{}, err
	}

	faultIDs := make([]string, 0, len(verdict.Faults))
	persisted := make([]Fault, 0, len(verdict.Faults))
	for _, fault := range verdict.Faults {
		fault.RaisedAt = now
		created, faultErr := s.store.CreateFault(ctx, fault)
		if faultErr != nil {
			err = fmt.Errorf("create fault: %w", faultErr)
			return TestInstance{}, ValidationResult{}, err
		}
		faultIDs = append(faultIDs, created.ID)
		persisted = append(persisted, created)
	}
	verdict.Faults = persisted

	instance, err = s.store.UpdateInstance(ctx, id, func(inst *TestInstance) error {
		v := verdict.Clone()
		inst.Measured = domain.CloneMeasurement(measurement)
		inst.Verdict = &v
		inst.FaultIDs = append([]string(nil), faultIDs...)
		if err := guardTransition(inst, StatusCompleted); err != nil {
			return err
		}
		completed := s.nowFn()
		inst.CompletedAt = &completed
		return nil
	})
	if err != nil {
		return TestInstance{}, ValidationResult{}, err
	}
	return instance, verdict, nil
}

// SkipInstance records a skip with its mandatory reason. Skipped is
// terminal, produces no fault, and stays distinguished from completed in
// completeness reporting.
func (s *Service) SkipInstance(ctx context.Context, id, reason string) (instance TestInstance, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "skip_instance", start, err) }()

	instance, err = s.store.UpdateInstance(ctx, id, func(inst *TestInstance) error {
		inst.SkipReason = reason
		return guardTransition(inst, StatusSkipped)
	})
	return instance, err
}

// FailInstance marks an in_progress instance as failed, making it eligible
// for retry.
func (s *Service) FailInstance(ctx context.Context, id string) (instance TestInstance, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "fail_instance", start, err) }()

	instance, err = s.store.UpdateInstance(ctx, id, func(inst *TestInstance) error {
		return guardTransition(inst, StatusFailed)
	})
	return instance, err
}

// RetryInstance returns a failed instance to pending, clearing the
// previous attempt's execution state. Faults already raised remain on
// record.
func (s *Service) RetryInstance(ctx context.Context, id string) (instance TestInstance, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "retry_instance", start, err) }()

	instance, err = s.store.UpdateInstance(ctx, id, func(inst *TestInstance) error {
		if err := guardTransition(inst, StatusPending); err != nil {
			return err
		}
		inst.Technician = ""
		inst.StartedAt = nil
		inst.CompletedAt = nil
		inst.Measured = nil
		inst.Verdict = nil
		return nil
	})
	return instance, err
}
