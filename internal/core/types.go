package core

import "staircore/pkg/domain"

type (
	Frequency        = domain.Frequency
	MeasurementKind  = domain.MeasurementKind
	BaselineKind     = domain.BaselineKind
	BaselineSnapshot = domain.BaselineSnapshot
	BaselineCounts   = domain.BaselineCounts
	TestContext      = domain.TestContext
	InstanceTemplate = domain.InstanceTemplate
	TestInstance     = domain.TestInstance
	InstanceStatus   = domain.InstanceStatus
	Measurement      = domain.Measurement
	ValidationResult = domain.ValidationResult
	Fault            = domain.Fault
	Rule             = domain.Rule
	RuleTable        = domain.RuleTable
)

const (
	FrequencyMonthly    = domain.FrequencyMonthly
	FrequencySixMonthly = domain.FrequencySixMonthly
	FrequencyAnnual     = domain.FrequencyAnnual
)

const (
	KindPressureDifferential = domain.KindPressureDifferential
	KindAirVelocity          = domain.KindAirVelocity
	KindDoorOpeningForce     = domain.KindDoorOpeningForce
	KindCauseEffect          = domain.KindCauseEffect
	KindInterfaceTest        = domain.KindInterfaceTest
)

const (
	StatusPending    = domain.StatusPending
	StatusInProgress = domain.StatusInProgress
	StatusCompleted  = domain.StatusCompleted
	StatusSkipped    = domain.StatusSkipped
	StatusFailed     = domain.StatusFailed
)
