// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"errors"
	"fmt"
)

// Kind classifies a control failure.
type Kind int

const (
	// SensorUnset: the point's sensor did not report this cycle.
	SensorUnset Kind = iota + 1

	// SensorInvalid: the sensor reported a value that did not parse.
	SensorInvalid

	// SensorKindMismatch: a temperature point matched a fan (RPM)
	// sensor.
	SensorKindMismatch

	// FailsafeTripped: a temperature reached the point's failsafe
	// threshold. The plant, not the sensing, is in danger.
	FailsafeTripped

	// AcquisitionFailed: the sensor poll as a whole failed.
	AcquisitionFailed

	// ActuatorFailed: a fan mode or speed command failed.
	ActuatorFailed
)

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	switch k {
	case SensorUnset:
		return "sensor_unset"
	case SensorInvalid:
		return "sensor_invalid"
	case SensorKindMismatch:
		return "sensor_kind_mismatch"
	case FailsafeTripped:
		return "failsafe_tripped"
	case AcquisitionFailed:
		return "acquisition_failed"
	case ActuatorFailed:
		return "actuator_failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a structured control failure. Point, Index, Measured, and
// Threshold are set for the point-level kinds; Err carries the cause
// for AcquisitionFailed and ActuatorFailed.
type Error struct {
	Kind      Kind
	Point     string
	Index     int
	Measured  float64
	Threshold float64
	Err       error
}

func (e *Error) Error() string {
	switch e.Kind {
	case SensorUnset:
		return fmt.Sprintf("control: sensor %q (point %d) did not report", e.Point, e.Index)
	case SensorInvalid:
		return fmt.Sprintf("control: sensor %q (point %d) reported an unparseable value", e.Point, e.Index)
	case SensorKindMismatch:
		return fmt.Sprintf("control: sensor %q (point %d) reports fan speed (%g RPM), not temperature",
			e.Point, e.Index, e.Measured)
	case FailsafeTripped:
		return fmt.Sprintf("control: failsafe tripped for %q (point %d): %g >= %g",
			e.Point, e.Index, e.Measured, e.Threshold)
	case AcquisitionFailed:
		return fmt.Sprintf("control: reading sensors: %v", e.Err)
	case ActuatorFailed:
		return fmt.Sprintf("control: fan command failed: %v", e.Err)
	default:
		return fmt.Sprintf("control: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var controlError *Error
	if errors.As(err, &controlError) {
		return controlError.Kind
	}
	return 0
}
