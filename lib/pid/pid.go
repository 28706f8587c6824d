// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pid implements the per-sensor feedback controller.
//
// The controller is reverse-acting: error is measurement minus
// setpoint, so a temperature above its setpoint produces a positive
// output (more cooling). The integral accumulator is clamped from
// below at Tuning.IntegralFloor so time spent well under the setpoint
// cannot build up a reserve that delays the response to heat. The
// derivative is the sum of per-sample slopes across a short window,
// which damps single-reading sensor jitter.
//
// A Controller is plain state plus arithmetic. It is not safe for
// concurrent use; the control loop owns each one exclusively.
package pid

// Tuning holds controller gains and filter settings.
type Tuning struct {
	// Proportional, Integral, and Derivative are the term gains.
	Proportional float64
	Integral     float64
	Derivative   float64

	// FilterPoints is the number of slopes summed for the derivative.
	// The window keeps FilterPoints+1 samples. Zero disables the
	// derivative term.
	FilterPoints int

	// IntegralFloor is the lowest value the integral accumulator may
	// take.
	IntegralFloor float64
}

// Terms are the contributions of one Update. Output is their sum.
type Terms struct {
	Error        float64
	Proportional float64
	Integral     float64
	Derivative   float64
	Output       float64
}

// Controller tracks the integral and derivative state for one
// setpoint.
type Controller struct {
	setpoint    float64
	tuning      Tuning
	accumulator float64
	window      *window
}

// New returns a Controller at rest: empty window and the accumulator
// at the floor or zero, whichever is higher.
func New(setpoint float64, tuning Tuning) *Controller {
	if tuning.FilterPoints < 0 {
		tuning.FilterPoints = 0
	}
	return &Controller{
		setpoint:    setpoint,
		tuning:      tuning,
		accumulator: max(0, tuning.IntegralFloor),
		window:      newWindow(tuning.FilterPoints + 1),
	}
}

// Setpoint returns the target measurement.
func (c *Controller) Setpoint() float64 { return c.setpoint }

// Accumulator returns the current integral accumulator.
func (c *Controller) Accumulator() float64 { return c.accumulator }

// Update folds a new measurement taken elapsed time units after the
// previous one into the controller state and returns the resulting
// terms. elapsed should be non-negative and in the same unit on every
// call.
func (c *Controller) Update(measurement, elapsed float64) Terms {
	errorValue := measurement - c.setpoint

	c.accumulator += errorValue * elapsed
	if c.accumulator < c.tuning.IntegralFloor {
		c.accumulator = c.tuning.IntegralFloor
	}

	c.window.push(sample{elapsed: elapsed, error: errorValue})
	var derivative float64
	if elapsed > 0 {
		derivative = c.window.slopeSum()
	}

	terms := Terms{
		Error:        errorValue,
		Proportional: errorValue * c.tuning.Proportional,
		Integral:     c.accumulator * c.tuning.Integral,
		Derivative:   derivative * c.tuning.Derivative,
	}
	terms.Output = terms.Proportional + terms.Integral + terms.Derivative
	return terms
}
