// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package control runs the thermal control cycle.
//
// A [Loop] owns the monitored points, their controllers, and the
// reading slots the sensor reader fills. [Loop.Step] polls every
// sensor, checks each point against its failsafe threshold, updates
// its controller, and returns the largest controller output as the
// platform fan command. Any point that cannot be evaluated fails the
// whole step: acting on a partial thermal picture is not safe.
//
// A [Driver] calls Step on a fixed interval and applies the result
// through an [Actuator]. When a step fails the driver hands the fans
// back to firmware control. When the actuator itself fails the driver
// makes one attempt to restore firmware control and then returns an
// ActuatorFailed error; the process is expected to exit.
//
// Errors are *[Error] values carrying a [Kind] and the offending
// point's name, index, measured value, and threshold.
package control
