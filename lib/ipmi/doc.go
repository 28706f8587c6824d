// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipmi reads sensor values from and issues fan commands to a
// baseboard management controller through the ipmitool CLI.
//
// # Sensor listing
//
// [SensorReader.Poll] runs "ipmitool sdr list full" and parses its
// pipe-delimited output:
//
//	Fan1             | 4500 RPM          | ok
//	Exhaust Temp     | 42 degrees C      | ok
//	PS1 Status       | 0x01              | ok
//
// The first field is the sensor name and the second the value, split
// at the first space into a number and a unit label. Only "RPM" and
// "degrees C" are recognized; every other sensor is ignored. A number
// that does not parse under a recognized label marks the reading
// Invalid and logs a warning; it never fails the poll.
//
// # Fan commands
//
// [Actuator] issues the vendor raw commands that switch the fans
// between firmware (automatic) and manual control and that set the
// manual duty cycle.
//
// All process execution goes through the [Runner] interface so tests
// can script ipmitool output with the ipmitest package.
package ipmi
