// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipmi

import "fmt"

// Kind classifies a sensor reading.
type Kind uint8

const (
	// Unset means no line for the sensor was seen in this poll, or its
	// unit label was not one we understand.
	Unset Kind = iota

	// Invalid means the sensor reported a recognized unit label but
	// its number did not parse.
	Invalid

	// Temperature is a reading in whole degrees Celsius.
	Temperature

	// RotationSpeed is a fan reading in RPM.
	RotationSpeed
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case Unset:
		return "unset"
	case Invalid:
		return "invalid"
	case Temperature:
		return "temperature"
	case RotationSpeed:
		return "rotation_speed"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Status is the parsed value of a sensor. Value is meaningful only for
// Temperature (degrees C) and RotationSpeed (RPM).
type Status struct {
	Kind  Kind
	Value int
}

// String formats the status for logs, e.g. "45 degrees C".
func (s Status) String() string {
	switch s.Kind {
	case Temperature:
		return fmt.Sprintf("%d degrees C", s.Value)
	case RotationSpeed:
		return fmt.Sprintf("%d RPM", s.Value)
	default:
		return s.Kind.String()
	}
}

// Reading pairs a sensor name with the status observed for it in the
// most recent poll.
type Reading struct {
	Name   string
	Status Status
}

// NewReadings returns one Unset reading per name, preserving order.
// Duplicate names are allowed; each receives its own line in the
// listing.
func NewReadings(names ...string) []Reading {
	readings := make([]Reading, len(names))
	for i, name := range names {
		readings[i] = Reading{Name: name}
	}
	return readings
}
