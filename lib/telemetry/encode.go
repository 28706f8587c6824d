// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// DefaultMeasurement is the measurement name every sample is written
// under.
const DefaultMeasurement = "thermal_watchdog"

// errNoFields is returned when a sample has no encodable fields.
var errNoFields = errors.New("telemetry: sample has no finite fields")

// Encoder renders samples as line protocol.
type Encoder struct {
	// Measurement names the series. Empty means DefaultMeasurement.
	Measurement string

	// Tags are prepended to every sample's own tags (e.g. hostname).
	Tags []Tag
}

var (
	measurementEscaper = strings.NewReplacer(",", `\,`, " ", `\ `)
	keyEscaper         = strings.NewReplacer(",", `\,`, "=", `\=`, " ", `\ `)
)

// Line encodes one sample without a trailing newline. Fields whose
// value is NaN or infinite are omitted because the line protocol cannot
// represent them; a sample left with no fields is an error.
func (e Encoder) Line(sample Sample) (string, error) {
	measurement := e.Measurement
	if measurement == "" {
		measurement = DefaultMeasurement
	}

	var builder strings.Builder
	builder.WriteString(measurementEscaper.Replace(measurement))
	for _, tags := range [][]Tag{e.Tags, sample.Tags} {
		for _, tag := range tags {
			if tag.Name == "" || tag.Value == "" {
				continue
			}
			builder.WriteByte(',')
			builder.WriteString(keyEscaper.Replace(tag.Name))
			builder.WriteByte('=')
			builder.WriteString(keyEscaper.Replace(tag.Value))
		}
	}

	written := 0
	for _, field := range sample.Fields {
		if math.IsNaN(field.Value) || math.IsInf(field.Value, 0) {
			continue
		}
		if written == 0 {
			builder.WriteByte(' ')
		} else {
			builder.WriteByte(',')
		}
		builder.WriteString(keyEscaper.Replace(field.Name))
		builder.WriteByte('=')
		builder.WriteString(strconv.FormatFloat(field.Value, 'f', -1, 64))
		written++
	}
	if written == 0 {
		return "", errNoFields
	}

	if !sample.Time.IsZero() {
		builder.WriteByte(' ')
		builder.WriteString(strconv.FormatInt(sample.Time.UnixNano(), 10))
	}
	return builder.String(), nil
}
