// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipmi

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"
)

// sensorListArgs lists every full sensor record.
var sensorListArgs = []string{"sdr", "list", "full"}

// Unit labels recognized after the number in the value column.
const (
	unitRPM     = "RPM"
	unitCelsius = "degrees C"
)

var errNegativeRPM = errors.New("negative rotation speed")

// SensorReader polls the BMC sensor listing.
type SensorReader struct {
	runner Runner
	logger *slog.Logger
}

// NewSensorReader returns a SensorReader that runs ipmitool through
// runner.
func NewSensorReader(runner Runner, logger *slog.Logger) *SensorReader {
	return &SensorReader{runner: runner, logger: logger}
}

// Poll refreshes readings in place from one sensor listing.
//
// Every reading is reset to Unset before ipmitool runs. Each parsed
// line is assigned to the first reading with the same name that is
// still Unset, so a name listed twice fills two readings in order.
//
// Poll returns an *InvocationError when ipmitool cannot be started,
// ErrNotUTF8 when the output is not text, and an *ExitError when
// ipmitool exits non-zero. The exit status is checked after parsing,
// so readings filled before the failure are left in place for the
// caller to inspect.
func (r *SensorReader) Poll(ctx context.Context, readings []Reading) error {
	for i := range readings {
		readings[i].Status = Status{}
	}

	result, err := r.runner.Run(ctx, sensorListArgs...)
	if err != nil {
		return err
	}
	if !utf8.Valid(result.Stdout) {
		return ErrNotUTF8
	}

	for _, line := range strings.Split(string(result.Stdout), "\n") {
		name, value, ok := splitLine(line)
		if !ok {
			continue
		}
		status := r.parseValue(name, value)
		if status.Kind == Unset {
			continue
		}
		for i := range readings {
			if readings[i].Status.Kind == Unset && readings[i].Name == name {
				r.logger.Debug("sensor read", "sensor", name, "status", status)
				readings[i].Status = status
				break
			}
		}
	}

	if result.ExitCode != 0 {
		return exitError(sensorListArgs, result)
	}
	return nil
}

// splitLine returns the trimmed name and value columns of one listing
// line. Lines with fewer than two columns are protocol noise.
func splitLine(line string) (name, value string, ok bool) {
	columns := strings.SplitN(line, "|", 3)
	if len(columns) < 2 {
		return "", "", false
	}
	return strings.TrimSpace(columns[0]), strings.TrimSpace(columns[1]), true
}

// parseValue interprets a value column such as "4500 RPM".
func (r *SensorReader) parseValue(name, value string) Status {
	number, label, found := strings.Cut(value, " ")
	if !found {
		return Status{}
	}

	switch label {
	case unitRPM:
		rpm, err := strconv.Atoi(number)
		if err == nil && rpm < 0 {
			err = errNegativeRPM
		}
		if err != nil {
			r.logger.Warn("unparseable sensor value", "sensor", name, "value", value, "error", err)
			return Status{Kind: Invalid}
		}
		return Status{Kind: RotationSpeed, Value: rpm}
	case unitCelsius:
		celsius, err := strconv.Atoi(number)
		if err != nil {
			r.logger.Warn("unparseable sensor value", "sensor", name, "value", value, "error", err)
			return Status{Kind: Invalid}
		}
		return Status{Kind: Temperature, Value: celsius}
	default:
		return Status{}
	}
}
