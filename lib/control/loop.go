// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/bureau-foundation/thermal-watchdog/lib/ipmi"
	"github.com/bureau-foundation/thermal-watchdog/lib/pid"
	"github.com/bureau-foundation/thermal-watchdog/lib/telemetry"
)

// MonitoredPoint is one temperature sensor under control. Name must
// match the sensor name in the listing exactly.
type MonitoredPoint struct {
	Name     string
	Setpoint float64
	Failsafe float64
	Tuning   pid.Tuning
}

// SensorReader fills readings in place. ipmi.SensorReader implements
// it.
type SensorReader interface {
	Poll(ctx context.Context, readings []ipmi.Reading) error
}

// Loop evaluates every monitored point once per Step. It is not safe
// for concurrent use.
type Loop struct {
	points      []MonitoredPoint
	controllers []*pid.Controller
	readings    []ipmi.Reading

	sensors   SensorReader
	telemetry telemetry.Sender
	logger    *slog.Logger
}

// NewLoop builds a Loop over points in the given order. Duplicate
// names are allowed and are matched to sensor lines in order.
func NewLoop(points []MonitoredPoint, sensors SensorReader, sender telemetry.Sender, logger *slog.Logger) *Loop {
	loop := &Loop{
		points:      append([]MonitoredPoint(nil), points...),
		controllers: make([]*pid.Controller, len(points)),
		readings:    make([]ipmi.Reading, len(points)),
		sensors:     sensors,
		telemetry:   sender,
		logger:      logger,
	}
	for i, point := range points {
		loop.controllers[i] = pid.New(point.Setpoint, point.Tuning)
		loop.readings[i] = ipmi.Reading{Name: point.Name}
	}
	return loop
}

// Points returns the monitored points in registration order.
func (l *Loop) Points() []MonitoredPoint {
	return append([]MonitoredPoint(nil), l.points...)
}

// Readings returns a copy of the readings from the most recent poll.
func (l *Loop) Readings() []ipmi.Reading {
	return append([]ipmi.Reading(nil), l.readings...)
}

// Accumulator returns the integral accumulator of the point at index.
func (l *Loop) Accumulator(index int) float64 {
	return l.controllers[index].Accumulator()
}

// Step runs one control cycle. elapsed is the time since the previous
// Step in milliseconds. The returned fan command is the largest
// controller output across all points, never below 0.
func (l *Loop) Step(ctx context.Context, elapsed float64) (float64, error) {
	if err := l.sensors.Poll(ctx, l.readings); err != nil {
		return 0, &Error{Kind: AcquisitionFailed, Index: -1, Err: err}
	}

	var command float64
	for index, point := range l.points {
		status := l.readings[index].Status
		switch status.Kind {
		case ipmi.Unset:
			return 0, &Error{Kind: SensorUnset, Point: point.Name, Index: index}
		case ipmi.Invalid:
			return 0, &Error{Kind: SensorInvalid, Point: point.Name, Index: index}
		case ipmi.RotationSpeed:
			return 0, &Error{Kind: SensorKindMismatch, Point: point.Name, Index: index, Measured: float64(status.Value)}
		}

		temperature := float64(status.Value)
		tags := []telemetry.Tag{
			{Name: "name", Value: point.Name},
			{Name: "index", Value: strconv.Itoa(index)},
		}
		l.telemetry.Send(telemetry.Sample{
			Fields: []telemetry.Field{{Name: "temperature", Value: temperature}},
			Tags:   tags,
		})

		if temperature >= point.Failsafe {
			return 0, &Error{
				Kind:      FailsafeTripped,
				Point:     point.Name,
				Index:     index,
				Measured:  temperature,
				Threshold: point.Failsafe,
			}
		}

		terms := l.controllers[index].Update(temperature, elapsed)
		l.telemetry.Send(telemetry.Sample{
			Fields: []telemetry.Field{
				{Name: "p", Value: terms.Proportional},
				{Name: "i", Value: terms.Integral},
				{Name: "d", Value: terms.Derivative},
				{Name: "output", Value: terms.Output},
			},
			Tags: tags,
		})
		l.logger.Debug("controller output",
			"point", point.Name,
			"index", index,
			"temperature", temperature,
			"error", terms.Error,
			"output", terms.Output,
		)

		command = max(command, terms.Output)
	}

	l.logger.Debug("control step", "elapsed_ms", elapsed, "command", command)
	return command, nil
}
