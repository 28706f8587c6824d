// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipmi

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// Raw command prefixes for the fan control OEM extension.
var (
	fanModeArgs  = []string{"raw", "0x30", "0x30", "0x01"}
	fanSpeedArgs = []string{"raw", "0x30", "0x30", "0x02", "0xff"}
)

// Actuator switches fan control mode and sets the manual duty cycle.
type Actuator struct {
	runner Runner
	logger *slog.Logger
}

// NewActuator returns an Actuator that runs ipmitool through runner.
func NewActuator(runner Runner, logger *slog.Logger) *Actuator {
	return &Actuator{runner: runner, logger: logger}
}

// SetManual enables (true) or disables (false) manual fan control.
// Disabling hands the fans back to the firmware's automatic curve.
func (a *Actuator) SetManual(ctx context.Context, manual bool) error {
	enabled := "0x01"
	if manual {
		enabled = "0x00"
	}
	a.logger.Info("setting manual fan control", "manual", manual)
	return a.run(ctx, append(append([]string(nil), fanModeArgs...), enabled))
}

// SetSpeed sets the manual fan duty cycle. speed is a fraction in
// [0, 1]; see SpeedPercent for the conversion.
func (a *Actuator) SetSpeed(ctx context.Context, speed float64) error {
	percent := SpeedPercent(speed)
	a.logger.Debug("setting fan speed", "speed", speed, "percent", percent)
	return a.run(ctx, append(append([]string(nil), fanSpeedArgs...), fmt.Sprintf("0x%02x", percent)))
}

func (a *Actuator) run(ctx context.Context, args []string) error {
	result, err := a.runner.Run(ctx, args...)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return exitError(args, result)
	}
	return nil
}

// SpeedPercent converts a speed fraction to a whole duty-cycle
// percentage, rounding up and clamping to [0, 100]. NaN maps to 100 so
// a broken computation can never slow the fans.
func SpeedPercent(speed float64) int {
	if math.IsNaN(speed) {
		return 100
	}
	return int(math.Max(0, math.Min(100, math.Ceil(speed*100))))
}
