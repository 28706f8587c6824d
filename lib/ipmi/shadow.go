// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipmi

import (
	"context"
	"log/slog"
)

// Shadow has the same methods as Actuator but only logs the commands
// it would have sent. Shadow mode lets an operator watch the
// controller's decisions before letting it drive the fans.
type Shadow struct {
	logger *slog.Logger
}

// NewShadow returns a Shadow that logs through logger.
func NewShadow(logger *slog.Logger) *Shadow {
	return &Shadow{logger: logger}
}

// SetManual logs the mode change.
func (s *Shadow) SetManual(_ context.Context, manual bool) error {
	s.logger.Info("shadow mode: not changing fan control", "manual", manual)
	return nil
}

// SetSpeed logs the duty cycle that would have been set.
func (s *Shadow) SetSpeed(_ context.Context, speed float64) error {
	s.logger.Info("shadow mode: not setting fan speed", "speed", speed, "percent", SpeedPercent(speed))
	return nil
}
