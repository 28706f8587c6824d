// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/thermal-watchdog/lib/clock"
	"github.com/bureau-foundation/thermal-watchdog/lib/telemetry"
)

// Actuator applies fan commands. ipmi.Actuator and ipmi.Shadow
// implement it.
type Actuator interface {
	SetManual(ctx context.Context, manual bool) error
	SetSpeed(ctx context.Context, speed float64) error
}

// Handoff records that manual fan control is engaged so a later
// process can restore firmware control after a crash.
type Handoff interface {
	Engage() error
	Release() error
}

// Notifier receives a keepalive after every completed cycle.
type Notifier interface {
	Watchdog() error
}

// UsageSampler reports resource usage fields once per cycle.
type UsageSampler interface {
	Sample() []telemetry.Field
}

// FaultPolicy selects what the driver does after a failed step.
type FaultPolicy string

const (
	// FaultRelease hands the fans to firmware control and keeps
	// cycling. Manual control is re-engaged once a step succeeds.
	FaultRelease FaultPolicy = "release"

	// FaultExit hands the fans to firmware control and returns the
	// step error from Run.
	FaultExit FaultPolicy = "exit"
)

// ParseFaultPolicy validates a policy name. The empty string selects
// FaultRelease.
func ParseFaultPolicy(name string) (FaultPolicy, error) {
	switch FaultPolicy(name) {
	case "", FaultRelease:
		return FaultRelease, nil
	case FaultExit:
		return FaultExit, nil
	default:
		return "", fmt.Errorf("unknown fault policy %q (want %q or %q)", name, FaultRelease, FaultExit)
	}
}

// DefaultInterval is the time between control cycles.
const DefaultInterval = 2 * time.Second

// restoreTimeout bounds the attempt to restore firmware control once
// the run context is gone.
const restoreTimeout = 10 * time.Second

// DriverConfig configures a Driver. Loop and Actuator are required.
type DriverConfig struct {
	Loop     *Loop
	Actuator Actuator

	// Interval between cycles. Zero selects DefaultInterval.
	Interval time.Duration

	// MinSpeed is the lowest fan command applied, as a fraction.
	MinSpeed float64

	OnFault FaultPolicy

	// Handoff, Notifier, and Usage are optional.
	Handoff  Handoff
	Notifier Notifier
	Usage    UsageSampler

	Telemetry telemetry.Sender
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Driver runs the Loop on a fixed interval and applies its output.
type Driver struct {
	loop     *Loop
	actuator Actuator
	interval time.Duration
	minSpeed float64
	onFault  FaultPolicy

	handoff  Handoff
	notifier Notifier
	usage    UsageSampler

	telemetry telemetry.Sender
	clock     clock.Clock
	logger    *slog.Logger

	manual bool
	last   time.Time
}

// NewDriver validates config and returns a Driver.
func NewDriver(config DriverConfig) (*Driver, error) {
	if config.Loop == nil {
		return nil, errors.New("control: driver requires a Loop")
	}
	if config.Actuator == nil {
		return nil, errors.New("control: driver requires an Actuator")
	}
	if config.Interval < 0 {
		return nil, fmt.Errorf("control: negative interval %s", config.Interval)
	}
	if config.MinSpeed < 0 || config.MinSpeed > 1 {
		return nil, fmt.Errorf("control: minimum speed %g outside [0, 1]", config.MinSpeed)
	}
	onFault, err := ParseFaultPolicy(string(config.OnFault))
	if err != nil {
		return nil, fmt.Errorf("control: %w", err)
	}

	driver := &Driver{
		loop:      config.Loop,
		actuator:  config.Actuator,
		interval:  config.Interval,
		minSpeed:  config.MinSpeed,
		onFault:   onFault,
		handoff:   config.Handoff,
		notifier:  config.Notifier,
		usage:     config.Usage,
		telemetry: config.Telemetry,
		clock:     config.Clock,
		logger:    config.Logger,
	}
	if driver.interval == 0 {
		driver.interval = DefaultInterval
	}
	if driver.telemetry == nil {
		driver.telemetry = telemetry.Discard
	}
	if driver.clock == nil {
		driver.clock = clock.Real()
	}
	if driver.logger == nil {
		driver.logger = slog.New(slog.DiscardHandler)
	}
	return driver, nil
}

// Manual reports whether the driver currently holds manual control.
func (d *Driver) Manual() bool { return d.manual }

// Run cycles until ctx is cancelled or a fatal error occurs. The
// first cycle runs immediately. On cancellation Run restores firmware
// fan control and returns nil. Fatal errors are an ActuatorFailed
// *Error, or the step error under FaultExit; in both cases firmware
// control has already been requested.
func (d *Driver) Run(ctx context.Context) error {
	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	d.last = d.clock.Now()
	for {
		if err := d.cycle(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return d.shutdown()
		case <-ticker.C:
		}
	}
}

func (d *Driver) cycle(ctx context.Context) error {
	now := d.clock.Now()
	elapsed := float64(now.Sub(d.last).Milliseconds())
	d.last = now

	command, err := d.loop.Step(ctx, elapsed)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled mid-step; Run restores firmware control.
			return nil
		}
		d.logStepError(err)
		if releaseErr := d.release(ctx); releaseErr != nil {
			return d.actuatorFailure(releaseErr)
		}
		if d.onFault == FaultExit {
			return err
		}
	} else if err := d.apply(ctx, command); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return d.actuatorFailure(err)
	}

	if d.usage != nil {
		if fields := d.usage.Sample(); len(fields) > 0 {
			d.telemetry.Send(telemetry.Sample{Fields: fields})
		}
	}
	if d.notifier != nil {
		if err := d.notifier.Watchdog(); err != nil {
			d.logger.Warn("service manager keepalive failed", "error", err)
		}
	}
	return nil
}

func (d *Driver) apply(ctx context.Context, command float64) error {
	if !d.manual {
		if d.handoff != nil {
			if err := d.handoff.Engage(); err != nil {
				d.logger.Warn("recording manual control handoff failed", "error", err)
			}
		}
		if err := d.actuator.SetManual(ctx, true); err != nil {
			return fmt.Errorf("enabling manual fan control: %w", err)
		}
		d.manual = true
		d.reportManual()
	}

	speed := max(command, d.minSpeed)
	d.telemetry.Send(telemetry.Sample{Fields: []telemetry.Field{{Name: "fan speed", Value: speed}}})
	if err := d.actuator.SetSpeed(ctx, speed); err != nil {
		return fmt.Errorf("setting fan speed: %w", err)
	}
	return nil
}

// release asks for firmware control. It runs on every failed step,
// whether or not manual control was engaged.
func (d *Driver) release(ctx context.Context) error {
	if err := d.actuator.SetManual(ctx, false); err != nil {
		return fmt.Errorf("restoring automatic fan control: %w", err)
	}
	wasManual := d.manual
	d.manual = false
	d.reportManual()
	if wasManual && d.handoff != nil {
		if err := d.handoff.Release(); err != nil {
			d.logger.Warn("clearing manual control handoff failed", "error", err)
		}
	}
	return nil
}

func (d *Driver) reportManual() {
	value := 0.0
	if d.manual {
		value = 1
	}
	d.telemetry.Send(telemetry.Sample{Fields: []telemetry.Field{{Name: "manual control", Value: value}}})
}

// actuatorFailure makes one attempt to hand the fans back to the
// firmware and returns the fatal error.
func (d *Driver) actuatorFailure(cause error) error {
	d.logger.Error("fan command failed, restoring automatic fan control", "error", cause)
	if err := d.restore(); err != nil {
		d.logger.Error("restoring automatic fan control failed", "error", err)
	}
	return &Error{Kind: ActuatorFailed, Index: -1, Err: cause}
}

// shutdown restores firmware control after the run context ends.
func (d *Driver) shutdown() error {
	d.logger.Info("stopping, restoring automatic fan control")
	if err := d.restore(); err != nil {
		d.logger.Error("restoring automatic fan control failed", "error", err)
		return &Error{Kind: ActuatorFailed, Index: -1, Err: err}
	}
	return nil
}

func (d *Driver) restore() error {
	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()
	if err := d.actuator.SetManual(ctx, false); err != nil {
		return err
	}
	d.manual = false
	if d.handoff != nil {
		if err := d.handoff.Release(); err != nil {
			d.logger.Warn("clearing manual control handoff failed", "error", err)
		}
	}
	return nil
}

func (d *Driver) logStepError(err error) {
	var controlError *Error
	if !errors.As(err, &controlError) {
		d.logger.Error("control step failed", "error", err)
		return
	}
	switch controlError.Kind {
	case FailsafeTripped:
		d.logger.Error("failsafe tripped, releasing fan control",
			"point", controlError.Point,
			"index", controlError.Index,
			"temperature", controlError.Measured,
			"failsafe", controlError.Threshold,
		)
	case AcquisitionFailed:
		d.logger.Error("control step failed", "kind", controlError.Kind.String(), "error", controlError.Err)
	default:
		d.logger.Error("control step failed",
			"kind", controlError.Kind.String(),
			"point", controlError.Point,
			"index", controlError.Index,
		)
	}
}
