// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// thermal-watchdog drives a server's chassis fans from its temperature
// sensors through ipmitool, and hands the fans back to the firmware
// whenever it cannot trust what it reads.
//
// Without --live the daemon runs in shadow mode: it reads sensors,
// computes and reports fan commands, and logs what it would send
// without touching the fans. The install subcommand sets it up as a
// systemd service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/thermal-watchdog/lib/clock"
	"github.com/bureau-foundation/thermal-watchdog/lib/config"
	"github.com/bureau-foundation/thermal-watchdog/lib/control"
	"github.com/bureau-foundation/thermal-watchdog/lib/handoff"
	"github.com/bureau-foundation/thermal-watchdog/lib/hostinfo"
	"github.com/bureau-foundation/thermal-watchdog/lib/ipmi"
	"github.com/bureau-foundation/thermal-watchdog/lib/sdnotify"
	"github.com/bureau-foundation/thermal-watchdog/lib/version"
)

const binaryName = "thermal-watchdog"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) > 0 && args[0] == "install" {
		return runInstall(args[1:], os.Stdout, os.Stderr)
	}

	options, err := parseFlags(args, os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if options.showVersion {
		version.Print(os.Stdout, binaryName)
		return nil
	}

	cfg, found, err := config.Load(options.configPath)
	if err != nil {
		return err
	}
	options.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closeLog, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	if found {
		logger.Info("loaded configuration", "path", options.configPath)
	} else {
		logger.Info("configuration file not found, using defaults", "path", options.configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runDaemon(ctx, cfg, options.live, logger)
}

func runDaemon(ctx context.Context, cfg *config.Config, live bool, logger *slog.Logger) error {
	hostname := hostinfo.Hostname()
	realClock := clock.Real()

	sender, closeTelemetry, err := startTelemetry(cfg, hostname, logger)
	if err != nil {
		return err
	}
	defer closeTelemetry()

	runner := ipmi.NewExecRunner(ipmi.DefaultPath)

	var actuator control.Actuator
	var handoffRecord control.Handoff
	if live {
		fans := ipmi.NewActuator(runner, logger)
		store := handoff.NewStore(cfg.Loop.StateFile, hostname, realClock)
		if err := recoverHandoff(ctx, store, fans, logger); err != nil {
			return err
		}
		actuator = fans
		handoffRecord = store
	} else {
		logger.Warn("shadow mode: fan commands are logged, not sent; pass --live to control the fans")
		actuator = ipmi.NewShadow(logger)
	}

	loop := control.NewLoop(cfg.Points(), ipmi.NewSensorReader(runner, logger), sender, logger)
	notifier := sdnotify.FromEnvironment()
	driver, err := control.NewDriver(control.DriverConfig{
		Loop:      loop,
		Actuator:  actuator,
		Interval:  cfg.Loop.Interval,
		MinSpeed:  cfg.MinSpeed(),
		OnFault:   cfg.FaultPolicy(),
		Handoff:   handoffRecord,
		Notifier:  notifier,
		Usage:     hostinfo.NewSampler(realClock, logger),
		Telemetry: sender,
		Clock:     realClock,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	logger.Info("thermal watchdog running",
		"version", version.Info(),
		"hostname", hostname,
		"live", live,
		"points", len(cfg.Controls),
		"interval", cfg.Loop.Interval,
		"min_speed", cfg.MinSpeed(),
		"on_fault", cfg.Loop.OnFault,
	)
	if err := notifier.Ready(); err != nil {
		logger.Warn("service manager readiness notification failed", "error", err)
	}

	runErr := driver.Run(ctx)

	if err := notifier.Stopping(); err != nil {
		logger.Warn("service manager stopping notification failed", "error", err)
	}
	if runErr != nil {
		return runErr
	}
	logger.Info("stopped")
	return nil
}

// recoverHandoff restores firmware fan control when a previous process
// died while holding manual control.
func recoverHandoff(ctx context.Context, store *handoff.Store, fans control.Actuator, logger *slog.Logger) error {
	state, pending, err := store.Pending()
	if err != nil {
		logger.Warn("unreadable manual control record, restoring automatic fan control",
			"path", store.Path(), "error", err)
		pending = true
	}
	if !pending {
		return nil
	}

	logger.Warn("previous process exited holding manual fan control, restoring automatic control",
		"pid", state.PID,
		"engaged", state.Engaged,
	)
	if err := fans.SetManual(ctx, false); err != nil {
		return fmt.Errorf("restoring automatic fan control left by a previous process: %w", err)
	}
	return store.Release()
}
