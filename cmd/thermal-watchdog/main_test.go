// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/thermal-watchdog/lib/clock"
	"github.com/bureau-foundation/thermal-watchdog/lib/config"
	"github.com/bureau-foundation/thermal-watchdog/lib/handoff"
	"github.com/bureau-foundation/thermal-watchdog/lib/ipmi"
	"github.com/bureau-foundation/thermal-watchdog/lib/ipmi/ipmitest"
	"github.com/bureau-foundation/thermal-watchdog/lib/telemetry"
	"github.com/bureau-foundation/thermal-watchdog/lib/testutil"
)

func TestFlagsOverrideOnlyWhatWasGiven(t *testing.T) {
	options, err := parseFlags([]string{
		"-a", "http://influx:8086",
		"-d", "twd",
		"--interval", "5s",
		"--mqtt-broker", "broker:1883",
		"-l",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if !options.live {
		t.Error("--live not parsed")
	}
	if options.configPath != config.DefaultPath {
		t.Errorf("config path = %q, want default", options.configPath)
	}

	cfg := config.Default()
	cfg.Logging.Level = "warn"
	options.apply(cfg)

	if cfg.Metrics == nil || cfg.Metrics.InfluxAddr != "http://influx:8086" || cfg.Metrics.InfluxDB != "twd" {
		t.Fatalf("metrics = %+v", cfg.Metrics)
	}
	if cfg.MQTT == nil || cfg.MQTT.Broker != "broker:1883" {
		t.Fatalf("mqtt = %+v", cfg.MQTT)
	}
	if cfg.Loop.Interval != 5*time.Second {
		t.Errorf("interval = %s, want 5s", cfg.Loop.Interval)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q, file value should survive an absent flag", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestFlagsWithoutOverridesKeepFile(t *testing.T) {
	options, err := parseFlags(nil, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	cfg := config.Default()
	options.apply(cfg)
	if cfg.Metrics != nil || cfg.MQTT != nil {
		t.Fatal("telemetry destinations created without flags")
	}
	if options.live {
		t.Fatal("live mode without --live")
	}
}

func TestFlagsErrors(t *testing.T) {
	if _, err := parseFlags([]string{"--help"}, io.Discard); !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("--help error = %v, want pflag.ErrHelp", err)
	}
	if _, err := parseFlags([]string{"serve"}, io.Discard); err == nil {
		t.Fatal("positional argument accepted")
	}
	if _, err := parseFlags([]string{"--interval", "often"}, io.Discard); err == nil {
		t.Fatal("bad duration accepted")
	}
}

func TestStarterConfigIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thermal_watchdog.toml")
	if err := os.WriteFile(path, []byte(defaultConfigText), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, found, err := config.Load(path)
	if err != nil || !found {
		t.Fatalf("Load = %v, %v", found, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.PID.KFactor != 0.025 || cfg.MinSpeed() != 0.05 {
		t.Fatalf("pid = %+v", cfg.PID)
	}
	if len(cfg.Controls) != 3 || cfg.Metrics != nil {
		t.Fatalf("controls %d, metrics %+v", len(cfg.Controls), cfg.Metrics)
	}
}

func TestStartTelemetryWithoutDestination(t *testing.T) {
	sender, closeTelemetry, err := startTelemetry(config.Default(), "node-1", slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("startTelemetry: %v", err)
	}
	defer closeTelemetry()
	if sender != telemetry.Discard {
		t.Fatalf("sender = %T, want telemetry.Discard", sender)
	}
}

func TestStartTelemetryInflux(t *testing.T) {
	bodies := make(chan string, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- r.URL.Query().Get("db") + " " + string(body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Metrics = &config.MetricsConfig{InfluxAddr: server.URL, InfluxDB: "twd"}
	sender, closeTelemetry, err := startTelemetry(cfg, "node-1", slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("startTelemetry: %v", err)
	}
	defer closeTelemetry()

	sender.Send(telemetry.Sample{Fields: []telemetry.Field{{Name: "fan speed", Value: 0.3}}})
	body := testutil.RequireReceive(t, bodies, 5*time.Second, "waiting for InfluxDB write")
	if !strings.HasPrefix(body, `twd thermal_watchdog,hostname=node-1 fan\ speed=0.3 `) {
		t.Fatalf("write = %q", body)
	}
}

func TestStartTelemetryRejectsBadAddress(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics = &config.MetricsConfig{InfluxAddr: "ftp://influx", InfluxDB: "twd"}
	if _, _, err := startTelemetry(cfg, "node-1", slog.New(slog.DiscardHandler)); err == nil {
		t.Fatal("startTelemetry accepted a non-HTTP address")
	}
}

func TestRecoverHandoffRestoresAutomaticControl(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handoff.cbor")
	if err := handoff.Write(path, handoff.State{PID: 999999, Engaged: time.Now()}); err != nil {
		t.Fatal(err)
	}
	store := handoff.NewStore(path, "node-1", clock.Real())
	runner := ipmitest.NewRunner()
	logger := slog.New(slog.DiscardHandler)

	if err := recoverHandoff(context.Background(), store, ipmi.NewActuator(runner, logger), logger); err != nil {
		t.Fatalf("recoverHandoff: %v", err)
	}
	calls := runner.Calls()
	if len(calls) != 1 || calls[0] != "raw 0x30 0x30 0x01 0x01" {
		t.Fatalf("calls = %v, want one automatic control command", calls)
	}
	if _, pending, _ := store.Pending(); pending {
		t.Fatal("record still pending after recovery")
	}
}

func TestRecoverHandoffWithoutRecordDoesNothing(t *testing.T) {
	store := handoff.NewStore(filepath.Join(t.TempDir(), "handoff.cbor"), "", clock.Real())
	runner := ipmitest.NewRunner()
	logger := slog.New(slog.DiscardHandler)

	if err := recoverHandoff(context.Background(), store, ipmi.NewActuator(runner, logger), logger); err != nil {
		t.Fatalf("recoverHandoff: %v", err)
	}
	if calls := runner.Calls(); len(calls) != 0 {
		t.Fatalf("calls = %v, want none", calls)
	}
}

func TestRecoverHandoffKeepsRecordWhenRestoreFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handoff.cbor")
	if err := handoff.Write(path, handoff.State{PID: 1, Engaged: time.Now()}); err != nil {
		t.Fatal(err)
	}
	store := handoff.NewStore(path, "", clock.Real())
	runner := ipmitest.NewRunner()
	runner.Respond(ipmi.Result{ExitCode: 1}, "raw", "0x30", "0x30", "0x01", "0x01")
	logger := slog.New(slog.DiscardHandler)

	if err := recoverHandoff(context.Background(), store, ipmi.NewActuator(runner, logger), logger); err == nil {
		t.Fatal("recoverHandoff succeeded although the restore command failed")
	}
	if _, pending, _ := store.Pending(); !pending {
		t.Fatal("record cleared although fans were not restored")
	}
}
