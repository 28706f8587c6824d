// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestInstaller(t *testing.T) (*installer, *bytes.Buffer) {
	t.Helper()
	directory := t.TempDir()

	ipmitool := filepath.Join(directory, "ipmitool")
	if err := os.WriteFile(ipmitool, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	built := filepath.Join(directory, "built-binary")
	if err := os.WriteFile(built, []byte("ELF pretend"), 0755); err != nil {
		t.Fatal(err)
	}

	var output bytes.Buffer
	return &installer{
		ipmitoolPath: ipmitool,
		binaryPath:   filepath.Join(directory, "sbin-thermal_watchdog"),
		unitPath:     filepath.Join(directory, "thermal_watchdog.service"),
		configPath:   filepath.Join(directory, "thermal_watchdog.toml"),
		executable:   func() (string, error) { return built, nil },
		output:       &output,
	}, &output
}

func TestInstallWritesEverything(t *testing.T) {
	install, output := newTestInstaller(t)

	if err := install.run(); err != nil {
		t.Fatalf("install: %v", err)
	}

	binary, err := os.ReadFile(install.binaryPath)
	if err != nil || string(binary) != "ELF pretend" {
		t.Fatalf("installed binary = %q, %v", binary, err)
	}
	info, _ := os.Stat(install.binaryPath)
	if info.Mode().Perm() != 0755 {
		t.Errorf("binary mode = %o, want 755", info.Mode().Perm())
	}

	unit, err := os.ReadFile(install.unitPath)
	if err != nil {
		t.Fatalf("reading unit: %v", err)
	}
	for _, want := range []string{
		"Type=notify",
		"ExecStart=" + install.binaryPath + " --config " + install.configPath + "\n",
		"ExecStopPost=" + install.ipmitoolPath + " raw 0x30 0x30 0x01 0x01",
		"Restart=on-failure",
		"WatchdogSec=10",
	} {
		if !strings.Contains(string(unit), want) {
			t.Errorf("unit missing %q:\n%s", want, unit)
		}
	}

	starter, err := os.ReadFile(install.configPath)
	if err != nil || string(starter) != defaultConfigText {
		t.Fatalf("config = %q, %v", starter, err)
	}
	if !strings.Contains(output.String(), "shadow mode") {
		t.Errorf("output does not mention shadow mode: %s", output.String())
	}
}

func TestInstallLiveUnit(t *testing.T) {
	install, _ := newTestInstaller(t)
	install.live = true

	if err := install.run(); err != nil {
		t.Fatalf("install: %v", err)
	}
	unit, _ := os.ReadFile(install.unitPath)
	if !strings.Contains(string(unit), " --live\n") {
		t.Fatalf("unit does not run live:\n%s", unit)
	}
}

func TestInstallKeepsExistingFiles(t *testing.T) {
	install, output := newTestInstaller(t)
	if err := os.WriteFile(install.configPath, []byte("# mine\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := install.run(); err != nil {
		t.Fatalf("install: %v", err)
	}
	kept, _ := os.ReadFile(install.configPath)
	if string(kept) != "# mine\n" {
		t.Fatalf("existing config overwritten: %q", kept)
	}
	if !strings.Contains(output.String(), "skipped "+install.configPath) {
		t.Fatalf("output = %s", output.String())
	}
}

func TestInstallRequiresIpmitool(t *testing.T) {
	install, _ := newTestInstaller(t)
	install.ipmitoolPath = filepath.Join(t.TempDir(), "missing")

	err := install.run()
	if err == nil || !strings.Contains(err.Error(), "apt install ipmitool") {
		t.Fatalf("install error = %v", err)
	}
	if _, statErr := os.Stat(install.binaryPath); !os.IsNotExist(statErr) {
		t.Fatal("binary installed without ipmitool")
	}
}
