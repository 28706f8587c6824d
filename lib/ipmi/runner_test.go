// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipmi

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExecRunnerCapturesExitCode(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	runner := NewExecRunner("/bin/sh")

	result, err := runner.Run(context.Background(), "-c", "printf 'Temp | 40 degrees C'; echo oops >&2; exit 3")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode != 3 {
		t.Fatalf("ExitCode = %d, want 3", result.ExitCode)
	}
	if string(result.Stdout) != "Temp | 40 degrees C" {
		t.Fatalf("Stdout = %q", result.Stdout)
	}
	if string(result.Stderr) != "oops\n" {
		t.Fatalf("Stderr = %q", result.Stderr)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	runner := NewExecRunner(filepath.Join(t.TempDir(), "ipmitool"))

	_, err := runner.Run(context.Background(), "sdr", "list", "full")
	var invocationError *InvocationError
	if !errors.As(err, &invocationError) {
		t.Fatalf("Run error = %v, want *InvocationError", err)
	}
}

func TestNewExecRunnerDefaultPath(t *testing.T) {
	if got := NewExecRunner("").Path; got != DefaultPath {
		t.Fatalf("Path = %q, want %q", got, DefaultPath)
	}
}
