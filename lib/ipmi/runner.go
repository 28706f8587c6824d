// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipmi

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// DefaultPath is where distribution packages install ipmitool.
const DefaultPath = "/usr/bin/ipmitool"

// Result is the captured outcome of one ipmitool invocation.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes ipmitool with the given arguments. A non-zero exit
// is reported in Result.ExitCode, not as an error; the error return is
// reserved for failing to run the tool at all.
type Runner interface {
	Run(ctx context.Context, args ...string) (Result, error)
}

// ExecRunner runs the ipmitool binary at Path.
type ExecRunner struct {
	Path string
}

// NewExecRunner returns a Runner for the binary at path, or
// DefaultPath when path is empty.
func NewExecRunner(path string) *ExecRunner {
	if path == "" {
		path = DefaultPath
	}
	return &ExecRunner{Path: path}
}

// Run executes the binary and captures stdout and stderr separately.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, r.Path, args...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	err := command.Run()
	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			result.ExitCode = exitError.ExitCode()
			return result, nil
		}
		return result, &InvocationError{Args: args, Err: err}
	}
	return result, nil
}
