// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipmi

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotUTF8 is returned by Poll when the sensor listing is not valid
// UTF-8 text.
var ErrNotUTF8 = errors.New("ipmi: sensor listing is not valid UTF-8")

// InvocationError reports that ipmitool could not be started (missing
// binary, permission denied, context cancelled before start).
type InvocationError struct {
	Args []string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("ipmi: running ipmitool %s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ExitError reports that ipmitool ran but exited non-zero. Output is
// the captured stdout followed by stderr.
type ExitError struct {
	Args   []string
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("ipmi: ipmitool %s exited with code %d", strings.Join(e.Args, " "), e.Code)
	}
	return fmt.Sprintf("ipmi: ipmitool %s exited with code %d: %s", strings.Join(e.Args, " "), e.Code, e.Output)
}

func exitError(args []string, result Result) *ExitError {
	output := strings.TrimSpace(string(result.Stdout))
	if stderr := strings.TrimSpace(string(result.Stderr)); stderr != "" {
		if output != "" {
			output += "; "
		}
		output += stderr
	}
	return &ExitError{Args: args, Code: result.ExitCode, Output: output}
}
