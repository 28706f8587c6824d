// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipmitest provides a scripted ipmi.Runner for tests.
package ipmitest

import (
	"context"
	"strings"
	"sync"

	"github.com/bureau-foundation/thermal-watchdog/lib/ipmi"
)

// Runner is an ipmi.Runner that answers from a script and records
// every invocation. Responses are keyed by the space-joined argument
// list; unknown commands succeed with empty output.
type Runner struct {
	mu        sync.Mutex
	responses map[string][]response
	calls     [][]string
}

type response struct {
	result ipmi.Result
	err    error
}

// NewRunner returns an empty scripted runner.
func NewRunner() *Runner {
	return &Runner{responses: make(map[string][]response)}
}

// Respond queues a result for the command with the given arguments.
// Queued results are consumed in order; the last one repeats.
func (r *Runner) Respond(result ipmi.Result, args ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.Join(args, " ")
	r.responses[key] = append(r.responses[key], response{result: result})
}

// Fail queues an invocation error for the command.
func (r *Runner) Fail(err error, args ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.Join(args, " ")
	r.responses[key] = append(r.responses[key], response{err: err})
}

// Listing queues a successful "sdr list full" response with the given
// lines.
func (r *Runner) Listing(lines ...string) {
	r.Respond(ipmi.Result{Stdout: []byte(strings.Join(lines, "\n") + "\n")}, "sdr", "list", "full")
}

// Run implements ipmi.Runner.
func (r *Runner) Run(_ context.Context, args ...string) (ipmi.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, append([]string(nil), args...))
	key := strings.Join(args, " ")
	queue := r.responses[key]
	if len(queue) == 0 {
		return ipmi.Result{}, nil
	}
	next := queue[0]
	if len(queue) > 1 {
		r.responses[key] = queue[1:]
	}
	return next.result, next.err
}

// Calls returns every invocation as a space-joined argument string.
func (r *Runner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	joined := make([]string, len(r.calls))
	for i, call := range r.calls {
		joined[i] = strings.Join(call, " ")
	}
	return joined
}

// CallsWithPrefix returns the invocations whose argument string starts
// with prefix, e.g. "raw 0x30 0x30 0x02".
func (r *Runner) CallsWithPrefix(prefix string) []string {
	var matching []string
	for _, call := range r.Calls() {
		if strings.HasPrefix(call, prefix) {
			matching = append(matching, call)
		}
	}
	return matching
}
