// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hostinfo reports facts about the machine the daemon runs
// on: its hostname and CPU usage.
//
// A [Sampler] produces two telemetry fields per call:
//
//   - cpu_usage: this process's CPU time (user + system, from
//     getrusage) as a percentage of wall time since the last call.
//   - host_cpu_usage: whole-machine utilization from /proc/stat.
//
// Both are deltas, so the first call after construction only primes
// the baselines and returns no fields.
package hostinfo
