// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostinfo

import (
	"log/slog"
	"os"
	"time"

	"github.com/bureau-foundation/thermal-watchdog/lib/clock"
	"github.com/bureau-foundation/thermal-watchdog/lib/telemetry"
)

// Hostname returns the kernel hostname, or "" if it cannot be read.
func Hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}

// Sampler computes CPU usage deltas between successive calls. It is
// not safe for concurrent use.
type Sampler struct {
	clock  clock.Clock
	logger *slog.Logger

	statPath    string
	processTime func() (time.Duration, error)

	primed      bool
	lastWall    time.Time
	lastProcess time.Duration
	lastHost    *CPUReading
}

// NewSampler returns a Sampler reading wall time from clk.
func NewSampler(clk clock.Clock, logger *slog.Logger) *Sampler {
	return &Sampler{
		clock:       clk,
		logger:      logger,
		statPath:    procStatPath,
		processTime: ProcessCPUTime,
	}
}

// Sample returns cpu_usage and host_cpu_usage fields for the period
// since the previous call. Fields that cannot be computed are omitted.
func (s *Sampler) Sample() []telemetry.Field {
	now := s.clock.Now()
	host := readCPUStatsFrom(s.statPath)
	process, err := s.processTime()
	if err != nil {
		s.logger.Debug("reading process CPU time failed", "error", err)
	}

	var fields []telemetry.Field
	if s.primed {
		wall := now.Sub(s.lastWall)
		if err == nil && wall > 0 && process >= s.lastProcess {
			fields = append(fields, telemetry.Field{
				Name:  "cpu_usage",
				Value: float64(process-s.lastProcess) / float64(wall) * 100,
			})
		}
		if host != nil && s.lastHost != nil {
			fields = append(fields, telemetry.Field{Name: "host_cpu_usage", Value: CPUPercent(s.lastHost, host)})
		}
	}

	s.primed = true
	s.lastWall = now
	if err == nil {
		s.lastProcess = process
	}
	s.lastHost = host
	return fields
}
