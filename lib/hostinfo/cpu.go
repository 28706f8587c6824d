// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostinfo

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// procStatPath is the kernel's aggregate CPU accounting file.
const procStatPath = "/proc/stat"

// CPUReading is cumulative CPU time from the first line of /proc/stat:
//
//	cpu  user nice system idle iowait irq softirq steal guest guest_nice
//
// busy = user + nice + system + irq + softirq + steal
// idle = idle + iowait
//
// guest and guest_nice are already counted in user and nice.
type CPUReading struct {
	Busy uint64
	Idle uint64
}

// ReadCPUStats returns the current host CPU counters, or nil when
// /proc/stat is unavailable or malformed.
func ReadCPUStats() *CPUReading {
	return readCPUStatsFrom(procStatPath)
}

func readCPUStatsFrom(path string) *CPUReading {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		return nil
	}

	fields := strings.Fields(scanner.Text())
	if len(fields) < 9 || fields[0] != "cpu" {
		return nil
	}
	values := make([]uint64, len(fields)-1)
	for i := 1; i < len(fields); i++ {
		parsed, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return nil
		}
		values[i-1] = parsed
	}

	return &CPUReading{
		Busy: values[0] + values[1] + values[2] + values[5] + values[6] + values[7],
		Idle: values[3] + values[4],
	}
}

// CPUPercent is the utilization between two readings, or 0 when
// either is nil or no time passed. Counter resets (current below
// previous) also yield 0.
func CPUPercent(previous, current *CPUReading) float64 {
	if previous == nil || current == nil {
		return 0
	}
	if current.Busy < previous.Busy || current.Idle < previous.Idle {
		return 0
	}
	busyDelta := current.Busy - previous.Busy
	totalDelta := busyDelta + (current.Idle - previous.Idle)
	if totalDelta == 0 {
		return 0
	}
	return float64(busyDelta) / float64(totalDelta) * 100
}

// ProcessCPUTime returns the user plus system CPU time consumed by
// this process so far.
func ProcessCPUTime() (time.Duration, error) {
	var usage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &usage); err != nil {
		return 0, err
	}
	return time.Duration(usage.Utime.Nano() + usage.Stime.Nano()), nil
}
