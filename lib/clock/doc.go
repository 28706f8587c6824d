// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the
// control cycle and the telemetry worker.
//
// Production code holds a Clock and calls Real() at construction.
// Tests construct a FakeClock, start the goroutine under test, call
// WaitForTimers until the goroutine has parked on a ticker or timer,
// and then Advance the clock to drive exactly one cycle:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go driver.Run(ctx)
//	fake.WaitForTimers(1)
//	fake.Advance(2 * time.Second)
package clock
