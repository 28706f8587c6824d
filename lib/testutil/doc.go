// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the channel wait helpers shared by tests of
// the telemetry worker and the control driver. They are the only place
// tests wait on the wall clock; everything else advances a
// clock.FakeClock.
package testutil
