// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetrytest provides an in-memory telemetry.Sender.
package telemetrytest

import (
	"sync"

	"github.com/bureau-foundation/thermal-watchdog/lib/telemetry"
)

// Recorder keeps every sample it is sent.
type Recorder struct {
	mu      sync.Mutex
	samples []telemetry.Sample
}

// Send implements telemetry.Sender.
func (r *Recorder) Send(sample telemetry.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, sample)
}

// Samples returns a copy of everything recorded so far.
func (r *Recorder) Samples() []telemetry.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]telemetry.Sample(nil), r.samples...)
}

// WithField returns the recorded samples that carry a field named
// name.
func (r *Recorder) WithField(name string) []telemetry.Sample {
	var matching []telemetry.Sample
	for _, sample := range r.Samples() {
		if _, ok := FieldValue(sample, name); ok {
			matching = append(matching, sample)
		}
	}
	return matching
}

// Reset discards recorded samples.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = nil
}

// FieldValue returns the value of the named field in sample.
func FieldValue(sample telemetry.Sample, name string) (float64, bool) {
	for _, field := range sample.Fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return 0, false
}

// TagValue returns the value of the named tag in sample.
func TagValue(sample telemetry.Sample, name string) (string, bool) {
	for _, tag := range sample.Tags {
		if tag.Name == name {
			return tag.Value, true
		}
	}
	return "", false
}
