// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import "time"

// Field is one named numeric value.
type Field struct {
	Name  string
	Value float64
}

// Tag is one indexed label.
type Tag struct {
	Name  string
	Value string
}

// Sample is a set of fields and tags observed together. Time is filled
// in by the Channel at Send when left zero.
type Sample struct {
	Fields []Field
	Tags   []Tag
	Time   time.Time
}

// Sender accepts samples without blocking.
type Sender interface {
	Send(sample Sample)
}

// Discard is a Sender that drops everything. Used when no backend is
// configured.
var Discard Sender = discard{}

type discard struct{}

func (discard) Send(Sample) {}
