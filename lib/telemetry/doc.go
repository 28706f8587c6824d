// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry carries control-loop samples to a time-series
// backend without ever blocking the loop.
//
// Data flow:
//
//	control loop → Channel.Send → queue → worker → Encoder → Sink.Write
//
// Send stamps the sample with the current time and enqueues it without
// waiting; a full queue or a stopped worker drops the sample with a
// warning. The single worker takes one sample off the queue, then
// drains everything else already queued (up to MaxBatch) into the same
// batch, joins the encoded lines with newlines, and hands the batch to
// the Sink. Delivery errors are logged and the batch is discarded.
//
// Lines use the InfluxDB line protocol:
//
//	thermal_watchdog,hostname=node1,name=Exhaust\ Temp,index=0 temperature=42 1767225600000000000
package telemetry
