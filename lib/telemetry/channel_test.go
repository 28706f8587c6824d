// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/thermal-watchdog/lib/clock"
	"github.com/bureau-foundation/thermal-watchdog/lib/testutil"
)

const wait = 5 * time.Second

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// gatedSink records batches. When gated, each Write signals entered
// and then blocks until release receives or the context ends.
type gatedSink struct {
	batches chan string
	entered chan struct{}
	release chan struct{}
	err     error
}

func newGatedSink(gated bool) *gatedSink {
	sink := &gatedSink{
		batches: make(chan string, 1024),
		entered: make(chan struct{}, 1024),
	}
	if gated {
		sink.release = make(chan struct{})
	}
	return sink
}

func (s *gatedSink) Write(ctx context.Context, batch []byte) error {
	s.entered <- struct{}{}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.batches <- string(batch)
	return s.err
}

func field(name string, value float64) Sample {
	return Sample{Fields: []Field{{Name: name, Value: value}}}
}

func startChannel(t *testing.T, sink Sink, queueSize int) *Channel {
	t.Helper()
	channel := Start(Config{
		Sink:      sink,
		QueueSize: queueSize,
		Clock:     clock.Fake(epoch),
		Logger:    slog.New(slog.DiscardHandler),
	})
	t.Cleanup(channel.Close)
	return channel
}

func TestChannelDeliversStampedSample(t *testing.T) {
	sink := newGatedSink(false)
	channel := startChannel(t, sink, 0)

	channel.Send(field("temperature", 42))

	batch := testutil.RequireReceive(t, sink.batches, wait, "waiting for batch")
	if want := "thermal_watchdog temperature=42 1767225600000000000"; batch != want {
		t.Fatalf("batch = %q, want %q", batch, want)
	}
}

func TestChannelCoalescesPendingSamples(t *testing.T) {
	sink := newGatedSink(true)
	channel := startChannel(t, sink, 0)

	channel.Send(field("seq", 0))
	testutil.RequireReceive(t, sink.entered, wait, "worker picked up the first sample")

	// The worker is blocked inside Write; these queue up behind it.
	for i := 1; i < 10; i++ {
		channel.Send(field("seq", float64(i)))
	}
	close(sink.release)

	first := testutil.RequireReceive(t, sink.batches, wait, "first batch")
	second := testutil.RequireReceive(t, sink.batches, wait, "second batch")

	if !strings.HasPrefix(first, "thermal_watchdog seq=0 ") || strings.Contains(first, "\n") {
		t.Fatalf("first batch = %q, want only seq=0", first)
	}
	lines := strings.Split(second, "\n")
	if len(lines) != 9 {
		t.Fatalf("second batch has %d lines, want 9 coalesced lines:\n%s", len(lines), second)
	}
	for i, line := range lines {
		if !strings.HasPrefix(line, fmt.Sprintf("thermal_watchdog seq=%d ", i+1)) {
			t.Fatalf("line %d = %q, want seq=%d", i, line, i+1)
		}
	}
}

func TestChannelPreservesOrderUnderLoad(t *testing.T) {
	const count = 200
	sink := newGatedSink(false)
	channel := startChannel(t, sink, count)

	for i := 0; i < count; i++ {
		channel.Send(Sample{
			Fields: []Field{{Name: "seq", Value: float64(i)}},
			Tags:   []Tag{{Name: "name", Value: "Temp"}},
		})
	}

	var lines []string
	for len(lines) < count {
		batch := testutil.RequireReceive(t, sink.batches, wait, "waiting for batches (%d lines so far)", len(lines))
		lines = append(lines, strings.Split(batch, "\n")...)
	}

	batches := channel.Batches()
	if batches < 1 || batches > count {
		t.Fatalf("Batches() = %d, want between 1 and %d", batches, count)
	}
	for i, line := range lines {
		if !strings.HasPrefix(line, fmt.Sprintf("thermal_watchdog,name=Temp seq=%d ", i)) {
			t.Fatalf("line %d = %q out of order", i, line)
		}
	}
}

func TestChannelDropsWhenQueueFull(t *testing.T) {
	sink := newGatedSink(true)
	channel := startChannel(t, sink, 1)

	channel.Send(field("seq", 0))
	testutil.RequireReceive(t, sink.entered, wait, "worker picked up the first sample")

	channel.Send(field("seq", 1))
	channel.Send(field("seq", 2))

	if dropped := channel.Dropped(); dropped != 1 {
		t.Fatalf("Dropped() = %d, want 1", dropped)
	}
	close(sink.release)

	testutil.RequireReceive(t, sink.batches, wait, "first batch")
	if second := testutil.RequireReceive(t, sink.batches, wait, "second batch"); !strings.HasPrefix(second, "thermal_watchdog seq=1 ") {
		t.Fatalf("second batch = %q, want seq=1", second)
	}
}

func TestChannelContinuesAfterWriteError(t *testing.T) {
	sink := newGatedSink(false)
	sink.err = errors.New("connection refused")
	channel := startChannel(t, sink, 0)

	channel.Send(field("seq", 0))
	testutil.RequireReceive(t, sink.batches, wait, "first batch")
	channel.Send(field("seq", 1))
	testutil.RequireReceive(t, sink.batches, wait, "second batch after a failed write")
}

func TestChannelSendAfterCloseDrops(t *testing.T) {
	sink := newGatedSink(false)
	channel := startChannel(t, sink, 0)
	channel.Close()

	testutil.RequireClosed(t, channel.Done(), wait, "worker exit")

	sent := make(chan struct{})
	go func() {
		channel.Send(field("late", 1))
		close(sent)
	}()
	testutil.RequireClosed(t, sent, wait, "Send after Close must not block")

	if dropped := channel.Dropped(); dropped != 1 {
		t.Fatalf("Dropped() = %d, want 1", dropped)
	}
	channel.Close()
}

func TestChannelCloseCancelsInflightWrite(t *testing.T) {
	sink := newGatedSink(true)
	channel := startChannel(t, sink, 0)

	channel.Send(field("seq", 0))
	testutil.RequireReceive(t, sink.entered, wait, "worker inside Write")

	closed := make(chan struct{})
	go func() {
		channel.Close()
		close(closed)
	}()
	testutil.RequireClosed(t, closed, wait, "Close with a blocked sink")
}

func TestDiscardSender(t *testing.T) {
	Discard.Send(field("x", 1))
}

type recordingSink struct {
	batches []string
	err     error
}

func (s *recordingSink) Write(_ context.Context, batch []byte) error {
	s.batches = append(s.batches, string(batch))
	return s.err
}

func TestMultiSinkWritesEverySink(t *testing.T) {
	failure := errors.New("broker down")
	first := &recordingSink{err: failure}
	second := &recordingSink{}

	err := MultiSink{first, second}.Write(context.Background(), []byte("m v=1"))
	if !errors.Is(err, failure) {
		t.Fatalf("Write error = %v, want the failing sink's error", err)
	}
	if len(first.batches) != 1 || len(second.batches) != 1 || second.batches[0] != "m v=1" {
		t.Fatalf("batches = %v / %v, want one each", first.batches, second.batches)
	}
	if err := (MultiSink{second}).Write(context.Background(), []byte("x")); err != nil {
		t.Fatalf("Write with healthy sinks = %v", err)
	}
}
