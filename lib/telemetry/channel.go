// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/thermal-watchdog/lib/clock"
)

// Sink delivers one newline-joined batch of encoded lines.
type Sink interface {
	Write(ctx context.Context, batch []byte) error
}

// MultiSink writes every batch to each of its sinks in order. A
// failing sink does not stop delivery to the others; their errors are
// joined.
type MultiSink []Sink

// Write implements Sink.
func (m MultiSink) Write(ctx context.Context, batch []byte) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Write(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Defaults for Config fields left zero.
const (
	DefaultQueueSize    = 4096
	DefaultMaxBatch     = 5000
	DefaultWriteTimeout = 10 * time.Second
)

// Config configures a Channel.
type Config struct {
	Sink    Sink
	Encoder Encoder

	// QueueSize bounds the number of samples waiting for the worker.
	QueueSize int

	// MaxBatch bounds the number of lines coalesced into one Write.
	MaxBatch int

	// WriteTimeout bounds each Sink.Write.
	WriteTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Channel is the non-blocking handle to the telemetry worker.
type Channel struct {
	queue         chan Sample
	stop          chan struct{}
	done          chan struct{}
	once          sync.Once
	workerContext context.Context
	cancel        context.CancelFunc

	sink         Sink
	encoder      Encoder
	maxBatch     int
	writeTimeout time.Duration
	clock        clock.Clock
	logger       *slog.Logger

	// Read concurrently by callers while the worker writes them.
	batches atomic.Uint64
	dropped atomic.Uint64
}

// Start launches the worker and returns its handle. Call Close to stop
// it.
func Start(config Config) *Channel {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.MaxBatch <= 0 {
		config.MaxBatch = DefaultMaxBatch
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	channel := &Channel{
		queue:         make(chan Sample, config.QueueSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		workerContext: ctx,
		cancel:        cancel,
		sink:          config.Sink,
		encoder:       config.Encoder,
		maxBatch:      config.MaxBatch,
		writeTimeout:  config.WriteTimeout,
		clock:         config.Clock,
		logger:        config.Logger,
	}
	go channel.run()
	return channel
}

// Send enqueues a sample. It never blocks: when the worker has stopped
// or the queue is full the sample is logged and dropped.
func (c *Channel) Send(sample Sample) {
	if sample.Time.IsZero() {
		sample.Time = c.clock.Now()
	}

	select {
	case <-c.done:
		c.dropped.Add(1)
		c.logger.Warn("telemetry worker stopped, dropping sample", "fields", len(sample.Fields))
		return
	default:
	}

	select {
	case c.queue <- sample:
	default:
		c.dropped.Add(1)
		c.logger.Warn("telemetry queue full, dropping sample", "queue_size", cap(c.queue))
	}
}

// Close signals the worker to stop and waits for it to exit. Samples
// still queued are discarded and an in-flight write is cancelled.
// Close is idempotent.
func (c *Channel) Close() {
	c.once.Do(func() {
		close(c.stop)
		c.cancel()
	})
	<-c.done
}

// Done is closed once the worker has exited.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Batches returns the number of batches handed to the sink, whether or
// not the write succeeded.
func (c *Channel) Batches() uint64 { return c.batches.Load() }

// Dropped returns the number of samples rejected by Send.
func (c *Channel) Dropped() uint64 { return c.dropped.Load() }

func (c *Channel) run() {
	defer close(c.done)

	lines := make([]string, 0, 64)
	for {
		select {
		case <-c.stop:
			return
		case sample := <-c.queue:
			lines = c.appendLine(lines[:0], sample)
		drain:
			for len(lines) < c.maxBatch {
				select {
				case sample := <-c.queue:
					lines = c.appendLine(lines, sample)
				default:
					break drain
				}
			}
			if len(lines) > 0 {
				c.deliver(lines)
			}
		}
	}
}

func (c *Channel) appendLine(lines []string, sample Sample) []string {
	line, err := c.encoder.Line(sample)
	if err != nil {
		c.logger.Warn("dropping unencodable telemetry sample", "error", err)
		return lines
	}
	return append(lines, line)
}

func (c *Channel) deliver(lines []string) {
	ctx, cancel := context.WithTimeout(c.workerContext, c.writeTimeout)
	defer cancel()

	c.batches.Add(1)
	if err := c.sink.Write(ctx, []byte(strings.Join(lines, "\n"))); err != nil {
		c.logger.Warn("telemetry delivery failed", "error", err, "lines", len(lines))
		return
	}
	c.logger.Debug("telemetry delivered", "lines", len(lines))
}
