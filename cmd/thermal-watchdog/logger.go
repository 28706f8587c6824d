// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bureau-foundation/thermal-watchdog/lib/config"
)

// newLogger builds the process logger. On a terminal, with no log file,
// records are human-readable text; otherwise they are JSON so the
// journal and the rotating file carry the same machine-parseable form.
// The returned function closes the log file, if any.
func newLogger(logging config.LoggingConfig, stderr *os.File) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logging.Level)); err != nil {
		return nil, nil, fmt.Errorf("log level %q: %w", logging.Level, err)
	}
	options := &slog.HandlerOptions{Level: level}

	if logging.File == "" {
		var handler slog.Handler
		if term.IsTerminal(int(stderr.Fd())) {
			handler = slog.NewTextHandler(stderr, options)
		} else {
			handler = slog.NewJSONHandler(stderr, options)
		}
		return slog.New(handler), func() {}, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   logging.File,
		MaxSize:    logging.MaxSizeMB,
		MaxBackups: logging.MaxBackups,
		MaxAge:     logging.MaxAgeDays,
	}
	handler := slog.NewJSONHandler(io.MultiWriter(stderr, rotator), options)
	return slog.New(handler), func() { rotator.Close() }, nil
}
