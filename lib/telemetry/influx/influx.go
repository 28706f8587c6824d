// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package influx writes telemetry batches to an InfluxDB 1.x
// compatible /write endpoint.
package influx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Config locates the database. User and Password are optional.
type Config struct {
	Address  string
	Database string
	User     string
	Password string

	// Gzip compresses request bodies (Content-Encoding: gzip).
	Gzip bool

	// Client defaults to an http.Client with a 10 second timeout.
	Client *http.Client
}

// Sink posts line-protocol batches with nanosecond precision.
type Sink struct {
	endpoint string
	gzip     bool
	client   *http.Client
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("influx: write returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("influx: write returned HTTP %d: %s", e.StatusCode, e.Body)
}

// New validates config and returns a Sink.
func New(config Config) (*Sink, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("influx: address is required")
	}
	if config.Database == "" {
		return nil, fmt.Errorf("influx: database is required")
	}
	base, err := url.Parse(strings.TrimRight(config.Address, "/"))
	if err != nil {
		return nil, fmt.Errorf("influx: parsing address %q: %w", config.Address, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("influx: address %q must be http or https", config.Address)
	}

	query := url.Values{}
	query.Set("db", config.Database)
	query.Set("precision", "ns")
	if config.User != "" {
		query.Set("u", config.User)
	}
	if config.Password != "" {
		query.Set("p", config.Password)
	}
	endpoint := base.JoinPath("write")
	endpoint.RawQuery = query.Encode()

	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Sink{endpoint: endpoint.String(), gzip: config.Gzip, client: client}, nil
}

// Write posts one batch.
func (s *Sink) Write(ctx context.Context, batch []byte) error {
	body := batch
	if s.gzip {
		var compressed bytes.Buffer
		writer := gzip.NewWriter(&compressed)
		if _, err := writer.Write(batch); err != nil {
			return fmt.Errorf("influx: compressing batch: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("influx: compressing batch: %w", err)
		}
		body = compressed.Bytes()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("influx: building request: %w", err)
	}
	request.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if s.gzip {
		request.Header.Set("Content-Encoding", "gzip")
	}

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("influx: posting batch: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return &StatusError{StatusCode: response.StatusCode, Body: strings.TrimSpace(string(detail))}
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}
