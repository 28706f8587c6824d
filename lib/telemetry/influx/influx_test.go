// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package influx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"
)

type capturedRequest struct {
	path     string
	query    map[string]string
	encoding string
	body     string
}

func newServer(t *testing.T, status int) (*httptest.Server, chan capturedRequest) {
	t.Helper()
	requests := make(chan capturedRequest, 4)
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		reader := io.Reader(request.Body)
		if request.Header.Get("Content-Encoding") == "gzip" {
			decompressor, err := gzip.NewReader(request.Body)
			if err != nil {
				t.Errorf("gzip.NewReader: %v", err)
				return
			}
			defer decompressor.Close()
			reader = decompressor
		}
		body, _ := io.ReadAll(reader)

		query := map[string]string{}
		for key := range request.URL.Query() {
			query[key] = request.URL.Query().Get(key)
		}
		requests <- capturedRequest{
			path:     request.URL.Path,
			query:    query,
			encoding: request.Header.Get("Content-Encoding"),
			body:     string(body),
		}
		writer.WriteHeader(status)
		if status >= 400 {
			_, _ = writer.Write([]byte(`{"error":"database not found: \"twd\""}`))
		}
	}))
	t.Cleanup(server.Close)
	return server, requests
}

func TestWritePostsBatch(t *testing.T) {
	server, requests := newServer(t, http.StatusNoContent)
	sink, err := New(Config{Address: server.URL + "/", Database: "twd", User: "admin", Password: "influx"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	batch := "thermal_watchdog a=1\nthermal_watchdog b=2"
	if err := sink.Write(context.Background(), []byte(batch)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	request := <-requests
	if request.path != "/write" {
		t.Fatalf("path = %q, want /write", request.path)
	}
	want := map[string]string{"db": "twd", "u": "admin", "p": "influx", "precision": "ns"}
	for key, value := range want {
		if request.query[key] != value {
			t.Errorf("query %s = %q, want %q", key, request.query[key], value)
		}
	}
	if request.encoding != "" {
		t.Fatalf("Content-Encoding = %q, want none", request.encoding)
	}
	if request.body != batch {
		t.Fatalf("body = %q, want %q", request.body, batch)
	}
}

func TestWriteGzip(t *testing.T) {
	server, requests := newServer(t, http.StatusNoContent)
	sink, err := New(Config{Address: server.URL, Database: "twd", Gzip: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	batch := "thermal_watchdog,hostname=node1 fan\\ speed=0.35"
	if err := sink.Write(context.Background(), []byte(batch)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	request := <-requests
	if request.encoding != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", request.encoding)
	}
	if request.body != batch {
		t.Fatalf("decompressed body = %q, want %q", request.body, batch)
	}
	if _, ok := request.query["u"]; ok {
		t.Fatalf("query carries a user without credentials: %v", request.query)
	}
}

func TestWriteStatusError(t *testing.T) {
	server, _ := newServer(t, http.StatusNotFound)
	sink, err := New(Config{Address: server.URL, Database: "twd"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = sink.Write(context.Background(), []byte("thermal_watchdog a=1"))
	var statusError *StatusError
	if !errors.As(err, &statusError) {
		t.Fatalf("Write error = %v, want *StatusError", err)
	}
	if statusError.StatusCode != http.StatusNotFound {
		t.Fatalf("StatusCode = %d, want 404", statusError.StatusCode)
	}
}

func TestNewValidation(t *testing.T) {
	tests := []Config{
		{Database: "twd"},
		{Address: "http://localhost:8086"},
		{Address: "localhost:8086", Database: "twd"},
	}
	for _, config := range tests {
		if _, err := New(config); err == nil {
			t.Errorf("New(%+v) succeeded, want error", config)
		}
	}
}
