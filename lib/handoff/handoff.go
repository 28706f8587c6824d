// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package handoff records on disk that this process holds manual fan
// control, so that a process starting after a crash can hand the fans
// back to the firmware.
//
// The driver calls Engage before it first enables manual control and
// Release once firmware control is restored. A record found at
// startup means the previous process died between the two: the fans
// may be pinned at whatever duty cycle it last set.
//
// The file is written atomically (write to temporary file, fsync,
// rename) so readers never see a partial record. The encoding is Core
// Deterministic CBOR.
package handoff

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/bureau-foundation/thermal-watchdog/lib/clock"
)

// DefaultPath is where the daemon keeps its handoff record.
const DefaultPath = "/var/lib/thermal_watchdog/handoff.cbor"

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("handoff: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("handoff: CBOR decoder initialization failed: " + err.Error())
	}
}

// State identifies the process that engaged manual control.
type State struct {
	PID      int       `cbor:"pid"`
	Hostname string    `cbor:"hostname,omitempty"`
	Engaged  time.Time `cbor:"engaged"`
}

// Write atomically writes state to path with mode 0600. The parent
// directory must already exist.
func Write(path string, state State) error {
	data, err := encMode.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling handoff state: %w", err)
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary handoff file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary handoff file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary handoff file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary handoff file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming handoff file into place: %w", err)
	}

	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}
	return nil
}

// Read parses the record at path. A missing file yields an error
// wrapping fs.ErrNotExist.
func Read(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var state State
	if err := decMode.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parsing handoff file %s: %w", path, err)
	}
	return state, nil
}

// Store binds the record operations to one path.
type Store struct {
	path     string
	hostname string
	clock    clock.Clock
}

// NewStore returns a Store writing to path. hostname is recorded for
// diagnostics and may be empty.
func NewStore(path, hostname string, clk clock.Clock) *Store {
	return &Store{path: path, hostname: hostname, clock: clk}
}

// Path returns the record location.
func (s *Store) Path() string { return s.path }

// Engage records that this process is taking manual control. The
// parent directory is created if needed.
func (s *Store) Engage() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating handoff directory: %w", err)
	}
	return Write(s.path, State{
		PID:      os.Getpid(),
		Hostname: s.hostname,
		Engaged:  s.clock.Now(),
	})
}

// Release removes the record. Releasing with no record is not an
// error.
func (s *Store) Release() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing handoff file: %w", err)
	}
	return nil
}

// Pending returns the record left by a previous process, if any.
// Unreadable or corrupt records are returned as errors so the caller
// can tell "no record" from "record present but unusable".
func (s *Store) Pending() (State, bool, error) {
	state, err := Read(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, false, nil
		}
		return State{}, false, err
	}
	return state, true, nil
}
