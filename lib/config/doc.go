// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the thermal watchdog configuration file.
//
// The file is TOML (the historical format, /etc/thermal_watchdog.toml)
// or YAML, chosen by extension. A missing file is not an error: [Load]
// returns [Default] and reports that nothing was read. A file that
// exists but does not parse, or that names keys this package does not
// know, is an error.
//
// Sections:
//
//   - [metrics]: InfluxDB destination (influx_addr, influx_db,
//     influx_user, influx_pw, gzip). Absent means no InfluxDB sink.
//   - [mqtt]: MQTT broker destination (broker, topic, client_id,
//     username, password). Absent means no MQTT sink.
//   - [pid]: controller gains shared by every point (k_factor,
//     i_factor, d_factor, filter_points, min, integral_floor).
//   - [[controls]]: monitored points in order (name, setpoint,
//     failsafe, optional k_factor/i_factor/d_factor overrides).
//   - [loop]: interval, on_fault ("release" or "exit"), state_file.
//   - [logging]: level and optional rotating log file.
//
// ${VAR} and ${VAR:-default} patterns are expanded from the
// environment in credential and path fields, so secrets can stay out
// of the file. No other environment variables override config values.
//
// Command-line flags are applied by the caller after Load; call
// [Config.Validate] last.
package config
