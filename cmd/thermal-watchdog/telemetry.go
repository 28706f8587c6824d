// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/thermal-watchdog/lib/config"
	"github.com/bureau-foundation/thermal-watchdog/lib/telemetry"
	"github.com/bureau-foundation/thermal-watchdog/lib/telemetry/influx"
	"github.com/bureau-foundation/thermal-watchdog/lib/telemetry/mqttsink"
)

// startTelemetry starts one telemetry channel feeding every configured
// destination. With none configured it returns telemetry.Discard.
func startTelemetry(cfg *config.Config, hostname string, logger *slog.Logger) (telemetry.Sender, func(), error) {
	var sinks telemetry.MultiSink
	var closers []func() error

	if cfg.Metrics != nil {
		sink, err := influx.New(influx.Config{
			Address:  cfg.Metrics.InfluxAddr,
			Database: cfg.Metrics.InfluxDB,
			User:     cfg.Metrics.InfluxUser,
			Password: cfg.Metrics.InfluxPW,
			Gzip:     cfg.Metrics.Gzip,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("configuring InfluxDB telemetry: %w", err)
		}
		sinks = append(sinks, sink)
		logger.Info("sending telemetry to InfluxDB", "address", cfg.Metrics.InfluxAddr, "database", cfg.Metrics.InfluxDB)
	}
	if cfg.MQTT != nil {
		sink, err := mqttsink.New(mqttsink.Config{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("configuring MQTT telemetry: %w", err)
		}
		sinks = append(sinks, sink)
		closers = append(closers, sink.Close)
		logger.Info("sending telemetry to MQTT", "broker", cfg.MQTT.Broker)
	}

	if len(sinks) == 0 {
		logger.Info("no telemetry destination configured")
		return telemetry.Discard, func() {}, nil
	}

	var sink telemetry.Sink = sinks
	if len(sinks) == 1 {
		sink = sinks[0]
	}
	channel := telemetry.Start(telemetry.Config{
		Sink: sink,
		Encoder: telemetry.Encoder{
			Measurement: telemetry.DefaultMeasurement,
			Tags:        []telemetry.Tag{{Name: "hostname", Value: hostname}},
		},
		Logger: logger,
	})
	return channel, func() {
		channel.Close()
		for _, closer := range closers {
			if err := closer(); err != nil {
				logger.Warn("closing telemetry sink failed", "error", err)
			}
		}
	}, nil
}
