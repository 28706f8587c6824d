// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/thermal-watchdog/lib/config"
	"github.com/bureau-foundation/thermal-watchdog/lib/control"
)

// options holds the command line. Values only override the
// configuration file when their flag was given.
type options struct {
	configPath  string
	influxAddr  string
	influxDB    string
	influxUser  string
	influxPW    string
	mqttBroker  string
	interval    time.Duration
	logFile     string
	logLevel    string
	stateFile   string
	live        bool
	showVersion bool

	flags *pflag.FlagSet
}

func parseFlags(args []string, output io.Writer) (*options, error) {
	o := &options{}
	flagSet := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.StringVarP(&o.configPath, "config", "c", config.DefaultPath, "configuration file (.toml, .yaml, or .yml)")
	flagSet.StringVarP(&o.influxAddr, "influx-addr", "a", "", "InfluxDB base URL, e.g. http://localhost:8086")
	flagSet.StringVarP(&o.influxDB, "influx-db", "d", "", "InfluxDB database")
	flagSet.StringVarP(&o.influxUser, "influx-user", "u", "", "InfluxDB user")
	flagSet.StringVarP(&o.influxPW, "influx-pw", "p", "", "InfluxDB password")
	flagSet.StringVar(&o.mqttBroker, "mqtt-broker", "", "MQTT broker host:port for telemetry")
	flagSet.DurationVar(&o.interval, "interval", control.DefaultInterval, "time between control cycles")
	flagSet.StringVar(&o.logFile, "log-file", "", "also write JSON logs to this rotating file")
	flagSet.StringVar(&o.logLevel, "log-level", "info", "debug, info, warn, or error")
	flagSet.StringVar(&o.stateFile, "state-file", "", "manual control record for crash recovery")
	flagSet.BoolVarP(&o.live, "live", "l", false, "send fan commands (default is shadow mode)")
	flagSet.BoolVar(&o.showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(output, "Usage:\n  %s [flags]\n  %s install [--live]\n\nFlags:\n%s",
			binaryName, binaryName, flagSet.FlagUsages())
	}

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", extra[0])
	}
	o.flags = flagSet
	return o, nil
}

// apply copies every flag that was set onto cfg.
func (o *options) apply(cfg *config.Config) {
	changed := o.flags.Changed

	if changed("influx-addr") || changed("influx-db") || changed("influx-user") || changed("influx-pw") {
		if cfg.Metrics == nil {
			cfg.Metrics = &config.MetricsConfig{}
		}
		if changed("influx-addr") {
			cfg.Metrics.InfluxAddr = o.influxAddr
		}
		if changed("influx-db") {
			cfg.Metrics.InfluxDB = o.influxDB
		}
		if changed("influx-user") {
			cfg.Metrics.InfluxUser = o.influxUser
		}
		if changed("influx-pw") {
			cfg.Metrics.InfluxPW = o.influxPW
		}
	}
	if changed("mqtt-broker") {
		if cfg.MQTT == nil {
			cfg.MQTT = &config.MQTTConfig{}
		}
		cfg.MQTT.Broker = o.mqttBroker
	}
	if changed("interval") {
		cfg.Loop.Interval = o.interval
	}
	if changed("log-file") {
		cfg.Logging.File = o.logFile
	}
	if changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if changed("state-file") {
		cfg.Loop.StateFile = o.stateFile
	}
}
