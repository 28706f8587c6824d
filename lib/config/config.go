// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/thermal-watchdog/lib/control"
	"github.com/bureau-foundation/thermal-watchdog/lib/handoff"
	"github.com/bureau-foundation/thermal-watchdog/lib/pid"
)

// DefaultPath is where the daemon looks for its configuration.
const DefaultPath = "/etc/thermal_watchdog.toml"

// Config is the complete daemon configuration.
type Config struct {
	Metrics  *MetricsConfig  `toml:"metrics" yaml:"metrics"`
	MQTT     *MQTTConfig     `toml:"mqtt" yaml:"mqtt"`
	PID      PIDConfig       `toml:"pid" yaml:"pid"`
	Controls []ControlConfig `toml:"controls" yaml:"controls"`
	Loop     LoopConfig      `toml:"loop" yaml:"loop"`
	Logging  LoggingConfig   `toml:"logging" yaml:"logging"`
}

// MetricsConfig locates the InfluxDB database.
type MetricsConfig struct {
	InfluxAddr string `toml:"influx_addr" yaml:"influx_addr"`
	InfluxDB   string `toml:"influx_db" yaml:"influx_db"`
	InfluxUser string `toml:"influx_user" yaml:"influx_user"`
	InfluxPW   string `toml:"influx_pw" yaml:"influx_pw"`

	// Gzip compresses write request bodies.
	Gzip bool `toml:"gzip" yaml:"gzip"`
}

// MQTTConfig locates the MQTT broker that receives telemetry batches.
type MQTTConfig struct {
	Broker   string `toml:"broker" yaml:"broker"`
	Topic    string `toml:"topic" yaml:"topic"`
	ClientID string `toml:"client_id" yaml:"client_id"`
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
}

// PIDConfig holds the gains shared by every control point.
type PIDConfig struct {
	KFactor      float64 `toml:"k_factor" yaml:"k_factor"`
	IFactor      float64 `toml:"i_factor" yaml:"i_factor"`
	DFactor      float64 `toml:"d_factor" yaml:"d_factor"`
	FilterPoints int     `toml:"filter_points" yaml:"filter_points"`

	// Min is the lowest fan duty cycle the daemon applies, in percent.
	Min float64 `toml:"min" yaml:"min"`

	IntegralFloor float64 `toml:"integral_floor" yaml:"integral_floor"`
}

// ControlConfig is one monitored temperature sensor. The optional
// factors override the [pid] section for this point only.
type ControlConfig struct {
	Name     string  `toml:"name" yaml:"name"`
	Setpoint float64 `toml:"setpoint" yaml:"setpoint"`
	Failsafe float64 `toml:"failsafe" yaml:"failsafe"`

	KFactor *float64 `toml:"k_factor" yaml:"k_factor,omitempty"`
	IFactor *float64 `toml:"i_factor" yaml:"i_factor,omitempty"`
	DFactor *float64 `toml:"d_factor" yaml:"d_factor,omitempty"`
}

// LoopConfig controls cycle timing and fault handling.
type LoopConfig struct {
	Interval time.Duration `toml:"interval" yaml:"interval"`

	// OnFault is "release" (hand fans to firmware and keep running)
	// or "exit" (hand fans to firmware and stop).
	OnFault string `toml:"on_fault" yaml:"on_fault"`

	// StateFile records that manual control is engaged, for crash
	// recovery.
	StateFile string `toml:"state_file" yaml:"state_file"`
}

// LoggingConfig selects the log level and an optional rotating file.
type LoggingConfig struct {
	Level      string `toml:"level" yaml:"level"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
}

// DefaultControls are the stock points: one exhaust sensor and two
// CPU package sensors that share a name.
func DefaultControls() []ControlConfig {
	return []ControlConfig{
		{Name: "Exhaust Temp", Setpoint: 40, Failsafe: 60},
		{Name: "Temp", Setpoint: 55, Failsafe: 65},
		{Name: "Temp", Setpoint: 55, Failsafe: 65},
	}
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	config := defaultWithoutControls()
	config.Controls = DefaultControls()
	return config
}

// defaultWithoutControls is the decode base. Controls stay nil so a
// file's [[controls]] replace the defaults instead of merging into
// them element by element.
func defaultWithoutControls() *Config {
	return &Config{
		PID: PIDConfig{
			KFactor:      0.05,
			IFactor:      0.000001,
			DFactor:      0,
			FilterPoints: 5,
			Min:          0,
		},
		Loop: LoopConfig{
			Interval:  control.DefaultInterval,
			OnFault:   string(control.FaultRelease),
			StateFile: handoff.DefaultPath,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads the file at path. found is false when the file does not
// exist, in which case the defaults are returned.
func Load(path string) (config *Config, found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading config %s: %w", path, err)
	}

	config = defaultWithoutControls()
	if err := config.decode(path, data); err != nil {
		return nil, true, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if len(config.Controls) == 0 {
		config.Controls = DefaultControls()
	}
	config.expandVariables()
	return config, true, nil
}

func (c *Config) decode(path string, data []byte) error {
	switch extension := strings.ToLower(filepath.Ext(path)); extension {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case ".toml", "":
		metadata, err := toml.Decode(string(data), c)
		if err != nil {
			return err
		}
		if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, key := range undecoded {
				keys[i] = key.String()
			}
			sort.Strings(keys)
			return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
		return nil
	default:
		return fmt.Errorf("unsupported config format %q (want .toml, .yaml, or .yml)", extension)
	}
}

func (c *Config) expandVariables() {
	if c.Metrics != nil {
		c.Metrics.InfluxAddr = expandVars(c.Metrics.InfluxAddr)
		c.Metrics.InfluxUser = expandVars(c.Metrics.InfluxUser)
		c.Metrics.InfluxPW = expandVars(c.Metrics.InfluxPW)
	}
	if c.MQTT != nil {
		c.MQTT.Broker = expandVars(c.MQTT.Broker)
		c.MQTT.Username = expandVars(c.MQTT.Username)
		c.MQTT.Password = expandVars(c.MQTT.Password)
	}
	c.Loop.StateFile = expandVars(c.Loop.StateFile)
	c.Logging.File = expandVars(c.Logging.File)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Controls) == 0 {
		errs = append(errs, errors.New("at least one control is required"))
	}
	for i, point := range c.Controls {
		if point.Name == "" {
			errs = append(errs, fmt.Errorf("controls[%d]: name is required", i))
		}
		if point.Setpoint >= point.Failsafe {
			errs = append(errs, fmt.Errorf("controls[%d] (%s): setpoint %g must be below failsafe %g",
				i, point.Name, point.Setpoint, point.Failsafe))
		}
	}

	if c.PID.FilterPoints < 0 {
		errs = append(errs, fmt.Errorf("pid.filter_points must not be negative, got %d", c.PID.FilterPoints))
	}
	if c.PID.Min < 0 || c.PID.Min > 100 {
		errs = append(errs, fmt.Errorf("pid.min must be within [0, 100], got %g", c.PID.Min))
	}

	if c.Loop.Interval <= 0 {
		errs = append(errs, fmt.Errorf("loop.interval must be positive, got %s", c.Loop.Interval))
	}
	if _, err := control.ParseFaultPolicy(c.Loop.OnFault); err != nil {
		errs = append(errs, fmt.Errorf("loop.on_fault: %w", err))
	}

	if c.Metrics != nil {
		if c.Metrics.InfluxAddr == "" {
			errs = append(errs, errors.New("metrics.influx_addr is required when [metrics] is present"))
		}
		if c.Metrics.InfluxDB == "" {
			errs = append(errs, errors.New("metrics.influx_db is required when [metrics] is present"))
		}
	}
	if c.MQTT != nil && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when [mqtt] is present"))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level))
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		errs = append(errs, errors.New("logging rotation limits must not be negative"))
	}

	return errors.Join(errs...)
}

// Tuning returns the controller settings for one point: the shared
// [pid] values with the point's overrides applied.
func (c *Config) Tuning(point ControlConfig) pid.Tuning {
	tuning := pid.Tuning{
		Proportional:  c.PID.KFactor,
		Integral:      c.PID.IFactor,
		Derivative:    c.PID.DFactor,
		FilterPoints:  c.PID.FilterPoints,
		IntegralFloor: c.PID.IntegralFloor,
	}
	if point.KFactor != nil {
		tuning.Proportional = *point.KFactor
	}
	if point.IFactor != nil {
		tuning.Integral = *point.IFactor
	}
	if point.DFactor != nil {
		tuning.Derivative = *point.DFactor
	}
	return tuning
}

// Points converts the controls to monitored points in file order.
func (c *Config) Points() []control.MonitoredPoint {
	points := make([]control.MonitoredPoint, len(c.Controls))
	for i, point := range c.Controls {
		points[i] = control.MonitoredPoint{
			Name:     point.Name,
			Setpoint: point.Setpoint,
			Failsafe: point.Failsafe,
			Tuning:   c.Tuning(point),
		}
	}
	return points
}

// MinSpeed returns pid.min as a fraction.
func (c *Config) MinSpeed() float64 { return c.PID.Min / 100 }

// FaultPolicy returns the parsed loop.on_fault. Call after Validate.
func (c *Config) FaultPolicy() control.FaultPolicy {
	policy, _ := control.ParseFaultPolicy(c.Loop.OnFault)
	return policy
}
