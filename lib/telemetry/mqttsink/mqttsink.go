// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mqttsink publishes telemetry batches to an MQTT 5 broker.
// Each batch becomes one message whose payload is the newline-joined
// line protocol, so a broker-side bridge (Telegraf's mqtt_consumer
// with data_format "influx", for example) can forward it unchanged.
package mqttsink

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/eclipse/paho.golang/paho"
)

// DefaultTopic is used when Config.Topic is empty.
const DefaultTopic = "thermal_watchdog/telemetry"

// Config describes the broker connection.
type Config struct {
	// Broker is host:port, optionally prefixed with tcp:// or mqtt://.
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string

	// KeepAlive is the MQTT keep-alive interval in seconds.
	KeepAlive uint16
}

// Sink publishes batches at QoS 1. The connection is opened lazily on
// the first Write and re-opened after any publish failure.
type Sink struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	client *paho.Client
}

// New validates config and returns an unconnected Sink.
func New(config Config, logger *slog.Logger) (*Sink, error) {
	config.Broker = strings.TrimPrefix(strings.TrimPrefix(config.Broker, "tcp://"), "mqtt://")
	if config.Broker == "" {
		return nil, fmt.Errorf("mqttsink: broker address is required")
	}
	if _, _, err := net.SplitHostPort(config.Broker); err != nil {
		return nil, fmt.Errorf("mqttsink: broker %q: %w", config.Broker, err)
	}
	if config.Topic == "" {
		config.Topic = DefaultTopic
	}
	if config.ClientID == "" {
		config.ClientID = "thermal-watchdog"
	}
	if config.KeepAlive == 0 {
		config.KeepAlive = 30
	}
	return &Sink{config: config, logger: logger}, nil
}

// Write publishes one batch.
func (s *Sink) Write(ctx context.Context, batch []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		client, err := s.connect(ctx)
		if err != nil {
			return err
		}
		s.client = client
	}

	_, err := s.client.Publish(ctx, &paho.Publish{
		QoS:     1,
		Topic:   s.config.Topic,
		Payload: batch,
		Properties: &paho.PublishProperties{
			ContentType: "text/plain; charset=utf-8",
		},
	})
	if err != nil {
		s.dropLocked()
		return fmt.Errorf("mqttsink: publishing to %s: %w", s.config.Topic, err)
	}
	return nil
}

// Close disconnects from the broker if connected.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	s.client = nil
	return err
}

func (s *Sink) connect(ctx context.Context) (*paho.Client, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", s.config.Broker)
	if err != nil {
		return nil, fmt.Errorf("mqttsink: dialing %s: %w", s.config.Broker, err)
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: s.config.ClientID,
		Conn:     conn,
		OnClientError: func(err error) {
			s.logger.Warn("mqtt client error", "broker", s.config.Broker, "error", err)
		},
		OnServerDisconnect: func(disconnect *paho.Disconnect) {
			s.logger.Warn("mqtt broker disconnected", "broker", s.config.Broker, "reason", disconnect.ReasonCode)
		},
	})

	connect := &paho.Connect{
		ClientID:   s.config.ClientID,
		KeepAlive:  s.config.KeepAlive,
		CleanStart: true,
	}
	if s.config.Username != "" {
		connect.Username = s.config.Username
		connect.UsernameFlag = true
	}
	if s.config.Password != "" {
		connect.Password = []byte(s.config.Password)
		connect.PasswordFlag = true
	}

	connack, err := client.Connect(ctx, connect)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mqttsink: connecting to %s: %w", s.config.Broker, err)
	}
	if connack.ReasonCode != 0 {
		conn.Close()
		return nil, fmt.Errorf("mqttsink: broker %s refused connection: reason code %d", s.config.Broker, connack.ReasonCode)
	}
	s.logger.Info("connected to mqtt broker", "broker", s.config.Broker, "topic", s.config.Topic)
	return client, nil
}

// dropLocked abandons the current connection so the next Write
// reconnects.
func (s *Sink) dropLocked() {
	if s.client != nil {
		_ = s.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		s.client = nil
	}
}
