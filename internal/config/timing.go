package config

import (
	"time"
)

// TimingConfig holds every time-based control of the server.
type TimingConfig struct {
	// Printer status freshness
	FreshnessWindow time.Duration

	// Telemetry broker reconnect supervision
	ConnectTimeout   time.Duration
	ReconnectInitial time.Duration
	ReconnectBackoff float64
	ReconnectMax     time.Duration
	ReconnectJitter  float64

	// Inbound telemetry queue between transport callback and cache owner
	MessageQueueSize int

	// SSE heartbeat
	HeartbeatInterval time.Duration
	HeartbeatJitter   time.Duration

	// Command timeout classes
	CommandTimeoutRequestState time.Duration

	// SSE replay buffer
	EventBufferSize      int
	EventBufferRetention time.Duration
}

// LoadTimingBaseline returns the default timing values.
func LoadTimingBaseline() *TimingConfig {
	return &TimingConfig{
		// A printer that has been silent for 45s reads as offline.
		FreshnessWindow: 45 * time.Second,

		ConnectTimeout:   15 * time.Second,
		ReconnectInitial: 1 * time.Second,
		ReconnectBackoff: 2.0,
		ReconnectMax:     60 * time.Second,
		ReconnectJitter:  0.2,

		MessageQueueSize: 64,

		HeartbeatInterval: 15 * time.Second,
		HeartbeatJitter:   2 * time.Second,

		CommandTimeoutRequestState: 5 * time.Second,

		EventBufferSize:      50,
		EventBufferRetention: 1 * time.Hour,
	}
}
