package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks the merged configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server max body bytes must be positive, got %d", cfg.Server.MaxBodyBytes)
	}
	if _, err := cfg.Server.ProxyPrefixes(); err != nil {
		return err
	}

	switch cfg.Printer.Protocol {
	case ProtocolCloud, ProtocolLAN:
	default:
		return fmt.Errorf("invalid printer protocol %q, must be one of: %s, %s",
			cfg.Printer.Protocol, ProtocolCloud, ProtocolLAN)
	}

	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage path cannot be empty")
	}

	if cfg.Admin.TokenTTL <= 0 {
		return fmt.Errorf("admin token ttl must be positive, got %v", cfg.Admin.TokenTTL)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", cfg.Log.Level)
	}

	if err := ValidateTiming(cfg.Timing); err != nil {
		return fmt.Errorf("timing validation failed: %w", err)
	}

	return nil
}

// ValidateTiming enforces timing validation rules.
func ValidateTiming(config *TimingConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if config.FreshnessWindow <= 0 {
		return fmt.Errorf("freshness window must be positive, got %v", config.FreshnessWindow)
	}

	if err := validateReconnect(config); err != nil {
		return fmt.Errorf("reconnect validation failed: %w", err)
	}

	if err := validateHeartbeat(config); err != nil {
		return fmt.Errorf("heartbeat validation failed: %w", err)
	}

	if config.CommandTimeoutRequestState < 100*time.Millisecond || config.CommandTimeoutRequestState > 5*time.Minute {
		return fmt.Errorf("command timeout requestState %v is outside reasonable range [100ms, 5m]",
			config.CommandTimeoutRequestState)
	}

	if config.MessageQueueSize <= 0 {
		return fmt.Errorf("message queue size must be positive, got %d", config.MessageQueueSize)
	}

	if config.EventBufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got %d", config.EventBufferSize)
	}
	if config.EventBufferRetention <= 0 {
		return fmt.Errorf("event buffer retention must be positive, got %v", config.EventBufferRetention)
	}

	return nil
}

// validateReconnect validates the supervised reconnect parameters.
func validateReconnect(config *TimingConfig) error {
	if config.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got %v", config.ConnectTimeout)
	}
	if config.ReconnectInitial <= 0 {
		return fmt.Errorf("reconnect initial must be positive, got %v", config.ReconnectInitial)
	}
	if config.ReconnectBackoff < 1.0 || config.ReconnectBackoff > 10.0 {
		return fmt.Errorf("reconnect backoff %v must be within [1.0, 10.0]", config.ReconnectBackoff)
	}
	if config.ReconnectMax < config.ReconnectInitial {
		return fmt.Errorf("reconnect max %v must be >= initial %v", config.ReconnectMax, config.ReconnectInitial)
	}
	if config.ReconnectJitter < 0 || config.ReconnectJitter >= 1 {
		return fmt.Errorf("reconnect jitter %v must be within [0, 1)", config.ReconnectJitter)
	}
	return nil
}

// validateHeartbeat validates SSE heartbeat timing parameters.
func validateHeartbeat(config *TimingConfig) error {
	if config.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %v", config.HeartbeatInterval)
	}

	// Jitter must be non-negative and at most 50% of the interval
	if config.HeartbeatJitter < 0 {
		return fmt.Errorf("heartbeat jitter must be non-negative, got %v", config.HeartbeatJitter)
	}
	if config.HeartbeatJitter > config.HeartbeatInterval/2 {
		return fmt.Errorf("heartbeat jitter %v exceeds 50%% of interval %v", config.HeartbeatJitter, config.HeartbeatInterval)
	}

	return nil
}
