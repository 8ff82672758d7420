// Package config implements configuration loading for the storefront server.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// environment variables. Printer credentials are allowed to be absent; an
// incomplete credential set disables the telemetry bridge instead of failing.
//
// Timing values (status freshness window, reconnect backoff, command timeouts,
// SSE heartbeat and replay buffer) live in TimingConfig and share a single
// baseline returned by LoadTimingBaseline.
package config
