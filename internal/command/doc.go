// Package command routes admin printer commands to the telemetry bridge.
//
// Each command runs under its timeout class from TimingConfig, is written
// to the audit trail, and is announced to SSE subscribers as a command event.
package command
