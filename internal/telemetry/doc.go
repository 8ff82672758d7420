// Package telemetry streams printer status changes to browsers over
// server-sent events.
//
// Every subscriber first receives a ready event carrying the current status,
// then status, command and heartbeat events as they happen. The hub keeps
// the last N events so a browser reconnecting with Last-Event-ID picks up
// where it left off.
package telemetry
