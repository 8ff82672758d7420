// Package printer holds the live printer status record.
//
// The Cache is the single source of truth for what the printer is doing right
// now. It is written by one owner goroutine (the telemetry bridge) and read by
// any number of HTTP handlers. Online is never stored: every read derives it
// from the time of the last accepted message and the freshness window.
package printer
