// Package bridge keeps one MQTT session to the printer's telemetry broker and
// feeds decoded reports into the status cache.
//
// The Manager supervises the session itself: the transport's own
// auto-reconnect is off, a lost connection marks the cache offline at once,
// and reconnect attempts back off exponentially with jitter. Decoded reports
// travel over a channel to a single owner goroutine, which is the only writer
// of the cache.
package bridge
