package printer

import (
	"sync"
	"time"
)

// Cache holds the shared printer status.
type Cache struct {
	mu            sync.RWMutex
	temp          float64
	state         string
	percent       float64
	lastUpdate    time.Time
	forcedOffline bool

	window time.Duration
	now    func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now. Tests use it to step past the freshness window.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a cache in the initial offline state. A non-positive
// window falls back to DefaultFreshnessWindow.
func NewCache(window time.Duration, opts ...Option) *Cache {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	c := &Cache{
		state:  StateOffline,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Window returns the freshness window.
func (c *Cache) Window() time.Duration {
	return c.window
}

// ApplyMessage merges the fields present in u and stamps the record as
// freshly updated. An empty update still counts as a sign of life.
func (c *Cache) ApplyMessage(u Update) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if u.Temp != nil {
		c.temp = *u.Temp
	}
	if u.State != nil {
		c.state = *u.State
	}
	if u.Percent != nil {
		c.percent = *u.Percent
	}
	c.lastUpdate = c.now()
	c.forcedOffline = false

	return c.snapshotLocked()
}

// Read returns the current snapshot with Online recomputed against the
// freshness window. It never mutates the record.
func (c *Cache) Read() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// MarkOffline forces the status offline until the next message arrives,
// however recent the last update was.
func (c *Cache) MarkOffline() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.forcedOffline = true
	c.state = StateOffline

	return c.snapshotLocked()
}

func (c *Cache) snapshotLocked() Status {
	return Status{
		Online:     c.onlineLocked(),
		Temp:       c.temp,
		State:      c.state,
		Percent:    c.percent,
		LastUpdate: c.lastUpdate,
	}
}

func (c *Cache) onlineLocked() bool {
	if c.forcedOffline || c.lastUpdate.IsZero() {
		return false
	}
	return c.now().Sub(c.lastUpdate) < c.window
}
