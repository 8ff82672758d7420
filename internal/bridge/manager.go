package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/toastigo/storefront/internal/config"
	"github.com/toastigo/storefront/internal/device"
	"github.com/toastigo/storefront/internal/printer"
)

// Errors returned by RequestFullState.
var (
	ErrDisabled     = errors.New("telemetry bridge disabled")
	ErrNotConnected = errors.New("telemetry bridge not connected")
	ErrNoFullState  = errors.New("protocol has no full state request")
)

// State is the connection state of the bridge.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// StatusSink receives every visible status change.
type StatusSink interface {
	PublishStatus(status printer.Status)
}

// Stats is a point-in-time view of the bridge counters.
type Stats struct {
	Enabled       bool      `json:"enabled"`
	Protocol      string    `json:"protocol,omitempty"`
	Broker        string    `json:"broker,omitempty"`
	State         string    `json:"state"`
	Accepted      uint64    `json:"accepted"`
	Dropped       uint64    `json:"dropped"`
	Reconnects    uint64    `json:"reconnects"`
	LastError     string    `json:"lastError,omitempty"`
	LastConnected time.Time `json:"lastConnected"`
}

// event is one write for the cache owner.
type event struct {
	update  printer.Update
	offline bool
}

// Manager owns the broker session and the cache writes that come from it.
type Manager struct {
	proto  device.Protocol
	cache  *printer.Cache
	timing *config.TimingConfig
	dial   Dialer
	sink   StatusSink
	log    *zap.Logger

	requestFullState bool
	newBackoff       func() *backoff

	events chan event

	state      atomic.Int32
	accepted   atomic.Uint64
	dropped    atomic.Uint64
	reconnects atomic.Uint64

	mu            sync.Mutex
	client        Client
	lastErr       string
	lastConnected time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the Paho dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dial = d }
}

// WithSink registers the receiver of status changes.
func WithSink(s StatusSink) Option {
	return func(m *Manager) { m.sink = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithRequestFullState controls the one-shot full state request on connect.
func WithRequestFullState(enabled bool) Option {
	return func(m *Manager) { m.requestFullState = enabled }
}

// NewManager creates a bridge for proto. A nil proto yields a disabled
// bridge whose Run returns immediately.
func NewManager(proto device.Protocol, cache *printer.Cache, timing *config.TimingConfig, opts ...Option) *Manager {
	if timing == nil {
		timing = config.LoadTimingBaseline()
	}
	m := &Manager{
		proto:            proto,
		cache:            cache,
		timing:           timing,
		dial:             PahoDialer(timing.ConnectTimeout),
		log:              zap.NewNop(),
		requestFullState: true,
		events:           make(chan event, timing.MessageQueueSize),
	}
	m.newBackoff = func() *backoff {
		return newBackoff(timing.ReconnectInitial, timing.ReconnectMax, timing.ReconnectBackoff, timing.ReconnectJitter)
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.Named("bridge")
	return m
}

// Enabled reports whether the bridge has a protocol to speak.
func (m *Manager) Enabled() bool {
	return m.proto != nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Stats returns the current counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Enabled:       m.proto != nil,
		State:         m.State().String(),
		Accepted:      m.accepted.Load(),
		Dropped:       m.dropped.Load(),
		Reconnects:    m.reconnects.Load(),
		LastError:     m.lastErr,
		LastConnected: m.lastConnected,
	}
	if m.proto != nil {
		s.Protocol = m.proto.Name()
		s.Broker = m.proto.Endpoint().Broker
	}
	return s
}

// Run connects and keeps the session alive until ctx is cancelled.
// It returns nil on shutdown; a disabled bridge returns at once.
func (m *Manager) Run(ctx context.Context) error {
	if m.proto == nil {
		m.log.Warn("printer credentials missing, telemetry bridge disabled; status stays offline")
		return nil
	}

	ownerDone := make(chan struct{})
	go m.own(ctx, ownerDone)
	defer func() {
		<-ownerDone
		m.setState(StateDisconnected)
	}()

	bo := m.newBackoff()
	for {
		if ctx.Err() != nil {
			return nil
		}

		m.setState(StateConnecting)
		client, lost, err := m.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			m.fail(ctx, err)
			if !m.sleep(ctx, bo.Next()) {
				return nil
			}
			m.reconnects.Add(1)
			continue
		}

		bo.Reset()
		m.setState(StateConnected)
		m.log.Info("connected to printer broker",
			zap.String("protocol", m.proto.Name()),
			zap.String("topic", m.proto.ReportTopic()))

		select {
		case <-ctx.Done():
			m.dropClient(client)
			return nil
		case err := <-lost:
			m.dropClient(client)
			m.fail(ctx, fmt.Errorf("connection lost: %w", err))
		}

		if !m.sleep(ctx, bo.Next()) {
			return nil
		}
		m.reconnects.Add(1)
	}
}

// RequestFullState asks the device to push its complete state.
func (m *Manager) RequestFullState(ctx context.Context) error {
	if m.proto == nil {
		return ErrDisabled
	}
	req := m.proto.FullStateRequest()
	if req == nil {
		return ErrNoFullState
	}

	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil || m.State() != StateConnected {
		return ErrNotConnected
	}

	return client.Publish(ctx, m.proto.RequestTopic(), req)
}

func (m *Manager) connect(ctx context.Context) (Client, <-chan error, error) {
	lost := make(chan error, 1)
	client := m.dial(m.proto.Endpoint(), func(err error) {
		select {
		case lost <- err:
		default:
		}
	})

	cctx, cancel := context.WithTimeout(ctx, m.timing.ConnectTimeout)
	defer cancel()

	if err := client.Connect(cctx); err != nil {
		client.Disconnect()
		return nil, nil, err
	}
	if err := client.Subscribe(cctx, m.proto.ReportTopic(), m.handle); err != nil {
		client.Disconnect()
		return nil, nil, err
	}

	m.mu.Lock()
	m.client = client
	m.lastConnected = time.Now()
	m.mu.Unlock()

	if m.requestFullState {
		if req := m.proto.FullStateRequest(); req != nil {
			if err := client.Publish(cctx, m.proto.RequestTopic(), req); err != nil {
				m.log.Warn("full state request failed", zap.Error(err))
			}
		}
	}

	return client, lost, nil
}

// handle runs on the transport's delivery goroutine and must not block.
func (m *Manager) handle(payload []byte) {
	update, err := m.proto.Decode(payload)
	if err != nil {
		m.dropped.Add(1)
		m.log.Debug("dropping report", zap.Error(err), zap.Int("bytes", len(payload)))
		return
	}

	select {
	case m.events <- event{update: update}:
	default:
		m.dropped.Add(1)
		m.log.Debug("report queue full, dropping report")
	}
}

// own is the only writer of the cache.
func (m *Manager) own(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	var last printer.Status
	published := false
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.events:
			var status printer.Status
			if ev.offline {
				status = m.cache.MarkOffline()
			} else {
				status = m.cache.ApplyMessage(ev.update)
				m.accepted.Add(1)
			}

			if m.sink == nil || (published && sameVisible(last, status)) {
				continue
			}
			m.sink.PublishStatus(status)
			last, published = status, true
		}
	}
}

func sameVisible(a, b printer.Status) bool {
	return a.Online == b.Online && a.Temp == b.Temp && a.State == b.State && a.Percent == b.Percent
}

// fail records err and marks the cache offline through the owner.
func (m *Manager) fail(ctx context.Context, err error) {
	m.setState(StateDisconnected)

	m.mu.Lock()
	m.lastErr = err.Error()
	m.mu.Unlock()

	m.log.Warn("printer broker unavailable", zap.Error(err))

	select {
	case m.events <- event{offline: true}:
	case <-ctx.Done():
	}
}

func (m *Manager) dropClient(client Client) {
	m.mu.Lock()
	if m.client == client {
		m.client = nil
	}
	m.mu.Unlock()
	client.Disconnect()
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	m.log.Debug("reconnecting", zap.Duration("in", d))
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
