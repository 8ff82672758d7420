package bridge

import (
	"context"
	"sync"

	"github.com/toastigo/storefront/internal/device"
	"github.com/toastigo/storefront/internal/printer"
)

type published struct {
	topic   string
	payload string
}

type fakeClient struct {
	endpoint   device.Endpoint
	onLost     func(error)
	connectErr error

	mu           sync.Mutex
	handler      func([]byte)
	subscribed   []string
	published    []published
	disconnected bool
}

func (c *fakeClient) Connect(ctx context.Context) error {
	return c.connectErr
}

func (c *fakeClient) Subscribe(ctx context.Context, topic string, handler func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, topic)
	c.handler = handler
	return nil
}

func (c *fakeClient) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, payload: string(payload)})
	return nil
}

func (c *fakeClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

// Deliver hands payload to the subscription as the transport would.
func (c *fakeClient) Deliver(payload string) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h([]byte(payload))
}

// Lose simulates the broker dropping the connection.
func (c *fakeClient) Lose(err error) {
	c.onLost(err)
}

func (c *fakeClient) Published() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.published...)
}

func (c *fakeClient) Subscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subscribed...)
}

func (c *fakeClient) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// fakeBroker hands out fakeClients. Dials past the end of connectErrs succeed.
type fakeBroker struct {
	mu          sync.Mutex
	connectErrs []error
	dialed      chan *fakeClient
}

func newFakeBroker(connectErrs ...error) *fakeBroker {
	return &fakeBroker{connectErrs: connectErrs, dialed: make(chan *fakeClient, 32)}
}

func (b *fakeBroker) Dial(ep device.Endpoint, onLost func(error)) Client {
	b.mu.Lock()
	var err error
	if len(b.connectErrs) > 0 {
		err, b.connectErrs = b.connectErrs[0], b.connectErrs[1:]
	}
	b.mu.Unlock()

	c := &fakeClient{endpoint: ep, onLost: onLost, connectErr: err}
	b.dialed <- c
	return c
}

type recordingSink struct {
	mu       sync.Mutex
	statuses []string
}

func (s *recordingSink) PublishStatus(status printer.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status.State)
}

func (s *recordingSink) States() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statuses...)
}
