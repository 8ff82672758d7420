package bridge

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/toastigo/storefront/internal/device"
)

// Client is the part of an MQTT session the Manager needs.
type Client interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, topic string, handler func(payload []byte)) error
	Publish(ctx context.Context, topic string, payload []byte) error
	Disconnect()
}

// Dialer builds a Client for an endpoint. onLost is called once if an
// established connection drops.
type Dialer func(ep device.Endpoint, onLost func(error)) Client

// PahoDialer returns a Dialer backed by the Eclipse Paho client.
func PahoDialer(connectTimeout time.Duration) Dialer {
	return func(ep device.Endpoint, onLost func(error)) Client {
		return newPahoClient(ep, connectTimeout, onLost)
	}
}

type pahoClient struct {
	client mqtt.Client
}

func newPahoClient(ep device.Endpoint, connectTimeout time.Duration, onLost func(error)) *pahoClient {
	opts := mqtt.NewClientOptions().
		AddBroker(ep.Broker).
		SetClientID("storefront-" + uuid.NewString()[:8]).
		SetUsername(ep.Username).
		SetPassword(ep.Password).
		SetCleanSession(true).
		SetKeepAlive(30 * time.Second).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(false).
		SetConnectRetry(false)

	// Printers present self-signed certificates.
	opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: ep.InsecureSkipVerify})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if onLost != nil {
			onLost(err)
		}
	})

	return &pahoClient{client: mqtt.NewClient(opts)}
}

func (c *pahoClient) Connect(ctx context.Context) error {
	return wait(ctx, "connect", c.client.Connect())
}

func (c *pahoClient) Subscribe(ctx context.Context, topic string, handler func(payload []byte)) error {
	token := c.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	})
	return wait(ctx, "subscribe "+topic, token)
}

func (c *pahoClient) Publish(ctx context.Context, topic string, payload []byte) error {
	return wait(ctx, "publish "+topic, c.client.Publish(topic, 0, false, payload))
}

func (c *pahoClient) Disconnect() {
	if c.client.IsConnectionOpen() {
		c.client.Disconnect(250)
	}
}

func wait(ctx context.Context, op string, token mqtt.Token) error {
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}
