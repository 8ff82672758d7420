package device

import (
	"fmt"

	"github.com/toastigo/storefront/internal/printer"
)

// Protocol variant names, as accepted by New.
const (
	KindCloud = "cloud"
	KindLAN   = "lan"
)

// Credentials are the connection parameters supplied by configuration.
type Credentials struct {
	// Broker overrides the variant's default broker address.
	Broker string

	// Serial identifies the printer on the broker.
	Serial string

	// UserID and AccessToken authenticate against the cloud broker.
	UserID      string
	AccessToken string

	// AccessCode authenticates against the printer's own LAN broker.
	AccessCode string

	InsecureSkipVerify bool
}

// Endpoint is everything the transport needs to open a session.
type Endpoint struct {
	Broker             string
	Username           string
	Password           string
	InsecureSkipVerify bool
}

// Protocol is one device wire format.
type Protocol interface {
	// Name returns the variant name.
	Name() string

	// Endpoint returns the broker address and credentials.
	Endpoint() Endpoint

	// ReportTopic is the topic the device publishes telemetry on.
	ReportTopic() string

	// RequestTopic is the topic commands are published to.
	RequestTopic() string

	// FullStateRequest returns the payload asking the device to push its
	// complete state, or nil if the variant has no such request.
	FullStateRequest() []byte

	// Decode parses one report payload.
	// Errors wrap ErrMalformed or ErrMissingField.
	Decode(payload []byte) (printer.Update, error)
}

// New builds the protocol variant named by kind.
// Missing credentials yield an error wrapping ErrMissingCredentials.
func New(kind string, creds Credentials) (Protocol, error) {
	switch kind {
	case KindCloud:
		return NewCloud(creds)
	case KindLAN:
		return NewLAN(creds)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, kind)
	}
}
