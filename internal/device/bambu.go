package device

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/toastigo/storefront/internal/printer"
)

// CloudBroker is the Bambu cloud MQTT endpoint.
const CloudBroker = "tls://us.mqtt.bambulab.com:8883"

// lanUsername is fixed by the printer firmware.
const lanUsername = "bblp"

const lanPort = "8883"

var pushAll = []byte(`{"pushing":{"sequence_id":"0","command":"pushall"}}`)

type bambu struct {
	kind     string
	serial   string
	endpoint Endpoint
}

// NewCloud returns the Bambu cloud variant: account token auth against the
// vendor broker.
func NewCloud(creds Credentials) (Protocol, error) {
	var missing []string
	if creds.UserID == "" {
		missing = append(missing, "user id")
	}
	if creds.AccessToken == "" {
		missing = append(missing, "access token")
	}
	if creds.Serial == "" {
		missing = append(missing, "serial")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: cloud needs %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	broker := creds.Broker
	if broker == "" {
		broker = CloudBroker
	}

	return &bambu{
		kind:   KindCloud,
		serial: creds.Serial,
		endpoint: Endpoint{
			Broker:             broker,
			Username:           "u_" + creds.UserID,
			Password:           creds.AccessToken,
			InsecureSkipVerify: creds.InsecureSkipVerify,
		},
	}, nil
}

// NewLAN returns the Bambu LAN variant: access code auth against the broker
// running on the printer. Broker may be a bare host.
func NewLAN(creds Credentials) (Protocol, error) {
	var missing []string
	if creds.Broker == "" {
		missing = append(missing, "broker")
	}
	if creds.AccessCode == "" {
		missing = append(missing, "access code")
	}
	if creds.Serial == "" {
		missing = append(missing, "serial")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: lan needs %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	return &bambu{
		kind:   KindLAN,
		serial: creds.Serial,
		endpoint: Endpoint{
			Broker:             lanBroker(creds.Broker),
			Username:           lanUsername,
			Password:           creds.AccessCode,
			InsecureSkipVerify: creds.InsecureSkipVerify,
		},
	}, nil
}

func lanBroker(addr string) string {
	if !strings.Contains(addr, "://") {
		addr = "tls://" + addr
	}
	host := addr[strings.Index(addr, "://")+3:]
	if !strings.Contains(host, ":") {
		addr += ":" + lanPort
	}
	return addr
}

func (b *bambu) Name() string { return b.kind }

func (b *bambu) Endpoint() Endpoint { return b.endpoint }

func (b *bambu) ReportTopic() string { return "device/" + b.serial + "/report" }

func (b *bambu) RequestTopic() string { return "device/" + b.serial + "/request" }

func (b *bambu) FullStateRequest() []byte {
	out := make([]byte, len(pushAll))
	copy(out, pushAll)
	return out
}

type bambuReport struct {
	Print *bambuPrint `json:"print"`
}

type bambuPrint struct {
	NozzleTemper *float64 `json:"nozzle_temper"`
	McPercent    *float64 `json:"mc_percent"`
	GcodeState   *string  `json:"gcode_state"`
	StID         *float64 `json:"st_id"`
}

func (b *bambu) Decode(payload []byte) (printer.Update, error) {
	return DecodeBambu(payload)
}

// DecodeBambu parses a Bambu report. A non-empty gcode_state wins over st_id.
func DecodeBambu(payload []byte) (printer.Update, error) {
	var report bambuReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return printer.Update{}, decodeError(ErrMalformed, err, payload)
	}
	if report.Print == nil {
		return printer.Update{}, decodeError(ErrMissingField, fmt.Errorf("no print object"), payload)
	}

	p := report.Print
	update := printer.Update{
		Temp:    p.NozzleTemper,
		Percent: p.McPercent,
	}

	switch {
	case p.GcodeState != nil && *p.GcodeState != "":
		state := *p.GcodeState
		update.State = &state
	case p.StID != nil:
		state := printer.StateForNumber(*p.StID)
		update.State = &state
	}

	return update, nil
}
