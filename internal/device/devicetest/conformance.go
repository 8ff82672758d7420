// Package devicetest provides protocol-agnostic conformance checks for
// device.Protocol implementations.
package devicetest

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/toastigo/storefront/internal/device"
)

// Expectations describes what a variant is expected to produce.
type Expectations struct {
	// Serial must appear in both topics.
	Serial string

	// Username the endpoint must carry.
	Username string

	// WantsFullState is true when the variant publishes a full-state request.
	WantsFullState bool
}

// RunConformance checks the behaviour every protocol variant must share.
func RunConformance(t *testing.T, newProtocol func() device.Protocol, want Expectations) {
	t.Helper()

	t.Run("Endpoint", func(t *testing.T) {
		ep := newProtocol().Endpoint()
		if !strings.Contains(ep.Broker, "://") {
			t.Errorf("Broker = %q, want scheme://host:port", ep.Broker)
		}
		if ep.Username != want.Username {
			t.Errorf("Username = %q, want %q", ep.Username, want.Username)
		}
		if ep.Password == "" {
			t.Error("Password is empty")
		}
	})

	t.Run("Topics", func(t *testing.T) {
		p := newProtocol()
		if !strings.Contains(p.ReportTopic(), want.Serial) {
			t.Errorf("ReportTopic() = %q, want it to contain %q", p.ReportTopic(), want.Serial)
		}
		if !strings.Contains(p.RequestTopic(), want.Serial) {
			t.Errorf("RequestTopic() = %q, want it to contain %q", p.RequestTopic(), want.Serial)
		}
		if p.ReportTopic() == p.RequestTopic() {
			t.Error("report and request topics must differ")
		}
	})

	t.Run("FullStateRequest", func(t *testing.T) {
		req := newProtocol().FullStateRequest()
		if !want.WantsFullState {
			if req != nil {
				t.Errorf("FullStateRequest() = %s, want nil", req)
			}
			return
		}
		if !json.Valid(req) {
			t.Errorf("FullStateRequest() = %q is not valid JSON", req)
		}
	})

	t.Run("DecodeFailures", func(t *testing.T) {
		p := newProtocol()
		cases := []struct {
			name    string
			payload string
			wantErr error
		}{
			{"not json", `not json`, device.ErrMalformed},
			{"truncated", `{"print":{"nozzle_temper":`, device.ErrMalformed},
			{"empty object", `{}`, device.ErrMissingField},
			{"other report", `{"info":{"command":"get_version"}}`, device.ErrMissingField},
		}
		for _, tc := range cases {
			_, err := p.Decode([]byte(tc.payload))
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("%s: Decode() error = %v, want %v", tc.name, err, tc.wantErr)
			}
		}
	})

	t.Run("DecodeRunningJob", func(t *testing.T) {
		u, err := newProtocol().Decode([]byte(`{"print":{"nozzle_temper":55,"mc_percent":40,"st_id":3}}`))
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if u.Temp == nil || *u.Temp != 55 {
			t.Errorf("Temp = %v, want 55", u.Temp)
		}
		if u.Percent == nil || *u.Percent != 40 {
			t.Errorf("Percent = %v, want 40", u.Percent)
		}
		if u.State == nil || *u.State != "RUNNING" {
			t.Errorf("State = %v, want RUNNING", u.State)
		}
	})
}
