package printer

import (
	"encoding/json"
	"math"
	"time"
)

// Job states reported when the device gives no better answer.
const (
	StateOffline = "Offline"
	StateUnknown = "UNKNOWN"
)

// DefaultFreshnessWindow is how long a status stays online without news.
const DefaultFreshnessWindow = 45 * time.Second

// stateCodes maps numeric device status codes to job states.
var stateCodes = map[int]string{
	0: "IDLE",
	2: "PREP",
	3: "RUNNING",
	4: "PAUSED",
	5: "DONE",
}

// StateForCode maps a numeric status code to a job state.
// Codes outside the table map to StateUnknown.
func StateForCode(code int) string {
	if state, ok := stateCodes[code]; ok {
		return state
	}
	return StateUnknown
}

// StateForNumber is StateForCode for codes that arrive as JSON numbers.
// Non-integral or out-of-range values map to StateUnknown.
func StateForNumber(code float64) string {
	if code != math.Trunc(code) || code < math.MinInt32 || code > math.MaxInt32 {
		return StateUnknown
	}
	return StateForCode(int(code))
}

// Status is a point-in-time snapshot of the printer.
type Status struct {
	Online     bool
	Temp       float64
	State      string
	Percent    float64
	LastUpdate time.Time
}

type statusJSON struct {
	Online     bool    `json:"online"`
	Temp       float64 `json:"temp"`
	State      string  `json:"state"`
	Percent    float64 `json:"percent"`
	LastUpdate int64   `json:"lastUpdate"`
}

// MarshalJSON renders the status in the shape the storefront SPA polls:
// lastUpdate is epoch milliseconds, 0 when nothing has been received.
func (s Status) MarshalJSON() ([]byte, error) {
	var last int64
	if !s.LastUpdate.IsZero() {
		last = s.LastUpdate.UnixMilli()
	}
	return json.Marshal(statusJSON{
		Online:     s.Online,
		Temp:       s.Temp,
		State:      s.State,
		Percent:    s.Percent,
		LastUpdate: last,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw statusJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Status{
		Online:  raw.Online,
		Temp:    raw.Temp,
		State:   raw.State,
		Percent: raw.Percent,
	}
	if raw.LastUpdate != 0 {
		s.LastUpdate = time.UnixMilli(raw.LastUpdate)
	}
	return nil
}

// Update is a partial status decoded from one telemetry message.
// Nil fields were absent from the message and leave the cache untouched.
type Update struct {
	Temp    *float64
	State   *string
	Percent *float64
}

// Empty reports whether the update carries no fields.
func (u Update) Empty() bool {
	return u.Temp == nil && u.State == nil && u.Percent == nil
}
