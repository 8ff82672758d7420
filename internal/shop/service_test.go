package shop

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/toastigo/storefront/internal/audit"
	"github.com/toastigo/storefront/internal/store"
)

type auditRecord struct {
	action string
	target string
	code   string
}

type recordingAudit struct {
	mu      sync.Mutex
	records []auditRecord
}

func (r *recordingAudit) LogChange(_ context.Context, action, target string, _ map[string]interface{}, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, auditRecord{action, target, audit.CodeOf(err)})
}

func (r *recordingAudit) last() auditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) == 0 {
		return auditRecord{}
	}
	return r.records[len(r.records)-1]
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc   *Service
	st    *store.Store
	audit *recordingAudit
	clock *testClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{
		st:    st,
		audit: &recordingAudit{},
		clock: &testClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)},
	}
	opts = append([]Option{WithAudit(f.audit), WithClock(f.clock.Now)}, opts...)
	f.svc = NewService(st, opts...)
	return f
}

func toMap(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}
