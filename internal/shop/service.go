package shop

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/toastigo/storefront/internal/store"
)

// DefaultVisitRetention bounds the visit log kept for analytics.
const DefaultVisitRetention = 5000

// AuditLogger records admin mutations.
type AuditLogger interface {
	LogChange(ctx context.Context, action, target string, params map[string]interface{}, err error)
}

// Service owns the storefront collections.
type Service struct {
	store          *store.Store
	audit          AuditLogger
	log            *zap.Logger
	now            func() time.Time
	visitRetention int
}

// Option configures a Service.
type Option func(*Service)

// WithAudit records admin mutations to a.
func WithAudit(a AuditLogger) Option {
	return func(s *Service) { s.audit = a }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithVisitRetention caps the number of stored visits.
func WithVisitRetention(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.visitRetention = n
		}
	}
}

// NewService creates a service over st.
func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:          st,
		log:            zap.NewNop(),
		now:            time.Now,
		visitRetention: DefaultVisitRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

func (s *Service) record(ctx context.Context, action, target string, params map[string]interface{}, err error) {
	if s.audit != nil {
		s.audit.LogChange(ctx, action, target, params, err)
	}
}
