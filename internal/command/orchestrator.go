package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/toastigo/storefront/internal/bridge"
	"github.com/toastigo/storefront/internal/config"
)

// ActionRequestFullState is the audit and event name of RequestFullState.
const ActionRequestFullState = "requestFullState"

// Orchestrator routes validated admin intents to the bridge.
type Orchestrator struct {
	bridge Bridge
	events EventPublisher
	config *config.TimingConfig
	audit  AuditLogger
	target string
	log    *zap.Logger
}

// Compile-time assertion that Orchestrator implements OrchestratorPort
var _ OrchestratorPort = (*Orchestrator)(nil)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAuditLogger records every command.
func WithAuditLogger(a AuditLogger) Option {
	return func(o *Orchestrator) { o.audit = a }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithTarget names the printer in audit records and events, usually its serial.
func WithTarget(target string) Option {
	return func(o *Orchestrator) { o.target = target }
}

// NewOrchestrator creates a command orchestrator. A nil bridge makes every
// command fail with ErrUnavailable.
func NewOrchestrator(b Bridge, events EventPublisher, timingConfig *config.TimingConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		bridge: b,
		events: events,
		config: timingConfig,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RequestFullState asks the printer to push its complete state.
func (o *Orchestrator) RequestFullState(ctx context.Context) error {
	start := time.Now()

	if o.bridge == nil {
		o.finish(ctx, ActionRequestFullState, start, ErrUnavailable)
		return ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.CommandTimeoutRequestState)
	defer cancel()

	err := o.normalize(o.bridge.RequestFullState(ctx))
	o.finish(ctx, ActionRequestFullState, start, err)
	return err
}

// normalize maps bridge errors onto the command error codes.
func (o *Orchestrator) normalize(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%v: %w", err, ErrTimeout)
	case errors.Is(err, bridge.ErrDisabled),
		errors.Is(err, bridge.ErrNotConnected),
		errors.Is(err, bridge.ErrNoFullState):
		return fmt.Errorf("%v: %w", err, ErrUnavailable)
	default:
		return fmt.Errorf("publish failed: %v: %w", err, ErrUnavailable)
	}
}

func (o *Orchestrator) finish(ctx context.Context, action string, start time.Time, err error) {
	result := "SUCCESS"
	switch {
	case errors.Is(err, ErrTimeout):
		result = "TIMEOUT"
	case err != nil:
		result = "UNAVAILABLE"
	}
	latency := time.Since(start)

	if o.audit != nil {
		o.audit.LogAction(ctx, action, o.target, result, latency)
	}

	if err != nil {
		o.log.Warn("Command failed", zap.String("action", action), zap.String("result", result), zap.Error(err))
	} else {
		o.log.Info("Command sent", zap.String("action", action), zap.Duration("latency", latency))
	}

	if o.events != nil {
		o.events.PublishCommand(map[string]interface{}{
			"action": action,
			"target": o.target,
			"result": result,
			"ts":     time.Now().UTC().Format(time.RFC3339),
		})
	}
}
