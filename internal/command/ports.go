package command

import (
	"context"
	"errors"
	"time"
)

// OrchestratorPort is what the API needs from the orchestrator.
type OrchestratorPort interface {
	RequestFullState(ctx context.Context) error
}

// Bridge is the printer link a command is sent over.
type Bridge interface {
	RequestFullState(ctx context.Context) error
}

// EventPublisher announces command outcomes to live subscribers.
type EventPublisher interface {
	PublishCommand(data map[string]interface{})
}

// AuditLogger writes audit records.
type AuditLogger interface {
	LogAction(ctx context.Context, action, target, result string, latency time.Duration)
}

// ErrUnavailable indicates the printer link is disabled or down.
var ErrUnavailable = errors.New("UNAVAILABLE")

// ErrTimeout indicates the command did not complete within its timeout class.
var ErrTimeout = errors.New("TIMEOUT")
