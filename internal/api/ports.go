package api

import (
	"context"
	"net/http"
	"time"

	"github.com/toastigo/storefront/internal/auth"
	"github.com/toastigo/storefront/internal/bridge"
	"github.com/toastigo/storefront/internal/command"
	"github.com/toastigo/storefront/internal/printer"
	"github.com/toastigo/storefront/internal/shop"
	"github.com/toastigo/storefront/internal/telemetry"
)

// StatusReader is the read side of the printer status cache.
type StatusReader interface {
	Read() printer.Status
}

// TelemetryPort is the SSE hub.
type TelemetryPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
	ClientCount() int
}

// BridgePort exposes broker connection state.
type BridgePort interface {
	Enabled() bool
	State() bridge.State
	Stats() bridge.Stats
}

// OrchestratorPort sends printer commands.
type OrchestratorPort = command.OrchestratorPort

// Authenticator exchanges the admin password for a bearer token.
type Authenticator interface {
	LoginEnabled() bool
	Login(password string) (string, time.Time, error)
}

// ShopPort is the storefront record service.
type ShopPort interface {
	CreateOrder(ctx context.Context, ip string, body []byte) (shop.Order, error)
	Orders(ctx context.Context) ([]shop.Order, error)
	UpdateOrderStatus(ctx context.Context, id, status string) (shop.Order, error)

	SubmitUpload(ctx context.Context, v shop.Visitor, body []byte) (shop.Item, error)
	Uploads(ctx context.Context) ([]shop.Item, error)
	Approve(ctx context.Context, id, title string) (shop.Item, error)
	RejectUpload(ctx context.Context, id string) error

	Gallery(ctx context.Context) ([]shop.Item, error)
	AddToGallery(ctx context.Context, body []byte) (shop.Item, error)
	DeleteGalleryItem(ctx context.Context, id string) error

	Products(ctx context.Context) ([]shop.Product, error)
	ReplaceProducts(ctx context.Context, body []byte) ([]shop.Product, error)

	RecordVisit(ctx context.Context, v shop.Visitor) error
	Analytics(ctx context.Context) (shop.Analytics, error)
	Ban(ctx context.Context, ip string) error
	Unban(ctx context.Context, ip string) error
	UnbanAll(ctx context.Context) (int, error)
}

// Compile-time assertions for port conformance
var _ StatusReader = (*printer.Cache)(nil)
var _ TelemetryPort = (*telemetry.Hub)(nil)
var _ BridgePort = (*bridge.Manager)(nil)
var _ OrchestratorPort = (*command.Orchestrator)(nil)
var _ Authenticator = (*auth.Verifier)(nil)
var _ ShopPort = (*shop.Service)(nil)
