package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/toastigo/storefront/internal/auth"
)

// Handler builds the full router: API routes, the API 404 catch-all and
// the SPA fallback.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(cors, s.accessLog)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	s.RegisterRoutes(r)

	r.PathPrefix("/api").HandlerFunc(apiNotFound)
	r.PathPrefix("/").Handler(s.spa()).Methods(http.MethodGet, http.MethodHead)
	return r
}

// RegisterRoutes registers every /api endpoint.
func (s *Server) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	// Printer telemetry
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/status/stream", s.handleStatusStream).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Public storefront
	api.HandleFunc("/orders", s.handleCreateOrder).Methods(http.MethodPost)
	api.HandleFunc("/uploads", s.handleSubmitUpload).Methods(http.MethodPost)
	api.HandleFunc("/gallery", s.handleGallery).Methods(http.MethodGet)
	api.HandleFunc("/products", s.handleProducts).Methods(http.MethodGet)

	api.HandleFunc("/admin/login", s.handleLogin).Methods(http.MethodPost)

	moderate := s.require(auth.ScopeModerate)
	api.HandleFunc("/orders", moderate(s.handleOrders)).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/status", moderate(s.handleUpdateOrderStatus)).Methods(http.MethodPost)
	api.HandleFunc("/uploads", moderate(s.handleUploads)).Methods(http.MethodGet)
	api.HandleFunc("/uploads/{id}", moderate(s.handleDeleteUpload)).Methods(http.MethodDelete)
	api.HandleFunc("/approve", moderate(s.handleApprove)).Methods(http.MethodPost)
	api.HandleFunc("/reject", moderate(s.handleReject)).Methods(http.MethodPost)
	api.HandleFunc("/gallery", moderate(s.handleAddToGallery)).Methods(http.MethodPost)
	api.HandleFunc("/gallery/delete", moderate(s.handleDeleteGalleryBody)).Methods(http.MethodPost)
	api.HandleFunc("/gallery/{id}", moderate(s.handleDeleteGalleryItem)).Methods(http.MethodDelete)
	api.HandleFunc("/products", moderate(s.handleReplaceProducts)).Methods(http.MethodPost)
	api.HandleFunc("/ban", moderate(s.handleBan)).Methods(http.MethodPost)
	api.HandleFunc("/unban", moderate(s.handleUnban)).Methods(http.MethodPost)
	api.HandleFunc("/unban-all", moderate(s.handleUnbanAll)).Methods(http.MethodPost)
	api.HandleFunc("/analytics", moderate(s.handleAnalytics)).Methods(http.MethodGet)

	control := s.require(auth.ScopePrinterControl)
	api.HandleFunc("/bridge", control(s.handleBridge)).Methods(http.MethodGet)
	api.HandleFunc("/printer/request-state", control(s.handleRequestState)).Methods(http.MethodPost)
}

// require wraps admin handlers. Without middleware every admin route is
// refused, so a misconfigured server never exposes them.
func (s *Server) require(scope string) func(http.HandlerFunc) http.HandlerFunc {
	if s.Middleware == nil {
		return func(http.HandlerFunc) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				WriteError(w, http.StatusServiceUnavailable, "LOGIN_DISABLED", "Admin access is not configured", nil)
			}
		}
	}
	return s.Middleware.RequireScope(scope)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
		r.Method+" is not allowed on "+r.URL.Path, nil)
}

func apiNotFound(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]string{"error": "API route not found"})
}
