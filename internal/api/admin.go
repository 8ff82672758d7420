package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/toastigo/storefront/internal/auth"
)

// handleLogin handles POST /api/admin/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.Auth == nil || !s.Auth.LoginEnabled() {
		s.fail(w, r, auth.ErrLoginDisabled)
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	token, expires, err := s.Auth.Login(req.Password)
	if err != nil {
		s.log.Warn("Admin login rejected")
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":     token,
		"expiresAt": expires.UTC().Format(time.RFC3339),
	})
}

type ipRequest struct {
	IP string `json:"ip"`
}

func (s *Server) readIP(w http.ResponseWriter, r *http.Request) (string, error) {
	var req ipRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		return "", err
	}
	if req.IP == "" {
		return "", fmt.Errorf("ip is required: %w", ErrBadRequest)
	}
	return req.IP, nil
}

// handleBan handles POST /api/ban
func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	ip, err := s.readIP(w, r)
	if err == nil {
		err = s.Shop.Ban(r.Context(), ip)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteOK(w, nil)
}

// handleUnban handles POST /api/unban
func (s *Server) handleUnban(w http.ResponseWriter, r *http.Request) {
	ip, err := s.readIP(w, r)
	if err == nil {
		err = s.Shop.Unban(r.Context(), ip)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteOK(w, nil)
}

// handleUnbanAll handles POST /api/unban-all
func (s *Server) handleUnbanAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.Shop.UnbanAll(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteOK(w, map[string]interface{}{"count": n})
}

// handleAnalytics handles GET /api/analytics
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.Shop.Analytics(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, a)
}
