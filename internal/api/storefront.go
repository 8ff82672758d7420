package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

type idRequest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// decodeJSON reads the body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body, err := s.readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %v: %w", err, ErrBadRequest)
	}
	return nil
}

// readID reads {"id": ...} and rejects an empty id.
func (s *Server) readID(w http.ResponseWriter, r *http.Request) (idRequest, error) {
	var req idRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		return req, err
	}
	if req.ID == "" {
		return req, fmt.Errorf("id is required: %w", ErrBadRequest)
	}
	return req, nil
}

// handleCreateOrder handles POST /api/orders
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	order, err := s.Shop.CreateOrder(r.Context(), s.clientIP(r), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "orderId": order.ID})
}

// handleOrders handles GET /api/orders
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.Shop.Orders(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, orders)
}

// handleUpdateOrderStatus handles POST /api/orders/{id}/status
func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	order, err := s.Shop.UpdateOrderStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, order)
}

// handleSubmitUpload handles POST /api/uploads
func (s *Server) handleSubmitUpload(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.Shop.SubmitUpload(r.Context(), s.visitor(r), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "id": item.ID})
}

// handleUploads handles GET /api/uploads
func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	items, err := s.Shop.Uploads(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

// handleApprove handles POST /api/approve
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	req, err := s.readID(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.Shop.Approve(r.Context(), req.ID, req.Title)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, item)
}

// handleReject handles POST /api/reject
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	req, err := s.readID(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.rejectUpload(w, r, req.ID)
}

// handleDeleteUpload handles DELETE /api/uploads/{id}
func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	s.rejectUpload(w, r, mux.Vars(r)["id"])
}

func (s *Server) rejectUpload(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.Shop.RejectUpload(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	WriteOK(w, nil)
}

// handleGallery handles GET /api/gallery
func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	items, err := s.Shop.Gallery(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

// handleAddToGallery handles POST /api/gallery
func (s *Server) handleAddToGallery(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.Shop.AddToGallery(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, item)
}

// handleDeleteGalleryBody handles POST /api/gallery/delete
func (s *Server) handleDeleteGalleryBody(w http.ResponseWriter, r *http.Request) {
	req, err := s.readID(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.deleteGalleryItem(w, r, req.ID)
}

// handleDeleteGalleryItem handles DELETE /api/gallery/{id}
func (s *Server) handleDeleteGalleryItem(w http.ResponseWriter, r *http.Request) {
	s.deleteGalleryItem(w, r, mux.Vars(r)["id"])
}

func (s *Server) deleteGalleryItem(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.Shop.DeleteGalleryItem(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	WriteOK(w, nil)
}

// handleProducts handles GET /api/products
func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.Shop.Products(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, products)
}

// handleReplaceProducts handles POST /api/products
func (s *Server) handleReplaceProducts(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	products, err := s.Shop.ReplaceProducts(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, products)
}
