package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"yalegn/orders-service/internal/listing"
	"yalegn/orders-service/internal/order"

	"github.com/google/uuid"
)

type Server struct {
	orderSvc *order.Service
	logger   *slog.Logger
	mux      *http.ServeMux
}

func NewServer(orderSvc *order.Service, logger *slog.Logger) *Server {
	s := &Server{
		orderSvc: orderSvc,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /orders", s.createOrder)
	s.mux.HandleFunc("GET /orders", s.listBuyerOrders)
	s.mux.HandleFunc("GET /orders/{orderID}", s.getOrder)
	s.mux.HandleFunc("POST /orders/{orderID}/proof", s.uploadProof)
	s.mux.HandleFunc("POST /orders/{orderID}/confirm", s.confirmDelivery)
	s.mux.HandleFunc("GET /seller/orders", s.listSellerOrders)
	s.mux.HandleFunc("GET /admin/orders", s.listAdminOrders)
	s.mux.HandleFunc("POST /admin/orders/{orderID}/status", s.adminAdvance)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// HandleFunc lets the app attach extra routes (websocket endpoints) to
// the same mux.
func (s *Server) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.mux.HandleFunc(pattern, handler)
}

type createOrderRequest struct {
	ListingID  uuid.UUID            `json:"listing_id"`
	Quantity   int                  `json:"quantity"`
	TotalPrice float64              `json:"total_price"`
	Currency   order.Currency       `json:"currency"`
	Payment    order.PaymentDetails `json:"payment_details"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := s.identity(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	o, err := s.orderSvc.Create(r.Context(), order.CreateParams{
		BuyerID:    actor.UserID,
		ListingID:  req.ListingID,
		Quantity:   req.Quantity,
		TotalPrice: req.TotalPrice,
		Currency:   req.Currency,
		Payment:    req.Payment,
	})
	if err != nil {
		s.writeServiceError(w, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) listBuyerOrders(w http.ResponseWriter, r *http.Request) {
	actor, err := s.identity(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	views, err := s.orderSvc.ListForBuyer(r.Context(), actor.UserID)
	if err != nil {
		s.writeServiceError(w, "list buyer orders", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": views})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := s.identity(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	orderID, err := uuid.Parse(r.PathValue("orderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := s.orderSvc.Get(r.Context(), actor, orderID)
	if err != nil {
		s.writeServiceError(w, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

func (s *Server) uploadProof(w http.ResponseWriter, r *http.Request) {
	actor, err := s.identity(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	orderID, err := uuid.Parse(r.PathValue("orderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req struct {
		ProofURL string `json:"proof_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	o, err := s.orderSvc.SellerUploadProof(r.Context(), actor, orderID, req.ProofURL)
	if err != nil {
		s.writeServiceError(w, "upload delivery proof", err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

func (s *Server) confirmDelivery(w http.ResponseWriter, r *http.Request) {
	actor, err := s.identity(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	orderID, err := uuid.Parse(r.PathValue("orderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := s.orderSvc.BuyerConfirmDelivery(r.Context(), actor, orderID)
	if err != nil {
		s.writeServiceError(w, "confirm delivery", err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

func (s *Server) listSellerOrders(w http.ResponseWriter, r *http.Request) {
	actor, err := s.identity(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var listingID *uuid.UUID
	if raw := r.URL.Query().Get("listing_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid listing id")
			return
		}
		listingID = &id
	}

	views, err := s.orderSvc.ListForSeller(r.Context(), actor.UserID, listingID)
	if err != nil {
		s.writeServiceError(w, "list seller orders", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": views})
}

func (s *Server) listAdminOrders(w http.ResponseWriter, r *http.Request) {
	actor, err := s.identity(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	views, err := s.orderSvc.ListForAdmin(r.Context(), actor)
	if err != nil {
		s.writeServiceError(w, "list admin orders", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": views})
}

func (s *Server) adminAdvance(w http.ResponseWriter, r *http.Request) {
	actor, err := s.identity(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	orderID, err := uuid.Parse(r.PathValue("orderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req struct {
		Status order.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	o, err := s.orderSvc.AdminAdvance(r.Context(), actor, orderID, req.Status)
	if err != nil {
		s.writeServiceError(w, "advance order", err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

func (s *Server) identity(r *http.Request) (order.Identity, error) {
	userID, err := uuid.Parse(r.Header.Get("X-User-ID"))
	if err != nil {
		return order.Identity{}, errors.New("missing or invalid X-User-ID header")
	}
	role := order.Role(r.Header.Get("X-User-Role"))
	if !role.Valid() {
		return order.Identity{}, errors.New("missing or invalid X-User-Role header")
	}
	return order.Identity{UserID: userID, Role: role}, nil
}

// writeServiceError maps the service error taxonomy onto HTTP status
// codes. Errors propagate unmodified from the service; nothing is
// recovered silently here.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, order.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, listing.ErrListingNotFound):
		writeError(w, http.StatusNotFound, "listing not found")
	case errors.Is(err, order.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error(op, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
