package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/icodex/icodex/pkg/dex"
	"github.com/icodex/icodex/pkg/solana"
	"github.com/icodex/icodex/pkg/store"
)

// Server exposes the four gateway operations over REST plus a WebSocket
// feed of book updates. It is a thin transport shell: all validation
// beyond pubkey shape and all state access happen in the gateway.
type Server struct {
	gw     *dex.Gateway
	fills  *store.FillLog // optional, nil disables the fills endpoint
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

func NewServer(gw *dex.Gateway, fills *store.FillLog, log *zap.SugaredLogger) *Server {
	s := &Server{
		gw:     gw,
		fills:  fills,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	s.setupRoutes()

	// Push a fresh book snapshot to subscribers after every durable
	// mutation.
	gw.OnMutate(func(icoID string) {
		s.hub.BroadcastToChannel("orders:"+icoID, BookUpdate{
			Type:      "orders",
			IcoID:     icoID,
			Orders:    s.gw.GetOrders(icoID, defaultListLimit, false),
			Timestamp: time.Now().UnixMilli(),
		})
	})
	return s
}

const defaultListLimit = 100

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/execute", s.handleExecuteOrder).Methods("POST")
	api.HandleFunc("/icos/{ico_id}/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/icos/{ico_id}/fills", s.handleGetFills).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the routed handler (tests hit this directly).
func (s *Server) Handler() http.Handler { return s.router }

// Start runs the hub and serves HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})

	s.log.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation", "invalid JSON body: "+err.Error())
		return
	}
	owner, err := solana.ParsePubkey(req.Owner)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation", "owner: "+err.Error())
		return
	}

	order, err := s.gw.CreateOrder(req.IcoID, req.Amount, req.Price, owner)
	if err != nil {
		s.respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, CreateOrderResponse{OrderID: order.ID})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation", "invalid JSON body: "+err.Error())
		return
	}
	owner, err := solana.ParsePubkey(req.Owner)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation", "owner: "+err.Error())
		return
	}

	if _, err := s.gw.CancelOrder(req.IcoID, req.OrderID, owner); err != nil {
		s.respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, CancelOrderResponse{Cancelled: true})
}

func (s *Server) handleExecuteOrder(w http.ResponseWriter, r *http.Request) {
	var req ExecuteOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation", "invalid JSON body: "+err.Error())
		return
	}
	buyer, err := solana.ParsePubkey(req.Buyer)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation", "buyer: "+err.Error())
		return
	}
	mint, err := solana.ParsePubkey(req.TokenMint)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation", "token_mint_address: "+err.Error())
		return
	}

	fill, err := s.gw.ExecuteOrder(r.Context(), dex.ExecuteRequest{
		IcoID:         req.IcoID,
		OrderID:       req.OrderID,
		Buyer:         buyer,
		Amount:        req.Amount,
		TokenMint:     mint,
		TokenDecimals: req.TokenDecimals,
	})
	if err != nil {
		s.respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, fill)
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	icoID := mux.Vars(r)["ico_id"]

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "validation", "limit must be an integer")
			return
		}
		limit = n
	}
	byPrice := r.URL.Query().Get("sort") == "price"

	respondJSON(w, http.StatusOK, OrdersResponse{
		IcoID:  icoID,
		Orders: s.gw.GetOrders(icoID, limit, byPrice),
	})
}

func (s *Server) handleGetFills(w http.ResponseWriter, r *http.Request) {
	icoID := mux.Vars(r)["ico_id"]

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "validation", "limit must be an integer")
			return
		}
		limit = n
	}

	if s.fills == nil {
		respondJSON(w, http.StatusOK, FillsResponse{IcoID: icoID, Fills: []dex.Fill{}})
		return
	}
	fills, err := s.fills.Recent(icoID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, FillsResponse{IcoID: icoID, Fills: fills})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

// errorKind maps an error to its stable wire tag and HTTP status.
func errorKind(err error) (string, int) {
	switch {
	case errors.Is(err, dex.ErrValidation):
		return "validation", http.StatusBadRequest
	case errors.Is(err, dex.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, dex.ErrNotOwner):
		return "not_owner", http.StatusForbidden
	case errors.Is(err, dex.ErrDuplicateID):
		return "duplicate_id", http.StatusConflict
	case errors.Is(err, dex.ErrInvalidAmount):
		return "invalid_amount", http.StatusUnprocessableEntity
	case errors.Is(err, dex.ErrInsufficientLiquidity):
		return "insufficient_liquidity", http.StatusUnprocessableEntity
	case errors.Is(err, dex.ErrInsufficientAmount):
		return "insufficient_amount", http.StatusUnprocessableEntity
	case errors.Is(err, dex.ErrInsufficientFunds):
		return "insufficient_funds", http.StatusUnprocessableEntity
	case errors.Is(err, dex.ErrInsufficientAsset):
		return "insufficient_asset", http.StatusUnprocessableEntity
	case errors.Is(err, dex.ErrOracleUnavailable):
		return "oracle_unavailable", http.StatusServiceUnavailable
	case errors.Is(err, dex.ErrCorruptState):
		return "corrupt_state", http.StatusInternalServerError
	case errors.Is(err, dex.ErrPersistence):
		return "persistence", http.StatusInternalServerError
	default:
		return "internal", http.StatusInternalServerError
	}
}

func (s *Server) respondGatewayError(w http.ResponseWriter, err error) {
	kind, status := errorKind(err)
	if status >= http.StatusInternalServerError {
		s.log.Errorw("operation_failed", "kind", kind, "err", err)
	}
	respondError(w, status, kind, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: kind, Message: message})
}
