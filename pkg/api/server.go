package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/parkgb/nftmarket/pkg/market"
	"github.com/parkgb/nftmarket/pkg/token"
)

// Server exposes the market over REST and WebSocket.
type Server struct {
	market   *market.Market
	payments *token.ERC20
	assets   *token.ERC721
	router   *mux.Router
	hub      *Hub
	log      *zap.SugaredLogger
}

// NewServer creates an API server over the given market and token
// collaborators.
func NewServer(m *market.Market, payments *token.ERC20, assets *token.ERC721, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		market:   m,
		payments: payments,
		assets:   assets,
		router:   mux.NewRouter(),
		hub:      NewHub(logger),
		log:      logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order queries
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")

	// Account queries
	api.HandleFunc("/accounts/{address}/orders", s.handleAccountOrders).Methods("GET")
	api.HandleFunc("/accounts/{address}/balance", s.handleAccountBalance).Methods("GET")

	// State-mutating entry points
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/price", s.handleChangePrice).Methods("POST")
	api.HandleFunc("/orders/buy", s.handleBuy).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub, bridges market events onto it, and serves HTTP until
// ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)
	go s.pumpEvents(ctx)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	srv := &http.Server{Addr: addr, Handler: c.Handler(s.router)}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	s.log.Infow("api_server_starting", "addr", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// pumpEvents forwards market events to subscribed WebSocket clients.
func (s *Server) pumpEvents(ctx context.Context) {
	events := s.market.Events().Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			update := EventUpdate{
				Type:      "event",
				Kind:      string(evt.Kind),
				ID:        evt.ID,
				Timestamp: evt.Timestamp,
			}
			if evt.Seller != (common.Address{}) {
				update.Seller = evt.Seller.Hex()
			}
			if evt.Buyer != (common.Address{}) {
				update.Buyer = evt.Buyer.Hex()
			}
			if evt.Price != nil {
				update.Price = evt.Price.String()
			}
			s.hub.BroadcastToChannel("events", update)
		}
	}
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, toOrderInfos(s.market.AllOrders()))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}

	ord, ok := s.market.GetOrder(id)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	respondJSON(w, toOrderInfo(ord))
}

func (s *Server) handleAccountOrders(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, r)
	if !ok {
		return
	}
	respondJSON(w, toOrderInfos(s.market.OrdersOf(addr)))
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, r)
	if !ok {
		return
	}
	respondJSON(w, BalanceInfo{
		Address:    addr.Hex(),
		Balance:    s.payments.BalanceOf(addr).String(),
		AssetCount: s.assets.BalanceOf(addr),
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}

	if err := s.market.CancelOrder(common.HexToAddress(req.Address), req.OrderID); err != nil {
		respondMarketError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "cancelled", OrderID: req.OrderID})
}

func (s *Server) handleChangePrice(w http.ResponseWriter, r *http.Request) {
	var req ChangePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	price, ok := new(big.Int).SetString(req.NewPrice, 10)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid price", req.NewPrice)
		return
	}

	if err := s.market.ChangePrice(common.HexToAddress(req.Address), req.OrderID, price); err != nil {
		respondMarketError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "repriced", OrderID: req.OrderID})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}

	if err := s.market.Buy(common.HexToAddress(req.Address), req.OrderID); err != nil {
		respondMarketError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "settled", OrderID: req.OrderID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func parseAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return common.Address{}, false
	}
	return common.HexToAddress(addressStr), true
}

func toOrderInfo(ord *market.Order) OrderInfo {
	return OrderInfo{
		ID:      ord.ID,
		Seller:  ord.Seller.Hex(),
		AssetID: ord.AssetID,
		Price:   ord.Price.String(),
	}
}

func toOrderInfos(orders []*market.Order) []OrderInfo {
	out := make([]OrderInfo, len(orders))
	for i, ord := range orders {
		out[i] = toOrderInfo(ord)
	}
	return out
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: error, Message: message})
}

func respondMarketError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order not found", err.Error())
	case errors.Is(err, market.ErrNotOwner):
		respondError(w, http.StatusForbidden, "not the order seller", err.Error())
	case errors.Is(err, market.ErrInvalidPrice), errors.Is(err, market.ErrInvalidPayload):
		respondError(w, http.StatusBadRequest, "invalid price", err.Error())
	case errors.Is(err, market.ErrAlreadyListed):
		respondError(w, http.StatusConflict, "asset already listed", err.Error())
	case errors.Is(err, market.ErrPaymentFailed):
		respondError(w, http.StatusPaymentRequired, "payment failed", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "operation failed", err.Error())
	}
}
