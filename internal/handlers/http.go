package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"sim-broker/internal/engine"
	"sim-broker/internal/engine/offset"
	"sim-broker/internal/metrics"
	"sim-broker/pkg/utils"
)

// Handler exposes the engine over HTTP. The engine is single-threaded, so every
// request goes through mu.
type Handler struct {
	mu      sync.Mutex
	engine  *engine.MatchingEngine
	offsets *offset.Tracker
	hub     *Hub
}

// NewHandler wires the handler. offsets and hub may be nil.
func NewHandler(e *engine.MatchingEngine, offsets *offset.Tracker, hub *Hub) *Handler {
	return &Handler{engine: e, offsets: offsets, hub: hub}
}

func (h *Handler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/api/health", h.healthCheck).Methods("GET")
	r.HandleFunc("/api/order", h.createOrder).Methods("POST")
	r.HandleFunc("/api/order/{id:[0-9]+}", h.cancelOrder).Methods("DELETE")
	r.HandleFunc("/api/orders", h.cancelOrders).Methods("DELETE")
	r.HandleFunc("/api/orders/{symbol}", h.listOrders).Methods("GET")
	r.HandleFunc("/api/tick", h.postTick).Methods("POST")
	r.HandleFunc("/api/bbo/{symbol}", h.bbo).Methods("GET")
	r.HandleFunc("/api/position/{symbol}", h.position).Methods("GET")
	r.HandleFunc("/api/offset/{symbol}", h.offset).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	if h.hub != nil {
		r.HandleFunc("/ws", h.hub.ServeWS)
	}
}

// Execute runs a tick through the engine under the handler lock. Tick replays use
// it so they interleave safely with HTTP traffic.
func (h *Handler) Execute(t engine.Tick) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine.Execute(t)
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type orderRequest struct {
	Symbol    string           `json:"symbol"`
	Side      engine.Side      `json:"side"`
	Size      int64            `json:"size"`
	Type      engine.OrderType `json:"type"`
	Price     decimal.Decimal  `json:"price"`
	StopPrice decimal.Decimal  `json:"stop_price"`
	Account   string           `json:"account"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Logger.WithError(err).Error("Failed to decode order request")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	order := engine.Order{
		Symbol:    req.Symbol,
		Side:      req.Side,
		Size:      req.Size,
		Type:      req.Type,
		Price:     req.Price,
		StopPrice: req.StopPrice,
		Account:   req.Account,
	}

	h.mu.Lock()
	id := h.engine.SendOrder(order)
	h.mu.Unlock()

	if id == 0 {
		metrics.OrdersRejected.Inc()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"id": 0, "error": "order rejected"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"id": id})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid order id", http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	h.engine.CancelOrder(id)
	h.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) cancelOrders(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.engine.CancelOrders()
	h.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	orders := h.engine.Orders(mux.Vars(r)["symbol"])
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) postTick(w http.ResponseWriter, r *http.Request) {
	var tick engine.Tick
	if err := json.NewDecoder(r.Body).Decode(&tick); err != nil {
		utils.Logger.WithError(err).Error("Failed to decode tick")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if tick.Symbol == "" {
		http.Error(w, "Tick symbol is required", http.StatusBadRequest)
		return
	}
	if tick.Time.IsZero() {
		tick.Time = time.Now()
	}
	fills := h.Execute(tick)
	writeJSON(w, http.StatusOK, map[string]int{"fills": fills})
}

type quote struct {
	Price decimal.Decimal `json:"price"`
	Size  int64           `json:"size"`
	Valid bool            `json:"valid"`
}

func toQuote(o engine.Order) quote {
	if !o.IsValid() {
		return quote{}
	}
	return quote{Price: o.Price, Size: o.Size, Valid: true}
}

func (h *Handler) bbo(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	h.mu.Lock()
	bid, offer := h.engine.BestBid(symbol), h.engine.BestOffer(symbol)
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"bid":    toQuote(bid),
		"offer":  toQuote(offer),
	})
}

func (h *Handler) position(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	account := r.URL.Query().Get("account")
	h.mu.Lock()
	p := h.engine.GetOpenPositionForAccount(symbol, account)
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) offset(w http.ResponseWriter, r *http.Request) {
	if h.offsets == nil {
		http.Error(w, "Offsets are disabled", http.StatusNotFound)
		return
	}
	account := r.URL.Query().Get("account")
	h.mu.Lock()
	info := h.offsets.OffsetForAccount(mux.Vars(r)["symbol"], account)
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.LogError(err)
	}
}
