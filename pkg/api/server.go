package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/quantaex/matchcore/pkg/journal"
	"github.com/quantaex/matchcore/pkg/match"
)

// Server exposes read-only views of the engine over REST and streams
// ticks and trades over WebSocket. Order submission is deliberately
// absent: orders reach the engine only through its inbound channel.
type Server struct {
	engine  *match.Engine
	journal *journal.Journal // may be nil when journaling is disabled
	router  *mux.Router
	hub     *Hub
	log     *zap.SugaredLogger
}

// NewServer creates a new API server
func NewServer(engine *match.Engine, j *journal.Journal, log *zap.SugaredLogger) *Server {
	s := &Server{
		engine:  engine,
		journal: j,
		router:  mux.NewRouter(),
		hub:     NewHub(log),
		log:     log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/market", s.handleGetMarket).Methods("GET")
	api.HandleFunc("/fingerprint", s.handleGetFingerprint).Methods("GET")
	api.HandleFunc("/ticks", s.handleGetTicks).Methods("GET")
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	handler := c.Handler(s.router)

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, handler)
}

// BroadcastTick pushes one tick to subscribed WebSocket clients.
func (s *Server) BroadcastTick(t match.Tick) {
	s.hub.BroadcastToChannel("ticks", tickInfo(t))
}

// BroadcastResult pushes one trade result to subscribed WebSocket clients.
func (s *Server) BroadcastResult(r *match.TradeResult) {
	s.hub.BroadcastToChannel("trades", resultInfo(r))
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	bids := levelInfos(s.engine.BuyBook().Levels())
	asks := levelInfos(s.engine.SellBook().Levels())

	respondJSON(w, BookSnapshot{
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, MarketInfo{
		MarketPrice: match.CanonicalPrice(s.engine.MarketPrice()),
		BuyOrders:   s.engine.BuyBook().Len(),
		SellOrders:  s.engine.SellBook().Len(),
	})
}

func (s *Server) handleGetFingerprint(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, FingerprintInfo{Fingerprint: s.engine.FingerprintHex()})
}

func (s *Server) handleGetTicks(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		respondError(w, http.StatusNotFound, "journal disabled", "")
		return
	}
	ticks, err := s.journal.RecentTicks(queryLimit(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal read failed", err.Error())
		return
	}
	out := make([]TickInfo, len(ticks))
	for i, t := range ticks {
		out[i] = tickInfo(t)
	}
	respondJSON(w, out)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		respondError(w, http.StatusNotFound, "journal disabled", "")
		return
	}
	results, err := s.journal.RecentResults(queryLimit(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal read failed", err.Error())
		return
	}
	out := make([]TradeResultInfo, len(results))
	for i, res := range results {
		out[i] = resultInfo(res)
	}
	respondJSON(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func queryLimit(r *http.Request) int {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	return limit
}

func levelInfos(levels []match.PriceLevel) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, lv := range levels {
		out[i] = PriceLevel{
			Price:  match.CanonicalPrice(lv.Price),
			Amount: match.CanonicalAmount(lv.Amount),
			Orders: lv.Orders,
		}
	}
	return out
}

func tickInfo(t match.Tick) TickInfo {
	return TickInfo{
		Time:   t.Time,
		Price:  match.CanonicalPrice(t.Price),
		Amount: match.CanonicalAmount(t.Amount),
	}
}

func resultInfo(r *match.TradeResult) TradeResultInfo {
	records := make([]TradeRecordInfo, len(r.Records))
	for i, rec := range r.Records {
		records[i] = TradeRecordInfo{
			TakerID: rec.TakerID,
			MakerID: rec.MakerID,
			Price:   match.CanonicalPrice(rec.Price),
			Amount:  match.CanonicalAmount(rec.Amount),
		}
	}
	return TradeResultInfo{Records: records}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Details: details})
}
