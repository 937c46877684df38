package api

// API response types for REST endpoints and WebSocket messages. Prices
// and amounts are rendered with the engine's canonical text encoding so
// what clients see is byte-identical to what the fingerprint consumed.

// PriceLevel is one aggregated book level.
type PriceLevel struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
	Orders int    `json:"orders"`
}

// BookSnapshot is the current state of both book sides.
type BookSnapshot struct {
	Bids      []PriceLevel `json:"bids"` // sorted high to low
	Asks      []PriceLevel `json:"asks"` // sorted low to high
	Timestamp int64        `json:"timestamp"` // unix milliseconds
}

// MarketInfo reports the last traded price and book depth.
type MarketInfo struct {
	MarketPrice string `json:"marketPrice"` // "0.00" before the first fill
	BuyOrders   int    `json:"buyOrders"`
	SellOrders  int    `json:"sellOrders"`
}

// FingerprintInfo carries the 0x-prefixed state fingerprint.
type FingerprintInfo struct {
	Fingerprint string `json:"fingerprint"`
}

// TickInfo is one public trade print.
type TickInfo struct {
	Time   int64  `json:"time"`
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

// TradeRecordInfo is one fill inside a trade result.
type TradeRecordInfo struct {
	TakerID uint64 `json:"takerId"`
	MakerID uint64 `json:"makerId"`
	Price   string `json:"price"`
	Amount  string `json:"amount"`
}

// TradeResultInfo is the fill set produced by one processed order.
type TradeResultInfo struct {
	Records []TradeRecordInfo `json:"records"`
}

// ==============================
// WebSocket Types
// ==============================

// WSSubscribeRequest is a client subscription request
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// WSMessage is a server push on a subscribed channel
type WSMessage struct {
	Channel string      `json:"channel"` // "ticks" or "trades"
	Data    interface{} `json:"data"`
}

// ErrorResponse is a standard error payload
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
