package api

// API request/response types for REST endpoints and WebSocket messages.

// OrderInfo represents an open listing.
type OrderInfo struct {
	ID      uint64 `json:"id"`
	Seller  string `json:"seller"`
	AssetID uint64 `json:"assetId"`
	Price   string `json:"price"` // decimal string, smallest payment units
}

// BalanceInfo represents an account's payment balance and asset count.
type BalanceInfo struct {
	Address    string `json:"address"`
	Balance    string `json:"balance"` // decimal string, smallest payment units
	AssetCount uint64 `json:"assetCount"`
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel.
// The address identifies the calling principal; only the seller succeeds.
type CancelOrderRequest struct {
	Address string `json:"address"`
	OrderID uint64 `json:"orderId"`
}

// ChangePriceRequest is the payload for POST /api/v1/orders/price.
type ChangePriceRequest struct {
	Address  string `json:"address"`
	OrderID  uint64 `json:"orderId"`
	NewPrice string `json:"newPrice"` // decimal string
}

// BuyRequest is the payload for POST /api/v1/orders/buy.
type BuyRequest struct {
	Address string `json:"address"`
	OrderID uint64 `json:"orderId"`
}

// StatusResponse acknowledges a state-mutating request.
type StatusResponse struct {
	Status  string `json:"status"`
	OrderID uint64 `json:"orderId"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WSSubscribeRequest is sent by a client to subscribe to channels.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g. ["events"]
}

// EventUpdate is broadcast to the "events" channel on every market event.
type EventUpdate struct {
	Type      string `json:"type"` // "event"
	Kind      string `json:"kind"` // NewOrder | CancelOrder | ChangePrice | Deal
	ID        uint64 `json:"id"`
	Seller    string `json:"seller,omitempty"`
	Buyer     string `json:"buyer,omitempty"`
	Price     string `json:"price,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
