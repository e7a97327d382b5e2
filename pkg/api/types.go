package api

import "github.com/icodex/icodex/pkg/dex"

// Request/response types for the REST surface and WebSocket messages.

// ==============================
// REST Request Types
// ==============================

// CreateOrderRequest is the payload for POST /api/v1/orders
type CreateOrderRequest struct {
	IcoID  string  `json:"ico_id"`
	Amount int64   `json:"amount"` // base units
	Price  float64 `json:"price"`  // SOL per whole token
	Owner  string  `json:"owner"`  // base58 pubkey
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel
type CancelOrderRequest struct {
	IcoID   string `json:"ico_id"`
	OrderID string `json:"order_id"`
	Owner   string `json:"owner"`
}

// ExecuteOrderRequest is the payload for POST /api/v1/orders/execute.
// No settlement happens server-side; the response carries everything the
// buyer needs to build the on-chain swap.
type ExecuteOrderRequest struct {
	IcoID         string `json:"ico_id"`
	OrderID       string `json:"order_id"`
	Buyer         string `json:"buyer"`
	Amount        int64  `json:"amount"`
	TokenMint     string `json:"token_mint_address"`
	TokenDecimals int    `json:"token_decimals"`
}

// ==============================
// REST Response Types
// ==============================

type CreateOrderResponse struct {
	OrderID string `json:"order_id"`
}

type CancelOrderResponse struct {
	Cancelled bool `json:"cancelled"`
}

type OrdersResponse struct {
	IcoID  string      `json:"ico_id"`
	Orders []dex.Order `json:"orders"`
}

type FillsResponse struct {
	IcoID string     `json:"ico_id"`
	Fills []dex.Fill `json:"fills"`
}

// ErrorResponse is returned for all errors. Error is a stable kind tag,
// Message the human-readable detail.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by clients to manage channel subscriptions,
// e.g. {"op":"subscribe","channels":["orders:my-ico"]}
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// BookUpdate is broadcast on the "orders:<ico_id>" channel after every
// durable mutation.
type BookUpdate struct {
	Type      string      `json:"type"` // "orders"
	IcoID     string      `json:"ico_id"`
	Orders    []dex.Order `json:"orders"`
	Timestamp int64       `json:"timestamp"`
}
