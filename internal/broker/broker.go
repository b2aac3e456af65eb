// Package broker defines the venue-agnostic interface the core consumes
// (spec §4.4) and the historical back-testing implementation of it
// (historical.go). Grounded on the teacher's client-interface-plus-concrete-
// implementation split (internal/clients in the teacher repo), generalised
// from a single brokerage API to an abstract trading venue.
package broker

import (
	"context"
	"time"

	"github.com/aristath/arduino-trader/internal/components"
)

// OrderType mirrors the wire-format order types a submit request may carry.
type OrderType string

const (
	Market       OrderType = "market"
	Limit        OrderType = "limit"
	Stop         OrderType = "stop"
	StopLimit    OrderType = "stop_limit"
	TrailingStop OrderType = "trailing_stop"
)

// TimeInForce mirrors the wire-format time-in-force values.
type TimeInForce string

const (
	Day TimeInForce = "day"
	GTC TimeInForce = "gtc"
	OPG TimeInForce = "opg"
	CLS TimeInForce = "cls"
	IOC TimeInForce = "ioc"
	FOK TimeInForce = "fok"
)

// SubmitRequest is the broker-agnostic submit-order wire shape (spec §6).
type SubmitRequest struct {
	Symbol      string
	Qty         float64
	Side        components.Side
	Type        OrderType
	TimeInForce TimeInForce
	LimitPrice  *float64
}

// OrderResponse is the broker-agnostic submit-order response / order-update
// shape (spec §6). Timestamp fields are zero when absent. JSON tags give
// internal/broker/live a wire shape to decode a venue's order-update stream
// into without any venue-specific client.
type OrderResponse struct {
	Symbol         string          `json:"symbol"`
	Side           components.Side `json:"side"`
	ID             string          `json:"id"`
	ClientOrderID  string          `json:"client_order_id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	FilledAt       time.Time       `json:"filled_at"`
	ExpiredAt      time.Time       `json:"expired_at"`
	CanceledAt     time.Time       `json:"canceled_at"`
	FailedAt       time.Time       `json:"failed_at"`
	FilledQty      float64         `json:"filled_qty"`
	FilledAvgPrice float64         `json:"filled_avg_price"`
	Status         string          `json:"status"`
	Qty            float64         `json:"qty"`
}

// StreamMessage is one message off the order-update stream; only messages
// with Stream=="trade_updates" carry a meaningful Order.
type StreamMessage struct {
	Stream string         `json:"stream"`
	Order  *OrderResponse `json:"order"`
}

// Trade is one historical trade print.
type Trade struct {
	Price float64
	Qty   float64
	Time  time.Time
}

// Bar is one OHLCV bar.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Broker is the seven-method interface the pipeline consumes, identical in
// live and historical mode (spec §4.4).
type Broker interface {
	CurrentTime(ctx context.Context) (time.Time, error)
	CurrentPrice(ctx context.Context, ticker string) (float64, error)
	SubmitOrder(ctx context.Context, req SubmitRequest) (OrderResponse, error)
	ReceiveOrder(ctx context.Context) (*OrderResponse, error)
	DeleteAllOrders(ctx context.Context) error
	Trades(ctx context.Context, ticker string, start, stop time.Time) ([]Trade, error)
	Bars(ctx context.Context, ticker string, start, stop time.Time, timeframe time.Duration) ([]Bar, error)
}
