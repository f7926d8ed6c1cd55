// Package execution carries accepted orders to a venue. The default
// executor only logs, which keeps the pipeline runnable without broker
// credentials; BrokerClient talks to a real order endpoint.
package execution

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeAPmind/tradingsystem/internal/metrics"
)

// Side is the order direction.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Order is a fully sized, risk-approved instruction.
type Order struct {
	ID     string  `json:"id"`
	Symbol string  `json:"symbol"`
	Side   Side    `json:"side"`
	Qty    float64 `json:"qty"`
	Price  float64 `json:"price"`
}

// NewOrder stamps an order with a fresh ID.
func NewOrder(symbol string, side Side, qty, price float64) Order {
	return Order{ID: uuid.NewString(), Symbol: symbol, Side: side, Qty: qty, Price: price}
}

// Fill reports an executed order.
type Fill struct {
	OrderID string    `json:"order_id"`
	Symbol  string    `json:"symbol"`
	Side    Side      `json:"side"`
	Qty     float64   `json:"qty"`
	Price   float64   `json:"price"`
	Ts      time.Time `json:"ts"`
}

// Executor submits orders to a venue.
type Executor interface {
	Submit(order Order) error
}

// LogExecutor records orders without sending them anywhere.
type LogExecutor struct {
	log zerolog.Logger
}

// NewLogExecutor returns an executor that only logs.
func NewLogExecutor(log zerolog.Logger) *LogExecutor {
	return &LogExecutor{log: log}
}

func (e *LogExecutor) Submit(order Order) error {
	e.log.Info().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Float64("qty", order.Qty).
		Float64("price", order.Price).
		Msg("order submitted (dry run)")
	metrics.OrdersTotal.WithLabelValues(order.Symbol, string(order.Side)).Inc()
	return nil
}
