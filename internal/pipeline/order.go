package pipeline

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/arduino-trader/internal/broker"
	"github.com/aristath/arduino-trader/internal/components"
	"github.com/aristath/arduino-trader/internal/ecs"
)

// Purchaser scans the main ledger for Purchase entities not yet bearing an
// Order, submits each to the broker, and attaches the resulting Order
// (spec §4.3).
type Purchaser struct{ bg context.Context }

func (p *Purchaser) Name() string { return "Purchaser" }

func (p *Purchaser) Run(ctx *Context) error {
	for _, e := range ecs.NewSince[components.Purchase](ctx.Main, "Purchaser") {
		intent, ok := ecs.Get[components.Purchase](ctx.Main, e)
		if !ok {
			continue
		}
		order := submitWithRetry(p.bg, ctx.Broker, intent.Ticker, components.Buy, intent.Quantity)
		ecs.Attach(ctx.Main, e, order)
	}
	return nil
}

// Seller scans the main ledger for Sale entities not yet bearing an Order,
// submits each to the broker, and attaches the resulting Order.
type Seller struct{ bg context.Context }

func (s *Seller) Name() string { return "Seller" }

func (s *Seller) Run(ctx *Context) error {
	for _, e := range ecs.NewSince[components.Sale](ctx.Main, "Seller") {
		intent, ok := ecs.Get[components.Sale](ctx.Main, e)
		if !ok {
			continue
		}
		order := submitWithRetry(s.bg, ctx.Broker, intent.Ticker, components.Sell, intent.Quantity)
		ecs.Attach(ctx.Main, e, order)
	}
	return nil
}

var availableQtyPattern = regexp.MustCompile(`available:\s*(\d+)`)

// submitWithRetry implements the two order-retry rules of spec §4.3:
// "insufficient day-trading buying power" shrinks the quantity by 10% (an
// integer round), "insufficient qty available for order (available: N)"
// replaces the quantity with N. Either shrinking toward zero or a
// no-progress response terminates the loop with a failed Order.
func submitWithRetry(bg context.Context, b broker.Broker, ticker string, side components.Side, qty float64) components.Order {
	attempted := false
	for {
		if qty == 0 && attempted {
			return components.Order{
				Ticker: ticker, Side: side, RequestedQuantity: 0,
				Status: "failed\nquantity exhausted by retry", SubmittedAt: time.Now(),
			}
		}
		attempted = true

		resp, err := b.SubmitOrder(bg, broker.SubmitRequest{
			Symbol: ticker, Qty: qty, Side: side, Type: broker.Market, TimeInForce: broker.Day,
		})
		if err != nil {
			return components.Order{
				Ticker: ticker, Side: side, RequestedQuantity: qty,
				Status: "failed\n" + err.Error(), SubmittedAt: time.Now(),
			}
		}
		if !strings.HasPrefix(resp.Status, "failed") {
			return toOrder(resp, ticker, side, qty)
		}

		reason := strings.TrimPrefix(resp.Status, "failed\n")
		switch {
		case strings.Contains(reason, "insufficient day-trading buying power"):
			next := math.Round(qty * 0.9)
			if next == qty {
				return toOrder(resp, ticker, side, qty)
			}
			qty = next

		case availableQtyPattern.MatchString(reason):
			m := availableQtyPattern.FindStringSubmatch(reason)
			n, _ := strconv.ParseFloat(m[1], 64)
			if n == qty {
				return toOrder(resp, ticker, side, qty)
			}
			qty = n

		default:
			return toOrder(resp, ticker, side, qty)
		}
	}
}

func toOrder(resp broker.OrderResponse, ticker string, side components.Side, requested float64) components.Order {
	return components.Order{
		Ticker:            ticker,
		Side:              side,
		RequestedQuantity: requested,
		BrokerOrderID:     resp.ID,
		Status:            resp.Status,
		FilledQty:         resp.FilledQty,
		FilledAvgPrice:    resp.FilledAvgPrice,
		SubmittedAt:       resp.SubmittedAt,
	}
}
