package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Broker-agnostic types shared by every adapter.
// Adapters translate these into their native wire shapes (Noren jData, Kite forms, Dhan JSON, ...).

// BrokerID identifies a brokerage backend
type BrokerID string

const (
	BrokerFinvasia BrokerID = "FINVASIA"
	BrokerZerodha  BrokerID = "ZERODHA"
	BrokerUpstox   BrokerID = "UPSTOX"
	BrokerDhan     BrokerID = "DHAN"
	BrokerMstock   BrokerID = "MSTOCK"
)

// NormalizeBrokerID upper-cases and trims a broker name as found in the account store
func NormalizeBrokerID(name string) BrokerID {
	return BrokerID(strings.ToUpper(strings.TrimSpace(name)))
}

// OrderType is the normalized price type of an order
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderSide is the normalized direction of an order
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderRequest is the normalized order every adapter accepts
type OrderRequest struct {
	Symbol   string    // Trading symbol, already segment-suffixed by the dispatcher
	Quantity int64     // Number of units
	Price    float64   // Limit price; ignored for MARKET orders
	Type     OrderType // MARKET or LIMIT
	Side     OrderSide // BUY or SELL
}

// Validate checks that the request can be translated into a broker order
func (r OrderRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("order symbol is required")
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("order quantity must be positive, got %d", r.Quantity)
	}
	switch r.Type {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if r.Price <= 0 {
			return fmt.Errorf("limit order for %s requires a positive price", r.Symbol)
		}
	default:
		return fmt.Errorf("invalid order type: %q (must be MARKET or LIMIT)", r.Type)
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("invalid side: %q (must be BUY or SELL)", r.Side)
	}
	return nil
}

// LimitPrice returns the price to send on the wire: zero for market orders
func (r OrderRequest) LimitPrice() float64 {
	if r.Type == OrderTypeMarket {
		return 0
	}
	return r.Price
}

// BrokerOrderResult represents the result of placing an order (broker-agnostic)
type BrokerOrderResult struct {
	OrderID  string          // Broker order number
	Symbol   string          // Trading symbol as submitted
	Side     OrderSide       // BUY or SELL
	Quantity int64           // Requested quantity
	Status   string          // Broker acknowledgement status, if any
	Raw      json.RawMessage // Raw broker response
}

// BrokerPosition represents a position held at a broker (broker-agnostic)
type BrokerPosition struct {
	Symbol    string  // Trading symbol
	Exchange  string  // Exchange or segment
	Product   string  // Broker product code (CNC, C, D, ...)
	Quantity  int64   // Net quantity
	AvgPrice  float64 // Average buy price
	LastPrice float64 // Last traded price
	PnL       float64 // Profit/loss reported by the broker
}

// BrokerOrderStatus represents the latest known state of an order (broker-agnostic)
type BrokerOrderStatus struct {
	OrderID        string
	Symbol         string
	Status         string // Broker status string (COMPLETE, REJECTED, TRADED, ...)
	StatusMessage  string // Rejection reason or broker remark
	FilledQuantity int64
	AvgPrice       float64
	Raw            json.RawMessage
}
