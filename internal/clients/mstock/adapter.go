// Package mstock provides the placeholder adapter for m.Stock accounts.
// No wire integration exists yet: login always succeeds, orders are acknowledged locally
// with a generated id and positions are empty.
package mstock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/aristath/sipcopy/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequiredFields is empty until the real API is integrated
var RequiredFields = []domain.CredentialField{}

// Adapter is the stub domain.BrokerAdapter for MSTOCK
type Adapter struct {
	log      zerolog.Logger
	loggedIn bool

	mu     sync.Mutex
	orders map[string]domain.OrderRequest
}

// NewAdapter creates a new stub adapter
func NewAdapter(log zerolog.Logger) *Adapter {
	return &Adapter{
		log:    log.With().Str("client", "mstock").Logger(),
		orders: make(map[string]domain.OrderRequest),
	}
}

// Broker implements domain.BrokerAdapter
func (a *Adapter) Broker() domain.BrokerID {
	return domain.BrokerMstock
}

// Login implements domain.BrokerAdapter
func (a *Adapter) Login(_ context.Context, creds domain.Credentials) error {
	a.loggedIn = true
	a.log.Warn().Str("user_id", creds.UserID).Msg("mstock integration is a stub, no session established")
	return nil
}

// PlaceOrder implements domain.BrokerAdapter
func (a *Adapter) PlaceOrder(_ context.Context, req domain.OrderRequest) (*domain.BrokerOrderResult, error) {
	if !a.loggedIn {
		return nil, domain.ErrNotLoggedIn
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	orderID := uuid.New().String()
	a.mu.Lock()
	a.orders[orderID] = req
	a.mu.Unlock()

	raw, _ := json.Marshal(map[string]string{"status": "success", "order_id": orderID})
	a.log.Info().
		Str("symbol", req.Symbol).
		Int64("quantity", req.Quantity).
		Str("side", string(req.Side)).
		Msg("Order acknowledged by stub")

	return &domain.BrokerOrderResult{
		OrderID:  orderID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		Status:   "success",
		Raw:      raw,
	}, nil
}

// GetPositions implements domain.BrokerAdapter
func (a *Adapter) GetPositions(_ context.Context) ([]domain.BrokerPosition, error) {
	if !a.loggedIn {
		return nil, domain.ErrNotLoggedIn
	}
	return []domain.BrokerPosition{}, nil
}

// GetOrderStatus implements domain.BrokerAdapter
func (a *Adapter) GetOrderStatus(_ context.Context, orderID string) (*domain.BrokerOrderStatus, error) {
	if !a.loggedIn {
		return nil, domain.ErrNotLoggedIn
	}

	a.mu.Lock()
	req, ok := a.orders[orderID]
	a.mu.Unlock()

	status := &domain.BrokerOrderStatus{OrderID: orderID, Status: "success"}
	if ok {
		status.Symbol = req.Symbol
	}
	return status, nil
}
