package kite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aristath/sipcopy/internal/clients/rest"
	"github.com/aristath/sipcopy/internal/domain"
	"github.com/rs/zerolog"
)

// RequiredFields are the credentials a Zerodha account must carry
var RequiredFields = []domain.CredentialField{
	domain.FieldAPIKey,
	domain.FieldAccessToken,
}

// Adapter adapts the Kite client to domain.BrokerAdapter
type Adapter struct {
	client   *Client
	loggedIn bool
}

// NewAdapter creates a new Zerodha adapter owning its own client
func NewAdapter(opts rest.Options, log zerolog.Logger) *Adapter {
	return &Adapter{client: NewClient(opts, log)}
}

// Broker implements domain.BrokerAdapter
func (a *Adapter) Broker() domain.BrokerID {
	return domain.BrokerZerodha
}

// Login implements domain.BrokerAdapter.
// Kite access tokens are minted out of band; login installs the token and verifies it.
func (a *Adapter) Login(ctx context.Context, creds domain.Credentials) error {
	if missing := creds.Missing(RequiredFields); len(missing) > 0 {
		return fmt.Errorf("missing credentials: %v", missing)
	}

	a.client.SetToken(creds.APIKey, creds.AccessToken)
	if _, err := a.client.Profile(ctx); err != nil {
		return fmt.Errorf("access token rejected: %w", err)
	}

	a.loggedIn = true
	return nil
}

// PlaceOrder implements domain.BrokerAdapter
func (a *Adapter) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.BrokerOrderResult, error) {
	if !a.loggedIn {
		return nil, domain.ErrNotLoggedIn
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Kite trading symbols carry no segment suffix
	symbol := strings.TrimSuffix(req.Symbol, "-EQ")

	orderID, raw, err := a.client.PlaceRegularOrder(ctx, symbol, string(req.Side), string(req.Type), req.Quantity, req.LimitPrice())
	if err != nil {
		return nil, err
	}

	return &domain.BrokerOrderResult{
		OrderID:  orderID,
		Symbol:   symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		Status:   "success",
		Raw:      json.RawMessage(raw),
	}, nil
}

// GetPositions implements domain.BrokerAdapter
func (a *Adapter) GetPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	if !a.loggedIn {
		return nil, domain.ErrNotLoggedIn
	}

	p, err := a.client.Positions(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]domain.BrokerPosition, 0, len(p.Net))
	for _, pos := range p.Net {
		result = append(result, domain.BrokerPosition{
			Symbol:    pos.TradingSymbol,
			Exchange:  pos.Exchange,
			Product:   pos.Product,
			Quantity:  pos.Quantity,
			AvgPrice:  pos.AveragePrice,
			LastPrice: pos.LastPrice,
			PnL:       pos.PnL,
		})
	}
	return result, nil
}

// GetOrderStatus implements domain.BrokerAdapter
func (a *Adapter) GetOrderStatus(ctx context.Context, orderID string) (*domain.BrokerOrderStatus, error) {
	if !a.loggedIn {
		return nil, domain.ErrNotLoggedIn
	}

	states, raw, err := a.client.OrderHistory(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("no history for order %s", orderID)
	}

	latest := states[len(states)-1]
	return &domain.BrokerOrderStatus{
		OrderID:        orderID,
		Symbol:         latest.TradingSymbol,
		Status:         latest.Status,
		StatusMessage:  latest.StatusMessage,
		FilledQuantity: latest.FilledQuantity,
		AvgPrice:       latest.AveragePrice,
		Raw:            json.RawMessage(raw),
	}, nil
}
