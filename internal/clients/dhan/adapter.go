package dhan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aristath/sipcopy/internal/clients/rest"
	"github.com/aristath/sipcopy/internal/domain"
	"github.com/rs/zerolog"
)

// RequiredFields are the credentials a Dhan account must carry.
// USER_ID doubles as the Dhan client id.
var RequiredFields = []domain.CredentialField{
	domain.FieldUserID,
	domain.FieldAccessToken,
}

// Adapter adapts the Dhan client to domain.BrokerAdapter
type Adapter struct {
	client   *Client
	loggedIn bool
}

// NewAdapter creates a new Dhan adapter owning its own client
func NewAdapter(opts rest.Options, log zerolog.Logger) *Adapter {
	return &Adapter{client: NewClient(opts, log)}
}

// Broker implements domain.BrokerAdapter
func (a *Adapter) Broker() domain.BrokerID {
	return domain.BrokerDhan
}

// Login implements domain.BrokerAdapter
func (a *Adapter) Login(ctx context.Context, creds domain.Credentials) error {
	if missing := creds.Missing(RequiredFields); len(missing) > 0 {
		return fmt.Errorf("missing credentials: %v", missing)
	}

	a.client.SetCredentials(creds.UserID, creds.AccessToken)
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

	symbol := strings.TrimSuffix(req.Symbol, "-EQ")
	ack, raw, err := a.client.PlaceOrder(ctx, orderRequest{
		TransactionType:   string(req.Side),
		ExchangeSegment:   "NSE_EQ",
		ProductType:       "CNC",
		OrderType:         string(req.Type),
		Validity:          "DAY",
		SecurityID:        symbol,
		TradingSymbol:     symbol,
		Quantity:          req.Quantity,
		DisclosedQuantity: 0,
		Price:             req.LimitPrice(),
	})
	if err != nil {
		return nil, err
	}

	return &domain.BrokerOrderResult{
		OrderID:  ack.OrderID,
		Symbol:   symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		Status:   ack.OrderStatus,
		Raw:      json.RawMessage(raw),
	}, nil
}

// GetPositions implements domain.BrokerAdapter
func (a *Adapter) GetPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	if !a.loggedIn {
		return nil, domain.ErrNotLoggedIn
	}

	rows, err := a.client.Positions(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]domain.BrokerPosition, 0, len(rows))
	for _, p := range rows {
		avg := p.BuyAvg
		if avg == 0 {
			avg = p.CostPrice
		}
		result = append(result, domain.BrokerPosition{
			Symbol:   p.TradingSymbol,
			Exchange: p.ExchangeSegment,
			Product:  p.ProductType,
			Quantity: p.NetQty,
			AvgPrice: avg,
			PnL:      p.RealizedProfit + p.UnrealizedProfit,
		})
	}
	return result, nil
}

// GetOrderStatus implements domain.BrokerAdapter
func (a *Adapter) GetOrderStatus(ctx context.Context, orderID string) (*domain.BrokerOrderStatus, error) {
	if !a.loggedIn {
		return nil, domain.ErrNotLoggedIn
	}

	s, raw, err := a.client.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &domain.BrokerOrderStatus{
		OrderID:        orderID,
		Symbol:         s.TradingSymbol,
		Status:         s.OrderStatus,
		StatusMessage:  s.OmsErrorDescription,
		FilledQuantity: s.FilledQty,
		AvgPrice:       s.AverageTradedPrice,
		Raw:            json.RawMessage(raw),
	}, nil
}
