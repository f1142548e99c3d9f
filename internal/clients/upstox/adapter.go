package upstox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aristath/sipcopy/internal/clients/rest"
	"github.com/aristath/sipcopy/internal/domain"
	"github.com/rs/zerolog"
)

// RequiredFields are the credentials an Upstox account must carry
var RequiredFields = []domain.CredentialField{
	domain.FieldAccessToken,
}

// Adapter adapts the Upstox client to domain.BrokerAdapter
type Adapter struct {
	client   *Client
	loggedIn bool
}

// NewAdapter creates a new Upstox adapter owning its own client
func NewAdapter(opts rest.Options, log zerolog.Logger) *Adapter {
	return &Adapter{client: NewClient(opts, log)}
}

// Broker implements domain.BrokerAdapter
func (a *Adapter) Broker() domain.BrokerID {
	return domain.BrokerUpstox
}

// Login implements domain.BrokerAdapter
func (a *Adapter) Login(ctx context.Context, creds domain.Credentials) error {
	if missing := creds.Missing(RequiredFields); len(missing) > 0 {
		return fmt.Errorf("missing credentials: %v", missing)
	}

	a.client.SetAccessToken(creds.AccessToken)
	if err := a.client.Profile(ctx); err != nil {
		return fmt.Errorf("access token rejected: %w", err)
	}

	a.loggedIn = true
	return nil
}

// instrumentToken maps a trading symbol to the NSE equity instrument key
func instrumentToken(symbol string) string {
	if strings.Contains(symbol, "|") {
		return symbol
	}
	return "NSE_EQ|" + strings.TrimSuffix(symbol, "-EQ")
}

// PlaceOrder implements domain.BrokerAdapter
func (a *Adapter) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.BrokerOrderResult, error) {
	if !a.loggedIn {
		return nil, domain.ErrNotLoggedIn
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	token := instrumentToken(req.Symbol)
	orderID, raw, err := a.client.PlaceOrder(ctx, placeOrderRequest{
		Quantity:          req.Quantity,
		Product:           "D",
		Validity:          "DAY",
		Price:             req.LimitPrice(),
		Tag:               OrderTag,
		InstrumentToken:   token,
		OrderType:         string(req.Type),
		TransactionType:   string(req.Side),
		DisclosedQuantity: 0,
	})
	if err != nil {
		return nil, err
	}

	return &domain.BrokerOrderResult{
		OrderID:  orderID,
		Symbol:   token,
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

	rows, err := a.client.ShortTermPositions(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]domain.BrokerPosition, 0, len(rows))
	for _, p := range rows {
		result = append(result, domain.BrokerPosition{
			Symbol:    p.TradingSymbol,
			Exchange:  p.Exchange,
			Product:   p.Product,
			Quantity:  p.Quantity,
			AvgPrice:  p.AveragePrice,
			LastPrice: p.LastPrice,
			PnL:       p.PnL,
		})
	}
	return result, nil
}

// GetOrderStatus implements domain.BrokerAdapter
func (a *Adapter) GetOrderStatus(ctx context.Context, orderID string) (*domain.BrokerOrderStatus, error) {
	if !a.loggedIn {
		return nil, domain.ErrNotLoggedIn
	}

	d, raw, err := a.client.OrderDetails(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &domain.BrokerOrderStatus{
		OrderID:        orderID,
		Symbol:         d.TradingSymbol,
		Status:         d.Status,
		StatusMessage:  d.StatusMessage,
		FilledQuantity: d.FilledQuantity,
		AvgPrice:       d.AveragePrice,
		Raw:            json.RawMessage(raw),
	}, nil
}
