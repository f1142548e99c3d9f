package shoonya

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aristath/sipcopy/internal/clients/rest"
	"github.com/aristath/sipcopy/internal/domain"
	"github.com/rs/zerolog"
)

// defaultIMEI is sent when the account store leaves IMEI blank
const defaultIMEI = "sipcopy"

// RequiredFields are the credentials a Finvasia account must carry
var RequiredFields = []domain.CredentialField{
	domain.FieldUserID,
	domain.FieldPassword,
	domain.FieldTOTPSecret,
	domain.FieldVendorCode,
	domain.FieldAPISecret,
}

// Adapter adapts the Noren client to domain.BrokerAdapter
type Adapter struct {
	client *Client
}

// NewAdapter creates a new Finvasia adapter owning its own client
func NewAdapter(opts rest.Options, log zerolog.Logger) *Adapter {
	return &Adapter{client: NewClient(opts, log)}
}

// Broker implements domain.BrokerAdapter
func (a *Adapter) Broker() domain.BrokerID {
	return domain.BrokerFinvasia
}

// Login implements domain.BrokerAdapter
func (a *Adapter) Login(ctx context.Context, creds domain.Credentials) error {
	if missing := creds.Missing(RequiredFields); len(missing) > 0 {
		return fmt.Errorf("missing credentials: %v", missing)
	}

	imei := creds.IMEI
	if imei == "" {
		imei = defaultIMEI
	}

	_, err := a.client.QuickAuth(ctx, creds.UserID, creds.Password, creds.TOTPSecret, creds.VendorCode, creds.APISecret, imei)
	return err
}

// PlaceOrder implements domain.BrokerAdapter
func (a *Adapter) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.BrokerOrderResult, error) {
	if !a.client.LoggedIn() {
		return nil, domain.ErrNotLoggedIn
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tranType := "B"
	if req.Side == domain.SideSell {
		tranType = "S"
	}
	priceType := "MKT"
	if req.Type == domain.OrderTypeLimit {
		priceType = "LMT"
	}

	resp, raw, err := a.client.PlaceOrder(ctx, req.Symbol, tranType, priceType, req.Quantity, req.LimitPrice())
	if err != nil {
		return nil, err
	}

	return &domain.BrokerOrderResult{
		OrderID:  resp.OrderNumber,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		Status:   resp.Stat,
		Raw:      json.RawMessage(raw),
	}, nil
}

// GetPositions implements domain.BrokerAdapter
func (a *Adapter) GetPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	if !a.client.LoggedIn() {
		return nil, domain.ErrNotLoggedIn
	}

	rows, err := a.client.PositionBook(ctx)
	if err != nil {
		return nil, err
	}

	positions := make([]domain.BrokerPosition, 0, len(rows))
	for _, r := range rows {
		qty, _ := strconv.ParseInt(r.NetQuantity, 10, 64)
		positions = append(positions, domain.BrokerPosition{
			Symbol:    r.TradingSymbol,
			Exchange:  r.Exchange,
			Product:   r.Product,
			Quantity:  qty,
			AvgPrice:  parseFloat(r.NetAvgPrice),
			LastPrice: parseFloat(r.LastPrice),
			PnL:       parseFloat(r.RealisedPnL) + parseFloat(r.UnrealisedMTM),
		})
	}
	return positions, nil
}

// GetOrderStatus implements domain.BrokerAdapter
func (a *Adapter) GetOrderStatus(ctx context.Context, orderID string) (*domain.BrokerOrderStatus, error) {
	if !a.client.LoggedIn() {
		return nil, domain.ErrNotLoggedIn
	}

	rows, raw, err := a.client.SingleOrderHistory(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no history for order %s", orderID)
	}

	latest := rows[0]
	filled, _ := strconv.ParseInt(latest.FilledShares, 10, 64)
	return &domain.BrokerOrderStatus{
		OrderID:        orderID,
		Symbol:         latest.TradingSymbol,
		Status:         latest.Status,
		StatusMessage:  latest.RejectReason,
		FilledQuantity: filled,
		AvgPrice:       parseFloat(latest.AvgPrice),
		Raw:            json.RawMessage(raw),
	}, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
