// Package dhan implements the Dhan v2 broker adapter.
package dhan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/aristath/sipcopy/internal/clients/rest"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production Dhan endpoint
const DefaultBaseURL = "https://api.dhan.co"

// Client is a Dhan REST client. Every call carries the client id and access token headers.
type Client struct {
	rest     *rest.Client
	log      zerolog.Logger
	clientID string
}

// NewClient creates a new Dhan client
func NewClient(opts rest.Options, log zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Component == "" {
		opts.Component = "dhan"
	}
	return &Client{
		rest: rest.NewClient(opts, log),
		log:  log.With().Str("client", "dhan").Logger(),
	}
}

// SetCredentials installs the authentication headers
func (c *Client) SetCredentials(clientID, accessToken string) {
	c.clientID = clientID
	c.rest.SetHeader("client-id", clientID)
	c.rest.SetHeader("access-token", accessToken)
}

type apiError struct {
	ErrorType    string `json:"errorType"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type profile struct {
	ClientID      string `json:"dhanClientId"`
	TokenValidity string `json:"tokenValidity"`
}

type orderRequest struct {
	DhanClientID      string  `json:"dhanClientId"`
	TransactionType   string  `json:"transactionType"`
	ExchangeSegment   string  `json:"exchangeSegment"`
	ProductType       string  `json:"productType"`
	OrderType         string  `json:"orderType"`
	Validity          string  `json:"validity"`
	SecurityID        string  `json:"securityId"`
	TradingSymbol     string  `json:"tradingSymbol"`
	Quantity          int64   `json:"quantity"`
	DisclosedQuantity int64   `json:"disclosedQuantity"`
	Price             float64 `json:"price"`
}

type orderAck struct {
	OrderID     string `json:"orderId"`
	OrderStatus string `json:"orderStatus"`
}

type position struct {
	TradingSymbol    string  `json:"tradingSymbol"`
	ExchangeSegment  string  `json:"exchangeSegment"`
	ProductType      string  `json:"productType"`
	NetQty           int64   `json:"netQty"`
	BuyAvg           float64 `json:"buyAvg"`
	CostPrice        float64 `json:"costPrice"`
	RealizedProfit   float64 `json:"realizedProfit"`
	UnrealizedProfit float64 `json:"unrealizedProfit"`
}

type orderState struct {
	OrderID             string  `json:"orderId"`
	TradingSymbol       string  `json:"tradingSymbol"`
	OrderStatus         string  `json:"orderStatus"`
	OmsErrorDescription string  `json:"omsErrorDescription"`
	FilledQty           int64   `json:"filledQty"`
	AverageTradedPrice  float64 `json:"averageTradedPrice"`
}

// call executes a request, surfacing Dhan's error body when present
func (c *Client) call(ctx context.Context, req rest.Request, out interface{}) ([]byte, error) {
	body, err := c.rest.Do(ctx, req)
	if err != nil {
		var apiErr apiError
		if len(body) > 0 && json.Unmarshal(body, &apiErr) == nil && apiErr.ErrorCode != "" {
			return body, fmt.Errorf("%s %s: %s", apiErr.ErrorCode, apiErr.ErrorType, apiErr.ErrorMessage)
		}
		return body, err
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return body, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return body, nil
}

// Profile verifies the token
func (c *Client) Profile(ctx context.Context) (*profile, error) {
	var p profile
	if _, err := c.call(ctx, rest.Request{Path: "/v2/profile"}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PlaceOrder submits an order
func (c *Client) PlaceOrder(ctx context.Context, req orderRequest) (*orderAck, []byte, error) {
	req.DhanClientID = c.clientID
	var ack orderAck
	raw, err := c.call(ctx, rest.Request{Method: http.MethodPost, Path: "/v2/orders", JSON: req}, &ack)
	if err != nil {
		return nil, raw, err
	}
	if ack.OrderID == "" {
		return nil, raw, fmt.Errorf("order not acknowledged (status %q)", ack.OrderStatus)
	}
	return &ack, raw, nil
}

// Positions returns the open positions
func (c *Client) Positions(ctx context.Context) ([]position, error) {
	var rows []position
	if _, err := c.call(ctx, rest.Request{Path: "/v2/positions"}, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Order returns the latest state of an order
func (c *Client) Order(ctx context.Context, orderID string) (*orderState, []byte, error) {
	var s orderState
	raw, err := c.call(ctx, rest.Request{Path: "/v2/orders/" + url.PathEscape(orderID)}, &s)
	if err != nil {
		return nil, raw, err
	}
	return &s, raw, nil
}
