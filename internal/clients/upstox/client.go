// Package upstox implements the Upstox v2 broker adapter.
package upstox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/aristath/sipcopy/internal/clients/rest"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production Upstox v2 endpoint
const DefaultBaseURL = "https://api.upstox.com/v2"

// OrderTag marks every order placed by this system
const OrderTag = "ETF-AUTO"

// Client is a thin Upstox REST client authenticated with a bearer access token
type Client struct {
	rest *rest.Client
	log  zerolog.Logger
}

// NewClient creates a new Upstox client
func NewClient(opts rest.Options, log zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Component == "" {
		opts.Component = "upstox"
	}
	return &Client{
		rest: rest.NewClient(opts, log),
		log:  log.With().Str("client", "upstox").Logger(),
	}
}

// SetAccessToken installs the bearer token
func (c *Client) SetAccessToken(token string) {
	c.rest.SetHeader("Authorization", "Bearer "+token)
}

type apiError struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Errors []apiError      `json:"errors"`
}

// placeOrderRequest mirrors the /order/place body
type placeOrderRequest struct {
	Quantity          int64   `json:"quantity"`
	Product           string  `json:"product"`
	Validity          string  `json:"validity"`
	Price             float64 `json:"price"`
	Tag               string  `json:"tag"`
	InstrumentToken   string  `json:"instrument_token"`
	OrderType         string  `json:"order_type"`
	TransactionType   string  `json:"transaction_type"`
	DisclosedQuantity int64   `json:"disclosed_quantity"`
	TriggerPrice      float64 `json:"trigger_price"`
	IsAMO             bool    `json:"is_amo"`
}

type position struct {
	TradingSymbol string  `json:"trading_symbol"`
	Exchange      string  `json:"exchange"`
	Product       string  `json:"product"`
	Quantity      int64   `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	LastPrice     float64 `json:"last_price"`
	PnL           float64 `json:"pnl"`
}

type orderDetails struct {
	OrderID        string  `json:"order_id"`
	TradingSymbol  string  `json:"trading_symbol"`
	Status         string  `json:"status"`
	StatusMessage  string  `json:"status_message"`
	FilledQuantity int64   `json:"filled_quantity"`
	AveragePrice   float64 `json:"average_price"`
}

func (c *Client) call(ctx context.Context, req rest.Request, out interface{}) ([]byte, error) {
	body, err := c.rest.Do(ctx, req)

	var env envelope
	if len(body) > 0 {
		if jsonErr := json.Unmarshal(body, &env); jsonErr == nil && env.Status == "error" && len(env.Errors) > 0 {
			return body, fmt.Errorf("%s: %s", env.Errors[0].ErrorCode, env.Errors[0].Message)
		}
	}
	if err != nil {
		return body, err
	}
	if env.Status != "success" {
		return body, fmt.Errorf("unexpected response status %q", env.Status)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return body, fmt.Errorf("failed to decode data: %w", err)
		}
	}
	return body, nil
}

// Profile verifies the access token
func (c *Client) Profile(ctx context.Context) error {
	_, err := c.call(ctx, rest.Request{Path: "/user/profile"}, nil)
	return err
}

// PlaceOrder places a delivery order
func (c *Client) PlaceOrder(ctx context.Context, req placeOrderRequest) (string, []byte, error) {
	var ack struct {
		OrderID string `json:"order_id"`
	}
	raw, err := c.call(ctx, rest.Request{Method: http.MethodPost, Path: "/order/place", JSON: req}, &ack)
	if err != nil {
		return "", raw, err
	}
	return ack.OrderID, raw, nil
}

// ShortTermPositions returns the open positions
func (c *Client) ShortTermPositions(ctx context.Context) ([]position, error) {
	var rows []position
	if _, err := c.call(ctx, rest.Request{Path: "/portfolio/short-term-positions"}, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// OrderDetails returns the latest state of an order
func (c *Client) OrderDetails(ctx context.Context, orderID string) (*orderDetails, []byte, error) {
	var d orderDetails
	raw, err := c.call(ctx, rest.Request{
		Path:  "/order/details",
		Query: url.Values{"order_id": []string{orderID}},
	}, &d)
	if err != nil {
		return nil, raw, err
	}
	return &d, raw, nil
}
