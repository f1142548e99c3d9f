// Package kite implements the Zerodha Kite Connect v3 broker adapter.
package kite

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/aristath/sipcopy/internal/clients/rest"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production Kite Connect endpoint
const DefaultBaseURL = "https://api.kite.trade"

// Client is a thin Kite Connect REST client authenticated with an API key and a daily access token
type Client struct {
	rest *rest.Client
	log  zerolog.Logger
}

// NewClient creates a new Kite client
func NewClient(opts rest.Options, log zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Component == "" {
		opts.Component = "kite"
	}
	c := &Client{
		rest: rest.NewClient(opts, log),
		log:  log.With().Str("client", "kite").Logger(),
	}
	c.rest.SetHeader("X-Kite-Version", "3")
	return c
}

// SetToken installs the authorization header used by every call
func (c *Client) SetToken(apiKey, accessToken string) {
	c.rest.SetHeader("Authorization", fmt.Sprintf("token %s:%s", apiKey, accessToken))
}

// envelope is the response shape of every Kite endpoint
type envelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

type profile struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Broker   string `json:"broker"`
}

type orderAck struct {
	OrderID string `json:"order_id"`
}

type position struct {
	TradingSymbol string  `json:"tradingsymbol"`
	Exchange      string  `json:"exchange"`
	Product       string  `json:"product"`
	Quantity      int64   `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	LastPrice     float64 `json:"last_price"`
	PnL           float64 `json:"pnl"`
}

type positions struct {
	Net []position `json:"net"`
	Day []position `json:"day"`
}

type orderState struct {
	OrderID        string  `json:"order_id"`
	TradingSymbol  string  `json:"tradingsymbol"`
	Status         string  `json:"status"`
	StatusMessage  string  `json:"status_message"`
	FilledQuantity int64   `json:"filled_quantity"`
	AveragePrice   float64 `json:"average_price"`
}

// call executes a request and unwraps the Kite envelope into out
func (c *Client) call(ctx context.Context, req rest.Request, out interface{}) ([]byte, error) {
	body, err := c.rest.Do(ctx, req)

	var env envelope
	if len(body) > 0 {
		if jsonErr := json.Unmarshal(body, &env); jsonErr == nil && env.Status == "error" {
			return body, fmt.Errorf("%s: %s", env.ErrorType, env.Message)
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

// Profile fetches the user profile; used to verify the access token
func (c *Client) Profile(ctx context.Context) (*profile, error) {
	var p profile
	if _, err := c.call(ctx, rest.Request{Path: "/user/profile"}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PlaceRegularOrder places a "regular" variety CNC order on NSE
func (c *Client) PlaceRegularOrder(ctx context.Context, tradingSymbol, side, orderType string, quantity int64, price float64) (string, []byte, error) {
	form := url.Values{}
	form.Set("tradingsymbol", tradingSymbol)
	form.Set("exchange", "NSE")
	form.Set("transaction_type", side)
	form.Set("order_type", orderType)
	form.Set("quantity", strconv.FormatInt(quantity, 10))
	form.Set("product", "CNC")
	form.Set("validity", "DAY")
	form.Set("disclosed_quantity", "0")
	if orderType == "LIMIT" {
		form.Set("price", strconv.FormatFloat(price, 'f', 2, 64))
	}

	var ack orderAck
	raw, err := c.call(ctx, rest.Request{Method: http.MethodPost, Path: "/orders/regular", Form: form}, &ack)
	if err != nil {
		return "", raw, err
	}
	return ack.OrderID, raw, nil
}

// Positions returns net and day positions
func (c *Client) Positions(ctx context.Context) (*positions, error) {
	var p positions
	if _, err := c.call(ctx, rest.Request{Path: "/portfolio/positions"}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// OrderHistory returns every state of an order, oldest first
func (c *Client) OrderHistory(ctx context.Context, orderID string) ([]orderState, []byte, error) {
	var states []orderState
	raw, err := c.call(ctx, rest.Request{Path: "/orders/" + url.PathEscape(orderID)}, &states)
	if err != nil {
		return nil, raw, err
	}
	return states, raw, nil
}
