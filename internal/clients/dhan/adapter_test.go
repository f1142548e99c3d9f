package dhan

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/sipcopy/internal/clients/rest"
	"github.com/aristath/sipcopy/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, mux *http.ServeMux) *Adapter {
	t.Helper()
	mux.HandleFunc("/v2/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("access-token") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errorType":"Invalid_Authentication","errorCode":"DH-901","errorMessage":"Client ID or user generated access token is invalid or expired."}`))
			return
		}
		assert.Equal(t, "1000000001", r.Header.Get("client-id"))
		_, _ = w.Write([]byte(`{"dhanClientId":"1000000001","tokenValidity":"30/04/2025 15:37"}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return NewAdapter(rest.Options{BaseURL: server.URL}, zerolog.New(nil).Level(zerolog.Disabled))
}

func creds(token string) domain.Credentials {
	return domain.Credentials{UserID: "1000000001", AccessToken: token}
}

func TestAdapter_Login(t *testing.T) {
	adapter := newTestAdapter(t, http.NewServeMux())

	err := adapter.Login(context.Background(), creds("expired"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DH-901")

	require.NoError(t, adapter.Login(context.Background(), creds("good")))
}

func TestAdapter_LoginRequiresClientID(t *testing.T) {
	adapter := newTestAdapter(t, http.NewServeMux())
	err := adapter.Login(context.Background(), domain.Credentials{AccessToken: "good"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "USER_ID")
}

func TestAdapter_PlaceOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req orderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "1000000001", req.DhanClientID)
		assert.Equal(t, "BUY", req.TransactionType)
		assert.Equal(t, "NSE_EQ", req.ExchangeSegment)
		assert.Equal(t, "CNC", req.ProductType)
		assert.Equal(t, "MARKET", req.OrderType)
		assert.Equal(t, "DAY", req.Validity)
		assert.Equal(t, "JUNIORBEES", req.TradingSymbol)
		assert.Equal(t, int64(2), req.Quantity)
		_, _ = w.Write([]byte(`{"orderId":"112111182198","orderStatus":"PENDING"}`))
	})
	adapter := newTestAdapter(t, mux)

	_, err := adapter.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "JUNIORBEES-EQ", Quantity: 2, Type: domain.OrderTypeMarket, Side: domain.SideBuy,
	})
	assert.ErrorIs(t, err, domain.ErrNotLoggedIn)

	require.NoError(t, adapter.Login(context.Background(), creds("good")))
	result, err := adapter.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "JUNIORBEES-EQ", Quantity: 2, Type: domain.OrderTypeMarket, Side: domain.SideBuy,
	})
	require.NoError(t, err)
	assert.Equal(t, "112111182198", result.OrderID)
	assert.Equal(t, "PENDING", result.Status)
}

func TestAdapter_PlaceOrderRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorType":"Order_Error","errorCode":"DH-906","errorMessage":"Incorrect security id"}`))
	})
	adapter := newTestAdapter(t, mux)
	require.NoError(t, adapter.Login(context.Background(), creds("good")))

	_, err := adapter.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "XYZ", Quantity: 1, Type: domain.OrderTypeMarket, Side: domain.SideBuy,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect security id")
}

func TestAdapter_PositionsAndStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/positions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"tradingSymbol":"JUNIORBEES","exchangeSegment":"NSE_EQ","productType":"CNC","netQty":2,"buyAvg":0,"costPrice":710.5,"realizedProfit":1,"unrealizedProfit":2}]`))
	})
	mux.HandleFunc("/v2/orders/77", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orderId":"77","tradingSymbol":"JUNIORBEES","orderStatus":"TRADED","filledQty":2,"averageTradedPrice":710.5}`))
	})
	adapter := newTestAdapter(t, mux)
	require.NoError(t, adapter.Login(context.Background(), creds("good")))

	positions, err := adapter.GetPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 710.5, positions[0].AvgPrice)
	assert.Equal(t, 3.0, positions[0].PnL)

	status, err := adapter.GetOrderStatus(context.Background(), "77")
	require.NoError(t, err)
	assert.Equal(t, "TRADED", status.Status)
	assert.Equal(t, int64(2), status.FilledQuantity)
}
