package upstox

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
	mux.HandleFunc("/user/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":"error","errors":[{"errorCode":"UDAPI100050","message":"Invalid token used to access API"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"user_id":"7ABC12"}}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return NewAdapter(rest.Options{BaseURL: server.URL}, zerolog.New(nil).Level(zerolog.Disabled))
}

func TestInstrumentToken(t *testing.T) {
	assert.Equal(t, "NSE_EQ|NIFTYBEES", instrumentToken("NIFTYBEES-EQ"))
	assert.Equal(t, "NSE_EQ|GOLDBEES", instrumentToken("GOLDBEES"))
	assert.Equal(t, "NSE_EQ|INF204KB14I2", instrumentToken("NSE_EQ|INF204KB14I2"))
}

func TestAdapter_Login(t *testing.T) {
	adapter := newTestAdapter(t, http.NewServeMux())
	err := adapter.Login(context.Background(), domain.Credentials{AccessToken: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UDAPI100050")

	_, err = adapter.GetOrderStatus(context.Background(), "1")
	assert.ErrorIs(t, err, domain.ErrNotLoggedIn)

	require.NoError(t, adapter.Login(context.Background(), domain.Credentials{AccessToken: "good"}))
}

func TestAdapter_PlaceOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/order/place", func(w http.ResponseWriter, r *http.Request) {
		var req placeOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(4), req.Quantity)
		assert.Equal(t, "D", req.Product)
		assert.Equal(t, "DAY", req.Validity)
		assert.Equal(t, OrderTag, req.Tag)
		assert.Equal(t, "NSE_EQ|BANKBEES", req.InstrumentToken)
		assert.Equal(t, "MARKET", req.OrderType)
		assert.Equal(t, "BUY", req.TransactionType)
		assert.Equal(t, 0.0, req.Price)
		assert.Equal(t, int64(0), req.DisclosedQuantity)
		_, _ = w.Write([]byte(`{"status":"success","data":{"order_id":"240421000012345"}}`))
	})
	adapter := newTestAdapter(t, mux)
	require.NoError(t, adapter.Login(context.Background(), domain.Credentials{AccessToken: "good"}))

	result, err := adapter.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "BANKBEES-EQ", Quantity: 4, Type: domain.OrderTypeMarket, Side: domain.SideBuy,
	})
	require.NoError(t, err)
	assert.Equal(t, "240421000012345", result.OrderID)
}

func TestAdapter_PositionsAndStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/portfolio/short-term-positions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":[{"trading_symbol":"BANKBEES","exchange":"NSE","product":"D","quantity":4,"average_price":510.2,"last_price":512,"pnl":7.2}]}`))
	})
	mux.HandleFunc("/order/details", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "99", r.URL.Query().Get("order_id"))
		_, _ = w.Write([]byte(`{"status":"success","data":{"order_id":"99","trading_symbol":"BANKBEES","status":"rejected","status_message":"insufficient funds","filled_quantity":0}}`))
	})
	adapter := newTestAdapter(t, mux)
	require.NoError(t, adapter.Login(context.Background(), domain.Credentials{AccessToken: "good"}))

	positions, err := adapter.GetPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "BANKBEES", positions[0].Symbol)

	status, err := adapter.GetOrderStatus(context.Background(), "99")
	require.NoError(t, err)
	assert.Equal(t, "rejected", status.Status)
	assert.Equal(t, "insufficient funds", status.StatusMessage)
}
