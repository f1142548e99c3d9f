package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderRequest_Validate(t *testing.T) {
	valid := OrderRequest{Symbol: "NIFTYBEES-EQ", Quantity: 3, Type: OrderTypeMarket, Side: SideBuy}
	assert.NoError(t, valid.Validate())

	testCases := []struct {
		name   string
		mutate func(r *OrderRequest)
	}{
		{"blank symbol", func(r *OrderRequest) { r.Symbol = " " }},
		{"zero quantity", func(r *OrderRequest) { r.Quantity = 0 }},
		{"unknown type", func(r *OrderRequest) { r.Type = "STOP" }},
		{"limit without price", func(r *OrderRequest) { r.Type = OrderTypeLimit }},
		{"unknown side", func(r *OrderRequest) { r.Side = "HOLD" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			assert.Error(t, req.Validate())
		})
	}
}

func TestOrderRequest_LimitPrice(t *testing.T) {
	market := OrderRequest{Price: 101.5, Type: OrderTypeMarket}
	limit := OrderRequest{Price: 101.5, Type: OrderTypeLimit}

	assert.Equal(t, 0.0, market.LimitPrice())
	assert.Equal(t, 101.5, limit.LimitPrice())
}

func TestNormalizeBrokerID(t *testing.T) {
	assert.Equal(t, BrokerZerodha, NormalizeBrokerID(" zerodha "))
	assert.Equal(t, BrokerID("SHOONYA"), NormalizeBrokerID("Shoonya"))
}
