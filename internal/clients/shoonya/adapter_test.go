package shoonya

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/sipcopy/internal/clients/rest"
	"github.com/aristath/sipcopy/internal/domain"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "JBSWY3DPEHPK3PXP"

var fixedNow = time.Date(2025, 4, 21, 9, 30, 0, 0, time.UTC)

// norenCall is one decoded request to the fake Noren server
type norenCall struct {
	Endpoint string
	Data     map[string]string
	Key      string
}

func parseNorenBody(t *testing.T, r *http.Request) norenCall {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)

	body := strings.TrimPrefix(string(raw), "jData=")
	key := ""
	if idx := strings.LastIndex(body, "&jKey="); idx >= 0 {
		key = body[idx+len("&jKey="):]
		body = body[:idx]
	}

	var data map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &data))
	return norenCall{Endpoint: strings.TrimPrefix(r.URL.Path, "/"), Data: data, Key: key}
}

func newTestAdapter(t *testing.T, handler func(call norenCall) string) (*Adapter, *[]norenCall) {
	t.Helper()
	var calls []norenCall

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := parseNorenBody(t, r)
		calls = append(calls, call)
		_, _ = w.Write([]byte(handler(call)))
	}))
	t.Cleanup(server.Close)

	adapter := NewAdapter(rest.Options{BaseURL: server.URL}, zerolog.New(nil).Level(zerolog.Disabled))
	adapter.client.now = func() time.Time { return fixedNow }
	return adapter, &calls
}

func testCredentials() domain.Credentials {
	return domain.Credentials{
		UserID:     "FA12345",
		Password:   "pass@123",
		TOTPSecret: ` "jbsw y3dp ehpk 3pxp" `,
		VendorCode: "FA12345_U",
		APISecret:  "apisecret",
	}
}

func loginOK(call norenCall) string {
	if call.Endpoint == "QuickAuth" {
		return `{"stat":"Ok","susertoken":"tok-1","actid":"FA12345","uname":"TEST"}`
	}
	return `{"stat":"Not_Ok","emsg":"unexpected"}`
}

func TestCleanTOTPSecret(t *testing.T) {
	assert.Equal(t, testSecret, CleanTOTPSecret(` "jbsw y3dp ehpk 3pxp" `))
	assert.Equal(t, testSecret, CleanTOTPSecret(`'JBSWY3DPEHPK3PXP'`))
}

func TestAdapter_Login(t *testing.T) {
	adapter, calls := newTestAdapter(t, loginOK)

	err := adapter.Login(context.Background(), testCredentials())
	require.NoError(t, err)
	require.Len(t, *calls, 1)

	expectedCode, err := totp.GenerateCode(testSecret, fixedNow)
	require.NoError(t, err)

	data := (*calls)[0].Data
	assert.Equal(t, "FA12345", data["uid"])
	assert.Equal(t, sha256Hex("pass@123"), data["pwd"])
	assert.Equal(t, expectedCode, data["factor2"])
	assert.Equal(t, "FA12345_U", data["vc"])
	assert.Equal(t, sha256Hex("FA12345|apisecret"), data["appkey"])
	assert.Equal(t, defaultIMEI, data["imei"])
	assert.Equal(t, "API", data["source"])
	assert.Empty(t, (*calls)[0].Key)
}

func TestAdapter_LoginRejected(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(norenCall) string {
		return `{"stat":"Not_Ok","emsg":"Invalid Input : Wrong Password"}`
	})

	err := adapter.Login(context.Background(), testCredentials())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Wrong Password")

	_, err = adapter.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "NIFTYBEES-EQ", Quantity: 1, Type: domain.OrderTypeMarket, Side: domain.SideBuy,
	})
	assert.ErrorIs(t, err, domain.ErrNotLoggedIn)
}

func TestAdapter_LoginMissingCredential(t *testing.T) {
	adapter, calls := newTestAdapter(t, loginOK)

	creds := testCredentials()
	creds.TOTPSecret = ""
	err := adapter.Login(context.Background(), creds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOTP_SECRET")
	assert.Empty(t, *calls)
}

func TestAdapter_PlaceOrder(t *testing.T) {
	adapter, calls := newTestAdapter(t, func(call norenCall) string {
		switch call.Endpoint {
		case "QuickAuth":
			return loginOK(call)
		case "PlaceOrder":
			return `{"stat":"Ok","norenordno":"25042100001234"}`
		}
		return `{"stat":"Not_Ok"}`
	})
	require.NoError(t, adapter.Login(context.Background(), testCredentials()))

	result, err := adapter.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol:   "NIFTYBEES-EQ",
		Quantity: 7,
		Type:     domain.OrderTypeMarket,
		Side:     domain.SideBuy,
	})
	require.NoError(t, err)
	assert.Equal(t, "25042100001234", result.OrderID)
	assert.Equal(t, int64(7), result.Quantity)

	call := (*calls)[1]
	assert.Equal(t, "PlaceOrder", call.Endpoint)
	assert.Equal(t, "tok-1", call.Key)
	assert.Equal(t, "B", call.Data["trantype"])
	assert.Equal(t, "C", call.Data["prd"])
	assert.Equal(t, "NSE", call.Data["exch"])
	assert.Equal(t, "NIFTYBEES-EQ", call.Data["tsym"])
	assert.Equal(t, "7", call.Data["qty"])
	assert.Equal(t, "0", call.Data["dscqty"])
	assert.Equal(t, "MKT", call.Data["prctyp"])
	assert.Equal(t, "0.00", call.Data["prc"])
	assert.Equal(t, "DAY", call.Data["ret"])
}

func TestAdapter_PlaceOrderRejected(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(call norenCall) string {
		if call.Endpoint == "QuickAuth" {
			return loginOK(call)
		}
		return `{"stat":"Not_Ok","emsg":"RMS:Margin Exceeds"}`
	})
	require.NoError(t, adapter.Login(context.Background(), testCredentials()))

	_, err := adapter.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "GOLDBEES-EQ", Quantity: 3, Price: 61.5, Type: domain.OrderTypeLimit, Side: domain.SideBuy,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Margin Exceeds")
}

func TestAdapter_GetPositions(t *testing.T) {
	t.Run("rows", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, func(call norenCall) string {
			if call.Endpoint == "QuickAuth" {
				return loginOK(call)
			}
			return `[{"stat":"Ok","tsym":"NIFTYBEES-EQ","exch":"NSE","prd":"C","netqty":"12","netavgprc":"254.10","lp":"256.00","rpnl":"0.00","urmtom":"22.80"}]`
		})
		require.NoError(t, adapter.Login(context.Background(), testCredentials()))

		positions, err := adapter.GetPositions(context.Background())
		require.NoError(t, err)
		require.Len(t, positions, 1)
		assert.Equal(t, "NIFTYBEES-EQ", positions[0].Symbol)
		assert.Equal(t, int64(12), positions[0].Quantity)
		assert.InDelta(t, 254.10, positions[0].AvgPrice, 1e-9)
		assert.InDelta(t, 22.80, positions[0].PnL, 1e-9)
	})

	t.Run("no data", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, func(call norenCall) string {
			if call.Endpoint == "QuickAuth" {
				return loginOK(call)
			}
			return `{"stat":"Not_Ok","emsg":"no data"}`
		})
		require.NoError(t, adapter.Login(context.Background(), testCredentials()))

		positions, err := adapter.GetPositions(context.Background())
		require.NoError(t, err)
		assert.Empty(t, positions)
	})
}

func TestAdapter_GetOrderStatus(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(call norenCall) string {
		if call.Endpoint == "QuickAuth" {
			return loginOK(call)
		}
		assert.Equal(t, "123", call.Data["norenordno"])
		return `[{"stat":"Ok","norenordno":"123","tsym":"NIFTYBEES-EQ","status":"COMPLETE","fillshares":"7","avgprc":"254.35"},{"stat":"Ok","status":"OPEN"}]`
	})
	require.NoError(t, adapter.Login(context.Background(), testCredentials()))

	status, err := adapter.GetOrderStatus(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETE", status.Status)
	assert.Equal(t, int64(7), status.FilledQuantity)
	assert.InDelta(t, 254.35, status.AvgPrice, 1e-9)
}
