// Package shoonya implements the Finvasia/Shoonya (Noren) broker adapter.
package shoonya

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/sipcopy/internal/clients/rest"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production Noren REST endpoint
const DefaultBaseURL = "https://api.shoonya.com/NorenWClientTP"

const apkVersion = "1.0.0"

// Client speaks the Noren wire protocol: every call is a POST whose body is
// "jData=<json>" followed by "&jKey=<session token>" once logged in.
type Client struct {
	rest *rest.Client
	log  zerolog.Logger
	now  func() time.Time

	userID       string
	accountID    string
	sessionToken string
}

// NewClient creates a new Noren client
func NewClient(opts rest.Options, log zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Component == "" {
		opts.Component = "shoonya"
	}
	return &Client{
		rest: rest.NewClient(opts, log),
		log:  log.With().Str("client", "shoonya").Logger(),
		now:  time.Now,
	}
}

// status is the envelope every Noren response carries
type status struct {
	Stat string `json:"stat"`
	Emsg string `json:"emsg"`
}

func (s status) ok() bool {
	return strings.EqualFold(s.Stat, "Ok")
}

type loginResponse struct {
	status
	SessionToken string `json:"susertoken"`
	AccountID    string `json:"actid"`
	UserName     string `json:"uname"`
}

type placeOrderResponse struct {
	status
	OrderNumber string `json:"norenordno"`
}

type positionRow struct {
	status
	TradingSymbol string `json:"tsym"`
	Exchange      string `json:"exch"`
	Product       string `json:"prd"`
	NetQuantity   string `json:"netqty"`
	NetAvgPrice   string `json:"netavgprc"`
	LastPrice     string `json:"lp"`
	RealisedPnL   string `json:"rpnl"`
	UnrealisedMTM string `json:"urmtom"`
}

type orderHistoryRow struct {
	status
	OrderNumber   string `json:"norenordno"`
	TradingSymbol string `json:"tsym"`
	Status        string `json:"status"`
	RejectReason  string `json:"rejreason"`
	FilledShares  string `json:"fillshares"`
	AvgPrice      string `json:"avgprc"`
}

// sha256Hex hashes a secret the way the Noren login expects
func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CleanTOTPSecret strips whitespace and quotes that spreadsheets tend to add around base32 seeds
func CleanTOTPSecret(raw string) string {
	r := strings.NewReplacer(" ", "", "\t", "", "\"", "", "'", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(raw)))
}

// post sends one Noren call and returns the raw body
func (c *Client) post(ctx context.Context, endpoint string, payload interface{}, withKey bool) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jData: %w", err)
	}

	body := "jData=" + string(data)
	if withKey {
		body += "&jKey=" + c.sessionToken
	}

	return c.rest.Do(ctx, rest.Request{
		Method:  http.MethodPost,
		Path:    "/" + endpoint,
		RawBody: body,
	})
}

// QuickAuth logs in with password + TOTP and stores the session token
func (c *Client) QuickAuth(ctx context.Context, userID, password, totpSecret, vendorCode, apiSecret, imei string) (*loginResponse, error) {
	code, err := totp.GenerateCode(CleanTOTPSecret(totpSecret), c.now())
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP: %w", err)
	}

	payload := map[string]string{
		"source":     "API",
		"apkversion": apkVersion,
		"uid":        userID,
		"pwd":        sha256Hex(password),
		"factor2":    code,
		"vc":         vendorCode,
		"appkey":     sha256Hex(userID + "|" + apiSecret),
		"imei":       imei,
	}

	body, err := c.post(ctx, "QuickAuth", payload, false)
	if err != nil {
		return nil, err
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if !resp.ok() || resp.SessionToken == "" {
		return nil, fmt.Errorf("login rejected: %s", resp.Emsg)
	}

	c.userID = userID
	c.accountID = resp.AccountID
	if c.accountID == "" {
		c.accountID = userID
	}
	c.sessionToken = resp.SessionToken

	c.log.Info().Str("user_id", userID).Msg("Session established")
	return &resp, nil
}

// LoggedIn reports whether QuickAuth succeeded
func (c *Client) LoggedIn() bool {
	return c.sessionToken != ""
}

// PlaceOrder submits a delivery order on NSE
func (c *Client) PlaceOrder(ctx context.Context, tradingSymbol, tranType, priceType string, quantity int64, price float64) (*placeOrderResponse, []byte, error) {
	payload := map[string]string{
		"ordersource": "API",
		"uid":         c.userID,
		"actid":       c.accountID,
		"trantype":    tranType,
		"prd":         "C",
		"exch":        "NSE",
		"tsym":        tradingSymbol,
		"qty":         fmt.Sprintf("%d", quantity),
		"dscqty":      "0",
		"prctyp":      priceType,
		"prc":         fmt.Sprintf("%.2f", price),
		"ret":         "DAY",
	}

	body, err := c.post(ctx, "PlaceOrder", payload, true)
	if err != nil {
		return nil, body, err
	}

	var resp placeOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, body, fmt.Errorf("failed to decode order response: %w", err)
	}
	if !resp.ok() || resp.OrderNumber == "" {
		return nil, body, fmt.Errorf("order rejected: %s", resp.Emsg)
	}
	return &resp, body, nil
}

// PositionBook returns the net positions. An empty book is reported by Noren as
// a Not_Ok status with "no data", which is not an error.
func (c *Client) PositionBook(ctx context.Context) ([]positionRow, error) {
	body, err := c.post(ctx, "PositionBook", map[string]string{"uid": c.userID, "actid": c.accountID}, true)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var st status
		if err := json.Unmarshal(body, &st); err != nil {
			return nil, fmt.Errorf("failed to decode positions: %w", err)
		}
		if strings.Contains(strings.ToLower(st.Emsg), "no data") {
			return nil, nil
		}
		return nil, fmt.Errorf("position book failed: %s", st.Emsg)
	}

	var rows []positionRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode positions: %w", err)
	}
	return rows, nil
}

// SingleOrderHistory returns the state transitions of one order, latest first
func (c *Client) SingleOrderHistory(ctx context.Context, orderNumber string) ([]orderHistoryRow, []byte, error) {
	body, err := c.post(ctx, "SingleOrdHist", map[string]string{"uid": c.userID, "norenordno": orderNumber}, true)
	if err != nil {
		return nil, body, err
	}

	if strings.HasPrefix(strings.TrimSpace(string(body)), "{") {
		var st status
		_ = json.Unmarshal(body, &st)
		return nil, body, fmt.Errorf("order history failed: %s", st.Emsg)
	}

	var rows []orderHistoryRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, body, fmt.Errorf("failed to decode order history: %w", err)
	}
	return rows, body, nil
}
