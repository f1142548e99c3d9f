package domain

import (
	"math"
	"strings"
	"time"
)

// Role of an account within a run
type Role string

const (
	RoleMaster Role = "master"
	RoleCopy   Role = "copy"
)

// SubscriptionStatus gates copy accounts from fan-out
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "Active"
	SubscriptionInactive SubscriptionStatus = "Inactive"
)

// CredentialField names a column of the account store that carries a secret or identifier
type CredentialField string

const (
	FieldUserID      CredentialField = "USER_ID"
	FieldPassword    CredentialField = "PASSWORD"
	FieldTOTPSecret  CredentialField = "TOTP_SECRET"
	FieldAPIKey      CredentialField = "API_KEY"
	FieldAPISecret   CredentialField = "API_SECRET"
	FieldVendorCode  CredentialField = "VENDOR_CODE"
	FieldIMEI        CredentialField = "IMEI"
	FieldAccessToken CredentialField = "ACCESS_TOKEN"
)

// Credentials is the broker-specific credential bundle of an account.
// Which fields are required depends on the broker.
type Credentials struct {
	UserID      string
	Password    string
	TOTPSecret  string
	APIKey      string
	APISecret   string
	VendorCode  string
	IMEI        string
	AccessToken string
}

// Get returns the value of a credential field, or "" when absent
func (c Credentials) Get(field CredentialField) string {
	switch field {
	case FieldUserID:
		return c.UserID
	case FieldPassword:
		return c.Password
	case FieldTOTPSecret:
		return c.TOTPSecret
	case FieldAPIKey:
		return c.APIKey
	case FieldAPISecret:
		return c.APISecret
	case FieldVendorCode:
		return c.VendorCode
	case FieldIMEI:
		return c.IMEI
	case FieldAccessToken:
		return c.AccessToken
	}
	return ""
}

// Missing returns the required fields that are blank
func (c Credentials) Missing(required []CredentialField) []CredentialField {
	var missing []CredentialField
	for _, f := range required {
		if strings.TrimSpace(c.Get(f)) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Account is one row of the account store after validation
type Account struct {
	UserID       string
	Broker       BrokerID
	Role         Role
	Credentials  Credentials
	Multiplier   float64 // copy scaling factor, floor applied to the scaled quantity
	CopyEnabled  bool
	Subscription SubscriptionStatus
	Expiry       *time.Time // last day of the subscription, nil when unknown
}

// IsMaster reports whether the account is the run's master
func (a Account) IsMaster() bool {
	return a.Role == RoleMaster
}

// ScaledQuantity is floor(quantity × multiplier), never negative
func (a Account) ScaledQuantity(quantity int64) int64 {
	if quantity <= 0 || a.Multiplier <= 0 {
		return 0
	}
	return int64(math.Floor(float64(quantity) * a.Multiplier))
}

// OrderResult is the outcome of one (account, symbol) placement in a run
type OrderResult struct {
	AccountID     string    `json:"account_id"`
	Broker        BrokerID  `json:"broker"`
	Role          Role      `json:"role"`
	Symbol        string    `json:"symbol"`
	TradingSymbol string    `json:"trading_symbol"`
	Quantity      int64     `json:"quantity"`
	Success       bool      `json:"success"`
	Skipped       bool      `json:"skipped,omitempty"`
	OrderID       string    `json:"order_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Status        string    `json:"status,omitempty"`
	Raw           string    `json:"raw,omitempty"`
	PlacedAt      time.Time `json:"placed_at"`
}
