package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccount_ScaledQuantity(t *testing.T) {
	testCases := []struct {
		name       string
		multiplier float64
		quantity   int64
		expected   int64
	}{
		{"identity", 1, 7, 7},
		{"integer multiplier", 3, 7, 21},
		{"fractional multiplier floors", 1.5, 5, 7},
		{"zero multiplier", 0, 10, 0},
		{"negative multiplier", -2, 10, 0},
		{"zero quantity", 2, 0, 0},
		{"fraction below one unit", 0.4, 2, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			acc := Account{Multiplier: tc.multiplier}
			assert.Equal(t, tc.expected, acc.ScaledQuantity(tc.quantity))
		})
	}
}

func TestCredentials_Missing(t *testing.T) {
	creds := Credentials{
		UserID:      "FA1234",
		Password:    "secret",
		AccessToken: "  ",
	}

	missing := creds.Missing([]CredentialField{FieldUserID, FieldPassword, FieldAccessToken, FieldTOTPSecret})
	assert.Equal(t, []CredentialField{FieldAccessToken, FieldTOTPSecret}, missing)

	assert.Empty(t, creds.Missing([]CredentialField{FieldUserID}))
	assert.Empty(t, creds.Missing(nil))
}

func TestCredentials_Get(t *testing.T) {
	creds := Credentials{APIKey: "k", APISecret: "s", VendorCode: "v", IMEI: "i"}

	assert.Equal(t, "k", creds.Get(FieldAPIKey))
	assert.Equal(t, "s", creds.Get(FieldAPISecret))
	assert.Equal(t, "v", creds.Get(FieldVendorCode))
	assert.Equal(t, "i", creds.Get(FieldIMEI))
	assert.Equal(t, "", creds.Get(CredentialField("UNKNOWN")))
}
