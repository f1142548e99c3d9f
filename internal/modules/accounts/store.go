// Package accounts loads the master and copy accounts from the flat account store.
package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/aristath/sipcopy/internal/utils"
)

// Account store columns
const (
	ColUserID             = "USER_ID"
	ColPassword           = "PASSWORD"
	ColTOTPSecret         = "TOTP_SECRET"
	ColBroker             = "BROKER"
	ColAPIKey             = "API_KEY"
	ColAPISecret          = "API_SECRET"
	ColVendorCode         = "VENDOR_CODE"
	ColIMEI               = "IMEI"
	ColAccessToken        = "ACCESS_TOKEN"
	ColIsMaster           = "IS_MASTER"
	ColCopyMultiplier     = "COPY_MULTIPLIER"
	ColCopy               = "COPY"
	ColSubscriptionExpiry = "SUBSCRIPTION_EXPIRY"
	ColSubscriptionStatus = "SUBSCRIPTION_STATUS"
)

// Record is one raw row of the account store, keyed by normalised column name.
// Blank cells and unknown columns are simply absent.
type Record struct {
	Line   int
	Fields map[string]string
}

// Get returns the trimmed value of a column, "" when absent
func (r Record) Get(col string) string {
	return r.Fields[col]
}

// ParseStore reads the account store CSV
func ParseStore(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(utils.SkipBOM(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read account store header: %w", err)
	}

	columns := make([]string, len(header))
	hasUserID := false
	for i, h := range header {
		columns[i] = utils.NormalizeHeader(h)
		if columns[i] == ColUserID {
			hasUserID = true
		}
	}
	if !hasUserID {
		return nil, fmt.Errorf("account store is missing the %s column", ColUserID)
	}

	var records []Record
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read account store line %d: %w", line+1, err)
		}
		line++

		fields := make(map[string]string, len(columns))
		for i, col := range columns {
			if i >= len(row) {
				break
			}
			value := strings.TrimSpace(row[i])
			// pandas exports blanks as NaN
			if value == "" || strings.EqualFold(value, "nan") {
				continue
			}
			if _, seen := fields[col]; !seen {
				fields[col] = value
			}
		}
		if len(fields) == 0 {
			continue
		}

		records = append(records, Record{Line: line, Fields: fields})
	}

	return records, nil
}
