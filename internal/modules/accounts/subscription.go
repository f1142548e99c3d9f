package accounts

import (
	"strings"
	"time"

	"github.com/aristath/sipcopy/internal/domain"
)

// ExpiryLayout is the dd-mm-yyyy format used by the account store
const ExpiryLayout = "02-01-2006"

// EvaluateSubscription derives the effective status from the expiry date.
// The stored status column is ignored: a blank or unparseable expiry is Inactive,
// an expiry date before today (in loc) is Inactive, and the expiry day itself is still Active.
func EvaluateSubscription(expiry string, now time.Time, loc *time.Location) (domain.SubscriptionStatus, *time.Time) {
	expiry = strings.TrimSpace(expiry)
	if expiry == "" {
		return domain.SubscriptionInactive, nil
	}
	if loc == nil {
		loc = time.UTC
	}

	date, err := time.ParseInLocation(ExpiryLayout, expiry, loc)
	if err != nil {
		return domain.SubscriptionInactive, nil
	}

	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	if today.After(date) {
		return domain.SubscriptionInactive, &date
	}
	return domain.SubscriptionActive, &date
}
