package dispatch

import (
	"time"

	"github.com/aristath/sipcopy/internal/domain"
)

// AccountReport is the outcome of one account in a run
type AccountReport struct {
	AccountID  string               `json:"account_id"`
	Broker     domain.BrokerID      `json:"broker"`
	Role       domain.Role          `json:"role"`
	Attempted  bool                 `json:"login_attempted"`
	LoggedIn   bool                 `json:"logged_in"`
	LoginError string               `json:"login_error,omitempty"`
	SkipReason string               `json:"skip_reason,omitempty"`
	Orders     []domain.OrderResult `json:"orders"`
}

// DroppedAccount is an account store row that never made it into the run
type DroppedAccount struct {
	Line   int    `json:"line"`
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// Report is the structured per-run summary
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	InstrumentsSelected int     `json:"instruments_selected"`
	TotalAllocated      float64 `json:"total_allocated"`
	TotalFinal          float64 `json:"total_final"`

	OrdersPlaced        int `json:"orders_placed"`
	OrdersFailed        int `json:"orders_failed"`
	OrdersSkipped       int `json:"orders_skipped"`
	AccountsFailedLogin int `json:"accounts_failed_login"`

	Accounts []*AccountReport `json:"accounts"`
	Dropped  []DroppedAccount `json:"dropped,omitempty"`
}

// Master returns the master's report, nil when absent
func (r *Report) Master() *AccountReport {
	for _, a := range r.Accounts {
		if a.Role == domain.RoleMaster {
			return a
		}
	}
	return nil
}

// Account returns the report of one account, nil when unknown
func (r *Report) Account(id string) *AccountReport {
	for _, a := range r.Accounts {
		if a.AccountID == id {
			return a
		}
	}
	return nil
}

// summarize recomputes the aggregate counters from the account reports
func (r *Report) summarize() {
	r.OrdersPlaced, r.OrdersFailed, r.OrdersSkipped, r.AccountsFailedLogin = 0, 0, 0, 0
	for _, a := range r.Accounts {
		if a.Attempted && !a.LoggedIn {
			r.AccountsFailedLogin++
		}
		for _, o := range a.Orders {
			switch {
			case o.Success:
				r.OrdersPlaced++
			case o.Skipped:
				r.OrdersSkipped++
			default:
				r.OrdersFailed++
			}
		}
	}
}
