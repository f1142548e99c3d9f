// Package dispatch logs every account in and replicates the master's orders onto eligible copies.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aristath/sipcopy/internal/domain"
	"github.com/aristath/sipcopy/internal/modules/accounts"
	"github.com/aristath/sipcopy/internal/modules/allocation"
	"github.com/aristath/sipcopy/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// EquitySuffix is the NSE cash-segment suffix the master's trading symbols carry
const EquitySuffix = "-EQ"

const (
	reasonMasterOffline = "skipped: master not logged in"
	maxRawLength        = 1000
)

// Options tune a dispatcher run
type Options struct {
	MaxParallel       int  // concurrent accounts during login and fan-out
	VerifyOrderStatus bool // query order status after each successful placement
}

// AccountPositions is the position book of one account
type AccountPositions struct {
	AccountID string
	Broker    domain.BrokerID
	Positions []domain.BrokerPosition
	Err       error
}

// Dispatcher drives one run through Idle → LoggingIn → Allocating → Dispatching → Done
type Dispatcher struct {
	registry *accounts.Registry
	opts     Options
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	state   State
	report  *Report
	reports map[*accounts.Entry]*AccountReport
}

// NewDispatcher creates a dispatcher for a loaded account registry
func NewDispatcher(registry *accounts.Registry, opts Options, log zerolog.Logger) *Dispatcher {
	if opts.MaxParallel < 1 {
		opts.MaxParallel = 1
	}
	d := &Dispatcher{
		registry: registry,
		opts:     opts,
		log:      log.With().Str("service", "dispatch").Logger(),
		now:      time.Now,
		state:    StateIdle,
		reports:  make(map[*accounts.Entry]*AccountReport),
	}
	d.report = &Report{RunID: uuid.NewString(), StartedAt: d.now()}
	for _, dr := range registry.Dropped {
		d.report.Dropped = append(d.report.Dropped, DroppedAccount{Line: dr.Line, UserID: dr.UserID, Reason: dr.Reason})
	}
	for _, e := range registry.All() {
		ar := &AccountReport{
			AccountID:  e.Account.UserID,
			Broker:     e.Account.Broker,
			Role:       e.Account.Role,
			SkipReason: e.SkipReason,
			Orders:     []domain.OrderResult{},
		}
		d.reports[e] = ar
		d.report.Accounts = append(d.report.Accounts, ar)
	}
	return d
}

// State returns the current lifecycle stage
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Report returns the run report. Aggregates are final once the state is Done.
func (d *Dispatcher) Report() *Report {
	return d.report
}

func (d *Dispatcher) transition(op string, from, to State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != from {
		return &InvalidTransitionError{Operation: op, State: d.state}
	}
	d.state = to
	return nil
}

func (d *Dispatcher) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// LoginAll logs in the master, then every eligible copy concurrently.
// Login failures are recorded per account and never abort the run.
func (d *Dispatcher) LoginAll(ctx context.Context) error {
	if err := d.transition("login", StateIdle, StateLoggingIn); err != nil {
		return err
	}

	if master := d.registry.Master; master != nil {
		d.login(ctx, master)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.MaxParallel)
	for _, entry := range d.registry.EligibleCopies() {
		entry := entry
		g.Go(func() error {
			d.login(gctx, entry)
			return nil
		})
	}
	_ = g.Wait()

	loggedIn := 0
	for _, ar := range d.report.Accounts {
		if ar.LoggedIn {
			loggedIn++
		}
	}
	d.log.Info().
		Int("logged_in", loggedIn).
		Int("accounts", len(d.report.Accounts)).
		Msg("Login phase complete")

	d.setState(StateAllocating)
	return nil
}

func (d *Dispatcher) login(ctx context.Context, entry *accounts.Entry) {
	ar := d.reports[entry]
	ar.Attempted = true

	err := guard(func() error {
		return entry.Adapter.Login(ctx, entry.Account.Credentials)
	})
	if err != nil {
		ar.LoginError = err.Error()
		d.log.Error().
			Err(err).
			Str("account", entry.Account.UserID).
			Str("broker", string(entry.Account.Broker)).
			Str("role", string(entry.Account.Role)).
			Msg("Login failed")
		return
	}
	ar.LoggedIn = true
	d.log.Info().
		Str("account", entry.Account.UserID).
		Str("broker", string(entry.Account.Broker)).
		Str("role", string(entry.Account.Role)).
		Msg("Logged in")
}

// Positions returns the position book of every logged-in account. Requires a completed login phase.
func (d *Dispatcher) Positions(ctx context.Context) ([]AccountPositions, error) {
	if s := d.State(); s != StateAllocating {
		return nil, &InvalidTransitionError{Operation: "positions", State: s}
	}

	var out []AccountPositions
	for _, entry := range d.registry.All() {
		if !d.reports[entry].LoggedIn {
			continue
		}
		ap := AccountPositions{AccountID: entry.Account.UserID, Broker: entry.Account.Broker}
		ap.Err = guard(func() error {
			positions, err := entry.Adapter.GetPositions(ctx)
			ap.Positions = positions
			return err
		})
		out = append(out, ap)
	}
	return out, nil
}

// PlaceOrders places the master's orders sequentially, then replicates them onto
// every logged-in eligible copy. Copies run concurrently with each other, orders
// within one account run in allocation order.
func (d *Dispatcher) PlaceOrders(ctx context.Context, result *allocation.Result) error {
	if err := d.transition("place orders", StateAllocating, StateDispatching); err != nil {
		return err
	}

	var allocs []allocation.Allocation
	if result != nil {
		allocs = result.Allocations
		d.report.InstrumentsSelected = len(result.Allocations)
		d.report.TotalAllocated = result.TotalAllocated
		d.report.TotalFinal = result.TotalFinal
	}

	if len(allocs) > 0 {
		if master := d.registry.Master; master != nil {
			d.placeMaster(ctx, master, allocs)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.opts.MaxParallel)
		for _, entry := range d.registry.EligibleCopies() {
			if !d.reports[entry].LoggedIn {
				continue
			}
			entry := entry
			g.Go(func() error {
				d.placeCopy(gctx, entry, allocs)
				return nil
			})
		}
		_ = g.Wait()
	}

	d.report.summarize()
	d.report.FinishedAt = d.now()
	d.setState(StateDone)

	d.log.Info().
		Str("run_id", d.report.RunID).
		Int("placed", d.report.OrdersPlaced).
		Int("failed", d.report.OrdersFailed).
		Int("skipped", d.report.OrdersSkipped).
		Int("failed_logins", d.report.AccountsFailedLogin).
		Msg("Dispatch complete")
	return nil
}

// Finish closes a run that never reached order placement
func (d *Dispatcher) Finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateDone {
		return
	}
	d.report.summarize()
	d.report.FinishedAt = d.now()
	d.state = StateDone
}

func (d *Dispatcher) placeMaster(ctx context.Context, master *accounts.Entry, allocs []allocation.Allocation) {
	ar := d.reports[master]
	for _, a := range allocs {
		qty := MasterQuantity(a.Quantity)
		if !ar.LoggedIn {
			ar.Orders = append(ar.Orders, domain.OrderResult{
				AccountID:     master.Account.UserID,
				Broker:        master.Account.Broker,
				Role:          domain.RoleMaster,
				Symbol:        a.Symbol,
				TradingSymbol: TradingSymbol(a.Symbol),
				Quantity:      qty,
				Skipped:       true,
				Reason:        reasonMasterOffline,
				PlacedAt:      d.now(),
			})
			continue
		}
		ar.Orders = append(ar.Orders, d.place(ctx, master, a.Symbol, qty))
	}
}

func (d *Dispatcher) placeCopy(ctx context.Context, entry *accounts.Entry, allocs []allocation.Allocation) {
	ar := d.reports[entry]
	for _, a := range allocs {
		qty := entry.Account.ScaledQuantity(MasterQuantity(a.Quantity))
		if qty == 0 {
			d.log.Debug().
				Str("account", entry.Account.UserID).
				Str("symbol", a.Symbol).
				Float64("multiplier", entry.Account.Multiplier).
				Msg("Scaled quantity is zero, order not placed")
			continue
		}
		ar.Orders = append(ar.Orders, d.place(ctx, entry, a.Symbol, qty))
	}
}

func (d *Dispatcher) place(ctx context.Context, entry *accounts.Entry, symbol string, qty int64) domain.OrderResult {
	acct := entry.Account
	res := domain.OrderResult{
		AccountID:     acct.UserID,
		Broker:        acct.Broker,
		Role:          acct.Role,
		Symbol:        symbol,
		TradingSymbol: TradingSymbol(symbol),
		Quantity:      qty,
		PlacedAt:      d.now(),
	}
	req := domain.OrderRequest{
		Symbol:   res.TradingSymbol,
		Quantity: qty,
		Type:     domain.OrderTypeMarket,
		Side:     domain.SideBuy,
	}

	var placed *domain.BrokerOrderResult
	err := guard(func() error {
		var perr error
		placed, perr = entry.Adapter.PlaceOrder(ctx, req)
		return perr
	})
	if err != nil {
		res.Reason = err.Error()
		d.log.Error().
			Err(err).
			Str("account", acct.UserID).
			Str("symbol", res.TradingSymbol).
			Int64("quantity", qty).
			Msg("Order placement failed")
		return res
	}

	res.Success = true
	if placed != nil {
		res.OrderID = placed.OrderID
		res.Status = placed.Status
		res.Raw = utils.Truncate(string(placed.Raw), maxRawLength)
	}
	d.log.Info().
		Str("account", acct.UserID).
		Str("role", string(acct.Role)).
		Str("symbol", res.TradingSymbol).
		Int64("quantity", qty).
		Str("order_id", res.OrderID).
		Msg("Order placed")

	if d.opts.VerifyOrderStatus && res.OrderID != "" {
		d.verify(ctx, entry, &res)
	}
	return res
}

func (d *Dispatcher) verify(ctx context.Context, entry *accounts.Entry, res *domain.OrderResult) {
	var status *domain.BrokerOrderStatus
	err := guard(func() error {
		var serr error
		status, serr = entry.Adapter.GetOrderStatus(ctx, res.OrderID)
		return serr
	})
	if err != nil {
		d.log.Warn().
			Err(err).
			Str("account", entry.Account.UserID).
			Str("order_id", res.OrderID).
			Msg("Order status lookup failed")
		return
	}
	if status == nil {
		return
	}
	res.Status = status.Status
	if status.StatusMessage != "" {
		res.Reason = status.StatusMessage
	}
}

// MasterQuantity coerces an allocated quantity to at least one unit
func MasterQuantity(q int64) int64 {
	if q < 1 {
		return 1
	}
	return q
}

// TradingSymbol appends the equity suffix unless the symbol already carries it
func TradingSymbol(symbol string) string {
	if strings.Contains(symbol, EquitySuffix) {
		return symbol
	}
	return symbol + EquitySuffix
}

// guard turns a panicking adapter call into an error
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()
	return fn()
}
