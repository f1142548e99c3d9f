// Package ledger persists run reports to the SQLite run history.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/sipcopy/internal/database"
	"github.com/aristath/sipcopy/internal/domain"
	"github.com/aristath/sipcopy/internal/modules/dispatch"
	"github.com/rs/zerolog"
)

// RunSummary is one row of the run history
type RunSummary struct {
	RunID               string
	StartedAt           time.Time
	FinishedAt          time.Time
	InstrumentsSelected int
	TotalAllocated      float64
	TotalFinal          float64
	OrdersPlaced        int
	OrdersFailed        int
	OrdersSkipped       int
	AccountsFailedLogin int
}

// Column order must match scanRun
const runsColumns = `run_id, started_at, finished_at, instruments_selected, total_allocated, total_final,
	orders_placed, orders_failed, orders_skipped, accounts_failed_login`

// Column order must match OrdersForRun
const orderColumns = `account_id, broker, role, symbol, trading_symbol, quantity, success, skipped,
	order_id, reason, status, placed_at`

// Repository reads and writes the run history
type Repository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a run history repository
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "ledger").Logger(),
	}
}

// SaveRun stores a finished run with its accounts and orders in one transaction
func (r *Repository) SaveRun(ctx context.Context, report *dispatch.Report) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("failed to save run: report has no run id")
	}

	err := database.WithTransaction(ctx, r.ledgerDB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (`+runsColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID,
			report.StartedAt.Unix(),
			report.FinishedAt.Unix(),
			report.InstrumentsSelected,
			report.TotalAllocated,
			report.TotalFinal,
			report.OrdersPlaced,
			report.OrdersFailed,
			report.OrdersSkipped,
			report.AccountsFailedLogin,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		accountStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO account_runs
			(run_id, account_id, broker, role, login_attempted, logged_in, login_error, skip_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare account insert: %w", err)
		}
		defer accountStmt.Close()

		orderStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO order_results
			(run_id, `+orderColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare order insert: %w", err)
		}
		defer orderStmt.Close()

		for _, a := range report.Accounts {
			if _, err := accountStmt.ExecContext(ctx,
				report.RunID, a.AccountID, string(a.Broker), string(a.Role),
				boolToInt(a.Attempted), boolToInt(a.LoggedIn),
				nullString(a.LoginError), nullString(a.SkipReason),
			); err != nil {
				return fmt.Errorf("insert account %s: %w", a.AccountID, err)
			}

			for _, o := range a.Orders {
				if _, err := orderStmt.ExecContext(ctx,
					report.RunID, o.AccountID, string(o.Broker), string(o.Role),
					o.Symbol, o.TradingSymbol, o.Quantity,
					boolToInt(o.Success), boolToInt(o.Skipped),
					nullString(o.OrderID), nullString(o.Reason), nullString(o.Status),
					o.PlacedAt.Unix(),
				); err != nil {
					return fmt.Errorf("insert order %s/%s: %w", o.AccountID, o.TradingSymbol, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", report.RunID, err)
	}

	r.log.Info().
		Str("run_id", report.RunID).
		Int("accounts", len(report.Accounts)).
		Int("orders_placed", report.OrdersPlaced).
		Msg("Run recorded")
	return nil
}

// RecentRuns returns up to limit runs, newest first
func (r *Repository) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.ledgerDB.QueryContext(ctx,
		"SELECT "+runsColumns+" FROM runs ORDER BY started_at DESC, run_id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// OrdersForRun returns every order result of a run in insertion order
func (r *Repository) OrdersForRun(ctx context.Context, runID string) ([]domain.OrderResult, error) {
	rows, err := r.ledgerDB.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM order_results WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []domain.OrderResult
	for rows.Next() {
		var (
			o                       domain.OrderResult
			broker, role            string
			success, skipped        int
			orderID, reason, status sql.NullString
			placedAt                int64
		)
		if err := rows.Scan(&o.AccountID, &broker, &role, &o.Symbol, &o.TradingSymbol, &o.Quantity,
			&success, &skipped, &orderID, &reason, &status, &placedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order result: %w", err)
		}
		o.Broker = domain.BrokerID(broker)
		o.Role = domain.Role(role)
		o.Success = success == 1
		o.Skipped = skipped == 1
		o.OrderID = orderID.String
		o.Reason = reason.String
		o.Status = status.String
		o.PlacedAt = time.Unix(placedAt, 0)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order results: %w", err)
	}
	return out, nil
}

func scanRun(rows *sql.Rows) (RunSummary, error) {
	var (
		run               RunSummary
		started, finished int64
	)
	if err := rows.Scan(&run.RunID, &started, &finished, &run.InstrumentsSelected,
		&run.TotalAllocated, &run.TotalFinal, &run.OrdersPlaced, &run.OrdersFailed,
		&run.OrdersSkipped, &run.AccountsFailedLogin); err != nil {
		return run, fmt.Errorf("failed to scan run: %w", err)
	}
	run.StartedAt = time.Unix(started, 0)
	run.FinishedAt = time.Unix(finished, 0)
	return run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
