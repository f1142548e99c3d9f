// Package pipeline sequences one daily run: accounts, snapshot, login, allocation, dispatch, reporting.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/sipcopy/internal/domain"
	"github.com/aristath/sipcopy/internal/modules/accounts"
	"github.com/aristath/sipcopy/internal/modules/allocation"
	"github.com/aristath/sipcopy/internal/modules/dispatch"
	"github.com/aristath/sipcopy/internal/modules/ledger"
	"github.com/aristath/sipcopy/internal/modules/marketdata"
	"github.com/aristath/sipcopy/internal/utils"
	"github.com/rs/zerolog"
)

// RunRecorder persists finished runs
type RunRecorder interface {
	SaveRun(ctx context.Context, report *dispatch.Report) error
}

// Paths are the files a run reads and writes
type Paths struct {
	AccountsFile    string
	ReferenceFile   string
	AllocationsFile string // todays_etf.csv
	ReportsDir      string
}

// Options configure a Runner
type Options struct {
	Paths    Paths
	Retry    marketdata.RetryPolicy
	Dispatch dispatch.Options
	Location *time.Location
}

// Outcome is everything one run produced
type Outcome struct {
	Result     *allocation.Result
	Report     *dispatch.Report
	ReportPath string
}

// Runner executes daily runs
type Runner struct {
	opts     Options
	fetcher  marketdata.Fetcher
	engine   *allocation.Engine
	loader   *accounts.Loader
	recorder RunRecorder // optional
	now      func() time.Time
	log      zerolog.Logger
}

// NewRunner creates a runner. recorder may be nil.
func NewRunner(opts Options, fetcher marketdata.Fetcher, engine *allocation.Engine, loader *accounts.Loader, recorder RunRecorder, log zerolog.Logger) *Runner {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Runner{
		opts:     opts,
		fetcher:  fetcher,
		engine:   engine,
		loader:   loader,
		recorder: recorder,
		now:      time.Now,
		log:      log.With().Str("service", "pipeline").Logger(),
	}
}

// Run executes one full run. Only configuration and data retrieval errors are
// returned; per-account failures end up in the report.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	r.log.Info().Msg("Run started")

	done := utils.PhaseTimer("accounts", r.log)
	registry, err := r.loadAccounts()
	done()
	if err != nil {
		return nil, err
	}

	done = utils.PhaseTimer("snapshot", r.log)
	instruments, err := marketdata.Load(ctx, r.fetcher, r.opts.Retry, r.log)
	done()
	if err != nil {
		return nil, err
	}

	table, err := r.loadReference()
	if err != nil {
		return nil, err
	}

	d := dispatch.NewDispatcher(registry, r.opts.Dispatch, r.log)

	done = utils.PhaseTimer("login", r.log)
	err = d.LoginAll(ctx)
	done()
	if err != nil {
		return nil, err
	}

	done = utils.PhaseTimer("allocation", r.log)
	result := r.engine.Allocate(instruments, table)
	done()
	if err := r.writeAllocations(result); err != nil {
		r.log.Error().Err(err).Msg("Failed to write allocation artifact")
	}

	if result.Empty() {
		r.log.Warn().Err(domain.ErrAllocationEmpty).Msg("Nothing to dispatch")
		d.Finish()
	} else {
		done = utils.PhaseTimer("dispatch", r.log)
		err = d.PlaceOrders(ctx, result)
		done()
		if err != nil {
			return nil, err
		}
	}

	out := &Outcome{Result: result, Report: d.Report()}
	out.ReportPath, err = r.writeReport(out.Report)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to write run report")
	}

	if r.recorder != nil {
		if err := r.recorder.SaveRun(ctx, out.Report); err != nil {
			r.log.Error().Err(err).Str("run_id", out.Report.RunID).Msg("Failed to record run")
		}
	}

	r.log.Info().
		Str("run_id", out.Report.RunID).
		Int("instruments", out.Report.InstrumentsSelected).
		Float64("total_final", out.Report.TotalFinal).
		Int("orders_placed", out.Report.OrdersPlaced).
		Int("orders_failed", out.Report.OrdersFailed).
		Msg("Run finished")
	return out, nil
}

// Positions logs every eligible account in and returns their position books
func (r *Runner) Positions(ctx context.Context) ([]dispatch.AccountPositions, error) {
	registry, err := r.loadAccounts()
	if err != nil {
		return nil, err
	}
	d := dispatch.NewDispatcher(registry, r.opts.Dispatch, r.log)
	if err := d.LoginAll(ctx); err != nil {
		return nil, err
	}
	return d.Positions(ctx)
}

// Preview runs allocation only: no accounts, no orders
func (r *Runner) Preview(ctx context.Context) (*allocation.Result, error) {
	instruments, err := marketdata.Load(ctx, r.fetcher, r.opts.Retry, r.log)
	if err != nil {
		return nil, err
	}
	table, err := r.loadReference()
	if err != nil {
		return nil, err
	}
	result := r.engine.Allocate(instruments, table)
	if err := r.writeAllocations(result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Runner) loadAccounts() (*accounts.Registry, error) {
	f, err := os.Open(r.opts.Paths.AccountsFile)
	if err != nil {
		return nil, &domain.ConfigurationError{Reason: "cannot open account store", Err: err}
	}
	defer f.Close()

	records, err := accounts.ParseStore(f)
	if err != nil {
		return nil, &domain.ConfigurationError{Reason: "cannot parse account store", Err: err}
	}
	return r.loader.Load(records, r.now())
}

func (r *Runner) loadReference() (allocation.ReferenceTable, error) {
	f, err := os.Open(r.opts.Paths.ReferenceFile)
	if err != nil {
		return nil, &domain.ConfigurationError{Reason: "cannot open reference table", Err: err}
	}
	defer f.Close()

	table, err := allocation.ParseReferenceTable(f, r.log)
	if err != nil {
		return nil, &domain.ConfigurationError{Reason: "cannot parse reference table", Err: err}
	}
	return table, nil
}

func (r *Runner) writeAllocations(result *allocation.Result) error {
	path := r.opts.Paths.AllocationsFile
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := allocation.WriteAllocationsCSV(f, result.Allocations); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	r.log.Info().Str("path", path).Int("rows", len(result.Allocations)).Msg("Allocations written")
	return nil
}

// ReportName is the file name of a run report
func ReportName(report *dispatch.Report, loc *time.Location) string {
	return fmt.Sprintf("run_%s_%s.json", report.StartedAt.In(loc).Format("2006-01-02_150405"), report.RunID)
}

func (r *Runner) writeReport(report *dispatch.Report) (string, error) {
	if r.opts.Paths.ReportsDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(r.opts.Paths.ReportsDir, 0755); err != nil {
		return "", err
	}
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	path := filepath.Join(r.opts.Paths.ReportsDir, ReportName(report, r.opts.Location))
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", err
	}
	return path, nil
}

var _ RunRecorder = (*ledger.Repository)(nil)
