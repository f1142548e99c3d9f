// Package main is the entry point of sipcopy: the daily ETF SIP allocator that
// places the day's orders on a master account and replicates them onto copy accounts.
//
// Usage:
//
//	sipcopy [run]          one run now: allocate, log in, place and replicate orders
//	sipcopy preview        allocation only, writes todays_etf.csv and prints it
//	sipcopy positions      log every eligible account in and print its positions
//	sipcopy schedule       stay resident and run on RUN_SCHEDULE in MARKET_TIMEZONE
//	sipcopy history [-n N] print the last N recorded runs
//	sipcopy history -run ID print every order recorded for one run
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/aristath/sipcopy/internal/config"
	"github.com/aristath/sipcopy/internal/di"
	"github.com/aristath/sipcopy/internal/domain"
	"github.com/aristath/sipcopy/internal/scheduler"
	"github.com/aristath/sipcopy/pkg/logger"
	"github.com/rs/zerolog"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	command := "run"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to wire dependencies")
		return 1
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "run":
		err = runOnce(ctx, container, log)
	case "preview":
		err = preview(ctx, container)
	case "positions":
		err = positions(ctx, container)
	case "schedule":
		err = schedule(ctx, container, log)
	case "history":
		err = history(ctx, container, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (run, preview, positions, schedule, history)\n", command)
		return 2
	}

	if err != nil {
		log.Error().
			Err(err).
			Bool("configuration", domain.IsConfigurationError(err)).
			Bool("data_retrieval", domain.IsDataRetrievalError(err)).
			Msg("Command failed")
		return 1
	}
	return 0
}

func runOnce(ctx context.Context, c *di.Container, log zerolog.Logger) error {
	out, err := c.Runner.Run(ctx)
	if err != nil {
		return err
	}
	log.Info().Str("report", out.ReportPath).Msg("Report written")
	return nil
}

func preview(ctx context.Context, c *di.Container) error {
	result, err := c.Runner.Preview(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tMATCHED INDEX\t%CHNG\tSEVERITY\tQTY\tAMOUNT")
	for _, a := range result.Allocations {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.3f\t%d\t%.2f\n",
			a.Symbol, a.GroupKey(), a.ChangePct, a.Severity, a.Quantity, a.FinalAmount)
	}
	fmt.Fprintf(w, "\t\t\t\tTOTAL\t%.2f\n", result.TotalFinal)
	return w.Flush()
}

func positions(ctx context.Context, c *di.Container) error {
	books, err := c.Runner.Positions(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tBROKER\tSYMBOL\tQTY\tAVG\tLTP\tP&L")
	for _, b := range books {
		if b.Err != nil {
			fmt.Fprintf(w, "%s\t%s\terror: %v\t\t\t\t\n", b.AccountID, b.Broker, b.Err)
			continue
		}
		for _, p := range b.Positions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%.2f\t%.2f\n",
				b.AccountID, b.Broker, p.Symbol, p.Quantity, p.AvgPrice, p.LastPrice, p.PnL)
		}
	}
	return w.Flush()
}

func schedule(ctx context.Context, c *di.Container, log zerolog.Logger) error {
	s := scheduler.New(ctx, c.Config.Location, log)
	job := scheduler.FuncJob{
		JobName: "daily-sip",
		Fn: func(ctx context.Context) error {
			return runOnce(ctx, c, log)
		},
	}
	if err := s.AddJob(c.Config.RunSchedule, job); err != nil {
		return domain.NewConfigurationError("invalid RUN_SCHEDULE %q: %v", c.Config.RunSchedule, err)
	}

	s.Start()
	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")
	s.Stop()
	return nil
}

func history(ctx context.Context, c *di.Container, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("n", 10, "number of runs to show")
	runID := fs.String("run", "", "show the orders of one run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *runID != "" {
		return runOrders(ctx, c, *runID)
	}

	runs, err := c.LedgerRepo.RecentRuns(ctx, *limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tRUN\tETFS\tAMOUNT\tPLACED\tFAILED\tSKIPPED\tLOGIN FAILURES")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%d\t%d\t%d\t%d\n",
			r.StartedAt.In(c.Config.Location).Format("2006-01-02 15:04"), r.RunID,
			r.InstrumentsSelected, r.TotalFinal, r.OrdersPlaced, r.OrdersFailed,
			r.OrdersSkipped, r.AccountsFailedLogin)
	}
	return w.Flush()
}

func runOrders(ctx context.Context, c *di.Container, runID string) error {
	orders, err := c.LedgerRepo.OrdersForRun(ctx, runID)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return fmt.Errorf("no orders recorded for run %s", runID)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PLACED\tACCOUNT\tBROKER\tROLE\tSYMBOL\tQTY\tRESULT\tORDER ID\tREASON")
	for _, o := range orders {
		result := "failed"
		switch {
		case o.Skipped:
			result = "skipped"
		case o.Success:
			result = "ok"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			o.PlacedAt.In(c.Config.Location).Format("15:04:05"), o.AccountID, o.Broker, o.Role,
			o.TradingSymbol, o.Quantity, result, o.OrderID, o.Reason)
	}
	return w.Flush()
}
