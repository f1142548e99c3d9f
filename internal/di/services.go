package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/sipcopy/internal/brokers"
	"github.com/aristath/sipcopy/internal/config"
	"github.com/aristath/sipcopy/internal/modules/accounts"
	"github.com/aristath/sipcopy/internal/modules/allocation"
	"github.com/aristath/sipcopy/internal/modules/dispatch"
	"github.com/aristath/sipcopy/internal/modules/ledger"
	"github.com/aristath/sipcopy/internal/modules/marketdata"
	"github.com/aristath/sipcopy/internal/pipeline"
	"github.com/rs/zerolog"
)

// InitializeServices builds the repositories and services on top of the databases
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.LedgerRepo = ledger.NewRepository(container.LedgerDB.Conn(), log)

	container.Brokers = brokers.NewDefaultRegistry(brokers.Options{
		Timeout:    cfg.BrokerCallTimeout,
		RateLimit:  cfg.BrokerRateLimit,
		ShoonyaURL: cfg.Brokers.ShoonyaURL,
		KiteURL:    cfg.Brokers.KiteURL,
		UpstoxURL:  cfg.Brokers.UpstoxURL,
		DhanURL:    cfg.Brokers.DhanURL,
	}, log)

	params := allocation.DefaultParams()
	if cfg.AllocationConfig != "" {
		var err error
		params, err = allocation.LoadParams(cfg.AllocationConfig)
		if err != nil {
			return err
		}
	}
	container.Engine = allocation.NewEngine(params, log)

	container.Loader = accounts.NewLoader(container.Brokers, cfg.Location, log)

	fetcher, err := newFetcher(cfg, log)
	if err != nil {
		return err
	}
	container.Fetcher = fetcher

	container.Runner = pipeline.NewRunner(
		pipeline.Options{
			Paths: pipeline.Paths{
				AccountsFile:    cfg.AccountsFile,
				ReferenceFile:   cfg.ReferenceFile,
				AllocationsFile: cfg.AllocationsFile(),
				ReportsDir:      cfg.ReportsDir(),
			},
			Retry: marketdata.RetryPolicy{Attempts: cfg.FetchAttempts, Delay: cfg.FetchRetryDelay},
			Dispatch: dispatch.Options{
				MaxParallel:       cfg.MaxParallelAccounts,
				VerifyOrderStatus: cfg.VerifyOrderStatus,
			},
			Location: cfg.Location,
		},
		container.Fetcher,
		container.Engine,
		container.Loader,
		container.LedgerRepo,
		log,
	)
	return nil
}

func newFetcher(cfg *config.Config, log zerolog.Logger) (marketdata.Fetcher, error) {
	if cfg.SnapshotFile != "" {
		log.Info().Str("path", cfg.SnapshotFile).Msg("Using snapshot file instead of the exchange download")
		return marketdata.FileFetcher{Path: cfg.SnapshotFile}, nil
	}
	f, err := marketdata.NewNSEFetcher(marketdata.NSEOptions{
		URL:        cfg.SnapshotURL,
		Referer:    cfg.SnapshotReferer,
		ArchiveDir: filepath.Join(cfg.DataDir, "snapshots"),
		Location:   cfg.Location,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot fetcher: %w", err)
	}
	return f, nil
}
