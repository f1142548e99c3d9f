package di

import (
	"context"
	"fmt"

	"github.com/aristath/sipcopy/internal/config"
	"github.com/aristath/sipcopy/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the run ledger and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	ledgerDB, err := database.New(database.Config{
		Path:    cfg.LedgerPath(),
		Profile: database.ProfileLedger,
		Name:    database.LedgerName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger database: %w", err)
	}

	ctx := context.Background()
	if err := ledgerDB.Migrate(ctx); err != nil {
		ledgerDB.Close()
		return nil, fmt.Errorf("failed to migrate ledger database: %w", err)
	}
	if err := ledgerDB.HealthCheck(ctx); err != nil {
		ledgerDB.Close()
		return nil, fmt.Errorf("ledger database unhealthy: %w", err)
	}

	log.Debug().Str("path", ledgerDB.Path()).Msg("Ledger database ready")
	return &Container{Config: cfg, LedgerDB: ledgerDB}, nil
}
