package di

import (
	"github.com/aristath/sipcopy/internal/brokers"
	"github.com/aristath/sipcopy/internal/config"
	"github.com/aristath/sipcopy/internal/database"
	"github.com/aristath/sipcopy/internal/modules/accounts"
	"github.com/aristath/sipcopy/internal/modules/allocation"
	"github.com/aristath/sipcopy/internal/modules/ledger"
	"github.com/aristath/sipcopy/internal/modules/marketdata"
	"github.com/aristath/sipcopy/internal/pipeline"
)

// Container holds every wired dependency
type Container struct {
	Config *config.Config

	// Databases
	LedgerDB *database.DB

	// Repositories
	LedgerRepo *ledger.Repository

	// Services
	Brokers *brokers.Registry
	Engine  *allocation.Engine
	Loader  *accounts.Loader
	Fetcher marketdata.Fetcher
	Runner  *pipeline.Runner
}

// Close releases the databases
func (c *Container) Close() error {
	if c.LedgerDB != nil {
		return c.LedgerDB.Close()
	}
	return nil
}
