// Package brokers holds the explicit registration table of broker adapters.
package brokers

import (
	"sort"
	"time"

	"github.com/aristath/sipcopy/internal/clients/dhan"
	"github.com/aristath/sipcopy/internal/clients/kite"
	"github.com/aristath/sipcopy/internal/clients/mstock"
	"github.com/aristath/sipcopy/internal/clients/rest"
	"github.com/aristath/sipcopy/internal/clients/shoonya"
	"github.com/aristath/sipcopy/internal/clients/upstox"
	"github.com/aristath/sipcopy/internal/domain"
	"github.com/rs/zerolog"
)

// Entry describes one supported broker
type Entry struct {
	ID       domain.BrokerID
	Required []domain.CredentialField
	New      domain.AdapterFactory
}

// Options configures the adapters built by the default registry
type Options struct {
	Timeout    time.Duration
	RateLimit  float64
	ShoonyaURL string
	KiteURL    string
	UpstoxURL  string
	DhanURL    string
}

// Registry maps broker identifiers (and their aliases) to adapter constructors
type Registry struct {
	entries map[domain.BrokerID]Entry
	aliases map[domain.BrokerID]domain.BrokerID
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[domain.BrokerID]Entry),
		aliases: make(map[domain.BrokerID]domain.BrokerID),
	}
}

// NewDefaultRegistry registers every supported broker
func NewDefaultRegistry(opts Options, log zerolog.Logger) *Registry {
	restOpts := func(baseURL string) rest.Options {
		return rest.Options{BaseURL: baseURL, Timeout: opts.Timeout, RateLimit: opts.RateLimit}
	}

	r := NewRegistry()
	r.Register(domain.BrokerFinvasia, shoonya.RequiredFields, func() domain.BrokerAdapter {
		return shoonya.NewAdapter(restOpts(opts.ShoonyaURL), log)
	})
	r.Register(domain.BrokerZerodha, kite.RequiredFields, func() domain.BrokerAdapter {
		return kite.NewAdapter(restOpts(opts.KiteURL), log)
	})
	r.Register(domain.BrokerUpstox, upstox.RequiredFields, func() domain.BrokerAdapter {
		return upstox.NewAdapter(restOpts(opts.UpstoxURL), log)
	})
	r.Register(domain.BrokerDhan, dhan.RequiredFields, func() domain.BrokerAdapter {
		return dhan.NewAdapter(restOpts(opts.DhanURL), log)
	})
	r.Register(domain.BrokerMstock, mstock.RequiredFields, func() domain.BrokerAdapter {
		return mstock.NewAdapter(log)
	})

	r.Alias("SHOONYA", domain.BrokerFinvasia)
	r.Alias("KITE", domain.BrokerZerodha)

	return r
}

// Register adds or replaces a broker
func (r *Registry) Register(id domain.BrokerID, required []domain.CredentialField, factory domain.AdapterFactory) {
	r.entries[id] = Entry{ID: id, Required: required, New: factory}
}

// Alias makes name resolve to an already registered broker
func (r *Registry) Alias(name string, target domain.BrokerID) {
	r.aliases[domain.NormalizeBrokerID(name)] = target
}

// Resolve looks a broker up by name, case-insensitively.
// Unknown names are a configuration error.
func (r *Registry) Resolve(name string) (Entry, error) {
	id := domain.NormalizeBrokerID(name)
	if target, ok := r.aliases[id]; ok {
		id = target
	}

	entry, ok := r.entries[id]
	if !ok {
		return Entry{}, domain.NewConfigurationError("unsupported broker: %q (supported: %v)", name, r.Supported())
	}
	return entry, nil
}

// Supported lists the canonical broker identifiers in sorted order
func (r *Registry) Supported() []domain.BrokerID {
	ids := make([]domain.BrokerID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
