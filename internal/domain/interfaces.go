package domain

import "context"

// BrokerAdapter is the uniform trading capability contract implemented once per broker.
//
// An adapter instance owns the session of exactly one account and is never shared.
// Login must succeed before any other call; until then calls return ErrNotLoggedIn.
// Implementations report every failure as an error value and must not panic.
type BrokerAdapter interface {
	// Broker returns the identifier of the backend this adapter talks to
	Broker() BrokerID

	// Login establishes the session for the given credentials
	Login(ctx context.Context, creds Credentials) error

	// PlaceOrder submits a normalized order
	PlaceOrder(ctx context.Context, req OrderRequest) (*BrokerOrderResult, error)

	// GetPositions returns the account's current positions
	GetPositions(ctx context.Context) ([]BrokerPosition, error)

	// GetOrderStatus returns the latest state of a previously placed order
	GetOrderStatus(ctx context.Context, orderID string) (*BrokerOrderStatus, error)
}

// AdapterFactory builds a fresh adapter for one account
type AdapterFactory func() BrokerAdapter
