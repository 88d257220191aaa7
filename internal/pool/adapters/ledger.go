package adapters

import (
	"context"

	"poolpay/internal/pool/ports"
	"poolpay/pkg/domain"
)

// ServiceRegistry is the quote surface a local registry exposes. Both the
// ledger service and the pool service satisfy it, so pools can bundle plain
// services and other pools alike.
type ServiceRegistry interface {
	Query(ctx context.Context, id domain.ServiceID) (uint64, domain.Account, bool, error)
}

// LocalQuerier adapts an in-process registry to the pool's query port. It
// skips the HTTP hop when a pool composes services its own process hosts.
type LocalQuerier struct {
	registry ServiceRegistry
}

// NewLocalQuerier wraps an in-process registry.
func NewLocalQuerier(registry ServiceRegistry) *LocalQuerier {
	return &LocalQuerier{registry: registry}
}

func (q *LocalQuerier) Query(ctx context.Context, id domain.ServiceID) (ports.Quote, error) {
	price, provider, exists, err := q.registry.Query(ctx, id)
	if err != nil {
		return ports.Quote{}, err
	}
	return ports.Quote{Price: price, Provider: provider, Exists: exists}, nil
}
