// Package ports defines the interfaces a pool needs from the registries that
// own its member services.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/ports_mock.go -package=mocks

import (
	"context"

	"poolpay/pkg/domain"
)

// Quote is the live answer a registry gives about one service. Pools never
// cache it; providers and prices are re-resolved on every settlement.
type Quote struct {
	Price    uint64
	Provider domain.Account
	Exists   bool
}

// ServiceQuerier answers quote queries for a single registry.
type ServiceQuerier interface {
	Query(ctx context.Context, id domain.ServiceID) (Quote, error)
}

// RegistryResolver maps a registry ref to the querier that can answer for it.
type RegistryResolver interface {
	Resolve(ref domain.RegistryRef) (ServiceQuerier, bool)
}
