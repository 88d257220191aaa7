package models

import (
	"time"

	"poolpay/pkg/domain"
	dErrors "poolpay/pkg/domain-errors"
)

// Service is a priced, provider-owned unit of usage tracked by a ledger.
//
// Price and Provider are immutable after registration; UsageCount is the only
// field that moves, and it only moves forward. Records are never deleted.
// Usage is tracked through this counter and the audit trail alone, never
// through per-user storage, so persistent state does not grow with callers.
type Service struct {
	ID         domain.ServiceID
	Price      uint64
	Provider   domain.Account
	UsageCount uint64
	CreatedAt  time.Time
}

// NewService creates a Service with domain invariant checks.
func NewService(id domain.ServiceID, price uint64, provider domain.Account, createdAt time.Time) (*Service, error) {
	if price == 0 {
		return nil, dErrors.NewWithParams(dErrors.CodeInvalidInput, "service price cannot be zero",
			map[string]any{"service_id": uint64(id)})
	}
	if provider.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "service provider required")
	}
	return &Service{
		ID:        id,
		Price:     price,
		Provider:  provider,
		CreatedAt: createdAt,
	}, nil
}

// UseReceipt reports the outcome of a paid use: what was charged to the
// provider's earnings and what was refunded to the caller.
type UseReceipt struct {
	ServiceID  domain.ServiceID
	Provider   domain.Account
	Charged    uint64
	Refunded   uint64
	UsageCount uint64
}
