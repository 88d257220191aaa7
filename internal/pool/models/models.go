package models

import (
	"time"

	"poolpay/pkg/domain"
	dErrors "poolpay/pkg/domain-errors"
)

const (
	// MaxMembers bounds pool size so a purchase settles a known, small number
	// of member credits in one atomic step.
	MaxMembers = 25

	// FeeDenominator is the basis-point denominator for the operator fee.
	FeeDenominator = 10_000

	// MaxAccessDuration caps non-permanent access windows at roughly 500
	// years, keeping expiry arithmetic far away from uint64 overflow.
	MaxAccessDuration = uint64(500 * 365 * 24 * 60 * 60)
)

// MemberKey identifies a pool member: a service as known to its owning
// registry. The same external service id under two different registry refs is
// two distinct members.
type MemberKey struct {
	Registry  domain.RegistryRef
	ServiceID domain.ServiceID
}

func (k MemberKey) String() string {
	return k.Registry.String() + "/" + k.ServiceID.String()
}

// Member is one weighted participant in a pool's revenue split.
type Member struct {
	Key     MemberKey
	Shares  uint64
	AddedAt time.Time
}

// Pool is a priced bundle of services with a proportional revenue split.
// TotalShares is maintained by the store on every membership change and always
// equals the sum of member shares.
type Pool struct {
	ID             domain.PoolID
	Operator       domain.Account
	Affiliate      domain.Account
	Price          uint64
	OperatorFeeBps uint32
	AccessDuration uint64
	Paused         bool
	TotalShares    uint64
	UsageCount     uint64
	CreatedAt      time.Time
}

// NewPool validates and constructs a pool record.
func NewPool(id domain.PoolID, operator, affiliate domain.Account, price uint64, feeBps uint32, accessDuration uint64, createdAt time.Time) (*Pool, error) {
	if operator.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "operator account required")
	}
	if price == 0 {
		return nil, dErrors.NewWithParams(dErrors.CodeInvalidInput, "pool price must be positive",
			map[string]any{"pool_id": uint64(id)})
	}
	if feeBps > FeeDenominator {
		return nil, dErrors.NewWithParams(dErrors.CodeInvalidInput, "operator fee exceeds 100%",
			map[string]any{"fee_bps": feeBps})
	}
	if accessDuration > MaxAccessDuration {
		return nil, dErrors.NewWithParams(dErrors.CodeInvalidInput, "access duration too long",
			map[string]any{"access_duration": accessDuration, "max": MaxAccessDuration})
	}
	return &Pool{
		ID:             id,
		Operator:       operator,
		Affiliate:      affiliate,
		Price:          price,
		OperatorFeeBps: feeBps,
		AccessDuration: accessDuration,
		CreatedAt:      createdAt,
	}, nil
}

// MemberQuote is a member joined with the live answer from its registry.
type MemberQuote struct {
	Key      MemberKey
	Shares   uint64
	Price    uint64
	Provider domain.Account
	Exists   bool
}

// PurchaseReceipt describes one settled pool purchase.
type PurchaseReceipt struct {
	PoolID      domain.PoolID
	Buyer       domain.Account
	Charged     uint64
	Refunded    uint64
	OperatorCut uint64
	Distributed uint64
	UsageCount  uint64
	ExpiresAt   uint64
}
