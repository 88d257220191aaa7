package testutil

import (
	"poolpay/pkg/domain"
)

// TestIDs provides convenient pre-generated identities for tests.
// Use these for deterministic test data.
var TestIDs = struct {
	Provider1 domain.Account
	Provider2 domain.Account
	Provider3 domain.Account
	Operator1 domain.Account
	Buyer1    domain.Account
	Buyer2    domain.Account
	Affiliate domain.Account
}{
	Provider1: mustAccount("11"),
	Provider2: mustAccount("22"),
	Provider3: mustAccount("33"),
	Operator1: mustAccount("aa"),
	Buyer1:    mustAccount("b1"),
	Buyer2:    mustAccount("b2"),
	Affiliate: mustAccount("af"),
}

// mustAccount builds a deterministic account by repeating a two-hex-digit tag.
func mustAccount(tag string) domain.Account {
	s := ""
	for i := 0; i < 32; i++ {
		s += tag
	}
	a, err := domain.ParseAccount(s)
	if err != nil {
		panic("testutil: bad account tag " + tag + ": " + err.Error())
	}
	return a
}

// PoolSpec describes a pool under construction in tests.
type PoolSpec struct {
	ID             domain.PoolID
	Operator       domain.Account
	Price          uint64
	AccessDuration uint64
	OperatorFeeBps uint32
	Members        []MemberSpec
}

// MemberSpec is one (registry, service) member with its weight.
type MemberSpec struct {
	Registry  domain.RegistryRef
	ServiceID domain.ServiceID
	Shares    uint64
}

// PoolBuilder provides a fluent interface for building pool creation specs.
type PoolBuilder struct {
	spec PoolSpec
}

// NewPoolBuilder creates a PoolBuilder with sensible defaults: pool 1,
// operator Operator1, price 4,000,000, permanent access, no operator fee.
func NewPoolBuilder() *PoolBuilder {
	return &PoolBuilder{
		spec: PoolSpec{
			ID:       1,
			Operator: TestIDs.Operator1,
			Price:    4_000_000,
		},
	}
}

func (b *PoolBuilder) WithID(id domain.PoolID) *PoolBuilder {
	b.spec.ID = id
	return b
}

func (b *PoolBuilder) WithOperator(operator domain.Account) *PoolBuilder {
	b.spec.Operator = operator
	return b
}

func (b *PoolBuilder) WithPrice(price uint64) *PoolBuilder {
	b.spec.Price = price
	return b
}

func (b *PoolBuilder) WithAccessDuration(seconds uint64) *PoolBuilder {
	b.spec.AccessDuration = seconds
	return b
}

func (b *PoolBuilder) WithOperatorFeeBps(bps uint32) *PoolBuilder {
	b.spec.OperatorFeeBps = bps
	return b
}

func (b *PoolBuilder) WithMember(registry domain.RegistryRef, serviceID domain.ServiceID, shares uint64) *PoolBuilder {
	b.spec.Members = append(b.spec.Members, MemberSpec{Registry: registry, ServiceID: serviceID, Shares: shares})
	return b
}

func (b *PoolBuilder) Build() PoolSpec {
	return b.spec
}
