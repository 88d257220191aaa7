package adapters

import (
	"sync"

	"poolpay/internal/pool/ports"
	"poolpay/pkg/domain"
)

// StaticResolver maps registry refs to queriers from a fixed wiring table.
type StaticResolver struct {
	mu       sync.RWMutex
	queriers map[domain.RegistryRef]ports.ServiceQuerier
}

// NewStaticResolver builds a resolver over the given wiring table.
func NewStaticResolver(queriers map[domain.RegistryRef]ports.ServiceQuerier) *StaticResolver {
	table := make(map[domain.RegistryRef]ports.ServiceQuerier, len(queriers))
	for ref, querier := range queriers {
		table[ref] = querier
	}
	return &StaticResolver{queriers: table}
}

// Register adds or replaces the querier for a registry ref.
func (r *StaticResolver) Register(ref domain.RegistryRef, querier ports.ServiceQuerier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queriers[ref] = querier
}

func (r *StaticResolver) Resolve(ref domain.RegistryRef) (ports.ServiceQuerier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	querier, ok := r.queriers[ref]
	return querier, ok
}
