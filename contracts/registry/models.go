package registry

// ContractVersion identifies the schema for the cross-registry query contract.
const ContractVersion = "v0.1.0"

// ServiceQuote is the minimal answer a service-owning registry gives about one
// of its services. It is the entire trust boundary a pool relies on when it
// composes services from registries it does not own: price in the smallest
// settlement unit, the current provider account (hex encoded), and whether the
// service exists at all. Consumers must treat the answer as live and re-query
// on every settlement rather than cache it.
type ServiceQuote struct {
	Price    uint64 `json:"price"`
	Provider string `json:"provider"`
	Exists   bool   `json:"exists"`
}
