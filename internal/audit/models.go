package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names a state-changing settlement operation.
type Action string

const (
	ActionServiceRegistered Action = "service_registered"
	ActionServiceUsed       Action = "service_used"
	ActionPoolCreated       Action = "pool_created"
	ActionMemberAdded       Action = "member_added"
	ActionMemberRemoved     Action = "member_removed"
	ActionSharesUpdated     Action = "shares_updated"
	ActionPoolPaused        Action = "pool_paused"
	ActionPoolUnpaused      Action = "pool_unpaused"
	ActionPoolPurchased     Action = "pool_purchased"
	ActionMemberSettled     Action = "member_settled"
	ActionAccessGranted     Action = "access_granted"
	ActionWithdrawal        Action = "withdrawal"
)

// Event is an immutable, append-only observability record emitted after each
// committed mutation, in commit order. Keep it transport-agnostic so stores
// and sinks can fan out. Events carry no behavioral contract beyond being
// eventually observable in commit order.
type Event struct {
	ID        uuid.UUID
	Timestamp time.Time
	Action    Action

	// Actor is the account that invoked the operation (hex encoded).
	Actor string

	// Subject coordinates. Zero values mean "not applicable".
	Registry  string
	ServiceID uint64
	PoolID    uint64

	// Counterparty is the account credited or paid, where one exists.
	Counterparty string

	// Amount is the settled value in the smallest settlement unit.
	Amount uint64

	// Detail carries event-specific context (shares, expiry, affiliate).
	Detail map[string]any
}
