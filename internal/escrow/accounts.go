// Package escrow holds pull-payment earnings accounts. Providers and
// operators accrue withdrawable balances here rather than receiving funds
// pushed to them at settlement time; the owning ledger or pool credits
// balances and participants pull them out through Withdraw.
package escrow

import (
	"context"
	"sync"

	"poolpay/pkg/domain"
	dErrors "poolpay/pkg/domain-errors"
	"poolpay/pkg/platform/reentry"
	psync "poolpay/pkg/platform/sync"
)

// Entry is one credit or debit against an account.
type Entry struct {
	Account domain.Account
	Amount  uint64
}

// Accounts is a set of earnings accounts owned by a single ledger or pool
// instance. Invariant: TotalHeld always equals the sum of all balances that
// have not been withdrawn yet (escrow conservation).
type Accounts struct {
	scope string

	mu        sync.Mutex
	balances  map[domain.Account]uint64
	totalHeld uint64

	locks *psync.KeyedMutex
}

// NewAccounts creates an empty account set. The scope names the owning
// instance (for example "ledger/main" or "pool") and namespaces the
// re-entry guard, so a pool withdraw inside a ledger transfer is legal while
// a nested withdraw on the same account in the same instance is not.
func NewAccounts(scope string) *Accounts {
	return &Accounts{
		scope:    scope,
		balances: make(map[domain.Account]uint64),
		locks:    psync.NewKeyedMutex(),
	}
}

// Credit atomically applies the given credits. Either every entry is applied
// or none are. An entry overflowing an account balance fails the whole batch.
func (a *Accounts) Credit(entries ...Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, e := range entries {
		if a.balances[e.Account]+e.Amount < a.balances[e.Account] {
			a.rollbackCredits(entries[:i])
			return dErrors.NewWithParams(dErrors.CodeInvariantViolation, "balance overflow",
				map[string]any{"account": e.Account.String()})
		}
		a.balances[e.Account] += e.Amount
		a.totalHeld += e.Amount
	}
	return nil
}

// Debit atomically reverses previously applied credits. It exists for
// compensating rollbacks when an outbound transfer fails after bookkeeping
// committed; debiting more than a balance holds is an invariant violation.
func (a *Accounts) Debit(entries ...Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, e := range entries {
		if a.balances[e.Account] < e.Amount {
			a.rollbackDebits(entries[:i])
			return dErrors.NewWithParams(dErrors.CodeInvariantViolation, "balance underflow",
				map[string]any{"account": e.Account.String(), "balance": a.balances[e.Account], "debit": e.Amount})
		}
		a.balances[e.Account] -= e.Amount
		a.totalHeld -= e.Amount
		if a.balances[e.Account] == 0 {
			delete(a.balances, e.Account)
		}
	}
	return nil
}

func (a *Accounts) rollbackCredits(applied []Entry) {
	for _, e := range applied {
		a.balances[e.Account] -= e.Amount
		a.totalHeld -= e.Amount
	}
}

func (a *Accounts) rollbackDebits(applied []Entry) {
	for _, e := range applied {
		a.balances[e.Account] += e.Amount
		a.totalHeld += e.Amount
	}
}

// Balance returns the withdrawable balance for an account.
func (a *Accounts) Balance(account domain.Account) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balances[account]
}

// TotalHeld returns the total escrow held across all accounts.
func (a *Accounts) TotalHeld() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalHeld
}

// Withdraw zeroes the account balance and then transfers it out, in that
// order. Zero-before-transfer is the sole defense against a recipient
// re-entering Withdraw during the transfer and draining the balance twice;
// the re-entry marker additionally turns such nested calls into a typed
// error instead of letting them observe intermediate state. A failed
// transfer re-credits the balance so the operation has no partial effect.
func (a *Accounts) Withdraw(ctx context.Context, account domain.Account, t Transferer) (uint64, error) {
	scope := a.scope + "/withdraw/" + account.String()
	if reentry.Active(ctx, scope) {
		return 0, dErrors.NewWithParams(dErrors.CodeReentrantCall, "withdraw re-entered during transfer",
			map[string]any{"account": account.String()})
	}

	key := account.String()
	a.locks.Lock(key)
	defer a.locks.Unlock(key)

	a.mu.Lock()
	amount := a.balances[account]
	if amount == 0 {
		a.mu.Unlock()
		return 0, dErrors.NewWithParams(dErrors.CodeZeroBalance, "no balance to withdraw",
			map[string]any{"account": account.String()})
	}
	delete(a.balances, account)
	a.totalHeld -= amount
	a.mu.Unlock()

	if err := t.Transfer(reentry.Mark(ctx, scope), account, amount); err != nil {
		a.mu.Lock()
		a.balances[account] += amount
		a.totalHeld += amount
		a.mu.Unlock()
		return 0, dErrors.Wrap(err, dErrors.CodeTransferFailed, "withdrawal transfer failed")
	}
	return amount, nil
}
