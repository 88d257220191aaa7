package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"poolpay/internal/audit"
	"poolpay/internal/escrow"
	"poolpay/internal/pool/metrics"
	"poolpay/internal/pool/models"
	"poolpay/internal/pool/ports"
	"poolpay/internal/platform/tracer"
	"poolpay/pkg/accesswindow"
	"poolpay/pkg/domain"
	dErrors "poolpay/pkg/domain-errors"
	"poolpay/pkg/platform/reentry"
	"poolpay/pkg/platform/sentinel"
	psync "poolpay/pkg/platform/sync"
	"poolpay/pkg/split"
)

// queryConcurrency bounds parallel registry quote lookups per operation.
const queryConcurrency = 8

// Store defines the persistence interface for pools, members, and grants.
// Error Contract:
// - Get, GetMember, and the mutators return sentinel.ErrNotFound for missing records
// - Create and AddMember return sentinel.ErrConflict on duplicates
// - GetGrant returns zero (not an error) when access was never granted
// - TotalShares is maintained by the store on every membership change
type Store interface {
	Create(ctx context.Context, pool *models.Pool) error
	Get(ctx context.Context, id domain.PoolID) (*models.Pool, error)
	Count(ctx context.Context) (uint64, error)
	SetPaused(ctx context.Context, id domain.PoolID, paused bool) error
	AddMember(ctx context.Context, id domain.PoolID, member *models.Member) error
	RemoveMember(ctx context.Context, id domain.PoolID, key models.MemberKey) (*models.Member, error)
	UpdateMemberShares(ctx context.Context, id domain.PoolID, key models.MemberKey, shares uint64) (uint64, error)
	GetMember(ctx context.Context, id domain.PoolID, key models.MemberKey) (*models.Member, error)
	ListMembers(ctx context.Context, id domain.PoolID) ([]*models.Member, error)
	MemberCount(ctx context.Context, id domain.PoolID) (int, error)
	AddUsage(ctx context.Context, id domain.PoolID, delta int64) (uint64, error)
	SetGrant(ctx context.Context, account domain.Account, id domain.PoolID, expiresAt uint64) error
	GetGrant(ctx context.Context, account domain.Account, id domain.PoolID) (uint64, error)
}

// MemberSpec names one member to admit with its weight.
type MemberSpec struct {
	Key    models.MemberKey
	Shares uint64
}

type Option func(*Service)

// Service manages priced bundles of services with proportional revenue
// splits and time-boxed access. A purchase settles everything in one step:
// operator fee, weighted member credits, access grant, and overpayment
// refund. Bookkeeping always finalizes before the outbound refund runs and
// compensates in full if it fails.
type Service struct {
	ref        domain.RegistryRef
	store      Store
	accounts   *escrow.Accounts
	transferer escrow.Transferer
	resolver   ports.RegistryResolver
	auditor    *audit.Publisher
	metrics    *metrics.Metrics
	tracer     tracer.Tracer
	logger     *slog.Logger
	locks      *psync.KeyedMutex
	now        func() time.Time
}

// NewService wires a pool host. The ref names this host in audit records and
// toward other pools composing its pools as services.
func NewService(ref domain.RegistryRef, store Store, accounts *escrow.Accounts, transferer escrow.Transferer, resolver ports.RegistryResolver, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		ref:        ref,
		store:      store,
		accounts:   accounts,
		transferer: transferer,
		resolver:   resolver,
		auditor:    auditor,
		tracer:     tracer.NewNoop(),
		logger:     logger,
		locks:      psync.NewKeyedMutex(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer sets the tracer for the service.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides the time source. For tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// CreatePool creates a pool and admits its initial members. Member services
// are validated against their registries concurrently; any invalid member
// fails the whole creation.
func (s *Service) CreatePool(ctx context.Context, operator domain.Account, id domain.PoolID, price uint64, feeBps uint32, accessDuration uint64, affiliate domain.Account, members []MemberSpec) (*models.Pool, error) {
	pool, err := models.NewPool(id, operator, affiliate, price, feeBps, accessDuration, s.now())
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, dErrors.NewWithParams(dErrors.CodeInvalidInput, "pool needs at least one member",
			map[string]any{"pool_id": uint64(id)})
	}
	if len(members) > models.MaxMembers {
		return nil, dErrors.NewWithParams(dErrors.CodeInvalidInput, "too many members",
			map[string]any{"members": len(members), "max": models.MaxMembers})
	}
	seen := make(map[models.MemberKey]struct{}, len(members))
	for _, spec := range members {
		if _, dup := seen[spec.Key]; dup {
			return nil, dErrors.NewWithParams(dErrors.CodeInvalidInput, "duplicate member",
				map[string]any{"member": spec.Key.String()})
		}
		seen[spec.Key] = struct{}{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(queryConcurrency)
	for _, spec := range members {
		g.Go(func() error {
			return s.validateMember(gctx, spec)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, pool); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.NewWithParams(dErrors.CodeConflict, "pool id already exists",
				map[string]any{"pool_id": uint64(id)})
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store pool")
	}
	for _, spec := range members {
		member := &models.Member{Key: spec.Key, Shares: spec.Shares, AddedAt: s.now()}
		if err := s.store.AddMember(ctx, id, member); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store pool member")
		}
		if s.metrics != nil {
			s.metrics.MembersAdded.Inc()
		}
		s.emit(ctx, audit.Event{
			Action:   audit.ActionMemberAdded,
			Actor:    operator.String(),
			Registry: string(s.ref),
			PoolID:   uint64(id),
			Detail:   map[string]any{"member": spec.Key.String(), "shares": spec.Shares},
		})
	}

	if s.metrics != nil {
		s.metrics.PoolsCreated.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:   audit.ActionPoolCreated,
		Actor:    operator.String(),
		Registry: string(s.ref),
		PoolID:   uint64(id),
		Amount:   price,
		Detail:   map[string]any{"fee_bps": feeBps, "access_duration": accessDuration, "members": len(members)},
	})
	return s.GetPool(ctx, id)
}

// AddMember admits one weighted member. Operator only.
func (s *Service) AddMember(ctx context.Context, caller domain.Account, id domain.PoolID, key models.MemberKey, shares uint64) error {
	lockKey := id.String()
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	pool, err := s.GetPool(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOperator(pool, caller); err != nil {
		return err
	}
	count, err := s.store.MemberCount(ctx, id)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count members")
	}
	if count >= models.MaxMembers {
		return dErrors.NewWithParams(dErrors.CodeInvalidInput, "pool is full",
			map[string]any{"pool_id": uint64(id), "max": models.MaxMembers})
	}
	if err := s.validateMember(ctx, MemberSpec{Key: key, Shares: shares}); err != nil {
		return err
	}

	member := &models.Member{Key: key, Shares: shares, AddedAt: s.now()}
	if err := s.store.AddMember(ctx, id, member); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.NewWithParams(dErrors.CodeConflict, "member already in pool",
				map[string]any{"member": key.String()})
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store pool member")
	}

	if s.metrics != nil {
		s.metrics.MembersAdded.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:   audit.ActionMemberAdded,
		Actor:    caller.String(),
		Registry: string(s.ref),
		PoolID:   uint64(id),
		Detail:   map[string]any{"member": key.String(), "shares": shares},
	})
	return nil
}

// RemoveMember drops a member; its weight leaves the split. Operator only.
// The last member cannot be removed: a pool never goes below one member.
func (s *Service) RemoveMember(ctx context.Context, caller domain.Account, id domain.PoolID, key models.MemberKey) error {
	lockKey := id.String()
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	pool, err := s.GetPool(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOperator(pool, caller); err != nil {
		return err
	}
	count, err := s.store.MemberCount(ctx, id)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count members")
	}
	if count <= 1 {
		return dErrors.NewWithParams(dErrors.CodeInvalidInput, "cannot remove the last member",
			map[string]any{"pool_id": uint64(id), "member": key.String()})
	}

	removed, err := s.store.RemoveMember(ctx, id, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.NewWithParams(dErrors.CodeNotFound, "member not in pool",
				map[string]any{"member": key.String()})
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove pool member")
	}

	if s.metrics != nil {
		s.metrics.MembersRemoved.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:   audit.ActionMemberRemoved,
		Actor:    caller.String(),
		Registry: string(s.ref),
		PoolID:   uint64(id),
		Detail:   map[string]any{"member": key.String(), "shares": removed.Shares},
	})
	return nil
}

// SetShares reweights an existing member. Operator only.
func (s *Service) SetShares(ctx context.Context, caller domain.Account, id domain.PoolID, key models.MemberKey, shares uint64) error {
	if shares == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "shares must be positive")
	}
	lockKey := id.String()
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	pool, err := s.GetPool(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOperator(pool, caller); err != nil {
		return err
	}

	old, err := s.store.UpdateMemberShares(ctx, id, key, shares)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.NewWithParams(dErrors.CodeNotFound, "member not in pool",
				map[string]any{"member": key.String()})
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update member shares")
	}

	s.emit(ctx, audit.Event{
		Action:   audit.ActionSharesUpdated,
		Actor:    caller.String(),
		Registry: string(s.ref),
		PoolID:   uint64(id),
		Detail:   map[string]any{"member": key.String(), "old_shares": old, "new_shares": shares},
	})
	return nil
}

// Pause stops purchases on a pool. Operator only. Withdrawals stay open.
func (s *Service) Pause(ctx context.Context, caller domain.Account, id domain.PoolID) error {
	return s.setPaused(ctx, caller, id, true, audit.ActionPoolPaused)
}

// Unpause reopens purchases on a pool. Operator only.
func (s *Service) Unpause(ctx context.Context, caller domain.Account, id domain.PoolID) error {
	return s.setPaused(ctx, caller, id, false, audit.ActionPoolUnpaused)
}

func (s *Service) setPaused(ctx context.Context, caller domain.Account, id domain.PoolID, paused bool, action audit.Action) error {
	lockKey := id.String()
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	pool, err := s.GetPool(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOperator(pool, caller); err != nil {
		return err
	}
	if err := s.store.SetPaused(ctx, id, paused); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update pool state")
	}

	s.emit(ctx, audit.Event{
		Action:   action,
		Actor:    caller.String(),
		Registry: string(s.ref),
		PoolID:   uint64(id),
	})
	return nil
}

// PurchasePool settles one pool purchase atomically: the operator fee and the
// weighted member credits land in pool escrow, the buyer's access window
// extends, usage is counted, and any overpayment is refunded as the
// unconditionally-last step.
// Providers are re-resolved from their registries at settlement time; a stale
// membership whose service disappeared fails the purchase. A failed refund
// compensates every effect.
func (s *Service) PurchasePool(ctx context.Context, buyer domain.Account, id domain.PoolID, payment uint64) (receipt *models.PurchaseReceipt, err error) {
	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObservePurchaseLatency(time.Since(start).Seconds())
		}
	}()
	ctx, span := s.tracer.Start(ctx, tracer.SpanPoolPurchase,
		tracer.Uint64(tracer.AttrPoolID, uint64(id)),
		tracer.String(tracer.AttrBuyer, buyer.String()),
		tracer.Uint64(tracer.AttrCharged, payment),
	)
	defer func() { span.End(err) }()

	scope := string(s.ref) + "/purchase/" + id.String()
	if reentry.Active(ctx, scope) {
		return nil, dErrors.NewWithParams(dErrors.CodeReentrantCall, "purchase re-entered during refund",
			map[string]any{"pool_id": uint64(id)})
	}
	if buyer.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "buyer account required")
	}

	lockKey := id.String()
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	pool, err := s.GetPool(ctx, id)
	if err != nil {
		return nil, err
	}
	if pool.Paused {
		return nil, dErrors.NewWithParams(dErrors.CodePoolPaused, "pool is paused",
			map[string]any{"pool_id": uint64(id)})
	}
	if payment < pool.Price {
		return nil, dErrors.NewWithParams(dErrors.CodeInsufficientPayment, "payment below pool price",
			map[string]any{"pool_id": uint64(id), "required": pool.Price, "sent": payment})
	}

	members, err := s.store.ListMembers(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list members")
	}
	if len(members) == 0 {
		return nil, dErrors.NewWithParams(dErrors.CodeEmptyPool, "pool has no members",
			map[string]any{"pool_id": uint64(id)})
	}

	quotes, err := s.queryMembers(ctx, members, true)
	if err != nil {
		return nil, err
	}

	// Operator fee first, then the weighted split of the net. The integer
	// dust from flooring goes to the first member in admission order so every
	// unit of the price is accounted for.
	var fee uint64
	if pool.OperatorFeeBps > 0 {
		outs, _, err := split.Calculate(pool.Price, []uint64{uint64(pool.OperatorFeeBps)}, models.FeeDenominator)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "operator fee computation failed")
		}
		fee = outs[0]
	}
	net := pool.Price - fee

	shares := make([]uint64, len(members))
	for i, member := range members {
		shares[i] = member.Shares
	}
	outs, remainder, err := split.Calculate(net, shares, pool.TotalShares)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "revenue split failed")
	}
	outs[0] += remainder

	entries := make([]escrow.Entry, 0, len(members)+1)
	for i := range members {
		if outs[i] > 0 {
			entries = append(entries, escrow.Entry{Account: quotes[i].Provider, Amount: outs[i]})
		}
	}
	if fee > 0 {
		entries = append(entries, escrow.Entry{Account: pool.Operator, Amount: fee})
	}

	prevGrant, err := s.store.GetGrant(ctx, buyer, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read access grant")
	}
	expiresAt := accesswindow.ComputeExpiry(prevGrant, uint64(s.now().Unix()), pool.AccessDuration)

	if err := s.accounts.Credit(entries...); err != nil {
		return nil, err
	}
	if err := s.store.SetGrant(ctx, buyer, id, expiresAt); err != nil {
		if rbErr := s.accounts.Debit(entries...); rbErr != nil {
			s.logger.ErrorContext(ctx, "credit rollback failed after grant failure",
				"pool_id", id.String(), "error", rbErr)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant access")
	}
	usage, err := s.store.AddUsage(ctx, id, 1)
	if err != nil {
		if rbErr := s.store.SetGrant(ctx, buyer, id, prevGrant); rbErr != nil {
			s.logger.ErrorContext(ctx, "grant rollback failed after usage failure",
				"pool_id", id.String(), "error", rbErr)
		}
		if rbErr := s.accounts.Debit(entries...); rbErr != nil {
			s.logger.ErrorContext(ctx, "credit rollback failed after usage failure",
				"pool_id", id.String(), "error", rbErr)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count usage")
	}

	span.AddEvent(tracer.EventAccessGranted, tracer.Uint64("expires_at", expiresAt))

	refund := payment - pool.Price
	if refund > 0 {
		if err := s.transferer.Transfer(reentry.Mark(ctx, scope), buyer, refund); err != nil {
			// Compensate: the purchase must leave no partial effect.
			if rbErr := s.store.SetGrant(ctx, buyer, id, prevGrant); rbErr != nil {
				s.logger.ErrorContext(ctx, "grant rollback failed after refund failure",
					"pool_id", id.String(), "error", rbErr)
			}
			if rbErr := s.accounts.Debit(entries...); rbErr != nil {
				s.logger.ErrorContext(ctx, "credit rollback failed after refund failure",
					"pool_id", id.String(), "error", rbErr)
			}
			if _, rbErr := s.store.AddUsage(ctx, id, -1); rbErr != nil {
				s.logger.ErrorContext(ctx, "usage rollback failed after refund failure",
					"pool_id", id.String(), "error", rbErr)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeTransferFailed, "overpayment refund failed")
		}
		span.AddEvent(tracer.EventRefundIssued, tracer.Uint64("amount", refund))
	}

	if s.metrics != nil {
		s.metrics.Purchases.Inc()
		s.metrics.PurchaseVolume.Add(float64(pool.Price))
		s.metrics.OperatorFees.Add(float64(fee))
		s.metrics.DistributedEarnings.Add(float64(net))
		s.metrics.RefundsIssued.Add(float64(refund))
		s.metrics.EscrowHeld.Set(float64(s.accounts.TotalHeld()))
	}
	for i, member := range members {
		s.emit(ctx, audit.Event{
			Action:       audit.ActionMemberSettled,
			Actor:        buyer.String(),
			Registry:     string(s.ref),
			ServiceID:    uint64(member.Key.ServiceID),
			PoolID:       uint64(id),
			Counterparty: quotes[i].Provider.String(),
			Amount:       outs[i],
			Detail:       map[string]any{"member_registry": member.Key.Registry.String(), "shares": member.Shares},
		})
	}
	s.emit(ctx, audit.Event{
		Action:       audit.ActionPoolPurchased,
		Actor:        buyer.String(),
		Registry:     string(s.ref),
		PoolID:       uint64(id),
		Counterparty: pool.Operator.String(),
		Amount:       pool.Price,
		Detail: map[string]any{
			"refund":       refund,
			"operator_cut": fee,
			"distributed":  net,
			"usage_count":  usage,
			"expires_at":   expiresAt,
		},
	})
	s.emit(ctx, audit.Event{
		Action:   audit.ActionAccessGranted,
		Actor:    buyer.String(),
		Registry: string(s.ref),
		PoolID:   uint64(id),
		Detail:   map[string]any{"expires_at": expiresAt},
	})

	return &models.PurchaseReceipt{
		PoolID:      id,
		Buyer:       buyer,
		Charged:     pool.Price,
		Refunded:    refund,
		OperatorCut: fee,
		Distributed: net,
		UsageCount:  usage,
		ExpiresAt:   expiresAt,
	}, nil
}

// HasPoolAccess reports whether the account's access window is open now, and
// the raw expiry alongside.
func (s *Service) HasPoolAccess(ctx context.Context, account domain.Account, id domain.PoolID) (bool, uint64, error) {
	expiresAt, err := s.store.GetGrant(ctx, account, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, 0, dErrors.NewWithParams(dErrors.CodeNotFound, "pool not found",
				map[string]any{"pool_id": uint64(id)})
		}
		return false, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read access grant")
	}
	return accesswindow.IsValid(expiresAt, uint64(s.now().Unix())), expiresAt, nil
}

// Withdraw pays out the caller's accrued pool earnings.
func (s *Service) Withdraw(ctx context.Context, account domain.Account) (uint64, error) {
	if account.IsZero() {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "account required")
	}
	amount, err := s.accounts.Withdraw(ctx, account, s.transferer)
	if err != nil {
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.Withdrawals.Inc()
		s.metrics.AmountWithdrawn.Add(float64(amount))
		s.metrics.EscrowHeld.Set(float64(s.accounts.TotalHeld()))
	}
	s.emit(ctx, audit.Event{
		Action:   audit.ActionWithdrawal,
		Actor:    account.String(),
		Registry: string(s.ref),
		Amount:   amount,
	})
	return amount, nil
}

// GetPool returns the pool record for id.
func (s *Service) GetPool(ctx context.Context, id domain.PoolID) (*models.Pool, error) {
	pool, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.NewWithParams(dErrors.CodeNotFound, "pool not found",
				map[string]any{"pool_id": uint64(id)})
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pool")
	}
	return pool, nil
}

// GetMember returns one membership record.
func (s *Service) GetMember(ctx context.Context, id domain.PoolID, key models.MemberKey) (*models.Member, error) {
	member, err := s.store.GetMember(ctx, id, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.NewWithParams(dErrors.CodeNotFound, "member not found",
				map[string]any{"pool_id": uint64(id), "member": key.String()})
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load member")
	}
	return member, nil
}

// PoolCount returns the number of pools on this host.
func (s *Service) PoolCount(ctx context.Context) (uint64, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count pools")
	}
	return count, nil
}

// GetPoolMembersDetailed joins the membership with live registry answers.
// Unresolvable members come back with Exists=false; the view is diagnostic
// and must not fail because one registry is down.
func (s *Service) GetPoolMembersDetailed(ctx context.Context, id domain.PoolID) ([]models.MemberQuote, error) {
	members, err := s.store.ListMembers(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.NewWithParams(dErrors.CodeNotFound, "pool not found",
				map[string]any{"pool_id": uint64(id)})
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list members")
	}

	quotes, err := s.queryMembers(ctx, members, false)
	if err != nil {
		return nil, err
	}
	detailed := make([]models.MemberQuote, len(members))
	for i, member := range members {
		detailed[i] = models.MemberQuote{
			Key:      member.Key,
			Shares:   member.Shares,
			Price:    quotes[i].Price,
			Provider: quotes[i].Provider,
			Exists:   quotes[i].Exists,
		}
	}
	return detailed, nil
}

// Balance returns an account's withdrawable earnings in pool escrow.
func (s *Service) Balance(account domain.Account) uint64 {
	return s.accounts.Balance(account)
}

// TotalHeld returns the escrow held by this pool host.
func (s *Service) TotalHeld() uint64 {
	return s.accounts.TotalHeld()
}

// Query lets a pool be composed like a service: its price, its operator as
// the answering provider, and whether it exists.
func (s *Service) Query(ctx context.Context, id domain.ServiceID) (uint64, domain.Account, bool, error) {
	pool, err := s.store.Get(ctx, domain.PoolID(id))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, domain.Account{}, false, nil
		}
		return 0, domain.Account{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "pool query failed")
	}
	return pool.Price, pool.Operator, true, nil
}

// queryMembers resolves a live quote for every member concurrently. When
// strict, a missing registry or vanished service fails the whole call;
// otherwise it reads as Exists=false.
func (s *Service) queryMembers(ctx context.Context, members []*models.Member, strict bool) (quotes []ports.Quote, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanMemberQueries,
		tracer.Int64(tracer.AttrMemberCount, int64(len(members))),
		tracer.Bool(tracer.AttrStrict, strict),
	)
	defer func() { span.End(err) }()

	quotes = make([]ports.Quote, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(queryConcurrency)
	for i, member := range members {
		g.Go(func() error {
			querier, ok := s.resolver.Resolve(member.Key.Registry)
			if !ok {
				if !strict {
					return nil
				}
				return dErrors.NewWithParams(dErrors.CodeInvalidInput, "unknown registry",
					map[string]any{"registry": member.Key.Registry.String()})
			}
			quote, err := querier.Query(gctx, member.Key.ServiceID)
			if err != nil {
				if !strict {
					return nil
				}
				return dErrors.WrapWithParams(err, dErrors.CodeInternal, "registry query failed",
					map[string]any{"member": member.Key.String()})
			}
			if strict && !quote.Exists {
				return dErrors.NewWithParams(dErrors.CodeNotFound, "member service no longer exists",
					map[string]any{"member": member.Key.String()})
			}
			quotes[i] = quote
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return quotes, nil
}

// validateMember checks the weight and asks the owning registry whether the
// service exists before admitting it.
func (s *Service) validateMember(ctx context.Context, spec MemberSpec) error {
	if spec.Shares == 0 {
		return dErrors.NewWithParams(dErrors.CodeInvalidInput, "shares must be positive",
			map[string]any{"member": spec.Key.String()})
	}
	querier, ok := s.resolver.Resolve(spec.Key.Registry)
	if !ok {
		return dErrors.NewWithParams(dErrors.CodeInvalidInput, "unknown registry",
			map[string]any{"registry": spec.Key.Registry.String()})
	}
	quote, err := querier.Query(ctx, spec.Key.ServiceID)
	if err != nil {
		return dErrors.WrapWithParams(err, dErrors.CodeInternal, "registry query failed",
			map[string]any{"member": spec.Key.String()})
	}
	if !quote.Exists {
		return dErrors.NewWithParams(dErrors.CodeNotFound, "service not found in registry",
			map[string]any{"member": spec.Key.String()})
	}
	return nil
}

func requireOperator(pool *models.Pool, caller domain.Account) error {
	if caller != pool.Operator {
		return dErrors.NewWithParams(dErrors.CodeForbidden, "operator only",
			map[string]any{"pool_id": uint64(pool.ID)})
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}
