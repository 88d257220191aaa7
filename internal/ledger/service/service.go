package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"poolpay/internal/audit"
	"poolpay/internal/escrow"
	"poolpay/internal/ledger/metrics"
	"poolpay/internal/ledger/models"
	"poolpay/internal/platform/tracer"
	"poolpay/pkg/domain"
	dErrors "poolpay/pkg/domain-errors"
	"poolpay/pkg/platform/sentinel"
)

// Store defines the persistence interface for service records.
// Error Contract:
// - Get and AddUsage return sentinel.ErrNotFound when no record exists
// - Create returns sentinel.ErrConflict when the id is already registered
// - Other failures are wrapped infrastructure errors
type Store interface {
	Create(ctx context.Context, service *models.Service) error
	Get(ctx context.Context, id domain.ServiceID) (*models.Service, error)
	Count(ctx context.Context) (uint64, error)
	AddUsage(ctx context.Context, id domain.ServiceID, delta int64) (uint64, error)
}

type Option func(*Service)

// Service is the process-wide registry of services plus a pull-payment
// earnings account per provider: the foundational pay-to-use primitive.
// Every settlement it performs finalizes internal bookkeeping before any
// outbound transfer runs, and compensates in full if that transfer fails.
type Service struct {
	ref        domain.RegistryRef
	store      Store
	accounts   *escrow.Accounts
	transferer escrow.Transferer
	auditor    *audit.Publisher
	metrics    *metrics.Metrics
	tracer     tracer.Tracer
	logger     *slog.Logger
	now        func() time.Time
}

// NewService wires a ledger instance. The ref names this registry instance in
// audit records and toward pools composing its services.
func NewService(ref domain.RegistryRef, store Store, accounts *escrow.Accounts, transferer escrow.Transferer, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		ref:        ref,
		store:      store,
		accounts:   accounts,
		transferer: transferer,
		auditor:    auditor,
		tracer:     tracer.NewNoop(),
		logger:     logger,
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

// Ref returns the registry ref this ledger instance answers as.
func (s *Service) Ref() domain.RegistryRef {
	return s.ref
}

// RegisterService creates an immutable service record owned by the provider.
func (s *Service) RegisterService(ctx context.Context, provider domain.Account, id domain.ServiceID, price uint64) (*models.Service, error) {
	if provider.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "provider account required")
	}
	service, err := models.NewService(id, price, provider, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, service); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.NewWithParams(dErrors.CodeConflict, "service id already registered",
				map[string]any{"service_id": uint64(id)})
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store service")
	}

	if s.metrics != nil {
		s.metrics.ServicesRegistered.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:    audit.ActionServiceRegistered,
		Actor:     provider.String(),
		Registry:  string(s.ref),
		ServiceID: uint64(id),
		Amount:    price,
	})
	return service, nil
}

// UseService settles one paid use: exactly the service price is credited to
// the provider's earnings, usage is counted, and any overpayment is refunded
// to the caller as the unconditionally-last step. A failed refund aborts the
// whole use with no partial effect.
func (s *Service) UseService(ctx context.Context, caller domain.Account, id domain.ServiceID, payment uint64) (receipt *models.UseReceipt, err error) {
	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveUseLatency(time.Since(start).Seconds())
		}
	}()
	ctx, span := s.tracer.Start(ctx, tracer.SpanServiceUse,
		tracer.Uint64(tracer.AttrServiceID, uint64(id)),
		tracer.Uint64(tracer.AttrCharged, payment),
	)
	defer func() { span.End(err) }()

	service, err := s.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment < service.Price {
		return nil, dErrors.NewWithParams(dErrors.CodeInsufficientPayment, "payment below service price",
			map[string]any{"service_id": uint64(id), "required": service.Price, "sent": payment})
	}

	usage, err := s.store.AddUsage(ctx, id, 1)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count usage")
	}
	if err := s.accounts.Credit(escrow.Entry{Account: service.Provider, Amount: service.Price}); err != nil {
		if _, rbErr := s.store.AddUsage(ctx, id, -1); rbErr != nil {
			s.logger.ErrorContext(ctx, "usage rollback failed after credit failure",
				"service_id", id.String(), "error", rbErr)
		}
		return nil, err
	}

	refund := payment - service.Price
	if refund > 0 {
		if err := s.transferer.Transfer(ctx, caller, refund); err != nil {
			// Compensate: the settlement must leave no partial effect.
			if rbErr := s.accounts.Debit(escrow.Entry{Account: service.Provider, Amount: service.Price}); rbErr != nil {
				s.logger.ErrorContext(ctx, "credit rollback failed after refund failure",
					"service_id", id.String(), "error", rbErr)
			}
			if _, rbErr := s.store.AddUsage(ctx, id, -1); rbErr != nil {
				s.logger.ErrorContext(ctx, "usage rollback failed after refund failure",
					"service_id", id.String(), "error", rbErr)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeTransferFailed, "overpayment refund failed")
		}
	}

	if s.metrics != nil {
		s.metrics.ServiceUses.Inc()
		s.metrics.EarningsCredited.Add(float64(service.Price))
		s.metrics.RefundsIssued.Add(float64(refund))
		s.metrics.EscrowHeld.Set(float64(s.accounts.TotalHeld()))
	}
	s.emit(ctx, audit.Event{
		Action:       audit.ActionServiceUsed,
		Actor:        caller.String(),
		Registry:     string(s.ref),
		ServiceID:    uint64(id),
		Counterparty: service.Provider.String(),
		Amount:       service.Price,
		Detail:       map[string]any{"refund": refund, "usage_count": usage},
	})

	return &models.UseReceipt{
		ServiceID:  id,
		Provider:   service.Provider,
		Charged:    service.Price,
		Refunded:   refund,
		UsageCount: usage,
	}, nil
}

// Withdraw pays out the caller's accrued earnings. The balance is zeroed
// before the outbound transfer runs; see escrow.Accounts.Withdraw.
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

// GetService returns the service record for id.
func (s *Service) GetService(ctx context.Context, id domain.ServiceID) (*models.Service, error) {
	service, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.NewWithParams(dErrors.CodeNotFound, "service not found",
				map[string]any{"service_id": uint64(id)})
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load service")
	}
	return service, nil
}

// ServiceCount returns the number of registered services.
func (s *Service) ServiceCount(ctx context.Context) (uint64, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count services")
	}
	return count, nil
}

// Balance returns an account's withdrawable earnings in this ledger.
func (s *Service) Balance(account domain.Account) uint64 {
	return s.accounts.Balance(account)
}

// TotalHeld returns the escrow held by this ledger instance.
func (s *Service) TotalHeld() uint64 {
	return s.accounts.TotalHeld()
}

// Query answers the minimal cross-registry question about a service: its
// price, its current provider, and whether it exists. Pools treat the answer
// as live and call back on every settlement.
func (s *Service) Query(ctx context.Context, id domain.ServiceID) (uint64, domain.Account, bool, error) {
	service, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, domain.Account{}, false, nil
		}
		return 0, domain.Account{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "registry query failed")
	}
	return service.Price, service.Provider, true, nil
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
