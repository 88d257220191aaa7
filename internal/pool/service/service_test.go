package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"poolpay/internal/audit"
	"poolpay/internal/escrow"
	"poolpay/internal/escrow/mocks"
	"poolpay/internal/pool/models"
	"poolpay/internal/pool/ports"
	"poolpay/internal/pool/store"
	"poolpay/pkg/accesswindow"
	"poolpay/pkg/domain"
	dErrors "poolpay/pkg/domain-errors"
	"poolpay/pkg/testutil"
)

// staticQuerier answers quotes from a fixed table, standing in for a registry.
type staticQuerier struct {
	services map[domain.ServiceID]ports.Quote
}

func (q *staticQuerier) Query(_ context.Context, id domain.ServiceID) (ports.Quote, error) {
	return q.services[id], nil
}

type staticResolver map[domain.RegistryRef]ports.ServiceQuerier

func (r staticResolver) Resolve(ref domain.RegistryRef) (ports.ServiceQuerier, bool) {
	querier, ok := r[ref]
	return querier, ok
}

type PoolServiceSuite struct {
	suite.Suite
	ctrl           *gomock.Controller
	mockTransferer *mocks.MockTransferer
	accounts       *escrow.Accounts
	auditStore     *audit.InMemoryStore
	mainRegistry   *staticQuerier
	resolver       staticResolver
	store          *store.InMemoryStore
	service        *Service
	nowSec         int64
}

func (s *PoolServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockTransferer = mocks.NewMockTransferer(s.ctrl)
	s.nowSec = 1_700_000_000

	s.mainRegistry = &staticQuerier{services: map[domain.ServiceID]ports.Quote{
		1: {Price: 100, Provider: testutil.TestIDs.Provider1, Exists: true},
		2: {Price: 200, Provider: testutil.TestIDs.Provider2, Exists: true},
		3: {Price: 300, Provider: testutil.TestIDs.Provider3, Exists: true},
	}}
	s.resolver = staticResolver{
		"main": s.mainRegistry,
		"partner": &staticQuerier{services: map[domain.ServiceID]ports.Quote{
			1: {Price: 150, Provider: testutil.TestIDs.Provider2, Exists: true},
		}},
	}
	s.service = s.buildService(s.mockTransferer)
}

func (s *PoolServiceSuite) buildService(transferer escrow.Transferer) *Service {
	s.accounts = escrow.NewAccounts("pool/test")
	s.auditStore = audit.NewInMemoryStore()
	s.store = store.New()
	return NewService(
		"pool/test",
		s.store,
		s.accounts,
		transferer,
		s.resolver,
		audit.NewPublisher(s.auditStore),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithClock(func() time.Time { return time.Unix(s.nowSec, 0) }),
	)
}

func (s *PoolServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestPoolServiceSuite(t *testing.T) {
	suite.Run(t, new(PoolServiceSuite))
}

func member(registry domain.RegistryRef, serviceID domain.ServiceID, shares uint64) MemberSpec {
	return MemberSpec{Key: models.MemberKey{Registry: registry, ServiceID: serviceID}, Shares: shares}
}

func (s *PoolServiceSuite) createPool(id domain.PoolID, price uint64, feeBps uint32, duration uint64, members ...MemberSpec) *models.Pool {
	pool, err := s.service.CreatePool(context.Background(), testutil.TestIDs.Operator1, id, price, feeBps, duration, testutil.TestIDs.Affiliate, members)
	s.Require().NoError(err)
	return pool
}

func (s *PoolServiceSuite) TestCreatePoolMaintainsTotalShares() {
	pool := s.createPool(1, 4_000_000, 0, 0,
		member("main", 1, 1),
		member("main", 2, 2),
		member("partner", 1, 1),
	)
	assert.Equal(s.T(), uint64(4), pool.TotalShares)

	events := s.auditStore.ByAction(audit.ActionPoolCreated)
	require.Len(s.T(), events, 1)
	assert.Len(s.T(), s.auditStore.ByAction(audit.ActionMemberAdded), 3)
}

func (s *PoolServiceSuite) TestCreatePoolValidation() {
	ctx := context.Background()
	op := testutil.TestIDs.Operator1
	af := testutil.TestIDs.Affiliate

	_, err := s.service.CreatePool(ctx, domain.Account{}, 1, 100, 0, 0, af, nil)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeUnauthorized), "zero operator")

	_, err = s.service.CreatePool(ctx, op, 1, 0, 0, 0, af, nil)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput), "zero price")

	_, err = s.service.CreatePool(ctx, op, 1, 100, models.FeeDenominator+1, 0, af, nil)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput), "fee above 100%")

	_, err = s.service.CreatePool(ctx, op, 1, 100, 0, models.MaxAccessDuration+1, af, nil)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput), "overlong duration")

	_, err = s.service.CreatePool(ctx, op, 1, 100, 0, 0, af, nil)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput), "empty member list")

	_, err = s.service.CreatePool(ctx, op, 1, 100, 0, 0, af, []MemberSpec{})
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput), "empty member list")

	_, err = s.service.CreatePool(ctx, op, 1, 100, 0, 0, af, []MemberSpec{member("main", 1, 0)})
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput), "zero shares")

	_, err = s.service.CreatePool(ctx, op, 1, 100, 0, 0, af, []MemberSpec{member("main", 1, 1), member("main", 1, 2)})
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput), "duplicate member")

	_, err = s.service.CreatePool(ctx, op, 1, 100, 0, 0, af, []MemberSpec{member("nowhere", 1, 1)})
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput), "unknown registry")

	_, err = s.service.CreatePool(ctx, op, 1, 100, 0, 0, af, []MemberSpec{member("main", 99, 1)})
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound), "unregistered service")

	tooMany := make([]MemberSpec, models.MaxMembers+1)
	for i := range tooMany {
		tooMany[i] = member("main", 1, 1)
		tooMany[i].Key.ServiceID = domain.ServiceID(i + 1)
	}
	_, err = s.service.CreatePool(ctx, op, 1, 100, 0, 0, af, tooMany)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput), "too many members")
}

func (s *PoolServiceSuite) TestCreatePoolDuplicateID() {
	s.createPool(1, 100, 0, 0, member("main", 1, 1))
	_, err := s.service.CreatePool(context.Background(), testutil.TestIDs.Operator1, 1, 100, 0, 0, testutil.TestIDs.Affiliate, []MemberSpec{member("main", 2, 1)})
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *PoolServiceSuite) TestMembershipIsOperatorOnly() {
	ctx := context.Background()
	s.createPool(1, 100, 0, 0, member("main", 1, 1))
	intruder := testutil.TestIDs.Buyer1
	key := models.MemberKey{Registry: "main", ServiceID: 2}

	assert.True(s.T(), dErrors.HasCode(s.service.AddMember(ctx, intruder, 1, key, 1), dErrors.CodeForbidden))
	assert.True(s.T(), dErrors.HasCode(s.service.RemoveMember(ctx, intruder, 1, key), dErrors.CodeForbidden))
	assert.True(s.T(), dErrors.HasCode(s.service.SetShares(ctx, intruder, 1, key, 2), dErrors.CodeForbidden))
	assert.True(s.T(), dErrors.HasCode(s.service.Pause(ctx, intruder, 1), dErrors.CodeForbidden))
}

func (s *PoolServiceSuite) TestAddMemberRespectsCapacity() {
	ctx := context.Background()
	op := testutil.TestIDs.Operator1
	specs := make([]MemberSpec, models.MaxMembers)
	for i := range specs {
		id := domain.ServiceID(i + 1)
		s.mainRegistry.services[id] = ports.Quote{Price: 100, Provider: testutil.TestIDs.Provider1, Exists: true}
		specs[i] = member("main", id, 1)
	}
	s.createPool(1, 100, 0, 0, specs...)

	s.mainRegistry.services[99] = ports.Quote{Price: 100, Provider: testutil.TestIDs.Provider1, Exists: true}
	err := s.service.AddMember(ctx, op, 1, models.MemberKey{Registry: "main", ServiceID: 99}, 1)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *PoolServiceSuite) TestPurchaseSplitsProportionally() {
	// Weights 1:2:1 over a 4,000,000 price split exactly.
	s.createPool(1, 4_000_000, 0, 0,
		member("main", 1, 1),
		member("main", 2, 2),
		member("main", 3, 1),
	)

	receipt, err := s.service.PurchasePool(context.Background(), testutil.TestIDs.Buyer1, 1, 4_000_000)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(4_000_000), receipt.Charged)
	assert.Equal(s.T(), uint64(0), receipt.Refunded)
	assert.Equal(s.T(), uint64(0), receipt.OperatorCut)
	assert.Equal(s.T(), uint64(4_000_000), receipt.Distributed)

	assert.Equal(s.T(), uint64(1_000_000), s.service.Balance(testutil.TestIDs.Provider1))
	assert.Equal(s.T(), uint64(2_000_000), s.service.Balance(testutil.TestIDs.Provider2))
	assert.Equal(s.T(), uint64(1_000_000), s.service.Balance(testutil.TestIDs.Provider3))
	assert.Equal(s.T(), uint64(4_000_000), s.service.TotalHeld())
}

func (s *PoolServiceSuite) TestPurchaseOperatorFee() {
	// 250 bps of 1000 is 25; the remaining 975 splits three ways as 325 each.
	s.createPool(1, 1000, 250, 0,
		member("main", 1, 1),
		member("main", 2, 1),
		member("main", 3, 1),
	)

	receipt, err := s.service.PurchasePool(context.Background(), testutil.TestIDs.Buyer1, 1, 1000)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(25), receipt.OperatorCut)
	assert.Equal(s.T(), uint64(975), receipt.Distributed)

	assert.Equal(s.T(), uint64(325), s.service.Balance(testutil.TestIDs.Provider1))
	assert.Equal(s.T(), uint64(25), s.service.Balance(testutil.TestIDs.Operator1))
	assert.Equal(s.T(), uint64(1000), s.service.TotalHeld())
}

func (s *PoolServiceSuite) TestPurchaseRemainderGoesToFirstMember() {
	// 1001 over three equal weights floors to 333 each; the 2 units of dust
	// land with the first member in admission order so the full price stays
	// accounted for and the operator earns nothing without a fee.
	s.createPool(1, 1001, 0, 0,
		member("main", 1, 1),
		member("main", 2, 1),
		member("main", 3, 1),
	)

	receipt, err := s.service.PurchasePool(context.Background(), testutil.TestIDs.Buyer1, 1, 1001)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(0), receipt.OperatorCut)
	assert.Equal(s.T(), uint64(1001), receipt.Distributed)
	assert.Equal(s.T(), uint64(335), s.service.Balance(testutil.TestIDs.Provider1))
	assert.Equal(s.T(), uint64(333), s.service.Balance(testutil.TestIDs.Provider2))
	assert.Equal(s.T(), uint64(333), s.service.Balance(testutil.TestIDs.Provider3))
	assert.Equal(s.T(), uint64(0), s.service.Balance(testutil.TestIDs.Operator1))
	assert.Equal(s.T(), uint64(1001), s.service.TotalHeld())
}

func (s *PoolServiceSuite) TestPurchaseRefundsOverpayment() {
	s.createPool(1, 1000, 0, 0, member("main", 1, 1))
	buyer := testutil.TestIDs.Buyer1

	s.mockTransferer.EXPECT().
		Transfer(gomock.Any(), buyer, uint64(500)).
		Return(nil)

	receipt, err := s.service.PurchasePool(context.Background(), buyer, 1, 1500)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(500), receipt.Refunded)
	// Members split the price, never the payment.
	assert.Equal(s.T(), uint64(1000), s.service.TotalHeld())
}

func (s *PoolServiceSuite) TestPurchaseFailedRefundCompensates() {
	s.createPool(1, 1000, 0, 86_400, member("main", 1, 1))
	buyer := testutil.TestIDs.Buyer1
	ctx := context.Background()

	s.mockTransferer.EXPECT().
		Transfer(gomock.Any(), buyer, uint64(500)).
		Return(errors.New("rail unavailable"))

	_, err := s.service.PurchasePool(ctx, buyer, 1, 1500)
	require.True(s.T(), dErrors.HasCode(err, dErrors.CodeTransferFailed))

	// No partial settlement: credits and access grant both rolled back.
	assert.Equal(s.T(), uint64(0), s.service.TotalHeld())
	assert.Equal(s.T(), uint64(0), s.service.Balance(testutil.TestIDs.Provider1))
	ok, expiresAt, err := s.service.HasPoolAccess(ctx, buyer, 1)
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)
	assert.Equal(s.T(), uint64(0), expiresAt)
	pool, err := s.service.GetPool(ctx, 1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(0), pool.UsageCount, "usage rolled back")
}

func (s *PoolServiceSuite) TestPurchaseGuards() {
	ctx := context.Background()
	op := testutil.TestIDs.Operator1
	buyer := testutil.TestIDs.Buyer1

	_, err := s.service.PurchasePool(ctx, buyer, 99, 1000)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound), "missing pool")

	// Creation refuses empty pools, so seed one through the store to cover a
	// record whose membership is gone.
	empty, err := models.NewPool(1, op, testutil.TestIDs.Affiliate, 1000, 0, 0, time.Unix(s.nowSec, 0))
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.store.Create(ctx, empty))
	_, err = s.service.PurchasePool(ctx, buyer, 1, 1000)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeEmptyPool), "no members")

	s.createPool(2, 1000, 0, 0, member("main", 1, 1))
	_, err = s.service.PurchasePool(ctx, buyer, 2, 999)
	require.True(s.T(), dErrors.HasCode(err, dErrors.CodeInsufficientPayment))
	assert.Equal(s.T(), uint64(1000), dErrors.ParamOf(err, "required"))
	assert.Equal(s.T(), uint64(999), dErrors.ParamOf(err, "sent"))

	require.NoError(s.T(), s.service.Pause(ctx, op, 2))
	_, err = s.service.PurchasePool(ctx, buyer, 2, 1000)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodePoolPaused), "paused pool")

	require.NoError(s.T(), s.service.Unpause(ctx, op, 2))
	_, err = s.service.PurchasePool(ctx, buyer, 2, 1000)
	assert.NoError(s.T(), err, "unpaused pool sells again")
}

func (s *PoolServiceSuite) TestPurchaseGrantsTimedAccess() {
	ctx := context.Background()
	buyer := testutil.TestIDs.Buyer1
	s.createPool(1, 1000, 0, 86_400, member("main", 1, 1))

	receipt, err := s.service.PurchasePool(ctx, buyer, 1, 1000)
	require.NoError(s.T(), err)
	expiry := uint64(s.nowSec) + 86_400
	assert.Equal(s.T(), expiry, receipt.ExpiresAt)

	ok, _, err := s.service.HasPoolAccess(ctx, buyer, 1)
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)

	// The boundary second is still inside the window.
	s.nowSec = int64(expiry)
	ok, _, _ = s.service.HasPoolAccess(ctx, buyer, 1)
	assert.True(s.T(), ok)

	s.nowSec = int64(expiry) + 1
	ok, _, _ = s.service.HasPoolAccess(ctx, buyer, 1)
	assert.False(s.T(), ok)

	// An account that never purchased has no access.
	ok, _, _ = s.service.HasPoolAccess(ctx, testutil.TestIDs.Buyer2, 1)
	assert.False(s.T(), ok)
}

func (s *PoolServiceSuite) TestEarlyRenewalExtendsFromExpiry() {
	ctx := context.Background()
	buyer := testutil.TestIDs.Buyer1
	s.createPool(1, 1000, 0, 86_400, member("main", 1, 1))

	first, err := s.service.PurchasePool(ctx, buyer, 1, 1000)
	require.NoError(s.T(), err)

	// Renewing halfway through stacks on the unexpired window.
	s.nowSec += 43_200
	second, err := s.service.PurchasePool(ctx, buyer, 1, 1000)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), first.ExpiresAt+86_400, second.ExpiresAt)
}

func (s *PoolServiceSuite) TestZeroDurationGrantsPermanentAccess() {
	ctx := context.Background()
	buyer := testutil.TestIDs.Buyer1
	s.createPool(1, 1000, 0, 0, member("main", 1, 1))

	receipt, err := s.service.PurchasePool(ctx, buyer, 1, 1000)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), accesswindow.Permanent, receipt.ExpiresAt)

	s.nowSec += 1 << 40
	ok, _, err := s.service.HasPoolAccess(ctx, buyer, 1)
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)
}

func (s *PoolServiceSuite) TestPurchaseUsesLiveProvider() {
	ctx := context.Background()
	s.createPool(1, 1000, 0, 0, member("main", 1, 1))

	_, err := s.service.PurchasePool(ctx, testutil.TestIDs.Buyer1, 1, 1000)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(1000), s.service.Balance(testutil.TestIDs.Provider1))

	// The registry reassigns the service; the next purchase pays the new owner.
	s.mainRegistry.services[1] = ports.Quote{Price: 100, Provider: testutil.TestIDs.Provider3, Exists: true}
	_, err = s.service.PurchasePool(ctx, testutil.TestIDs.Buyer2, 1, 1000)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(1000), s.service.Balance(testutil.TestIDs.Provider1))
	assert.Equal(s.T(), uint64(1000), s.service.Balance(testutil.TestIDs.Provider3))
}

func (s *PoolServiceSuite) TestPurchaseFailsWhenMemberServiceVanishes() {
	ctx := context.Background()
	s.createPool(1, 1000, 0, 0, member("main", 1, 1), member("main", 2, 1))

	s.mainRegistry.services[2] = ports.Quote{}
	_, err := s.service.PurchasePool(ctx, testutil.TestIDs.Buyer1, 1, 1000)
	require.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
	assert.Equal(s.T(), uint64(0), s.service.TotalHeld(), "no partial credits")
}

func (s *PoolServiceSuite) TestSameServiceIDAcrossRegistriesSettlesSeparately() {
	ctx := context.Background()
	// Service 1 exists in both registries with different providers.
	s.createPool(1, 1000, 0, 0, member("main", 1, 1), member("partner", 1, 1))

	_, err := s.service.PurchasePool(ctx, testutil.TestIDs.Buyer1, 1, 1000)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(500), s.service.Balance(testutil.TestIDs.Provider1))
	assert.Equal(s.T(), uint64(500), s.service.Balance(testutil.TestIDs.Provider2))
}

func (s *PoolServiceSuite) TestSetSharesReweightsFutureSplits() {
	ctx := context.Background()
	op := testutil.TestIDs.Operator1
	s.createPool(1, 1000, 0, 0, member("main", 1, 1), member("main", 2, 1))

	require.NoError(s.T(), s.service.SetShares(ctx, op, 1, models.MemberKey{Registry: "main", ServiceID: 1}, 3))
	pool, err := s.service.GetPool(ctx, 1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(4), pool.TotalShares)

	_, err = s.service.PurchasePool(ctx, testutil.TestIDs.Buyer1, 1, 1000)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(750), s.service.Balance(testutil.TestIDs.Provider1))
	assert.Equal(s.T(), uint64(250), s.service.Balance(testutil.TestIDs.Provider2))
}

func (s *PoolServiceSuite) TestPurchaseRejectsReentrantRefund() {
	var innerErr error
	reentrant := escrow.TransferFunc(func(ctx context.Context, to domain.Account, amount uint64) error {
		_, innerErr = s.service.PurchasePool(ctx, to, 1, 2000)
		return nil
	})
	s.service = s.buildService(reentrant)
	s.createPool(1, 1000, 0, 0, member("main", 1, 1))

	_, err := s.service.PurchasePool(context.Background(), testutil.TestIDs.Buyer1, 1, 1500)
	require.NoError(s.T(), err)
	require.Error(s.T(), innerErr)
	assert.True(s.T(), dErrors.HasCode(innerErr, dErrors.CodeReentrantCall))
	// Only the outer purchase settled.
	assert.Equal(s.T(), uint64(1000), s.service.TotalHeld())
}

func (s *PoolServiceSuite) TestWithdrawDrainsPoolEarningsOnce() {
	ctx := context.Background()
	s.createPool(1, 1000, 250, 0, member("main", 1, 1))
	_, err := s.service.PurchasePool(ctx, testutil.TestIDs.Buyer1, 1, 1000)
	require.NoError(s.T(), err)

	s.mockTransferer.EXPECT().
		Transfer(gomock.Any(), testutil.TestIDs.Provider1, uint64(975)).
		Return(nil)

	amount, err := s.service.Withdraw(ctx, testutil.TestIDs.Provider1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(975), amount)

	_, err = s.service.Withdraw(ctx, testutil.TestIDs.Provider1)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeZeroBalance))
	assert.Equal(s.T(), uint64(25), s.service.TotalHeld(), "operator cut stays escrowed")
}

func (s *PoolServiceSuite) TestPoolIsQueryableLikeAService() {
	ctx := context.Background()
	s.createPool(7, 5000, 0, 0, member("main", 1, 1))

	price, provider, exists, err := s.service.Query(ctx, 7)
	require.NoError(s.T(), err)
	assert.True(s.T(), exists)
	assert.Equal(s.T(), uint64(5000), price)
	assert.Equal(s.T(), testutil.TestIDs.Operator1, provider)

	_, _, exists, err = s.service.Query(ctx, 8)
	require.NoError(s.T(), err)
	assert.False(s.T(), exists)
}

func (s *PoolServiceSuite) TestGetPoolMembersDetailedIsLenient() {
	ctx := context.Background()
	s.createPool(1, 1000, 0, 0, member("main", 1, 2), member("main", 2, 1))

	// One member's service vanishes; the detail view reports it instead of failing.
	s.mainRegistry.services[2] = ports.Quote{}
	detailed, err := s.service.GetPoolMembersDetailed(ctx, 1)
	require.NoError(s.T(), err)
	require.Len(s.T(), detailed, 2)
	assert.True(s.T(), detailed[0].Exists)
	assert.Equal(s.T(), uint64(100), detailed[0].Price)
	assert.Equal(s.T(), testutil.TestIDs.Provider1, detailed[0].Provider)
	assert.False(s.T(), detailed[1].Exists)
}

func (s *PoolServiceSuite) TestRemoveMemberShrinksSplit() {
	ctx := context.Background()
	op := testutil.TestIDs.Operator1
	s.createPool(1, 1000, 0, 0, member("main", 1, 1), member("main", 2, 1))

	require.NoError(s.T(), s.service.RemoveMember(ctx, op, 1, models.MemberKey{Registry: "main", ServiceID: 2}))
	_, err := s.service.PurchasePool(ctx, testutil.TestIDs.Buyer1, 1, 1000)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(1000), s.service.Balance(testutil.TestIDs.Provider1))
	assert.Equal(s.T(), uint64(0), s.service.Balance(testutil.TestIDs.Provider2))
}

func (s *PoolServiceSuite) TestRemoveMemberKeepsAtLeastOne() {
	ctx := context.Background()
	op := testutil.TestIDs.Operator1
	s.createPool(1, 1000, 0, 0, member("main", 1, 1), member("main", 2, 1))

	require.NoError(s.T(), s.service.RemoveMember(ctx, op, 1, models.MemberKey{Registry: "main", ServiceID: 2}))
	err := s.service.RemoveMember(ctx, op, 1, models.MemberKey{Registry: "main", ServiceID: 1})
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput), "last member stays")

	// The sole member still settles the whole price.
	_, err = s.service.PurchasePool(ctx, testutil.TestIDs.Buyer1, 1, 1000)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(1000), s.service.Balance(testutil.TestIDs.Provider1))
}

func (s *PoolServiceSuite) TestPurchaseCountsUsage() {
	ctx := context.Background()
	s.createPool(1, 1000, 0, 0, member("main", 1, 1))

	first, err := s.service.PurchasePool(ctx, testutil.TestIDs.Buyer1, 1, 1000)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(1), first.UsageCount)

	second, err := s.service.PurchasePool(ctx, testutil.TestIDs.Buyer2, 1, 1000)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(2), second.UsageCount)

	pool, err := s.service.GetPool(ctx, 1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(2), pool.UsageCount)
}

func (s *PoolServiceSuite) TestTotalSharesMatchesMemberSum() {
	ctx := context.Background()
	op := testutil.TestIDs.Operator1
	s.createPool(1, 1000, 0, 0, member("main", 1, 1), member("main", 2, 2), member("main", 3, 3))

	require.NoError(s.T(), s.service.AddMember(ctx, op, 1, models.MemberKey{Registry: "partner", ServiceID: 1}, 5))
	require.NoError(s.T(), s.service.SetShares(ctx, op, 1, models.MemberKey{Registry: "main", ServiceID: 2}, 7))
	require.NoError(s.T(), s.service.RemoveMember(ctx, op, 1, models.MemberKey{Registry: "main", ServiceID: 3}))

	pool, err := s.service.GetPool(ctx, 1)
	require.NoError(s.T(), err)
	detailed, err := s.service.GetPoolMembersDetailed(ctx, 1)
	require.NoError(s.T(), err)
	var sum uint64
	for _, d := range detailed {
		sum += d.Shares
	}
	assert.Equal(s.T(), sum, pool.TotalShares, "maintained delta tracks the recomputed sum")
	assert.Equal(s.T(), uint64(1+7+5), pool.TotalShares)
}
