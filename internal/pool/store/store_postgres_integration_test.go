//go:build integration

package store_test

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"poolpay/internal/pool/models"
	"poolpay/internal/pool/store"
	"poolpay/pkg/domain"
	"poolpay/pkg/platform/sentinel"
	"poolpay/pkg/testutil"
	"poolpay/pkg/testutil/pgtest"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *pgtest.Harness
	store *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = pgtest.Get(s.T())
	s.store = store.NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "access_grants", "pool_members", "pools"))
}

func (s *PostgresStoreSuite) newPool(id uint64) *models.Pool {
	return &models.Pool{
		ID:             domain.PoolID(id),
		Operator:       testutil.TestIDs.Operator1,
		Affiliate:      testutil.TestIDs.Affiliate,
		Price:          4000,
		OperatorFeeBps: 250,
		AccessDuration: 86400,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func memberKey(registry string, serviceID uint64) models.MemberKey {
	return models.MemberKey{
		Registry:  domain.RegistryRef(registry),
		ServiceID: domain.ServiceID(serviceID),
	}
}

func (s *PostgresStoreSuite) TestCreateAndGetRoundtrip() {
	ctx := context.Background()

	pool := s.newPool(1)
	s.Require().NoError(s.store.Create(ctx, pool))

	found, err := s.store.Get(ctx, pool.ID)
	s.Require().NoError(err)
	s.Equal(pool.ID, found.ID)
	s.Equal(pool.Operator, found.Operator)
	s.Equal(pool.Affiliate, found.Affiliate)
	s.Equal(pool.Price, found.Price)
	s.Equal(pool.OperatorFeeBps, found.OperatorFeeBps)
	s.Equal(pool.AccessDuration, found.AccessDuration)
	s.False(found.Paused)
	s.Equal(uint64(0), found.TotalShares)
	s.Equal(uint64(0), found.UsageCount)
}

func (s *PostgresStoreSuite) TestAddUsage() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newPool(1)))
	poolID := domain.PoolID(1)

	usage, err := s.store.AddUsage(ctx, poolID, 1)
	s.Require().NoError(err)
	s.Equal(uint64(1), usage)

	usage, err = s.store.AddUsage(ctx, poolID, 1)
	s.Require().NoError(err)
	s.Equal(uint64(2), usage)

	found, err := s.store.Get(ctx, poolID)
	s.Require().NoError(err)
	s.Equal(uint64(2), found.UsageCount)

	// Negative deltas compensate failed refunds and never go below zero.
	usage, err = s.store.AddUsage(ctx, poolID, -1)
	s.Require().NoError(err)
	s.Equal(uint64(1), usage)
	_, err = s.store.AddUsage(ctx, poolID, -5)
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.AddUsage(ctx, domain.PoolID(99), 1)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestPermanentDurationRoundtrip exercises the NUMERIC(20,0) column with the
// largest possible access duration, which does not fit in BIGINT.
func (s *PostgresStoreSuite) TestPermanentDurationRoundtrip() {
	ctx := context.Background()

	pool := s.newPool(1)
	pool.AccessDuration = math.MaxUint64
	s.Require().NoError(s.store.Create(ctx, pool))

	found, err := s.store.Get(ctx, pool.ID)
	s.Require().NoError(err)
	s.Equal(uint64(math.MaxUint64), found.AccessDuration)
}

func (s *PostgresStoreSuite) TestCreateDuplicateConflicts() {
	ctx := context.Background()

	s.Require().NoError(s.store.Create(ctx, s.newPool(1)))
	s.ErrorIs(s.store.Create(ctx, s.newPool(1)), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestSetPaused() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newPool(1)))

	s.Require().NoError(s.store.SetPaused(ctx, domain.PoolID(1), true))
	found, err := s.store.Get(ctx, domain.PoolID(1))
	s.Require().NoError(err)
	s.True(found.Paused)

	s.ErrorIs(s.store.SetPaused(ctx, domain.PoolID(99), true), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestMembershipLifecycle() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newPool(1)))
	poolID := domain.PoolID(1)

	first := &models.Member{Key: memberKey("local", 10), Shares: 3, AddedAt: time.Now().UTC()}
	second := &models.Member{Key: memberKey("remote", 10), Shares: 1, AddedAt: time.Now().UTC()}
	s.Require().NoError(s.store.AddMember(ctx, poolID, first))
	s.Require().NoError(s.store.AddMember(ctx, poolID, second))

	// Same service id under another registry is a distinct member; the same
	// key again conflicts.
	s.ErrorIs(s.store.AddMember(ctx, poolID, first), sentinel.ErrConflict)

	count, err := s.store.MemberCount(ctx, poolID)
	s.Require().NoError(err)
	s.Equal(2, count)

	members, err := s.store.ListMembers(ctx, poolID)
	s.Require().NoError(err)
	s.Require().Len(members, 2)
	s.Equal(first.Key, members[0].Key, "list preserves admission order")
	s.Equal(second.Key, members[1].Key)

	pool, err := s.store.Get(ctx, poolID)
	s.Require().NoError(err)
	s.Equal(uint64(4), pool.TotalShares)

	old, err := s.store.UpdateMemberShares(ctx, poolID, first.Key, 5)
	s.Require().NoError(err)
	s.Equal(uint64(3), old)

	pool, err = s.store.Get(ctx, poolID)
	s.Require().NoError(err)
	s.Equal(uint64(6), pool.TotalShares)

	removed, err := s.store.RemoveMember(ctx, poolID, first.Key)
	s.Require().NoError(err)
	s.Equal(uint64(5), removed.Shares)

	pool, err = s.store.Get(ctx, poolID)
	s.Require().NoError(err)
	s.Equal(uint64(1), pool.TotalShares)

	_, err = s.store.GetMember(ctx, poolID, first.Key)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestMembershipUnknownPool() {
	ctx := context.Background()
	missing := domain.PoolID(99)
	member := &models.Member{Key: memberKey("local", 1), Shares: 1, AddedAt: time.Now().UTC()}

	s.ErrorIs(s.store.AddMember(ctx, missing, member), sentinel.ErrNotFound)
	_, err := s.store.RemoveMember(ctx, missing, member.Key)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.ListMembers(ctx, missing)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.MemberCount(ctx, missing)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentAddMembers verifies total_shares equals the sum of member
// shares after concurrent admissions take the pool row lock.
func (s *PostgresStoreSuite) TestConcurrentAddMembers() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newPool(1)))
	poolID := domain.PoolID(1)

	const goroutines = 20
	var wg sync.WaitGroup
	var failures atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			member := &models.Member{
				Key:     memberKey("local", uint64(n+1)),
				Shares:  2,
				AddedAt: time.Now().UTC(),
			}
			if err := s.store.AddMember(ctx, poolID, member); err != nil {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(0), failures.Load())
	pool, err := s.store.Get(ctx, poolID)
	s.Require().NoError(err)
	s.Equal(uint64(2*goroutines), pool.TotalShares)
}

func (s *PostgresStoreSuite) TestGrants() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newPool(1)))
	poolID := domain.PoolID(1)
	buyer := testutil.TestIDs.Buyer1

	// No grant yet.
	expiry, err := s.store.GetGrant(ctx, buyer, poolID)
	s.Require().NoError(err)
	s.Equal(uint64(0), expiry)

	s.Require().NoError(s.store.SetGrant(ctx, buyer, poolID, 5000))
	expiry, err = s.store.GetGrant(ctx, buyer, poolID)
	s.Require().NoError(err)
	s.Equal(uint64(5000), expiry)

	// Upsert extends, including to the permanent sentinel.
	s.Require().NoError(s.store.SetGrant(ctx, buyer, poolID, math.MaxUint64))
	expiry, err = s.store.GetGrant(ctx, buyer, poolID)
	s.Require().NoError(err)
	s.Equal(uint64(math.MaxUint64), expiry)

	// Zero clears the grant.
	s.Require().NoError(s.store.SetGrant(ctx, buyer, poolID, 0))
	expiry, err = s.store.GetGrant(ctx, buyer, poolID)
	s.Require().NoError(err)
	s.Equal(uint64(0), expiry)

	s.ErrorIs(s.store.SetGrant(ctx, buyer, domain.PoolID(99), 1), sentinel.ErrNotFound)
	_, err = s.store.GetGrant(ctx, buyer, domain.PoolID(99))
	s.ErrorIs(err, sentinel.ErrNotFound)
}
