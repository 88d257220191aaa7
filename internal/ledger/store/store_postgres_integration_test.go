//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"poolpay/internal/ledger/models"
	"poolpay/internal/ledger/store"
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
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "services"))
}

func (s *PostgresStoreSuite) newService(id uint64) *models.Service {
	return &models.Service{
		ID:        domain.ServiceID(id),
		Price:     1000,
		Provider:  testutil.TestIDs.Provider1,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestCreateAndGetRoundtrip() {
	ctx := context.Background()

	svc := s.newService(1)
	s.Require().NoError(s.store.Create(ctx, svc))

	found, err := s.store.Get(ctx, svc.ID)
	s.Require().NoError(err)
	s.Equal(svc.ID, found.ID)
	s.Equal(svc.Price, found.Price)
	s.Equal(svc.Provider, found.Provider)
	s.Equal(uint64(0), found.UsageCount)
}

func (s *PostgresStoreSuite) TestCreateDuplicateConflicts() {
	ctx := context.Background()

	s.Require().NoError(s.store.Create(ctx, s.newService(1)))
	err := s.store.Create(ctx, s.newService(1))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), domain.ServiceID(99))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCount() {
	ctx := context.Background()

	count, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(0), count)

	s.Require().NoError(s.store.Create(ctx, s.newService(1)))
	s.Require().NoError(s.store.Create(ctx, s.newService(2)))

	count, err = s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(2), count)
}

func (s *PostgresStoreSuite) TestAddUsage() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newService(1)))

	usage, err := s.store.AddUsage(ctx, domain.ServiceID(1), 1)
	s.Require().NoError(err)
	s.Equal(uint64(1), usage)

	usage, err = s.store.AddUsage(ctx, domain.ServiceID(1), 2)
	s.Require().NoError(err)
	s.Equal(uint64(3), usage)

	_, err = s.store.AddUsage(ctx, domain.ServiceID(99), 1)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentAddUsage verifies the counter survives concurrent increments
// without losing updates.
func (s *PostgresStoreSuite) TestConcurrentAddUsage() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newService(1)))

	const goroutines = 50
	var wg sync.WaitGroup
	var failures atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.AddUsage(ctx, domain.ServiceID(1), 1); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(0), failures.Load())
	found, err := s.store.Get(ctx, domain.ServiceID(1))
	s.Require().NoError(err)
	s.Equal(uint64(goroutines), found.UsageCount)
}
