package store

import (
	"context"
	"sync"

	"poolpay/internal/pool/models"
	"poolpay/pkg/domain"
	"poolpay/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound when the pool or member does not exist
// - Return sentinel.ErrConflict when creating an already-existing pool or member
// - Return nil for successful operations
//
// TotalShares is adjusted inside the store lock on every membership change, so
// it always equals the sum of member shares.

type grantKey struct {
	account domain.Account
	poolID  domain.PoolID
}

type poolRecord struct {
	pool    models.Pool
	members map[models.MemberKey]*models.Member
	order   []models.MemberKey
}

// InMemoryStore keeps pools, memberships, and access grants in memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	pools  map[domain.PoolID]*poolRecord
	grants map[grantKey]uint64
}

// New constructs an empty in-memory pool store.
func New() *InMemoryStore {
	return &InMemoryStore{
		pools:  make(map[domain.PoolID]*poolRecord),
		grants: make(map[grantKey]uint64),
	}
}

func (s *InMemoryStore) Create(_ context.Context, pool *models.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[pool.ID]; ok {
		return sentinel.ErrConflict
	}
	record := &poolRecord{
		pool:    *pool,
		members: make(map[models.MemberKey]*models.Member),
	}
	s.pools[pool.ID] = record
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.PoolID) (*models.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.pools[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	pool := record.pool
	return &pool, nil
}

func (s *InMemoryStore) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.pools)), nil
}

// SetPaused flips the purchase gate on a pool.
func (s *InMemoryStore) SetPaused(_ context.Context, id domain.PoolID, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.pools[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	record.pool.Paused = paused
	return nil
}

func (s *InMemoryStore) AddMember(_ context.Context, id domain.PoolID, member *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.pools[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := record.members[member.Key]; ok {
		return sentinel.ErrConflict
	}
	copyMember := *member
	record.members[member.Key] = &copyMember
	record.order = append(record.order, member.Key)
	record.pool.TotalShares += member.Shares
	return nil
}

func (s *InMemoryStore) RemoveMember(_ context.Context, id domain.PoolID, key models.MemberKey) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.pools[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	member, ok := record.members[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(record.members, key)
	for i, k := range record.order {
		if k == key {
			record.order = append(record.order[:i], record.order[i+1:]...)
			break
		}
	}
	record.pool.TotalShares -= member.Shares
	return member, nil
}

// UpdateMemberShares replaces a member's weight and returns the previous one.
func (s *InMemoryStore) UpdateMemberShares(_ context.Context, id domain.PoolID, key models.MemberKey, shares uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.pools[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	member, ok := record.members[key]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	old := member.Shares
	member.Shares = shares
	record.pool.TotalShares = record.pool.TotalShares - old + shares
	return old, nil
}

func (s *InMemoryStore) GetMember(_ context.Context, id domain.PoolID, key models.MemberKey) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.pools[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	member, ok := record.members[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyMember := *member
	return &copyMember, nil
}

// ListMembers returns members in the order they were added, which fixes the
// distribution order for the remainder-absorbing split.
func (s *InMemoryStore) ListMembers(_ context.Context, id domain.PoolID) ([]*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.pools[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	members := make([]*models.Member, 0, len(record.order))
	for _, key := range record.order {
		copyMember := *record.members[key]
		members = append(members, &copyMember)
	}
	return members, nil
}

func (s *InMemoryStore) MemberCount(_ context.Context, id domain.PoolID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.pools[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return len(record.members), nil
}

// AddUsage adjusts a pool's settled-purchase counter by delta and returns the
// new value. Negative deltas exist only for compensating rollbacks of failed
// refunds.
func (s *InMemoryStore) AddUsage(_ context.Context, id domain.PoolID, delta int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.pools[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	if delta < 0 && record.pool.UsageCount < uint64(-delta) {
		return 0, sentinel.ErrInvalidState
	}
	if delta >= 0 {
		record.pool.UsageCount += uint64(delta)
	} else {
		record.pool.UsageCount -= uint64(-delta)
	}
	return record.pool.UsageCount, nil
}

// SetGrant records an access window expiry for (account, pool).
func (s *InMemoryStore) SetGrant(_ context.Context, account domain.Account, id domain.PoolID, expiresAt uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[id]; !ok {
		return sentinel.ErrNotFound
	}
	key := grantKey{account: account, poolID: id}
	if expiresAt == 0 {
		delete(s.grants, key)
		return nil
	}
	s.grants[key] = expiresAt
	return nil
}

// GetGrant returns the stored expiry, or zero when access was never granted.
func (s *InMemoryStore) GetGrant(_ context.Context, account domain.Account, id domain.PoolID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.pools[id]; !ok {
		return 0, sentinel.ErrNotFound
	}
	return s.grants[grantKey{account: account, poolID: id}], nil
}
