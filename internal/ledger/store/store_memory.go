package store

import (
	"context"
	"sync"

	"poolpay/internal/ledger/models"
	"poolpay/pkg/domain"
	"poolpay/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound when the requested service does not exist
// - Return sentinel.ErrConflict when creating an already-registered id
// - Return nil for successful operations

// InMemoryStore keeps service records in memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	services map[domain.ServiceID]*models.Service
}

// New constructs an empty in-memory service store.
func New() *InMemoryStore {
	return &InMemoryStore{services: make(map[domain.ServiceID]*models.Service)}
}

func (s *InMemoryStore) Create(_ context.Context, service *models.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[service.ID]; ok {
		return sentinel.ErrConflict
	}
	copyService := *service
	s.services[service.ID] = &copyService
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.ServiceID) (*models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	service, ok := s.services[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyService := *service
	return &copyService, nil
}

func (s *InMemoryStore) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.services)), nil
}

// AddUsage adjusts the usage counter by delta and returns the new value.
// Negative deltas exist only for compensating rollbacks of failed refunds.
func (s *InMemoryStore) AddUsage(_ context.Context, id domain.ServiceID, delta int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	service, ok := s.services[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	if delta < 0 && service.UsageCount < uint64(-delta) {
		return 0, sentinel.ErrInvalidState
	}
	if delta >= 0 {
		service.UsageCount += uint64(delta)
	} else {
		service.UsageCount -= uint64(-delta)
	}
	return service.UsageCount, nil
}
