package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"poolpay/internal/ledger/models"
	"poolpay/pkg/domain"
	"poolpay/pkg/platform/sentinel"
)

// PostgresStore persists service records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed service store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, service *models.Service) error {
	if service == nil {
		return fmt.Errorf("service record is required")
	}
	query := `
		INSERT INTO services (id, price, provider, usage_count, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
		RETURNING id
	`
	var storedID int64
	err := s.db.QueryRowContext(ctx, query,
		int64(service.ID),
		int64(service.Price),
		service.Provider.String(),
		int64(service.UsageCount),
		service.CreatedAt,
	).Scan(&storedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.ServiceID) (*models.Service, error) {
	query := `
		SELECT id, price, provider, usage_count, created_at
		FROM services
		WHERE id = $1
	`
	service, err := scanService(s.db.QueryRowContext(ctx, query, int64(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	return service, nil
}

func (s *PostgresStore) Count(ctx context.Context) (uint64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM services`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count services: %w", err)
	}
	return uint64(count), nil
}

func (s *PostgresStore) AddUsage(ctx context.Context, id domain.ServiceID, delta int64) (uint64, error) {
	query := `
		UPDATE services
		SET usage_count = usage_count + $2
		WHERE id = $1 AND usage_count + $2 >= 0
		RETURNING usage_count
	`
	var usage int64
	err := s.db.QueryRowContext(ctx, query, int64(id), delta).Scan(&usage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("adjust service usage: %w", err)
	}
	return uint64(usage), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanService(row rowScanner) (*models.Service, error) {
	var service models.Service
	var id, price, usage int64
	var provider string
	if err := row.Scan(&id, &price, &provider, &usage, &service.CreatedAt); err != nil {
		return nil, err
	}
	account, err := domain.ParseAccount(provider)
	if err != nil {
		return nil, fmt.Errorf("stored provider is not a valid account: %w", err)
	}
	service.ID = domain.ServiceID(id)
	service.Price = uint64(price)
	service.Provider = account
	service.UsageCount = uint64(usage)
	return &service, nil
}
