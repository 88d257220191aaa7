package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"poolpay/internal/pool/models"
	"poolpay/pkg/domain"
	"poolpay/pkg/platform/sentinel"
)

// PostgresStore persists pools, memberships, and access grants in PostgreSQL.
// Membership mutations adjust pools.total_shares in the same transaction so
// the sum-of-shares invariant survives crashes between statements.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed pool store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, pool *models.Pool) error {
	if pool == nil {
		return fmt.Errorf("pool record is required")
	}
	query := `
		INSERT INTO pools (id, operator, affiliate, price, operator_fee_bps, access_duration, paused, total_shares, usage_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
		RETURNING id
	`
	var storedID int64
	err := s.db.QueryRowContext(ctx, query,
		int64(pool.ID),
		pool.Operator.String(),
		pool.Affiliate.String(),
		int64(pool.Price),
		int64(pool.OperatorFeeBps),
		strconv.FormatUint(pool.AccessDuration, 10),
		pool.Paused,
		int64(pool.TotalShares),
		int64(pool.UsageCount),
		pool.CreatedAt,
	).Scan(&storedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create pool: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.PoolID) (*models.Pool, error) {
	query := `
		SELECT id, operator, affiliate, price, operator_fee_bps, access_duration::text, paused, total_shares, usage_count, created_at
		FROM pools
		WHERE id = $1
	`
	pool, err := scanPool(s.db.QueryRowContext(ctx, query, int64(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get pool: %w", err)
	}
	return pool, nil
}

func (s *PostgresStore) Count(ctx context.Context) (uint64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pools`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pools: %w", err)
	}
	return uint64(count), nil
}

func (s *PostgresStore) SetPaused(ctx context.Context, id domain.PoolID, paused bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE pools SET paused = $2 WHERE id = $1`, int64(id), paused)
	if err != nil {
		return fmt.Errorf("set pool paused: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set pool paused: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AddMember(ctx context.Context, id domain.PoolID, member *models.Member) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockPool(ctx, tx, id); err != nil {
			return err
		}
		query := `
			INSERT INTO pool_members (pool_id, registry, service_id, shares, added_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (pool_id, registry, service_id) DO NOTHING
			RETURNING pool_id
		`
		var storedID int64
		err := tx.QueryRowContext(ctx, query,
			int64(id),
			member.Key.Registry.String(),
			int64(member.Key.ServiceID),
			int64(member.Shares),
			member.AddedAt,
		).Scan(&storedID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("add pool member: %w", err)
		}
		return adjustTotalShares(ctx, tx, id, int64(member.Shares))
	})
}

func (s *PostgresStore) RemoveMember(ctx context.Context, id domain.PoolID, key models.MemberKey) (*models.Member, error) {
	var removed *models.Member
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockPool(ctx, tx, id); err != nil {
			return err
		}
		query := `
			DELETE FROM pool_members
			WHERE pool_id = $1 AND registry = $2 AND service_id = $3
			RETURNING shares, added_at
		`
		member := models.Member{Key: key}
		var shares int64
		err := tx.QueryRowContext(ctx, query, int64(id), key.Registry.String(), int64(key.ServiceID)).
			Scan(&shares, &member.AddedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("remove pool member: %w", err)
		}
		member.Shares = uint64(shares)
		removed = &member
		return adjustTotalShares(ctx, tx, id, -shares)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (s *PostgresStore) UpdateMemberShares(ctx context.Context, id domain.PoolID, key models.MemberKey, shares uint64) (uint64, error) {
	var old uint64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockPool(ctx, tx, id); err != nil {
			return err
		}
		query := `
			UPDATE pool_members AS pm
			SET shares = $4
			FROM (SELECT shares FROM pool_members WHERE pool_id = $1 AND registry = $2 AND service_id = $3 FOR UPDATE) AS prev
			WHERE pm.pool_id = $1 AND pm.registry = $2 AND pm.service_id = $3
			RETURNING prev.shares
		`
		var prev int64
		err := tx.QueryRowContext(ctx, query, int64(id), key.Registry.String(), int64(key.ServiceID), int64(shares)).
			Scan(&prev)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("update member shares: %w", err)
		}
		old = uint64(prev)
		return adjustTotalShares(ctx, tx, id, int64(shares)-prev)
	})
	if err != nil {
		return 0, err
	}
	return old, nil
}

func (s *PostgresStore) GetMember(ctx context.Context, id domain.PoolID, key models.MemberKey) (*models.Member, error) {
	query := `
		SELECT shares, added_at
		FROM pool_members
		WHERE pool_id = $1 AND registry = $2 AND service_id = $3
	`
	member := models.Member{Key: key}
	var shares int64
	err := s.db.QueryRowContext(ctx, query, int64(id), key.Registry.String(), int64(key.ServiceID)).
		Scan(&shares, &member.AddedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get pool member: %w", err)
	}
	member.Shares = uint64(shares)
	return &member, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, id domain.PoolID) ([]*models.Member, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	query := `
		SELECT registry, service_id, shares, added_at
		FROM pool_members
		WHERE pool_id = $1
		ORDER BY position ASC
	`
	rows, err := s.db.QueryContext(ctx, query, int64(id))
	if err != nil {
		return nil, fmt.Errorf("list pool members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		var member models.Member
		var registry string
		var serviceID, shares int64
		if err := rows.Scan(&registry, &serviceID, &shares, &member.AddedAt); err != nil {
			return nil, fmt.Errorf("scan pool member: %w", err)
		}
		member.Key = models.MemberKey{Registry: domain.RegistryRef(registry), ServiceID: domain.ServiceID(serviceID)}
		member.Shares = uint64(shares)
		members = append(members, &member)
	}
	return members, rows.Err()
}

// AddUsage adjusts a pool's settled-purchase counter by delta and returns the
// new value.
func (s *PostgresStore) AddUsage(ctx context.Context, id domain.PoolID, delta int64) (uint64, error) {
	query := `
		UPDATE pools
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
		return 0, fmt.Errorf("adjust pool usage: %w", err)
	}
	return uint64(usage), nil
}

func (s *PostgresStore) MemberCount(ctx context.Context, id domain.PoolID) (int, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pool_members WHERE pool_id = $1`, int64(id)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pool members: %w", err)
	}
	return count, nil
}

// SetGrant upserts the access window expiry for (account, pool). Expiry is
// stored as a decimal string because the permanent sentinel exceeds BIGINT.
func (s *PostgresStore) SetGrant(ctx context.Context, account domain.Account, id domain.PoolID, expiresAt uint64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if expiresAt == 0 {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM access_grants WHERE account = $1 AND pool_id = $2`,
			account.String(), int64(id))
		if err != nil {
			return fmt.Errorf("clear access grant: %w", err)
		}
		return nil
	}
	query := `
		INSERT INTO access_grants (account, pool_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account, pool_id) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`
	_, err := s.db.ExecContext(ctx, query, account.String(), int64(id), strconv.FormatUint(expiresAt, 10))
	if err != nil {
		return fmt.Errorf("set access grant: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGrant(ctx context.Context, account domain.Account, id domain.PoolID) (uint64, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return 0, err
	}
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT expires_at::text FROM access_grants WHERE account = $1 AND pool_id = $2`,
		account.String(), int64(id)).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get access grant: %w", err)
	}
	expiresAt, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stored grant expiry is not a uint64: %w", err)
	}
	return expiresAt, nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// lockPool takes a row lock on the pool so concurrent membership changes
// serialize their total_shares adjustments.
func lockPool(ctx context.Context, tx *sql.Tx, id domain.PoolID) error {
	var poolID int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM pools WHERE id = $1 FOR UPDATE`, int64(id)).Scan(&poolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("lock pool: %w", err)
	}
	return nil
}

func adjustTotalShares(ctx context.Context, tx *sql.Tx, id domain.PoolID, delta int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE pools SET total_shares = total_shares + $2 WHERE id = $1`,
		int64(id), delta)
	if err != nil {
		return fmt.Errorf("adjust total shares: %w", err)
	}
	return nil
}

type poolScanner interface {
	Scan(dest ...any) error
}

func scanPool(row poolScanner) (*models.Pool, error) {
	var pool models.Pool
	var id, price, feeBps, totalShares, usageCount int64
	var operator, affiliate, accessDuration string
	if err := row.Scan(&id, &operator, &affiliate, &price, &feeBps, &accessDuration, &pool.Paused, &totalShares, &usageCount, &pool.CreatedAt); err != nil {
		return nil, err
	}
	operatorAccount, err := domain.ParseAccount(operator)
	if err != nil {
		return nil, fmt.Errorf("stored operator is not a valid account: %w", err)
	}
	affiliateAccount, err := domain.ParseAccount(affiliate)
	if err != nil {
		return nil, fmt.Errorf("stored affiliate is not a valid account: %w", err)
	}
	duration, err := strconv.ParseUint(accessDuration, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("stored access duration is not a uint64: %w", err)
	}
	pool.ID = domain.PoolID(id)
	pool.Operator = operatorAccount
	pool.Affiliate = affiliateAccount
	pool.Price = uint64(price)
	pool.OperatorFeeBps = uint32(feeBps)
	pool.AccessDuration = duration
	pool.TotalShares = uint64(totalShares)
	pool.UsageCount = uint64(usageCount)
	return &pool, nil
}
