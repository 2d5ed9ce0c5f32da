package pgroles

// Package pgroles provides the PostgreSQL-backed role store. The user_roles
// table is the source of truth for authorization roles; role values read
// here are still validated against the closed enumeration by the resolver.

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketbay/storefront/internal/ports"
)

// ErrSchemaMissing is returned when the user_roles table has not been
// provisioned. Surfaced distinctly so deploy problems are not mistaken for
// per-user lookups.
var ErrSchemaMissing = errors.New("user_roles table missing")

// Store reads roles from PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ ports.RoleStore = (*Store)(nil)

// NewStore creates a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// FetchRole returns the raw role value for userID. A missing row reports
// found=false with no error; store-level failures are returned as errors so
// callers never conflate "unreachable" with "not provisioned".
func (s *Store) FetchRole(ctx context.Context, userID string) (string, bool, error) {
	if userID == "" {
		return "", false, errors.New("user ID is required")
	}

	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT role FROM user_roles WHERE user_id = $1`,
		userID,
	).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
			return "", false, fmt.Errorf("%w: %w", ErrSchemaMissing, err)
		}
		return "", false, fmt.Errorf("query user role: %w", err)
	}
	return role, true, nil
}

// UpsertRole provisions or updates the role for userID. Used by the admin
// tooling that manages seller and admin accounts.
func (s *Store) UpsertRole(ctx context.Context, userID, role string) error {
	if userID == "" {
		return errors.New("user ID is required")
	}
	if role == "" {
		return errors.New("role is required")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = now()
	`, userID, role)
	if err != nil {
		return fmt.Errorf("upsert user role: %w", err)
	}
	return nil
}
