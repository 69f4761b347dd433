package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/volspike/wallet-auth/pkg/types"
)

// UserRepository handles user data operations
type UserRepository struct {
	store *Store
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

// Create creates a new user with the given tier and role
func (r *UserRepository) Create(ctx context.Context, tier, role string) (*types.User, error) {
	query := `
		INSERT INTO users (tier, role)
		VALUES ($1, $2)
		RETURNING id, tier, role, created_at
	`

	var user types.User
	err := r.store.pool.QueryRow(ctx, query, tier, role).Scan(
		&user.ID,
		&user.Tier,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*types.User, error) {
	query := `
		SELECT id, tier, role, created_at
		FROM users
		WHERE id = $1
	`

	var user types.User
	err := r.store.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Tier,
		&user.Role,
		&user.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return &user, nil
}
