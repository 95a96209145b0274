package auth

import (
	"context"

	"stradapos/internal/core/id"
)

// UserRepository defines user storage operations.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	GetByID(ctx context.Context, userID id.ID) (*User, error)
	// GetByEmail ignores soft-deleted users.
	GetByEmail(ctx context.Context, email string) (*User, error)
	Exists(ctx context.Context, email string) (bool, error)
	// LoadWarehouseScope returns the warehouses the user is limited to.
	// Empty means all warehouses.
	LoadWarehouseScope(ctx context.Context, userID id.ID) ([]id.ID, error)
}

// TokenRepository defines refresh token storage operations.
type TokenRepository interface {
	Save(ctx context.Context, token *RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	Revoke(ctx context.Context, tokenID id.ID) error
	RevokeAllForUser(ctx context.Context, userID id.ID) error
}
