package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
	"stradapos/internal/domain/auth"
)

const (
	usersTable          = "users"
	userWarehousesTable = "user_warehouses"
	refreshTokensTable  = "refresh_tokens"
)

// UserRepo implements auth.UserRepository. Roles are stored as a text array.
type UserRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
	columns   []string
}

var _ auth.UserRepository = (*UserRepo)(nil)

// NewUserRepo creates a new user repository.
func NewUserRepo(txManager *TxManager) *UserRepo {
	return &UserRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		columns:   ExtractDBColumns[auth.User](),
	}
}

// Create inserts a user. Duplicate email surfaces as CodeDuplicate.
func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	q := r.builder.Insert(usersTable).SetMap(StructToMap(user))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("user", "email", user.Email).WithCause(err)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return r.saveWarehouseScope(ctx, user.ID, user.WarehouseIDs)
}

// Update writes user fields.
func (r *UserRepo) Update(ctx context.Context, user *auth.User) error {
	m := StructToMap(user)
	delete(m, "id")
	delete(m, "created_at")
	m["updated_at"] = time.Now().UTC()

	q := r.builder.Update(usersTable).
		SetMap(m).
		Where(squirrel.Eq{"id": user.ID}).
		Where("deleted_at IS NULL")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("user", user.ID)
	}
	return nil
}

// GetByID loads a user, excluding soft-deleted rows.
func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": userID}, userID)
}

// GetByEmail loads a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email}, email)
}

func (r *UserRepo) getOne(ctx context.Context, where squirrel.Eq, entityID any) (*auth.User, error) {
	q := r.builder.Select(r.columns...).
		From(usersTable).
		Where(where).
		Where("deleted_at IS NULL").
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var user auth.User
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &user, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("user", entityID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// Exists checks whether an email is taken, soft-deleted users included.
func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	sql := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

// LoadWarehouseScope returns the warehouses the user is limited to.
func (r *UserRepo) LoadWarehouseScope(ctx context.Context, userID id.ID) ([]id.ID, error) {
	sql := `SELECT warehouse_id FROM user_warehouses WHERE user_id = $1 ORDER BY warehouse_id`

	var ids []id.ID
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &ids, sql, userID); err != nil {
		return nil, fmt.Errorf("load warehouse scope: %w", err)
	}
	return ids, nil
}

func (r *UserRepo) saveWarehouseScope(ctx context.Context, userID id.ID, warehouseIDs []id.ID) error {
	if len(warehouseIDs) == 0 {
		return nil
	}

	q := r.builder.Insert(userWarehousesTable).Columns("user_id", "warehouse_id")
	for _, whID := range warehouseIDs {
		q = q.Values(userID, whID)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert warehouse scope: %w", err)
	}
	return nil
}

// TokenRepo implements auth.TokenRepository.
type TokenRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

var _ auth.TokenRepository = (*TokenRepo)(nil)

// NewTokenRepo creates a new refresh token repository.
func NewTokenRepo(txManager *TxManager) *TokenRepo {
	return &TokenRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Save inserts a refresh token.
func (r *TokenRepo) Save(ctx context.Context, token *auth.RefreshToken) error {
	q := r.builder.Insert(refreshTokensTable).SetMap(StructToMap(token))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// GetByHash loads a refresh token by its hash.
func (r *TokenRepo) GetByHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	q := r.builder.Select(ExtractDBColumns[auth.RefreshToken]()...).
		From(refreshTokensTable).
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var token auth.RefreshToken
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &token, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("refresh token", "hash")
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &token, nil
}

// Revoke marks one token revoked.
func (r *TokenRepo) Revoke(ctx context.Context, tokenID id.ID) error {
	sql := `UPDATE refresh_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, time.Now().UTC(), tokenID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser marks every live token of the user revoked.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID id.ID) error {
	sql := `UPDATE refresh_tokens SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL`
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

// CleanupExpired removes expired and revoked tokens.
func (r *TokenRepo) CleanupExpired(ctx context.Context) (int64, error) {
	sql := `DELETE FROM refresh_tokens WHERE expires_at < $1 OR revoked_at IS NOT NULL`
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
