package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/appctx"
	"stradapos/internal/core/id"
	"stradapos/internal/core/security"
)

type fakeUserRepo struct {
	byID    map[id.ID]*User
	byEmail map[string]*User
	scopes  map[id.ID][]id.ID
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    make(map[id.ID]*User),
		byEmail: make(map[string]*User),
		scopes:  make(map[id.ID][]id.ID),
	}
}

func (r *fakeUserRepo) Create(_ context.Context, user *User) error {
	clone := *user
	r.byID[user.ID] = &clone
	r.byEmail[user.Email] = &clone
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *User) error {
	stored, ok := r.byID[user.ID]
	if !ok {
		return apperror.NewNotFound("user", user.ID)
	}
	*stored = *user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, userID id.ID) (*User, error) {
	if user, ok := r.byID[userID]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, apperror.NewNotFound("user", userID)
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	if user, ok := r.byEmail[email]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, apperror.NewNotFound("user", email)
}

func (r *fakeUserRepo) Exists(_ context.Context, email string) (bool, error) {
	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *fakeUserRepo) LoadWarehouseScope(_ context.Context, userID id.ID) ([]id.ID, error) {
	return r.scopes[userID], nil
}

type fakeTokenRepo struct {
	byHash map[string]*RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{byHash: make(map[string]*RefreshToken)}
}

func (r *fakeTokenRepo) Save(_ context.Context, token *RefreshToken) error {
	clone := *token
	r.byHash[token.TokenHash] = &clone
	return nil
}

func (r *fakeTokenRepo) GetByHash(_ context.Context, tokenHash string) (*RefreshToken, error) {
	if token, ok := r.byHash[tokenHash]; ok {
		clone := *token
		return &clone, nil
	}
	return nil, apperror.NewNotFound("refresh token", tokenHash)
}

func (r *fakeTokenRepo) Revoke(_ context.Context, tokenID id.ID) error {
	for _, token := range r.byHash {
		if token.ID == tokenID {
			now := time.Now()
			token.RevokedAt = &now
			return nil
		}
	}
	return apperror.NewNotFound("refresh token", tokenID)
}

func (r *fakeTokenRepo) RevokeAllForUser(_ context.Context, userID id.ID) error {
	now := time.Now()
	for _, token := range r.byHash {
		if token.UserID == userID {
			token.RevokedAt = &now
		}
	}
	return nil
}

func newTestService() (*Service, *fakeUserRepo, *fakeTokenRepo) {
	users := newFakeUserRepo()
	tokens := newFakeTokenRepo()
	jwtSvc := NewJWTService(DefaultJWTConfig("test-secret"))
	return NewService(users, tokens, jwtSvc, DefaultServiceConfig()), users, tokens
}

func TestRegister(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	user, err := service.Register(ctx, RegisterInput{
		Email:    "cashier@example.com",
		Password: "secret-password",
		FullName: "Test Cashier",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{security.RoleCashier}, user.Roles, "cashier is the default role")
	assert.False(t, user.IsAdmin)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "secret-password", user.PasswordHash)

	// Duplicate email is rejected.
	_, err = service.Register(ctx, RegisterInput{Email: "cashier@example.com", Password: "secret-password"})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)

	// Short password and unknown role are rejected.
	_, err = service.Register(ctx, RegisterInput{Email: "a@example.com", Password: "short"})
	require.Error(t, err)
	_, err = service.Register(ctx, RegisterInput{Email: "b@example.com", Password: "secret-password", Roles: []string{"superuser"}})
	require.Error(t, err)

	admin, err := service.Register(ctx, RegisterInput{
		Email:    "admin@example.com",
		Password: "secret-password",
		Roles:    []string{security.RoleAdmin},
	})
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
}

func TestLogin(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	_, err := service.Register(ctx, RegisterInput{Email: "user@example.com", Password: "secret-password"})
	require.NoError(t, err)

	tokens, user, err := service.Login(ctx, Credentials{Email: "user@example.com", Password: "secret-password"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.NotNil(t, user.LastLoginAt)

	_, _, err = service.Login(ctx, Credentials{Email: "user@example.com", Password: "wrong"})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)

	// Unknown email yields the same error as a wrong password.
	_, _, err = service.Login(ctx, Credentials{Email: "ghost@example.com", Password: "secret-password"})
	require.Error(t, err)
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	_, err := service.Register(ctx, RegisterInput{Email: "user@example.com", Password: "secret-password"})
	require.NoError(t, err)

	for i := 0; i < DefaultServiceConfig().MaxLoginAttempts; i++ {
		_, _, err = service.Login(ctx, Credentials{Email: "user@example.com", Password: "wrong"})
		require.Error(t, err)
	}

	// The right password no longer helps while the lock holds.
	_, _, err = service.Login(ctx, Credentials{Email: "user@example.com", Password: "secret-password"})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeForbidden, appErr.Code)
}

func TestRefresh_RotatesToken(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	_, err := service.Register(ctx, RegisterInput{Email: "user@example.com", Password: "secret-password"})
	require.NoError(t, err)
	tokens, _, err := service.Login(ctx, Credentials{Email: "user@example.com", Password: "secret-password"})
	require.NoError(t, err)

	rotated, err := service.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	// The old token was revoked by the rotation.
	_, err = service.Refresh(ctx, tokens.RefreshToken)
	require.Error(t, err)

	_, err = service.Refresh(ctx, "never-issued")
	require.Error(t, err)
}

func TestLogout_RevokesAllTokens(t *testing.T) {
	service, users, _ := newTestService()
	ctx := context.Background()

	registered, err := service.Register(ctx, RegisterInput{Email: "user@example.com", Password: "secret-password"})
	require.NoError(t, err)
	tokens, _, err := service.Login(ctx, Credentials{Email: "user@example.com", Password: "secret-password"})
	require.NoError(t, err)

	require.NoError(t, service.Logout(ctx, registered.ID))

	_, err = service.Refresh(ctx, tokens.RefreshToken)
	require.Error(t, err)

	_, ok := users.byID[registered.ID]
	assert.True(t, ok, "logout never deletes the user")
}

func TestJWT_RoundTrip(t *testing.T) {
	jwtSvc := NewJWTService(DefaultJWTConfig("test-secret"))

	original := &appctx.UserContext{
		UserID:       id.New().String(),
		Email:        "manager@example.com",
		Roles:        []string{security.RoleManager},
		Permissions:  security.PermissionsForRoles([]string{security.RoleManager}),
		WarehouseIDs: []string{id.New().String()},
	}

	token, expiresAt, err := jwtSvc.GenerateAccessToken(original)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	parsed, err := jwtSvc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, original.UserID, parsed.UserID)
	assert.Equal(t, original.Email, parsed.Email)
	assert.Equal(t, original.Roles, parsed.Roles)
	assert.Equal(t, original.Permissions, parsed.Permissions)
	assert.Equal(t, original.WarehouseIDs, parsed.WarehouseIDs)
	assert.False(t, parsed.IsAdmin)
}

func TestJWT_RejectsBadTokens(t *testing.T) {
	jwtSvc := NewJWTService(DefaultJWTConfig("test-secret"))
	user := &appctx.UserContext{UserID: id.New().String(), Email: "u@example.com"}

	// Wrong secret.
	other := NewJWTService(DefaultJWTConfig("other-secret"))
	token, _, err := other.GenerateAccessToken(user)
	require.NoError(t, err)
	_, err = jwtSvc.ValidateToken(token)
	require.Error(t, err)

	// Expired.
	expiredCfg := DefaultJWTConfig("test-secret")
	expiredCfg.AccessTokenTTL = -time.Minute
	token, _, err = NewJWTService(expiredCfg).GenerateAccessToken(user)
	require.NoError(t, err)
	_, err = jwtSvc.ValidateToken(token)
	require.Error(t, err)

	// Unsigned algorithm.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: user.UserID})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = jwtSvc.ValidateToken(raw)
	require.Error(t, err)

	_, err = jwtSvc.ValidateToken("not-a-token")
	require.Error(t, err)
}
