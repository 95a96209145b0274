package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/appctx"
	"stradapos/internal/core/id"
	"stradapos/internal/core/security"
	"stradapos/pkg/logger"
)

// ServiceConfig holds auth service configuration.
type ServiceConfig struct {
	MaxLoginAttempts   int
	LockDuration       time.Duration
	PasswordMinLength  int
	RefreshTokenExpiry time.Duration
}

// DefaultServiceConfig returns the default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxLoginAttempts:   5,
		LockDuration:       15 * time.Minute,
		PasswordMinLength:  8,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
	}
}

// RegisterInput for creating a user.
type RegisterInput struct {
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	FullName     string   `json:"fullName,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	WarehouseIDs []id.ID  `json:"warehouseIds,omitempty"`
}

// Service provides authentication logic.
type Service struct {
	users      UserRepository
	tokens     TokenRepository
	jwtService *JWTService
	config     ServiceConfig
}

// NewService creates a new auth service.
func NewService(users UserRepository, tokens TokenRepository, jwtService *JWTService, config ServiceConfig) *Service {
	return &Service{users: users, tokens: tokens, jwtService: jwtService, config: config}
}

// Register creates a new user account.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	if input.Email == "" {
		return nil, apperror.NewValidation("email is required").WithDetail("field", "email")
	}
	if len(input.Password) < s.config.PasswordMinLength {
		return nil, apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", s.config.PasswordMinLength),
		).WithDetail("field", "password")
	}
	for _, role := range input.Roles {
		if role != security.RoleAdmin {
			if _, ok := security.RolePermissions[role]; !ok {
				return nil, apperror.NewValidation("unknown role").WithDetail("role", role)
			}
		}
	}

	exists, err := s.users.Exists(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("check email exists: %w", err)
	}
	if exists {
		return nil, apperror.NewConflict("email already registered").WithDetail("email", input.Email)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := NewUser(input.Email, string(passwordHash))
	user.FullName = input.FullName
	user.Roles = input.Roles
	user.WarehouseIDs = input.WarehouseIDs
	if len(user.Roles) == 0 {
		user.Roles = []string{security.RoleCashier}
	}
	user.IsAdmin = user.HasRole(security.RoleAdmin)

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	logger.Info(ctx, "user registered", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// Login authenticates a user and issues a token pair.
func (s *Service) Login(ctx context.Context, creds Credentials) (*TokenPair, *User, error) {
	user, err := s.users.GetByEmail(ctx, creds.Email)
	if err != nil {
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}
	if err := user.CanLogin(); err != nil {
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		user.RecordFailedLogin(s.config.MaxLoginAttempts, s.config.LockDuration)
		_ = s.users.Update(ctx, user)
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}

	if user.WarehouseIDs, err = s.users.LoadWarehouseScope(ctx, user.ID); err != nil {
		return nil, nil, fmt.Errorf("load warehouse scope: %w", err)
	}

	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	user.RecordSuccessfulLogin()
	_ = s.users.Update(ctx, user)

	logger.Info(ctx, "user logged in", "user_id", user.ID, "email", user.Email)
	return tokens, user, nil
}

// Refresh rotates a refresh token and issues a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := s.tokens.GetByHash(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid refresh token")
	}
	if !token.IsValid() {
		return nil, apperror.NewUnauthorized("refresh token expired or revoked")
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, apperror.NewUnauthorized("user not found")
	}
	if err := user.CanLogin(); err != nil {
		return nil, err
	}
	if user.WarehouseIDs, err = s.users.LoadWarehouseScope(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("load warehouse scope: %w", err)
	}

	_ = s.tokens.Revoke(ctx, token.ID)
	return s.generateTokenPair(ctx, user)
}

// Logout revokes all of the user's refresh tokens.
func (s *Service) Logout(ctx context.Context, userID id.ID) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// GetByID loads a user with warehouse scope.
func (s *Service) GetByID(ctx context.Context, userID id.ID) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.WarehouseIDs, err = s.users.LoadWarehouseScope(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("load warehouse scope: %w", err)
	}
	return user, nil
}

// UserContext builds the request-scoped identity carried in tokens.
func UserContext(user *User) *appctx.UserContext {
	whs := make([]string, 0, len(user.WarehouseIDs))
	for _, w := range user.WarehouseIDs {
		whs = append(whs, w.String())
	}
	return &appctx.UserContext{
		UserID:       user.ID.String(),
		Email:        user.Email,
		Roles:        user.Roles,
		Permissions:  security.PermissionsForRoles(user.Roles),
		WarehouseIDs: whs,
		IsAdmin:      user.IsAdmin,
	}
}

func (s *Service) generateTokenPair(ctx context.Context, user *User) (*TokenPair, error) {
	accessToken, expiresAt, err := s.jwtService.GenerateAccessToken(UserContext(user))
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshRaw, err := generateRandomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	refresh := &RefreshToken{
		ID:        id.New(),
		UserID:    user.ID,
		TokenHash: hashToken(refreshRaw),
		ExpiresAt: time.Now().Add(s.config.RefreshTokenExpiry),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.tokens.Save(ctx, refresh); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshRaw,
		ExpiresAt:    expiresAt,
		TokenType:    "Bearer",
	}, nil
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func generateRandomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
