package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"threadmart/internal/config"
	"threadmart/internal/domain"
	"threadmart/internal/mail"
	"threadmart/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	// Expiration of the single-purpose action tokens
	VerificationTokenExpiration = 24 * time.Hour
	ResetTokenExpiration        = 15 * time.Minute

	purposeVerify = "verify"
	purposeReset  = "reset"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotVerified = errors.New("account is not verified")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims represents the access token JWT claims
type Claims struct {
	UserID  uuid.UUID `json:"user_id"`
	IsAdmin bool      `json:"is_admin"`
	jwt.RegisteredClaims
}

// actionClaims carries the single-purpose tokens (email verification,
// password reset). Purpose keeps one token class from standing in for
// the other.
type actionClaims struct {
	UserID  uuid.UUID `json:"user_id"`
	Purpose string    `json:"purpose"`
	jwt.RegisteredClaims
}

// refreshClaims is the long-lived refresh token payload
type refreshClaims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// UserService defines the interface for account and session business logic
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *domain.User, err error)
	Refresh(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	Logout(ctx context.Context, refreshToken string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	mailer   mail.Mailer
	jwtCfg   config.JWTConfig
}

// NewUserService creates a new instance of UserService
func NewUserService(userRepo repository.UserRepository, mailer mail.Mailer, jwtCfg config.JWTConfig) UserService {
	return &userService{
		userRepo: userRepo,
		mailer:   mailer,
		jwtCfg:   jwtCfg,
	}
}

// Register creates an unverified account with a hashed password and
// dispatches the verification mail. The user is not logged in until the
// address is verified.
func (s *userService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	existingUser, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && err != repository.ErrUserNotFound {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, repository.ErrUserAlreadyExists
	}

	hashedPassword, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		IsAdmin:      false,
		IsVerified:   false,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	// The username uniqueness race is closed by the store constraint.
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.generateActionToken(user.ID, purposeVerify, VerificationTokenExpiration)
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	if err := s.mailer.SendVerification(ctx, user.Email, user.Username, token); err != nil {
		return nil, fmt.Errorf("failed to send verification mail: %w", err)
	}

	return user, nil
}

// VerifyEmail validates a verification token and flips the account to
// verified.
func (s *userService) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.parseActionToken(token, purposeVerify)
	if err != nil {
		return ErrInvalidToken
	}

	if err := s.userRepo.MarkVerified(ctx, userID); err != nil {
		if err == repository.ErrUserNotFound {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to verify account: %w", err)
	}

	return nil
}

// Login authenticates a verified user, persists a fresh refresh token
// server-side and returns both tokens.
func (s *userService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *domain.User, err error) {
	user, err = s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	if !user.IsVerified {
		return "", "", nil, ErrAccountNotVerified
	}

	accessToken, err = s.generateAccessToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = s.generateRefreshToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	// Login rotates the stored token, revoking any previous session.
	if err := s.userRepo.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return "", "", nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	return accessToken, refreshToken, user, nil
}

// Refresh mints a new access token for a presented refresh token. The token
// must verify AND match the server-stored copy byte for byte, so a token
// reused after logout (or after a later login rotated it) is rejected even
// though its signature is still valid.
func (s *userService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	userID, err := s.parseRefreshToken(refreshToken)
	if err != nil {
		return "", ErrInvalidToken
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		return "", ErrInvalidToken
	}

	newAccessToken, err := s.generateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return newAccessToken, nil
}

// Logout clears the server-side refresh token. A malformed or already
// revoked token is treated as logged out.
func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	userID, err := s.parseRefreshToken(refreshToken)
	if err != nil {
		return nil
	}

	if err := s.userRepo.ClearRefreshToken(ctx, userID); err != nil {
		if err == repository.ErrUserNotFound {
			return nil
		}
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}

	return nil
}

// ForgotPassword dispatches a reset token to a known account. An unknown
// email is reported as success so the endpoint does not leak which
// addresses have accounts.
func (s *userService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	token, err := s.generateActionToken(user.ID, purposeReset, ResetTokenExpiration)
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Username, token); err != nil {
		return fmt.Errorf("failed to send reset mail: %w", err)
	}

	return nil
}

// ResetPassword validates a reset token and overwrites the stored hash.
func (s *userService) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := s.parseActionToken(token, purposeReset)
	if err != nil {
		return ErrInvalidToken
	}

	hashedPassword, err := s.hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, hashedPassword); err != nil {
		if err == repository.ErrUserNotFound {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// generateAccessToken generates a short-lived JWT with user ID and admin claims
func (s *userService) generateAccessToken(user *domain.User) (string, error) {
	expirationTime := time.Now().Add(time.Duration(s.jwtCfg.AccessExpiry) * time.Minute)
	claims := &Claims{
		UserID:  user.ID,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtCfg.Secret))
}

// generateRefreshToken generates the long-lived refresh JWT, signed with
// the dedicated refresh secret
func (s *userService) generateRefreshToken(user *domain.User) (string, error) {
	expirationTime := time.Now().Add(time.Duration(s.jwtCfg.RefreshExpiry) * 24 * time.Hour)
	claims := &refreshClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtCfg.RefreshSecret))
}

func (s *userService) parseRefreshToken(tokenString string) (uuid.UUID, error) {
	claims := &refreshClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.jwtCfg.RefreshSecret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	return claims.UserID, nil
}

func (s *userService) generateActionToken(userID uuid.UUID, purpose string, expiry time.Duration) (string, error) {
	claims := &actionClaims{
		UserID:  userID,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtCfg.Secret))
}

func (s *userService) parseActionToken(tokenString, purpose string) (uuid.UUID, error) {
	claims := &actionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.jwtCfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return uuid.Nil, ErrInvalidToken
	}
	return claims.UserID, nil
}
