package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"ecofinds/internal/domain"
	"ecofinds/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10
)

var (
	ErrInvalidCredentials       = errors.New("invalid username/email or password")
	ErrCurrentPasswordIncorrect = errors.New("current password is incorrect")
	ErrInvalidResetLink         = errors.New("invalid reset link")
	ErrResetLinkExpired         = errors.New("invalid or expired reset link")
)

// RegisterInput carries the fields required to create an account. Password
// confirmation is checked at the transport boundary before this is built.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// ProfileUpdate carries optional profile fields; nil means leave unchanged
type ProfileUpdate struct {
	Email     *string
	FirstName *string
	LastName  *string
}

// AccountService defines the interface for account business logic. Every
// operation takes the caller identity explicitly rather than reading ambient
// request state.
type AccountService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, string, error)
	Login(ctx context.Context, usernameOrEmail, password string) (*domain.User, string, error)
	Logout(ctx context.Context, callerID uuid.UUID) error
	Authenticate(ctx context.Context, tokenKey string) (*domain.User, error)
	GetProfile(ctx context.Context, callerID uuid.UUID) (*domain.User, error)
	UpdateProfile(ctx context.Context, callerID uuid.UUID, update ProfileUpdate) (*domain.User, error)
	ChangePassword(ctx context.Context, callerID uuid.UUID, currentPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, uid, token, newPassword string) error
}

// resetClaims is the payload of a password-reset token. Fingerprint binds the
// token to the password hash it was minted against, so changing the password
// invalidates every outstanding reset link.
type resetClaims struct {
	Fingerprint string `json:"fpt"`
	jwt.RegisteredClaims
}

type accountService struct {
	userRepo    repository.UserRepository
	tokenRepo   repository.AuthTokenRepository
	resetSecret string
	resetExpiry time.Duration
	frontendURL string
}

// NewAccountService creates a new instance of AccountService
func NewAccountService(
	userRepo repository.UserRepository,
	tokenRepo repository.AuthTokenRepository,
	resetSecret string,
	resetExpiry time.Duration,
	frontendURL string,
) AccountService {
	return &accountService{
		userRepo:    userRepo,
		tokenRepo:   tokenRepo,
		resetSecret: resetSecret,
		resetExpiry: resetExpiry,
		frontendURL: frontendURL,
	}
}

// Register creates a new user with a hashed password and issues a token
func (s *accountService) Register(ctx context.Context, input RegisterInput) (*domain.User, string, error) {
	hashedPassword, err := hashPassword(input.Password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         "user",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// Login verifies the credential and issues or reuses the user's token. The
// error never distinguishes a missing user from a wrong password.
func (s *accountService) Login(ctx context.Context, usernameOrEmail, password string) (*domain.User, string, error) {
	user, err := s.userRepo.FindByUsernameOrEmail(ctx, usernameOrEmail)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// Logout deletes the caller's token
func (s *accountService) Logout(ctx context.Context, callerID uuid.UUID) error {
	return s.tokenRepo.DeleteByUserID(ctx, callerID)
}

// Authenticate resolves an opaque token key to its user
func (s *accountService) Authenticate(ctx context.Context, tokenKey string) (*domain.User, error) {
	token, err := s.tokenRepo.FindByKey(ctx, tokenKey)
	if err != nil {
		return nil, err
	}

	return s.userRepo.FindByID(ctx, token.UserID)
}

// GetProfile returns the authenticated user's record
func (s *accountService) GetProfile(ctx context.Context, callerID uuid.UUID) (*domain.User, error) {
	return s.userRepo.FindByID(ctx, callerID)
}

// UpdateProfile partially updates the caller's mutable fields
func (s *accountService) UpdateProfile(ctx context.Context, callerID uuid.UUID, update ProfileUpdate) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, callerID)
	if err != nil {
		return nil, err
	}

	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}
	user.UpdatedAt = time.Now()

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// ChangePassword verifies the current password before replacing it
func (s *accountService) ChangePassword(ctx context.Context, callerID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(ctx, callerID)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return ErrCurrentPasswordIncorrect
	}

	hashedPassword, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.userRepo.UpdatePassword(ctx, callerID, hashedPassword)
}

// RequestPasswordReset mints a reset URL for the given email. It returns an
// empty URL without error when the email is unknown; callers answer with the
// same generic message either way so accounts cannot be enumerated.
func (s *accountService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	claims := &resetClaims{
		Fingerprint: passwordFingerprint(user.PasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.resetExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.resetSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}

	uid := base64.RawURLEncoding.EncodeToString([]byte(user.ID.String()))

	return fmt.Sprintf("%s/reset-password/%s/%s/", s.frontendURL, uid, token), nil
}

// ConfirmPasswordReset validates the uid/token pair and overwrites the hash
func (s *accountService) ConfirmPasswordReset(ctx context.Context, uid, tokenString, newPassword string) error {
	decoded, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return ErrInvalidResetLink
	}

	userID, err := uuid.Parse(string(decoded))
	if err != nil {
		return ErrInvalidResetLink
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return ErrInvalidResetLink
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	claims := &resetClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.resetSecret), nil
	})
	if err != nil || !token.Valid {
		return ErrResetLinkExpired
	}

	// A token minted for another user, or before the last password change,
	// is rejected even though its signature verifies.
	if claims.Subject != user.ID.String() || claims.Fingerprint != passwordFingerprint(user.PasswordHash) {
		return ErrResetLinkExpired
	}

	hashedPassword, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.userRepo.UpdatePassword(ctx, user.ID, hashedPassword)
}

// issueToken applies get-or-create semantics: a second login returns the
// token minted by the first.
func (s *accountService) issueToken(ctx context.Context, userID uuid.UUID) (string, error) {
	candidate := &domain.AuthToken{
		ID:        uuid.New(),
		Key:       newTokenKey(),
		UserID:    userID,
		CreatedAt: time.Now(),
	}

	token, err := s.tokenRepo.GetOrCreate(ctx, candidate)
	if err != nil {
		return "", err
	}

	return token.Key, nil
}

func newTokenKey() string {
	// Two UUIDs worth of randomness, hex-packed into an opaque 64-char key
	a, b := uuid.New(), uuid.New()
	return hex.EncodeToString(append(a[:], b[:]...))
}

func passwordFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

func hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}
