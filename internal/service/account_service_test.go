package service

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"ecofinds/internal/domain"
	"ecofinds/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/crypto/bcrypt"
)

// Mock repositories for testing
type mockUserRepository struct {
	users map[uuid.UUID]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[uuid.UUID]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	for _, existing := range m.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repository.ErrUserAlreadyExists
		}
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, exists := m.users[id]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) FindByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*domain.User, error) {
	for _, user := range m.users {
		if user.Username == usernameOrEmail || user.Email == usernameOrEmail {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	existing, exists := m.users[user.ID]
	if !exists {
		return repository.ErrUserNotFound
	}
	existing.Email = user.Email
	existing.FirstName = user.FirstName
	existing.LastName = user.LastName
	existing.UpdatedAt = user.UpdatedAt
	return nil
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	existing, exists := m.users[id]
	if !exists {
		return repository.ErrUserNotFound
	}
	existing.PasswordHash = passwordHash
	return nil
}

type mockAuthTokenRepository struct {
	tokens map[uuid.UUID]*domain.AuthToken // keyed by user ID
}

func newMockAuthTokenRepository() *mockAuthTokenRepository {
	return &mockAuthTokenRepository{tokens: make(map[uuid.UUID]*domain.AuthToken)}
}

func (m *mockAuthTokenRepository) GetOrCreate(ctx context.Context, token *domain.AuthToken) (*domain.AuthToken, error) {
	if existing, exists := m.tokens[token.UserID]; exists {
		copied := *existing
		return &copied, nil
	}
	copied := *token
	m.tokens[token.UserID] = &copied
	result := *token
	return &result, nil
}

func (m *mockAuthTokenRepository) FindByKey(ctx context.Context, key string) (*domain.AuthToken, error) {
	for _, token := range m.tokens {
		if token.Key == key {
			copied := *token
			return &copied, nil
		}
	}
	return nil, repository.ErrAuthTokenNotFound
}

func (m *mockAuthTokenRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if _, exists := m.tokens[userID]; !exists {
		return repository.ErrAuthTokenNotFound
	}
	delete(m.tokens, userID)
	return nil
}

func newTestAccountService(userRepo repository.UserRepository, tokenRepo repository.AuthTokenRepository) AccountService {
	return NewAccountService(userRepo, tokenRepo, "test-reset-secret", time.Hour, "http://localhost:3000")
}

// Registration never stores plaintext passwords
func TestProperty_RegistrationCreatesHashedPasswords(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("passwords are hashed with bcrypt and not stored as plaintext", prop.ForAll(
		func(username, email, password string) bool {
			userRepo := newMockUserRepository()
			tokenRepo := newMockAuthTokenRepository()
			service := newTestAccountService(userRepo, tokenRepo)
			ctx := context.Background()

			user, _, err := service.Register(ctx, RegisterInput{
				Username: username,
				Email:    email,
				Password: password,
			})
			if err != nil {
				return true // Skip collisions between generated inputs
			}

			if user.PasswordHash == password {
				t.Logf("FAIL: password stored as plaintext for %s", username)
				return false
			}

			if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
				t.Logf("FAIL: stored hash does not verify: %v", err)
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,12}`),
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Login reuses the token minted at registration: get-or-create idempotence
func TestProperty_LoginReturnsRegistrationToken(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("login with correct credentials returns the registration token", prop.ForAll(
		func(username, email, password string) bool {
			userRepo := newMockUserRepository()
			tokenRepo := newMockAuthTokenRepository()
			service := newTestAccountService(userRepo, tokenRepo)
			ctx := context.Background()

			_, registerToken, err := service.Register(ctx, RegisterInput{
				Username: username,
				Email:    email,
				Password: password,
			})
			if err != nil {
				return true
			}

			// Login by username and by email both reuse the same token
			_, loginToken, err := service.Login(ctx, username, password)
			if err != nil {
				t.Logf("FAIL: login by username failed: %v", err)
				return false
			}
			_, emailToken, err := service.Login(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: login by email failed: %v", err)
				return false
			}

			return loginToken == registerToken && emailToken == registerToken
		},
		gen.RegexMatch(`[a-z]{3,12}`),
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Wrong passwords always fail, with the same error as a missing user
func TestProperty_LoginWithWrongPasswordFails(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("wrong password never logs in", prop.ForAll(
		func(username, email, password, wrongPassword string) bool {
			if password == wrongPassword {
				return true
			}

			userRepo := newMockUserRepository()
			tokenRepo := newMockAuthTokenRepository()
			service := newTestAccountService(userRepo, tokenRepo)
			ctx := context.Background()

			_, _, err := service.Register(ctx, RegisterInput{
				Username: username,
				Email:    email,
				Password: password,
			})
			if err != nil {
				return true
			}

			_, _, err = service.Login(ctx, username, wrongPassword)
			if err != ErrInvalidCredentials {
				t.Logf("FAIL: expected ErrInvalidCredentials, got %v", err)
				return false
			}

			// Unknown users produce the exact same error
			_, _, err = service.Login(ctx, "no-such-"+username, password)
			return err == ErrInvalidCredentials
		},
		gen.RegexMatch(`[a-z]{3,12}`),
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestLogoutDeletesToken(t *testing.T) {
	userRepo := newMockUserRepository()
	tokenRepo := newMockAuthTokenRepository()
	service := newTestAccountService(userRepo, tokenRepo)
	ctx := context.Background()

	user, token, err := service.Register(ctx, RegisterInput{
		Username: "seller",
		Email:    "seller@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, err := service.Authenticate(ctx, token); err != nil {
		t.Fatalf("token should authenticate before logout: %v", err)
	}

	if err := service.Logout(ctx, user.ID); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	if _, err := service.Authenticate(ctx, token); err != repository.ErrAuthTokenNotFound {
		t.Errorf("expected ErrAuthTokenNotFound after logout, got %v", err)
	}

	// A second logout has no token left to delete
	if err := service.Logout(ctx, user.ID); err != repository.ErrAuthTokenNotFound {
		t.Errorf("expected ErrAuthTokenNotFound on double logout, got %v", err)
	}
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	userRepo := newMockUserRepository()
	tokenRepo := newMockAuthTokenRepository()
	service := newTestAccountService(userRepo, tokenRepo)
	ctx := context.Background()

	user, _, err := service.Register(ctx, RegisterInput{
		Username: "seller",
		Email:    "seller@example.com",
		Password: "old-password-1",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := service.ChangePassword(ctx, user.ID, "not-the-password", "new-password-1"); err != ErrCurrentPasswordIncorrect {
		t.Errorf("expected ErrCurrentPasswordIncorrect, got %v", err)
	}

	if err := service.ChangePassword(ctx, user.ID, "old-password-1", "new-password-1"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}

	if _, _, err := service.Login(ctx, "seller", "new-password-1"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
	if _, _, err := service.Login(ctx, "seller", "old-password-1"); err != ErrInvalidCredentials {
		t.Errorf("old password should be rejected, got %v", err)
	}
}

func TestPasswordResetRoundTrip(t *testing.T) {
	userRepo := newMockUserRepository()
	tokenRepo := newMockAuthTokenRepository()
	service := newTestAccountService(userRepo, tokenRepo)
	ctx := context.Background()

	_, _, err := service.Register(ctx, RegisterInput{
		Username: "seller",
		Email:    "seller@example.com",
		Password: "old-password-1",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	resetURL, err := service.RequestPasswordReset(ctx, "seller@example.com")
	if err != nil {
		t.Fatalf("reset request failed: %v", err)
	}
	if resetURL == "" {
		t.Fatal("expected a reset URL for a known email")
	}

	uid, token := parseResetURL(t, resetURL)

	if err := service.ConfirmPasswordReset(ctx, uid, token, "new-password-1"); err != nil {
		t.Fatalf("reset confirm failed: %v", err)
	}

	if _, _, err := service.Login(ctx, "seller", "new-password-1"); err != nil {
		t.Errorf("login with reset password failed: %v", err)
	}
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	service := newTestAccountService(newMockUserRepository(), newMockAuthTokenRepository())

	resetURL, err := service.RequestPasswordReset(context.Background(), "ghost@example.com")
	if err != nil {
		t.Fatalf("unknown email must not error: %v", err)
	}
	if resetURL != "" {
		t.Error("unknown email must not produce a reset URL")
	}
}

func TestPasswordResetRejectsTamperedToken(t *testing.T) {
	userRepo := newMockUserRepository()
	service := newTestAccountService(userRepo, newMockAuthTokenRepository())
	ctx := context.Background()

	_, _, err := service.Register(ctx, RegisterInput{
		Username: "seller",
		Email:    "seller@example.com",
		Password: "old-password-1",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	resetURL, err := service.RequestPasswordReset(ctx, "seller@example.com")
	if err != nil {
		t.Fatalf("reset request failed: %v", err)
	}
	uid, token := parseResetURL(t, resetURL)

	// Extend the signature segment so it can no longer verify
	tampered := token + "AAAA"
	if err := service.ConfirmPasswordReset(ctx, uid, tampered, "new-password-1"); err != ErrResetLinkExpired {
		t.Errorf("tampered token: expected ErrResetLinkExpired, got %v", err)
	}

	// Garbage uid fails before the token is even checked
	if err := service.ConfirmPasswordReset(ctx, "!!!not-base64!!!", token, "new-password-1"); err != ErrInvalidResetLink {
		t.Errorf("bad uid: expected ErrInvalidResetLink, got %v", err)
	}

	// A valid uid for a user that does not exist
	missing := base64.RawURLEncoding.EncodeToString([]byte(uuid.New().String()))
	if err := service.ConfirmPasswordReset(ctx, missing, token, "new-password-1"); err != ErrInvalidResetLink {
		t.Errorf("unknown uid: expected ErrInvalidResetLink, got %v", err)
	}
}

func TestPasswordResetTokenDiesWithPasswordChange(t *testing.T) {
	userRepo := newMockUserRepository()
	service := newTestAccountService(userRepo, newMockAuthTokenRepository())
	ctx := context.Background()

	user, _, err := service.Register(ctx, RegisterInput{
		Username: "seller",
		Email:    "seller@example.com",
		Password: "old-password-1",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	resetURL, err := service.RequestPasswordReset(ctx, "seller@example.com")
	if err != nil {
		t.Fatalf("reset request failed: %v", err)
	}
	uid, token := parseResetURL(t, resetURL)

	// The password changes between mint and confirm
	if err := service.ChangePassword(ctx, user.ID, "old-password-1", "interim-password"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}

	if err := service.ConfirmPasswordReset(ctx, uid, token, "new-password-1"); err != ErrResetLinkExpired {
		t.Errorf("stale reset token: expected ErrResetLinkExpired, got %v", err)
	}
}

// parseResetURL splits {frontend}/reset-password/{uid}/{token}/ into its parts
func parseResetURL(t *testing.T, resetURL string) (uid, token string) {
	t.Helper()

	trimmed := strings.TrimSuffix(resetURL, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		t.Fatalf("malformed reset URL: %s", resetURL)
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}
