package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/keyxmakerx/wellnest/internal/apperror"
)

// Password bounds. bcrypt ignores everything past 72 bytes, so longer
// inputs are rejected rather than silently truncated.
const (
	minPasswordLen   = 6
	maxPasswordLen   = 128
	maxPasswordBytes = 72
)

// emailPattern is deliberately loose: something@something.tld with no spaces.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// invalidCredentialsMessage is shared by "no such email" and "wrong
// password" so login never reveals which accounts exist.
const invalidCredentialsMessage = "invalid email or password"

// AuthService handles authentication business logic: registration and
// login. Request authentication is done by the gate against TokenVerifier.
type AuthService interface {
	Register(ctx context.Context, input CredentialsInput) (*AuthResult, error)
	Login(ctx context.Context, input CredentialsInput) (*AuthResult, error)
}

// credentialHasher is the part of *Hasher the service uses.
type credentialHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
	VerifyAbsent(plaintext string) bool
}

// authService implements AuthService.
type authService struct {
	repo   UserRepository
	hasher credentialHasher
	tokens *TokenService
	now    func() time.Time
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(repo UserRepository, hasher *Hasher, tokens *TokenService) AuthService {
	return &authService{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		now:    time.Now,
	}
}

// Register creates a new user account and returns a token for it. The
// email is normalized before the uniqueness check and before storage.
func (s *authService) Register(ctx context.Context, input CredentialsInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)
	if err := validateRegistration(email, input.Password); err != nil {
		return nil, err
	}

	// Check if email is already taken before doing expensive hashing.
	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}
	if exists {
		return nil, apperror.NewConflict("an account with this email already exists")
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, apperror.NewConflict("an account with this email already exists")
		}
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("issuing token: %w", err))
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &AuthResult{Token: token, User: user}, nil
}

// Login authenticates a user by email and password and issues a token.
func (s *authService) Login(ctx context.Context, input CredentialsInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, apperror.NewValidation("email and password are required")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if apperror.IsNotFound(err) {
			s.hasher.VerifyAbsent(input.Password)
			return nil, apperror.NewUnauthorized(invalidCredentialsMessage)
		}
		return nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		return nil, apperror.NewUnauthorized(invalidCredentialsMessage)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("issuing token: %w", err))
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &AuthResult{Token: token, User: user}, nil
}

// --- Validation helpers ---

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateRegistration checks the normalized email and the raw password.
func validateRegistration(email, password string) error {
	if email == "" || password == "" {
		return apperror.NewValidation("email and password are required")
	}
	if !emailPattern.MatchString(email) {
		return apperror.NewValidation("invalid email format")
	}
	n := utf8.RuneCountInString(password)
	if n < minPasswordLen || n > maxPasswordLen {
		return apperror.NewValidation(
			fmt.Sprintf("password must be between %d and %d characters", minPasswordLen, maxPasswordLen))
	}
	if len(password) > maxPasswordBytes {
		return apperror.NewValidation(
			fmt.Sprintf("password must not exceed %d bytes", maxPasswordBytes))
	}
	return nil
}
