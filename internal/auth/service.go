package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/JC-Coder/w-wire-api-test/internal/cache"
	"github.com/JC-Coder/w-wire-api-test/internal/observability"
	"github.com/JC-Coder/w-wire-api-test/internal/user"
)

const (
	defaultTokenTTL     = time.Hour
	defaultMaxAttempts  = 5
	defaultLockDuration = 15 * time.Minute
	nonceBytes          = 32
)

// CredentialStore is the slice of the user repository the auth service needs.
type CredentialStore interface {
	GetByUsername(ctx context.Context, username string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Save(ctx context.Context, u *user.User) error
}

type Service struct {
	store        CredentialStore
	cache        cache.Cache
	logger       *observability.Logger
	jwtSecret    []byte
	tokenTTL     time.Duration
	maxAttempts  int
	lockDuration time.Duration
	now          func() time.Time
}

func NewService(store CredentialStore, sessionCache cache.Cache, logger *observability.Logger, jwtSecret string) *Service {
	return &Service{
		store:        store,
		cache:        sessionCache,
		logger:       logger,
		jwtSecret:    []byte(jwtSecret),
		tokenTTL:     defaultTokenTTL,
		maxAttempts:  defaultMaxAttempts,
		lockDuration: defaultLockDuration,
		now:          time.Now,
	}
}

func (s *Service) WithSecurityConfig(maxAttempts int, lockDuration, tokenTTL time.Duration) {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if lockDuration > 0 {
		s.lockDuration = lockDuration
	}
	if tokenTTL > 0 {
		s.tokenTTL = tokenTTL
	}
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}

// Authenticate verifies credentials and enforces the account lockout policy.
// It returns ErrInvalidCredentials for unknown users and wrong passwords
// alike, and ErrAccountLocked while a lock is active. Store failures come
// back wrapped so callers never mistake an outage for a rejected login.
//
// The failed-attempt counter is read-modify-write: two concurrent failures
// against one account may record a single increment. At least one increment
// always lands, which is enough for the lockout to engage.
func (s *Service) Authenticate(ctx context.Context, username, password string) (user.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return user.User{}, ErrInvalidCredentials
	}

	u, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrInvalidCredentials
		}
		return user.User{}, fmt.Errorf("lookup user: %w", err)
	}

	now := s.now().UTC()
	if u.LockedUntil != nil && u.LockedUntil.After(now) {
		return user.User{}, ErrAccountLocked{Until: *u.LockedUntil}
	}

	u.LastLoginAttempt = &now

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		u.FailedLoginAttempts++
		if u.FailedLoginAttempts >= s.maxAttempts {
			lockedUntil := now.Add(s.lockDuration)
			u.LockedUntil = &lockedUntil
		}
		if err := s.store.Save(ctx, &u); err != nil {
			return user.User{}, fmt.Errorf("record failed attempt: %w", err)
		}
		return user.User{}, ErrInvalidCredentials
	}

	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	if err := s.store.Save(ctx, &u); err != nil {
		return user.User{}, fmt.Errorf("record successful login: %w", err)
	}

	return u, nil
}

// IssueToken mints a signed token carrying a fresh nonce and registers the
// nonce as live in the cache for the token's validity window.
//
// The cache write is best-effort: if it fails the token is still returned and
// the failure is reported, trading strict revocability for login availability
// during a cache outage. Signature validity never depends on cache state.
func (s *Service) IssueToken(ctx context.Context, u user.User) (string, Claims, error) {
	nonce, err := randomNonce()
	if err != nil {
		return "", Claims{}, fmt.Errorf("generate nonce: %w", err)
	}

	now := s.now().UTC()
	claims := Claims{
		Username: u.Username,
		Nonce:    nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	if err := s.cache.Set(ctx, nonceTrackingKey(u.ID, nonce), now.Unix(), s.tokenTTL); err != nil {
		sentry.CaptureException(err)
		s.logger.Warn("nonce_tracking_write_failed", map[string]any{
			"user_id": u.ID,
			"error":   err.Error(),
		})
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, claims, nil
}

// ValidateSession decides whether the session behind the given claims is
// still live. It runs on every authenticated request, so the happy path is
// two cache reads and no database access.
func (s *Service) ValidateSession(ctx context.Context, claims Claims) (bool, error) {
	sub := claims.Subject

	blacklisted, err := s.cache.Get(ctx, tokenBlacklistKey(sub, claims.Nonce), nil)
	if err != nil {
		return false, fmt.Errorf("read blacklist record: %w", err)
	}
	if blacklisted {
		return false, nil
	}

	var issuedAt int64
	tracked, err := s.cache.Get(ctx, nonceTrackingKey(sub, claims.Nonce), &issuedAt)
	if err != nil {
		return false, fmt.Errorf("read nonce record: %w", err)
	}
	if !tracked {
		return false, nil
	}

	if s.now().Unix()-issuedAt > int64(s.tokenTTL.Seconds()) {
		// Stale session: the tracking record outlived the validity window.
		// Blacklist it so the rejection sticks even if the record lingers.
		if err := s.InvalidateSession(ctx, claims); err != nil {
			s.logger.Warn("stale_session_invalidation_failed", map[string]any{
				"user_id": sub,
				"error":   err.Error(),
			})
		}
		return false, nil
	}

	return true, nil
}

// InvalidateSession revokes the session behind the claims. The blacklist
// write is the authoritative reject signal and happens first; a failed
// delete of the tracking record is harmless because the blacklist shadows it.
func (s *Service) InvalidateSession(ctx context.Context, claims Claims) error {
	sub := claims.Subject

	blacklistErr := s.cache.Set(ctx, tokenBlacklistKey(sub, claims.Nonce), true, s.tokenTTL)

	if err := s.cache.Delete(ctx, nonceTrackingKey(sub, claims.Nonce)); err != nil {
		s.logger.Warn("nonce_tracking_delete_failed", map[string]any{
			"user_id": sub,
			"error":   err.Error(),
		})
	}

	if blacklistErr != nil {
		return fmt.Errorf("write blacklist record: %w", blacklistErr)
	}

	return nil
}

// LoginResult is what a successful login hands back to the HTTP layer.
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	User        user.Public `json:"user"`
}

func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return LoginResult{}, err
	}

	token, _, err := s.IssueToken(ctx, u)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{AccessToken: token, User: u.Public()}, nil
}

func (s *Service) Logout(ctx context.Context, claims Claims) error {
	return s.InvalidateSession(ctx, claims)
}

// ParseToken verifies the token signature and registered claims (HS256 only).
func (s *Service) ParseToken(tokenString string) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, err
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" || claims.Nonce == "" {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}

func (s *Service) LookupUser(ctx context.Context, id string) (user.User, error) {
	return s.store.GetByID(ctx, id)
}

func randomNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
