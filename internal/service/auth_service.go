package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"rendezvous/internal/cache"
	"rendezvous/internal/config"
	"rendezvous/internal/middleware"
	"rendezvous/internal/models"
	"rendezvous/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenIssuer   = "rendezvous-api"
	TokenAudience = "rendezvous-client"
)

// TokenClaims is the verified content of an access token.
type TokenClaims struct {
	UserID    uint
	JTI       string
	ExpiresAt time.Time
}

// AuthService hashes passwords and issues, verifies and revokes access tokens.
type AuthService struct {
	users  repository.UserRepository
	rdb    *redis.Client
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthService creates an AuthService. rdb may be nil, in which case tokens cannot be revoked.
func NewAuthService(users repository.UserRepository, rdb *redis.Client, cfg *config.Config) (*AuthService, error) {
	if cfg == nil || cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret not configured")
	}
	method := jwt.GetSigningMethod(cfg.JWTAlgorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported JWT algorithm %q", cfg.JWTAlgorithm)
	}
	ttl := cfg.TokenTTL()
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &AuthService{
		users:  users,
		rdb:    rdb,
		secret: []byte(cfg.JWTSecret),
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// HashPassword returns the bcrypt hash of password.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(hash), nil
}

// Authenticate returns the user owning email when password matches its hash.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}
	return user, nil
}

// IssueToken signs an access token for userID and returns it with its expiry.
func (s *AuthService) IssueToken(userID uint) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    TokenIssuer,
		Audience:  jwt.ClaimStrings{TokenAudience},
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, models.NewInternalError(err)
	}
	return signed, exp, nil
}

// ParseToken verifies signature, algorithm, issuer, audience, expiry and revocation.
func (s *AuthService) ParseToken(ctx context.Context, tokenString string) (*TokenClaims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return nil, models.NewUnauthorizedError("Invalid user ID in token")
	}

	out := &TokenClaims{UserID: uint(userID), JTI: claims.ID, ExpiresAt: claims.ExpiresAt.Time}
	if out.JTI != "" && s.rdb != nil {
		revoked, err := s.rdb.Exists(ctx, cache.BlacklistKey(out.JTI)).Result()
		if err != nil {
			middleware.Logger.WarnContext(ctx, "token revocation check failed", slog.String("error", err.Error()))
		} else if revoked > 0 {
			return nil, models.NewUnauthorizedError("Token has been revoked")
		}
	}
	return out, nil
}

// Revoke blacklists the token until it would have expired anyway.
func (s *AuthService) Revoke(ctx context.Context, claims *TokenClaims) error {
	if s.rdb == nil || claims == nil || claims.JTI == "" {
		return nil
	}
	remaining := claims.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, cache.BlacklistKey(claims.JTI), "1", remaining).Err(); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// TokenTTL is the lifetime of issued tokens.
func (s *AuthService) TokenTTL() time.Duration { return s.ttl }
