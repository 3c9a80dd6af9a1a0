package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/encore/internal/platform/errors"
	"github.com/louisbranch/encore/internal/platform/id"
	"github.com/louisbranch/encore/internal/platform/random"
	"github.com/louisbranch/encore/internal/services/companion/storage"
)

const tokenIssuer = "encore"

// TokenSecretKey is the storage key of the generated signing secret.
const TokenSecretKey = "session_token_secret"

// DefaultTokenTTL bounds a session token's lifetime.
const DefaultTokenTTL = 24 * time.Hour

// Tokens issues and verifies HS256 session tokens binding a client to a
// wallet address.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Address string `json:"address"`
}

// NewTokens builds a signer. An empty secret gets 32 random bytes, which
// invalidates tokens across restarts.
func NewTokens(secret string, ttl time.Duration, now func() time.Time) (*Tokens, error) {
	key := []byte(strings.TrimSpace(secret))
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Tokens{secret: key, ttl: ttl, now: now}, nil
}

// LoadOrCreateSecret returns the signing secret kept in store, generating
// and persisting one on first use so tokens survive restarts.
func LoadOrCreateSecret(ctx context.Context, store storage.KeyValueStore) (string, error) {
	if store == nil {
		return "", errors.New("store is required")
	}
	raw, err := store.Get(ctx, TokenSecretKey)
	switch {
	case err == nil:
		if secret := strings.TrimSpace(string(raw)); secret != "" {
			return secret, nil
		}
	case !errors.Is(err, storage.ErrNotFound):
		return "", fmt.Errorf("load token secret: %w", err)
	}

	secret, err := random.Hex(32)
	if err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	if err := store.Put(ctx, TokenSecretKey, []byte(secret)); err != nil {
		return "", fmt.Errorf("persist token secret: %w", err)
	}
	return secret, nil
}

// Issue signs a token for address.
func (t *Tokens) Issue(address string) (string, error) {
	jti, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("token id: %w", err)
	}
	now := t.now().UTC()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   address,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Address: address,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the address a valid token was issued for.
func (t *Tokens) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.E(apperrors.KindUnauthorized, "session token is required")
	}
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", mapJWTError(err)
	}
	if claims.Address == "" || claims.Address != claims.Subject {
		return "", apperrors.E(apperrors.KindUnauthorized, "session token subject mismatch")
	}
	return claims.Address, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.Wrap(apperrors.KindUnauthorized, "session token is expired", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.Wrap(apperrors.KindUnauthorized, "session token signature is invalid", err)
	default:
		return apperrors.Wrap(apperrors.KindUnauthorized, "session token is invalid", err)
	}
}

// TTL reports how long issued tokens stay valid.
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}
