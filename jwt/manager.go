// Package jwt implements the bearer token codec: compact, claim-bearing
// HS256 tokens signed with a distinct symmetric secret per token kind, so a
// leaked access secret cannot mint refresh tokens.
package jwt

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distinguishes the two token families issued by the codec.
type Kind string

const (
	// KindAccess is the short-lived bearer token presented on every request.
	KindAccess Kind = "access"
	// KindRefresh is the long-lived, single-use token exchanged for new pairs.
	KindRefresh Kind = "refresh"
)

const maxLeeway = 30 * time.Second

// ErrInvalidToken is returned for any token the codec refuses: bad
// signature, wrong kind, malformed claims, or expiry in the past.
var ErrInvalidToken = errors.New("invalid token")

// Config holds codec parameters.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	// Leeway tolerates small clock skew during verification. Capped at 30s
	// so it cannot meaningfully extend token lifetime.
	Leeway time.Duration
}

// Claims is the signed claim set carried by every token.
type Claims struct {
	Kind string `json:"knd"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens. Safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates secrets and TTLs and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) < 32 {
		return nil, errors.New("access secret must be at least 32 bytes")
	}
	if len(cfg.RefreshSecret) < 32 {
		return nil, errors.New("refresh secret must be at least 32 bytes")
	}
	if subtle.ConstantTimeCompare(cfg.AccessSecret, cfg.RefreshSecret) == 1 {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// Issue signs a fresh token of the given kind for subject. Every token
// carries a random jti so it can be revoked individually.
func (m *Manager) Issue(subject string, kind Kind) (string, *Claims, error) {
	ttl, secret, err := m.kindParams(kind)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	claims := &Claims{
		Kind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Verify checks signature, kind, issuer, audience, and expiry. Any failure
// maps to [ErrInvalidToken]; callers get no oracle for why a token was
// rejected.
func (m *Manager) Verify(tokenStr string, kind Kind) (*Claims, error) {
	_, secret, err := m.kindParams(kind)
	if err != nil {
		return nil, err
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != string(kind) {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// DecodeExpired verifies signature and kind but tolerates an elapsed expiry.
// Logout uses it so that expired access tokens can still be revoked.
func (m *Manager) DecodeExpired(tokenStr string, kind Kind) (*Claims, error) {
	_, secret, err := m.kindParams(kind)
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if claims.Kind != string(kind) || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *Manager) kindParams(kind Kind) (time.Duration, []byte, error) {
	switch kind {
	case KindAccess:
		return m.config.AccessTTL, m.config.AccessSecret, nil
	case KindRefresh:
		return m.config.RefreshTTL, m.config.RefreshSecret, nil
	default:
		return 0, nil, fmt.Errorf("unsupported token kind %q", kind)
	}
}
