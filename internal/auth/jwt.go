// Package auth identifies the viewer behind a request from a signed JWT.
// Issuing tokens is limited to access tokens for local development tooling.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenTypeAccess is the only token type accepted by the API.
	TokenTypeAccess = "access"
	// Issuer is set on every token and required on validation.
	Issuer = "rendezvous"
	// AccessTokenExpiry is the lifetime Issue uses when given none.
	AccessTokenExpiry = 15 * time.Minute
	// DefaultLeeway absorbs clock skew between issuer and API.
	DefaultLeeway = 30 * time.Second
)

// Errors returned by Issue and ValidateToken.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrNoViewer     = errors.New("token needs a viewer ID")
)

// Claims are the JWT claims of an access token. Subject is the viewer's
// profile ID.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// ViewerID returns the profile ID the token was issued for.
func (c *Claims) ViewerID() string { return c.Subject }

// JWTService signs and checks HS256 access tokens. Tokens are always
// signed with the current secret; a previous secret set with
// WithPreviousSecret is still accepted while a rotation is rolled out.
type JWTService struct {
	keys   [][]byte // current first
	leeway time.Duration
	now    func() time.Time
}

// Option configures a JWTService.
type Option func(*JWTService)

// WithPreviousSecret accepts tokens signed with secret as well. Empty is a no-op.
func WithPreviousSecret(secret string) Option {
	return func(s *JWTService) {
		if secret != "" {
			s.keys = append(s.keys, []byte(secret))
		}
	}
}

// WithLeeway overrides DefaultLeeway.
func WithLeeway(d time.Duration) Option {
	return func(s *JWTService) { s.leeway = d }
}

// WithClock replaces time.Now for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) { s.now = now }
}

// NewJWTService returns a service signing with secret.
func NewJWTService(secret string, opts ...Option) *JWTService {
	s := &JWTService{
		keys:   [][]byte{[]byte(secret)},
		leeway: DefaultLeeway,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs an access token for viewerID that expires after ttl, or
// after AccessTokenExpiry when ttl is not positive.
func (s *JWTService) Issue(viewerID string, ttl time.Duration) (string, error) {
	if viewerID == "" {
		return "", ErrNoViewer
	}
	if ttl <= 0 {
		ttl = AccessTokenExpiry
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   viewerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: TokenTypeAccess,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.keys[0])
}

// ValidateToken checks signature, issuer, expiry and type and returns the
// claims. Failures map to ErrExpiredToken or ErrInvalidToken.
func (s *JWTService) ValidateToken(token string) (*Claims, error) {
	var err error
	for _, key := range s.keys {
		var claims *Claims
		claims, err = s.parse(token, key)
		if err == nil {
			if claims.Type != TokenTypeAccess || claims.ViewerID() == "" {
				return nil, ErrInvalidToken
			}
			return claims, nil
		}
		// Expiry is only reported once the signature matched, so no
		// other key can do better.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
	}
	return nil, ErrInvalidToken
}

func (s *JWTService) parse(token string, key []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
