package auth

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"seasoncast/pkg/errors"
)

// ScopeHistoryRead grants access to stored predictions
const ScopeHistoryRead = "history:read"

var (
	// ErrInvalidToken is returned when token is invalid
	ErrInvalidToken = errors.Wrap(errors.ErrUnauthorized, "invalid token")
	// ErrExpiredToken is returned when token is expired
	ErrExpiredToken = errors.Wrap(errors.ErrUnauthorized, "token expired")
	// ErrMissingClaims is returned when required claims are missing
	ErrMissingClaims = errors.Wrap(errors.ErrUnauthorized, "missing required claims")
)

// Claims identifies an API client and what it may read
type Claims struct {
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token grants scope
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// JWTService handles JWT token generation and validation
type JWTService struct {
	secretKey []byte
	issuer    string
	duration  time.Duration
}

// NewJWTService creates a new JWT service
func NewJWTService(secretKey string, issuer string, duration time.Duration) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		duration:  duration,
	}
}

// GenerateToken signs a token for an API client
func (s *JWTService) GenerateToken(subject string, scopes ...string) (string, error) {
	if subject == "" {
		return "", errors.NewValidationError("subject", "required", subject)
	}

	now := time.Now()
	claims := Claims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken validates a JWT token and returns claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingClaims
	}

	return claims, nil
}
