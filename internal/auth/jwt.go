package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/storefront/internal/domain/user"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// tokenIssuer tags every token this service signs; validation rejects
// tokens minted by anything else that happens to share the secret.
const tokenIssuer = "storefront"

// Claims is the access-token payload: enough identity to authorize a
// request without a user lookup per call. Ownership checks on orders match
// against UserID or Email, so both ride in the token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token carries the admin role.
func (c *Claims) IsAdmin() bool {
	return c.Role == user.RoleAdmin
}

// JWTService signs and validates the access/refresh token pair. Access
// tokens carry full claims; refresh tokens carry only the subject and are
// scoped to the refresh endpoint by their cookie path.
type JWTService struct {
	secretKey     []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	parser        *jwt.Parser
}

func NewJWTService(secretKey string, accessExpiry, refreshExpiry time.Duration) *JWTService {
	return &JWTService{
		secretKey:     []byte(secretKey),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
		),
	}
}

// GenerateAccessToken signs a short-lived token holding the user's identity.
func (s *JWTService) GenerateAccessToken(userID, email, role string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.accessExpiry)
	signed, err := s.sign(Claims{
		UserID:           userID,
		Email:            email,
		Role:             role,
		RegisteredClaims: registered(userID, expiresAt),
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// GenerateRefreshToken signs a long-lived token carrying only the user id.
func (s *JWTService) GenerateRefreshToken(userID string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.refreshExpiry)
	signed, err := s.sign(registered(userID, expiresAt))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken checks signature, expiry, and issuer, and returns the
// embedded claims.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	var claims Claims
	if err := s.parse(tokenString, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// ValidateRefreshToken checks a refresh token and returns the user id it
// was issued for.
func (s *JWTService) ValidateRefreshToken(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	if err := s.parse(tokenString, &claims); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func registered(subject string, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func (s *JWTService) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
}

func (s *JWTService) parse(tokenString string, claims jwt.Claims) error {
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
