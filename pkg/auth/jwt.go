// pkg/auth/jwt.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidClaims = errors.New("invalid token claims")
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	roleAuthenticated = "authenticated"
)

// TokenManager issues and validates session tokens.
type TokenManager struct {
	accessSecret    []byte
	refreshSecret   []byte
	accessDuration  time.Duration
	refreshDuration time.Duration
	issuer          string
	now             func() time.Time
}

func NewTokenManager(accessSecret, refreshSecret string, accessDuration, refreshDuration time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:    []byte(accessSecret),
		refreshSecret:   []byte(refreshSecret),
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
		issuer:          "taskboard",
		now:             time.Now,
	}
}

// Metadata mirrors the user metadata carried in the token.
type Metadata struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Claims are the session token claims. Subject holds the user id.
type Claims struct {
	Email        string   `json:"email"`
	Role         string   `json:"role"`
	Type         string   `json:"type"`
	UserMetadata Metadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenPair is a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

func (tm *TokenManager) GenerateTokenPair(userID, email string, meta Metadata) (TokenPair, error) {
	now := tm.now()

	access, err := tm.generateToken(userID, email, meta, TokenTypeAccess, tm.accessSecret, now, tm.accessDuration)
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate access token: %w", err)
	}
	refresh, err := tm.generateToken(userID, email, meta, TokenTypeRefresh, tm.refreshSecret, now, tm.refreshDuration)
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(tm.accessDuration),
	}, nil
}

func (tm *TokenManager) generateToken(userID, email string, meta Metadata, tokenType string, secret []byte, now time.Time, duration time.Duration) (string, error) {
	claims := Claims{
		Email:        email,
		Role:         roleAuthenticated,
		Type:         tokenType,
		UserMetadata: meta,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    tm.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (tm *TokenManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	return tm.validateToken(tokenString, TokenTypeAccess, tm.accessSecret)
}

func (tm *TokenManager) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return tm.validateToken(tokenString, TokenTypeRefresh, tm.refreshSecret)
}

func (tm *TokenManager) validateToken(tokenString, expectedType string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Type != expectedType {
		return nil, fmt.Errorf("%w: expected %s token, got %s", ErrInvalidClaims, expectedType, claims.Type)
	}
	return claims, nil
}

// PeekExpiry reads the exp claim without verifying the signature. It is
// meant for tokens minted by a remote service whose key we do not hold.
func PeekExpiry(tokenString string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
