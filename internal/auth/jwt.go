// Package auth issues and verifies session tokens and hashes local
// passwords.
package auth

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Gee2424/HubFreelance-sub001/internal/normalize"
)

// DefaultKID names the single key built by NewJWTManager.
const DefaultKID = "default"

// ErrInvalidToken is returned for tokens that fail parsing or validation.
var ErrInvalidToken = errors.New("invalid token")

// JWTManager signs and validates JWT tokens used by the API.
type JWTManager struct {
	keys      map[string][]byte // kid -> HMAC secret; older kids stay for verification
	activeKID string            // kid used for new tokens
	duration  time.Duration     // token lifetime
}

// Claims is the session payload: local user id, email and role.
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWTManager returns a JWTManager with a single signing key.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return NewJWTManagerFromKeys(map[string]string{DefaultKID: secretKey}, DefaultKID, duration)
}

// NewJWTManagerFromKeys returns a JWTManager that signs with activeKID and
// accepts tokens signed by any key in keys. If activeKID is not in keys the
// lexically first kid is used.
func NewJWTManagerFromKeys(keys map[string]string, activeKID string, duration time.Duration) *JWTManager {
	m := &JWTManager{
		keys:      make(map[string][]byte, len(keys)),
		activeKID: activeKID,
		duration:  duration,
	}
	kids := make([]string, 0, len(keys))
	for kid, secret := range keys {
		m.keys[kid] = []byte(secret)
		kids = append(kids, kid)
	}
	if _, ok := m.keys[activeKID]; !ok && len(kids) > 0 {
		sort.Strings(kids)
		m.activeKID = kids[0]
	}
	return m
}

// ActiveKID returns the kid stamped on newly issued tokens.
func (m *JWTManager) ActiveKID() string { return m.activeKID }

// Duration returns the token lifetime.
func (m *JWTManager) Duration() time.Duration { return m.duration }

// GenerateToken issues a signed JWT for a user.
func (m *JWTManager) GenerateToken(userID int64, email, role string) (string, time.Time, error) {
	secret, ok := m.keys[m.activeKID]
	if !ok {
		return "", time.Time{}, errors.New("no signing key configured")
	}

	now := time.Now()
	expiresAt := now.Add(m.duration)
	claims := &Claims{
		UserID: userID,
		Email:  normalize.Email(email),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   fmt.Sprintf("%d", userID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	// kid header lets VerifyToken pick the right secret after rotation
	token.Header["kid"] = m.activeKID

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// only HMAC; rejects alg=none and asymmetric confusion
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			kid = m.activeKID
		}
		secret, ok := m.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword returns a bcrypt hash for the provided plaintext.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(hash, password string) error {
	// constant-time comparison inside bcrypt
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
