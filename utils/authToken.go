package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/o1egl/paseto"
)

// AccessTokenExpiry is the lifetime of an access token.
const AccessTokenExpiry = 24 * time.Hour

// Roles accepted on clinic routes.
const (
	RoleAdmin        = "Admin"
	RoleMedic        = "Medic"
	RoleReceptionist = "Receptionist"
	RolePatient      = "Patient"
)

var (
	ErrTokenExpired            = errors.New("token expired")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)

// TokenClaims struct represents the data in the token. Tenant binds the token to one clinic.
type TokenClaims struct {
	UserID string    `json:"userId"`
	Role   string    `json:"role"`
	Tenant string    `json:"tenant"`
	Expiry time.Time `json:"expiry"`
}

// TokenIssuer encrypts and decrypts PASETO v2 local tokens with a 32 byte key.
type TokenIssuer struct {
	key []byte
	now func() time.Time
}

// NewTokenIssuer checks the key length and returns an issuer.
func NewTokenIssuer(symmetricKey string) (*TokenIssuer, error) {
	if len(symmetricKey) != 32 {
		return nil, fmt.Errorf("symmetric key must be 32 bytes long, got %d", len(symmetricKey))
	}
	return &TokenIssuer{key: []byte(symmetricKey), now: time.Now}, nil
}

// GenerateAccessToken issues a token for a user of tenant.
func (t *TokenIssuer) GenerateAccessToken(userID, role, tenant string) (string, error) {
	claims := TokenClaims{
		UserID: userID,
		Role:   role,
		Tenant: tenant,
		Expiry: t.now().Add(AccessTokenExpiry),
	}
	token, err := paseto.NewV2().Encrypt(t.key, claims, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

// ValidateToken validates the given token string and checks for expiry and required roles.
func (t *TokenIssuer) ValidateToken(tokenString string, requiredRoles ...string) (*TokenClaims, error) {
	var claims TokenClaims
	if err := paseto.NewV2().Decrypt(tokenString, t.key, &claims, nil); err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}

	if t.now().After(claims.Expiry) {
		return nil, ErrTokenExpired
	}

	// If no roles are required, any valid token is acceptable
	if len(requiredRoles) == 0 {
		return &claims, nil
	}
	for _, role := range requiredRoles {
		if claims.Role == role {
			return &claims, nil
		}
	}
	return nil, ErrInsufficientPermissions
}
