// Package auth issues and parses the JWTs used by the authentication flow.
package auth

import (
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carries the full user identity inside issued tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// JWTIssuer mints HS256-signed access and refresh tokens. It never mutates
// the user it is handed.
type JWTIssuer struct {
	secretKey       []byte
	accessValidity  time.Duration
	refreshValidity time.Duration
}

// NewJWTIssuer constructs an issuer with the given signing secret and
// per-kind token lifetimes.
func NewJWTIssuer(secretKey []byte, accessValidity, refreshValidity time.Duration) *JWTIssuer {
	return &JWTIssuer{
		secretKey:       secretKey,
		accessValidity:  accessValidity,
		refreshValidity: refreshValidity,
	}
}

// GenerateAccessToken returns a short-lived token carrying the user identity.
func (i *JWTIssuer) GenerateAccessToken(user *models.User) (string, error) {
	return i.generate(user, i.accessValidity)
}

// GenerateRefreshToken returns a long-lived token. A random jti is included
// so that repeated issuance for the same user yields distinct token strings.
func (i *JWTIssuer) GenerateRefreshToken(user *models.User) (string, error) {
	return i.generate(user, i.refreshValidity)
}

func (i *JWTIssuer) generate(user *models.User, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})

	tokenString, err := token.SignedString(i.secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseClaims validates tokenString against the signing secret and returns
// its claims. Invalid or expired tokens yield common.ErrInvalidToken.
func (i *JWTIssuer) ParseClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secretKey, nil
	})
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
