package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims are the JWT claims carried by admin tokens.
type AdminClaims struct {
	AdminID  uint64 `json:"admin_id"` // Admin row ID.
	Username string `json:"username"` // Admin login name.
	jwt.RegisteredClaims
}

var errEmptySecret = errors.New("security: empty jwt secret")

// SignAdminToken issues a signed admin token valid for ttl.
func SignAdminToken(secret string, adminID uint64, username string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errEmptySecret
	}
	now := time.Now().UTC()
	claims := AdminClaims{
		AdminID:  adminID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseAdminToken validates a signed admin token and returns its claims.
func ParseAdminToken(secret, raw string) (*AdminClaims, error) {
	if secret == "" {
		return nil, errEmptySecret
	}
	claims := &AdminClaims{}
	token, errParse := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("security: unexpected signing method")
		}
		return []byte(secret), nil
	})
	if errParse != nil {
		return nil, errParse
	}
	if !token.Valid {
		return nil, errors.New("security: invalid token")
	}
	return claims, nil
}
