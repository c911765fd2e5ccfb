package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
)

// AdminClaims identifies an operator calling the admin API.
type AdminClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// GenerateAdminJWT issues an HS256 token for the admin API valid for ttl.
func GenerateAdminJWT(operator, secret string, ttl time.Duration) (string, error) {
	if operator == "" {
		return "", fmt.Errorf("operator is required")
	}
	now := time.Now()
	claims := &AdminClaims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateAdminJWT validates and parses an admin token
func ValidateAdminJWT(tokenString, secret string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnauthorized, "invalid admin token")
	}

	if claims, ok := token.Claims.(*AdminClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New(errors.ErrCodeUnauthorized, "invalid admin token")
}
