package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MemberTokenTTL is fixed at issuance time; downstream consumers validate
// against this seven-day window.
const MemberTokenTTL = 7 * 24 * time.Hour

// RoleMember is the role embedded in tokens issued by the exchange endpoint.
const RoleMember = "member"

type memberClaims struct {
	LineUserID string `json:"line_user_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateMemberToken signs an HS256 token whose payload carries the LINE
// user id and role alongside iat/exp.
func GenerateMemberToken(secret, lineUserID string) (string, error) {
	now := time.Now()
	claims := &memberClaims{
		LineUserID: lineUserID,
		Role:       RoleMember,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(MemberTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseMemberToken validates the token and returns the embedded LINE user id
// and role.
func ParseMemberToken(secret, tokenString string) (lineUserID, role string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &memberClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", "", err
	}

	if claims, ok := token.Claims.(*memberClaims); ok && token.Valid {
		return claims.LineUserID, claims.Role, nil
	}

	return "", "", jwt.ErrTokenInvalidClaims
}
