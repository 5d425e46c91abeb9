package testutil

import (
	"time"

	"github.com/Usama125/ResumeAgentAI-sub000/libs/auth"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DemoAccountID  = "00000000-0000-0000-0000-000000000001"
	OtherAccountID = "00000000-0000-0000-0000-000000000002"
)

func GenerateJWT(accountID string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	claims := auth.Claims{
		Roles:  []string{"user"},
		Scopes: []string{"quota"},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "resume-accounts",
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
