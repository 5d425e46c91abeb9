package auth

import (
	"errors"
	"strings"
)

// ErrNoCredentials means the request carried no Authorization header at all.
var ErrNoCredentials = errors.New("no credentials")

// Resolver turns an Authorization header into an account id.
type Resolver struct {
	secret []byte
}

func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

// Resolve returns ErrNoCredentials for an empty header and ErrInvalidToken for anything
// that is present but cannot be verified.
func (r *Resolver) Resolve(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", ErrNoCredentials
	}
	token := ExtractBearer(header)
	if token == "" || len(r.secret) == 0 {
		return "", ErrInvalidToken
	}
	claims, err := ParseJWT(token, r.secret)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
