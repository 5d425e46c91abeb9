// Package fingerprint derives the identifiers used to track anonymous clients.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const delimiter = "|"

// Signal is the set of per-request client hints. Missing fields are empty strings.
type Signal struct {
	Address        string
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
	Accept         string
	DoNotTrack     bool
	Screen         string
	Timezone       string
}

// Derive hashes the full signal into a stable opaque fingerprint.
// DoNotTrack is a preference and does not take part in the hash.
func Derive(s Signal) string {
	return digest(
		s.Address,
		s.UserAgent,
		s.AcceptLanguage,
		s.AcceptEncoding,
		s.Accept,
		s.Screen,
		s.Timezone,
	)
}

func digest(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, delimiter)))
	return hex.EncodeToString(sum[:])
}
