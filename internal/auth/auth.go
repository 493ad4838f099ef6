// Package auth provides Nightscout API authentication using hashed API secrets.
package auth

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

// HeaderAPISecret carries the hashed secret on every Nightscout request.
const HeaderAPISecret = "api-secret"

// minSecretLength is the shortest secret Nightscout accepts.
const minSecretLength = 12

// Credentials holds the hashed API secret for signing requests.
type Credentials struct {
	hashed string
}

// NewCredentials hashes a plain API secret. An already hashed secret
// (40 hex characters) is used as is.
func NewCredentials(secret string) (*Credentials, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("API secret is required")
	}
	if isSHA1Hex(secret) {
		return &Credentials{hashed: strings.ToLower(secret)}, nil
	}
	if len(secret) < minSecretLength {
		return nil, errors.New("API secret must be at least 12 characters")
	}
	return &Credentials{hashed: HashSecret(secret)}, nil
}

// HashSecret returns the lowercase hex SHA1 of secret.
func HashSecret(secret string) string {
	sum := sha1.Sum([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Hashed returns the value sent in the api-secret header.
func (c *Credentials) Hashed() string {
	return c.hashed
}

// SignRequest sets the authentication header on req.
func (c *Credentials) SignRequest(req *http.Request) {
	req.Header.Set(HeaderAPISecret, c.hashed)
}

func isSHA1Hex(s string) bool {
	if len(s) != sha1.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
