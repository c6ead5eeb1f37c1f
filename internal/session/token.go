package session

import (
	"crypto/sha256"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
)

// NormalizeToken strips the artifacts that creep into persisted tokens:
// surrounding whitespace, a JSON string encoding, stray quote characters and
// a leading "Bearer " scheme.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)

	if strings.HasPrefix(token, `"`) {
		var unquoted string
		if err := json.Unmarshal([]byte(token), &unquoted); err == nil {
			token = strings.TrimSpace(unquoted)
		}
	}

	token = strings.Trim(token, `"'`)

	if len(token) > len("bearer ") && strings.EqualFold(token[:len("bearer ")], "bearer ") {
		token = strings.TrimSpace(token[len("bearer "):])
	}

	return strings.Trim(token, `"'`)
}

// tokenExpired reports whether token is a JWT whose exp claim is at or
// before now. Opaque tokens and JWTs without exp never expire client side.
// The signature is not checked; the server remains the authority.
func tokenExpired(token string, now time.Time) bool {
	if strings.Count(token, ".") != 2 {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}

	return !now.Before(exp.Time)
}

// Fingerprint returns a short, log safe identifier for token.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return base58.Encode(sum[:8])
}
