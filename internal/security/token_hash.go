package security

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
)

// HashRefreshToken produces the ledger key for a refresh token. The pepper is
// a server-side secret so a leaked sessions table cannot be replayed.
func HashRefreshToken(token, pepper string) string {
	sum := sha256.Sum256([]byte(token + pepper))
	return hex.EncodeToString(sum[:])
}

func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
