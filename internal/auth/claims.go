package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload minted at login. The nonce scopes the token to
// a single session: the signature alone cannot be revoked, but the server-side
// record tracking the nonce can.
type Claims struct {
	Username string `json:"username"`
	Nonce    string `json:"nonce"`
	jwt.RegisteredClaims
}

// Cache keys are namespaced per account so entries never collide across
// accounts even if a nonce value repeated.
func nonceTrackingKey(sub, nonce string) string {
	return fmt.Sprintf("nonce_tracking:%s:%s", sub, nonce)
}

func tokenBlacklistKey(sub, nonce string) string {
	return fmt.Sprintf("token_blacklist:%s:%s", sub, nonce)
}
