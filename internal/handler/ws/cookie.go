package ws

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

const cookieName = "chopbot_session"

// signToken produces the cookie value "<token>.<hmac>" so a tampered token
// is rejected on the next handshake.
func signToken(token, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token))
	return token + "." + hex.EncodeToString(mac.Sum(nil))
}

// verifyCookie extracts the session token from a signed cookie value.
func verifyCookie(value, secret string) (string, bool) {
	token, sig, ok := strings.Cut(value, ".")
	if !ok || token == "" {
		return "", false
	}
	want := signToken(token, secret)
	if !hmac.Equal([]byte(token+"."+sig), []byte(want)) {
		return "", false
	}
	return token, true
}

// sessionCookie builds the Set-Cookie header value for the handshake
// response.
func sessionCookie(token, secret string) *http.Cookie {
	return &http.Cookie{
		Name:     cookieName,
		Value:    signToken(token, secret),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
