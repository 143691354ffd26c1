package auth

import (
	"net/http"
	"strings"
)

// AccessTokenCookie is set by the account service on browser sessions.
const AccessTokenCookie = "access_token"

// ExtractAccessToken returns the caller's JWT from the access_token cookie,
// falling back to an Authorization Bearer header. It returns "" when neither
// carries a token.
func ExtractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		if v := strings.TrimSpace(cookie.Value); v != "" {
			return v
		}
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	return ""
}
