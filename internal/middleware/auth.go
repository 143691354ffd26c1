package middleware

import (
	"errors"
	"net/http"

	"propmarket-be/internal/auth"
	"propmarket-be/internal/logger"
	"propmarket-be/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var errInvalidClaims = errors.New("token is missing user claims")

// Auth resolves the access token (cookie or Bearer header) into the user
// context. Requests without a valid token pass through anonymously;
// RequireAuth and RequireAdmin reject them on the routes that need a user.
func Auth(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := auth.ExtractAccessToken(r)
			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := parseToken(tokenStr, key)
			if err != nil {
				logger.FromCtx(r.Context()).Debug("ignoring invalid access token", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			uid, _ := claims["user_id"].(float64)
			email, _ := claims["email"].(string)
			role, _ := claims["role"].(string)

			ctx := utils.SetUserContext(r.Context(), uint(uid), email, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseToken(tokenStr string, key []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errInvalidClaims
	}
	if uid, ok := claims["user_id"].(float64); !ok || uid <= 0 {
		return nil, errInvalidClaims
	}
	return claims, nil
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := utils.GetUserIDFromContext(r.Context()); !ok {
			utils.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !utils.IsAdmin(r.Context()) {
			utils.WriteJSONError(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}
