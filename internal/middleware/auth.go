package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/lumen-im/server/internal/api"
	"github.com/lumen-im/server/internal/auth"
	"github.com/lumen-im/server/internal/model"
	"github.com/lumen-im/server/internal/repo"
)

type contextKey string

const requesterKey contextKey = "requester"

// RequireAuth resolves the bearer token to a Requester and attaches it to the
// request context. The token must verify, its stored row must still be live
// (device deletion removes it), and the claims must match the row. Guest
// accounts are rejected unless allowGuest is set.
func RequireAuth(jwtService *auth.JWTService, tokenRepo repo.TokenRepo, allowGuest bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.WriteError(w, api.MissingToken("missing access token"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				api.WriteError(w, api.UnknownToken("invalid authorization header format"))
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				api.WriteError(w, api.MissingToken("missing access token"))
				return
			}

			claims, err := jwtService.VerifyToken(tokenString)
			if err != nil {
				api.WriteError(w, api.UnknownToken("invalid or expired access token"))
				return
			}

			// A token stops resolving the moment its device is deleted: the
			// stored row goes away in the same transaction.
			row, err := tokenRepo.FindLiveByHash(r.Context(), auth.HashAccessToken(tokenString))
			if err != nil {
				api.WriteError(w, api.UnknownToken("access token has been invalidated"))
				return
			}
			if row.UserID != claims.UserID || row.DeviceID != claims.DeviceID {
				api.WriteError(w, api.UnknownToken("access token binding mismatch"))
				return
			}

			if claims.Guest && !allowGuest {
				api.WriteError(w, api.Forbidden("guest access not allowed"))
				return
			}

			requester := model.Requester{
				UserID:   claims.UserID,
				DeviceID: claims.DeviceID,
				IsGuest:  claims.Guest,
			}
			ctx := context.WithValue(r.Context(), requesterKey, requester)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequester returns the requester attached to the context by RequireAuth
func GetRequester(ctx context.Context) (model.Requester, bool) {
	requester, ok := ctx.Value(requesterKey).(model.Requester)
	return requester, ok
}
