package api

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/openshelf/openshelf/pkg/openshelf"
)

type contextKey string

const actorKey contextKey = "openshelf.actor"

// NewTokenAuth builds the JWT verifier used by the router.
func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// ActorFromContext returns the authenticated caller, if any.
func ActorFromContext(ctx context.Context) (openshelf.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(openshelf.Actor)
	return actor, ok
}

// WithActor extracts the verified caller identity from the JWT claims and
// stores it on the request context. The token is trusted verbatim: subject,
// email and group membership come straight from the claims.
func WithActor(moderatorGroup string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil || token == nil {
				respondErrorCode(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing or invalid token")
				return
			}

			sub, _ := claims["sub"].(string)
			if sub == "" {
				respondErrorCode(w, r, http.StatusUnauthorized, CodeUnauthorized, "token has no subject")
				return
			}

			actor := openshelf.Actor{ID: sub}
			actor.Email, _ = claims["email"].(string)
			actor.Moderator = inGroup(claims, moderatorGroup)

			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireModerator rejects callers outside the moderator group.
func RequireModerator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			respondErrorCode(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing or invalid token")
			return
		}
		if !actor.Moderator {
			respondErrorCode(w, r, http.StatusForbidden, CodeForbidden, "moderator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func inGroup(claims map[string]interface{}, group string) bool {
	if group == "" {
		return false
	}
	raw, ok := claims["groups"].([]interface{})
	if !ok {
		return false
	}
	for _, g := range raw {
		if s, ok := g.(string); ok && s == group {
			return true
		}
	}
	return false
}
