package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	apierrors "stocksetup/internal/errors"
)

const userIDKey contextKey = "user_id"

// WorkspaceResolver resolves a bearer token to the workspace user it
// authenticates. The Notion client implements this against /v1/users/me.
type WorkspaceResolver interface {
	ResolveUser(ctx context.Context, token string) (string, error)
}

// WorkspaceAuth authenticates requests with a Notion integration token and
// stores the resolved user ID in the request context.
func WorkspaceAuth(resolver WorkspaceResolver, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrUnauthorized))
				return
			}

			userID, err := resolver.ResolveUser(r.Context(), token)
			if err != nil {
				logger.WarnContext(r.Context(), "token resolution failed",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("error", err.Error()),
				)
				render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrUnauthorized))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
