package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kobbycode/prestige-merchandise/internal/domain"
)

// IdentityMiddleware resolves the acting account from request headers
// (replace with real JWT validation). The staff flag decides notification
// suppression and admin-only routes.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := domain.Actor{
			ID:    r.Header.Get("X-User-ID"),
			Staff: r.Header.Get("X-User-Role") == domain.RoleStaff,
		}

		ctx := context.WithValue(r.Context(), "actor", actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), "request_id", requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getActorFromContext(ctx context.Context) domain.Actor {
	if actor, ok := ctx.Value("actor").(domain.Actor); ok {
		return actor
	}
	return domain.Actor{}
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value("request_id").(string); ok {
		return requestID
	}
	return ""
}
