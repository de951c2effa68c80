package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/go-chi/chi/v5/middleware"
)

// UserHeader carries the acting user's id, set by the identity layer in front of this service.
const UserHeader = "X-User-ID"

type actorKey struct{}

// ActorFrom returns the user resolved by [ActorResolver], or nil for anonymous requests.
func ActorFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(actorKey{}).(*models.User)
	return u
}

// WithActor stores actor on ctx.
func WithActor(ctx context.Context, actor *models.User) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorResolver loads the user named by [UserHeader]. Requests without the header proceed anonymously;
// an id that does not resolve is rejected with 401.
func ActorResolver(users UserLookup) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(UserHeader))
			if id == "" || users == nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.Get(r.Context(), id)
			if errors.Is(err, shared.ErrNotFound) {
				writeError(w, shared.ErrNotAuthenticated)
				return
			}
			if err != nil {
				writeError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), user)))
		})
	}
}

// RequestLogger logs one structured line per request.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).Round(time.Microsecond),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
