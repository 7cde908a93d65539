package master

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vizsched/vizsched/internal/authn"
	"github.com/vizsched/vizsched/internal/job"
)

type contextKey int

const (
	contextKeyUserID contextKey = iota
	contextKeyToken
	contextKeyAuthOk
)

// Authenticate extracts and resolves the bearer token via auther, storing
// the resulting user id (or job.SandboxUser when the identity provider is
// disabled) and the raw token in the request context for handlers.
func Authenticate(auther authn.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auther.ExtractToken(r)
			if err != nil {
				ErrUnauthorized(w)
				return
			}

			userID, ok, err := auther.Resolve(r.Context(), token)
			if err != nil {
				if errors.Is(err, authn.ErrUnauthorized) {
					ErrUnauthorized(w)
					return
				}
				ErrInternal(w)
				return
			}
			if !ok {
				userID = job.SandboxUser
			}

			ctx := context.WithValue(r.Context(), contextKeyUserID, userID)
			ctx = context.WithValue(ctx, contextKeyToken, token)
			ctx = context.WithValue(ctx, contextKeyAuthOk, ok)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyUserID).(string)
	return id
}

func tokenFromCtx(ctx context.Context) string {
	tok, _ := ctx.Value(contextKeyToken).(string)
	return tok
}

// authEnabledFromCtx reports whether the identity provider actually
// resolved this request's token (as opposed to auth being disabled
// globally, in which case ownership checks are skipped — spec.md §4.4).
func authEnabledFromCtx(ctx context.Context) bool {
	ok, _ := ctx.Value(contextKeyAuthOk).(bool)
	return ok
}

// RequestLogger logs every request with method, path, status and latency,
// the same shape as the teacher's internal/api.RequestLogger.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
