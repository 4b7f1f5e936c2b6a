package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Waesta/Wapos-sub011/internal/utils"
	"go.uber.org/zap"
)

type contextKey string

const userContextKey contextKey = "user"

// statusCSRFExpired is what the ingestion boundary answers when the CSRF
// token is missing or stale. Clients treat it as retryable after refresh.
const statusCSRFExpired = 419

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logger records one line per request, flagging drain-cycle traffic.
func (app *Application) Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		app.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.Bool("sync_request", utils.IsSyncRequest(r)),
		)
	})
}

// AuthUser validates the bearer token and stores the claims on the request
// context. Rejections are 401, which the sync engine retries later rather
// than discarding the queued mutation.
func (app *Application) AuthUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			utils.Unauthorized(w, "missing bearer token")
			return
		}

		claims, err := utils.ParseJWT(strings.TrimPrefix(header, "Bearer "), app.config.JWT)
		if err != nil {
			utils.Unauthorized(w, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCSRF gates state-changing routes on the presence of the CSRF
// header. Token verification lives in the session layer; this boundary only
// ensures clients send one, answering 419 when it is absent.
func (app *Application) RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			if r.Header.Get("X-CSRF-Token") == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(statusCSRFExpired)
				json.NewEncoder(w).Encode(map[string]any{
					"error":   true,
					"status":  "csrf_required",
					"message": "missing CSRF token",
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimiter decides whether a request may proceed. The default
// implementation admits everything; deployments plug in their own.
type RateLimiter interface {
	Allow(r *http.Request) bool
}

type allowAll struct{}

func (allowAll) Allow(*http.Request) bool { return true }

// RateLimit answers 429 when the limiter refuses a request. The sync
// engine backs off and retries the mutation on a later cycle.
func (app *Application) RateLimit(limiter RateLimiter) func(http.Handler) http.Handler {
	if limiter == nil {
		limiter = allowAll{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"error":   true,
					"status":  "rate_limited",
					"message": "too many requests",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
