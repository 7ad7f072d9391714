package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/raushankrgupta/product-sourcing/utils"
	"go.uber.org/zap"
)

type contextKey string

const reviewerKey contextKey = "reviewer"

// AuthConfig holds the shared secrets accepted by AuthMiddleware.
type AuthConfig struct {
	CronSecret string
	JWTSecret  string
}

// Enabled reports whether any secret is configured.
func (a AuthConfig) Enabled() bool {
	return a.CronSecret != "" || a.JWTSecret != ""
}

// AuthMiddleware accepts "Bearer <CRON_SECRET>" or a JWT signed with
// JWT_SECRET. The token subject becomes the reviewer. With no secret
// configured every request passes.
func AuthMiddleware(cfg AuthConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled() {
				next.ServeHTTP(w, r.WithContext(WithReviewer(r.Context(), "anonymous")))
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				utils.RespondError(w, logger, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if cfg.CronSecret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(cfg.CronSecret)) == 1 {
				next.ServeHTTP(w, r.WithContext(WithReviewer(r.Context(), "cron")))
				return
			}
			if cfg.JWTSecret != "" {
				reviewer, err := utils.ValidateToken(cfg.JWTSecret, token)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithReviewer(r.Context(), reviewer)))
					return
				}
				logger.Debug("Token rejected", zap.Error(err))
			}
			utils.RespondError(w, logger, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

func WithReviewer(ctx context.Context, reviewer string) context.Context {
	return context.WithValue(ctx, reviewerKey, reviewer)
}

// ReviewerFromContext returns the authenticated reviewer, or "" if none.
func ReviewerFromContext(ctx context.Context) string {
	reviewer, _ := ctx.Value(reviewerKey).(string)
	return reviewer
}

// CORSMiddleware allows browser clients such as the admin UI.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
