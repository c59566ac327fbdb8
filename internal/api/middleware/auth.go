package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

type contextKey string

const producerContextKey contextKey = "producer"

// ProducerFromContext returns the authenticated producer. It is nil when
// authentication is disabled.
func ProducerFromContext(ctx context.Context) *domain.Producer {
	p, _ := ctx.Value(producerContextKey).(*domain.Producer)
	return p
}

// ProducerAuth resolves the bearer key of every request to a registered
// producer. With an empty registry authentication is disabled and requests
// pass through anonymously.
func ProducerAuth(producers domain.ProducerStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if producers.Len() == 0 {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			producer, err := producers.GetByAPIKeyHash(r.Context(), hashAPIKey(parts[1]))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			if !producer.Active {
				writeError(w, http.StatusForbidden, "producer is disabled")
				return
			}

			setLoggedProducer(r.Context(), producer.ID)
			ctx := context.WithValue(r.Context(), producerContextKey, producer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects authenticated producers lacking permission.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := ProducerFromContext(r.Context())
			if p != nil && !p.Can(permission) {
				writeError(w, http.StatusForbidden, "producer lacks "+permission+" permission")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OwnWorkspace only lets a producer address its own {producer} path segment.
func OwnWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := ProducerFromContext(r.Context())
		if p != nil && chi.URLParam(r, "producer") != p.ID {
			writeError(w, http.StatusForbidden, "workspace belongs to another producer")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// HashAPIKey is exported for use when registering producers.
func HashAPIKey(key string) string {
	return hashAPIKey(key)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
