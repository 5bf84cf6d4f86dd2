package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"laststock/internal/pkg/cache"
	"laststock/internal/pkg/logger"
	"laststock/internal/pkg/respond"
)

// RateLimiter limita requisições por IP numa janela fixa, com contadores no cache.
// Falhas do cache liberam a requisição.
func RateLimiter(client cache.Client, limit int, window time.Duration, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			key := "rate-limit:" + ip

			count, ttl, err := client.Hit(r.Context(), key, window)
			if err != nil {
				log.Warn("Rate limiter indisponível; requisição liberada.", map[string]interface{}{"error": err.Error()})
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			if int(count) > limit {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
				respond.JSON(w, http.StatusTooManyRequests, map[string]interface{}{
					"code":     http.StatusTooManyRequests,
					"category": "RATE_LIMITED",
					"message":  "Limite de requisições excedido.",
				})
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limit-int(count)))
			next.ServeHTTP(w, r)
		})
	}
}
