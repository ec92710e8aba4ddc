package http

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"checkout-engine/internal/core/ports"
)

// RateLimiterMiddleware limits public callback traffic per client IP.
type RateLimiterMiddleware struct {
	repo   ports.RateLimiterRepository
	limit  int
	window time.Duration
	logger *slog.Logger
}

func NewRateLimiterMiddleware(repo ports.RateLimiterRepository, limit int, window time.Duration, logger *slog.Logger) *RateLimiterMiddleware {
	return &RateLimiterMiddleware{
		repo:   repo,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Handler fails open: when the limiter backend is down, requests pass.
func (m *RateLimiterMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		allowed, err := m.repo.IsAllowed(r.Context(), ip, m.limit, m.window)
		if err != nil {
			m.logger.Error("rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			w.Header().Set("Retry-After", formatSeconds(m.window))
			writeJSONError(w, "Too Many Requests", http.StatusTooManyRequests, m.logger)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func formatSeconds(d time.Duration) string {
	return strconv.Itoa(int(d.Seconds()))
}
