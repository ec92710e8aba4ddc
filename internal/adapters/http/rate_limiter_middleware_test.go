package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) IsAllowed(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestRateLimiterMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		allowed bool
		err     error
		want    int
	}{
		{"allowed", true, nil, http.StatusOK},
		{"limited", false, nil, http.StatusTooManyRequests},
		{"backend down fails open", false, errors.New("redis down"), http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(MockLimiter)
			repo.On("IsAllowed", mock.Anything, "192.0.2.1", 10, time.Minute).Return(tc.allowed, tc.err)
			mw := NewRateLimiterMiddleware(repo, 10, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

			req := httptest.NewRequest(http.MethodGet, "/payment/notify/x", nil)
			req.RemoteAddr = "192.0.2.1:4321"
			rec := httptest.NewRecorder()
			mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {})).ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusTooManyRequests {
				assert.Equal(t, "60", rec.Header().Get("Retry-After"))
			}
		})
	}
}
