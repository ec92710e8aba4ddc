package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"checkout-engine/internal/core/domain"
)

type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) StartCheckout(ctx context.Context, orderID string) (*domain.RemoteTransaction, error) {
	args := m.Called(ctx, orderID)
	if v := args.Get(0); v != nil {
		return v.(*domain.RemoteTransaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCheckoutService) OnReturn(ctx context.Context, orderID string) (*domain.Payment, error) {
	args := m.Called(ctx, orderID)
	if v := args.Get(0); v != nil {
		return v.(*domain.Payment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCheckoutService) OnNotify(ctx context.Context, orderID string) error {
	return m.Called(ctx, orderID).Error(0)
}

func (m *MockCheckoutService) CompilePayload(ctx context.Context, orderID string) (*domain.TransactionPayload, error) {
	args := m.Called(ctx, orderID)
	if v := args.Get(0); v != nil {
		return v.(*domain.TransactionPayload), args.Error(1)
	}
	return nil, args.Error(1)
}

func newRouter(svc *MockCheckoutService) http.Handler {
	h := NewCheckoutHandler(svc, "hosted_checkout", slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Routes(r)
	r.Route("/api/v1", h.APIRoutes)
	return r
}

func TestHandleNotify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "success", wantCode: http.StatusOK, wantBody: ""},
		{
			name:     "invalid order",
			err:      &domain.CheckoutError{Kind: domain.ErrBadRequest, Msg: `Notify callback called for an invalid order "7"`},
			wantCode: http.StatusBadRequest,
			wantBody: `Notify callback called for an invalid order "7"`,
		},
		{
			name:     "checkout incomplete",
			err:      &domain.CheckoutError{Kind: domain.ErrValidation, Msg: "Invalid order status (checkout_incomplete) received from provider for order 7"},
			wantCode: http.StatusBadRequest,
			wantBody: "Invalid order status (checkout_incomplete) received from provider for order 7",
		},
		{
			name:     "acknowledgement pending",
			err:      &domain.CheckoutError{Kind: domain.ErrAcknowledgementPending, Msg: "Push notification for order 7 ignored"},
			wantCode: http.StatusBadRequest,
			wantBody: "Push notification for order 7 ignored",
		},
		{
			name:     "provider down",
			err:      &domain.CheckoutError{Kind: domain.ErrRemote, Err: fmt.Errorf("dial tcp: refused")},
			wantCode: http.StatusBadGateway,
			wantBody: "payment provider unavailable",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockCheckoutService)
			svc.On("OnNotify", mock.Anything, "7").Return(tc.err)

			req := httptest.NewRequest(http.MethodPost, "/payment/notify/hosted_checkout?order=7&step=complete", nil)
			rec := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(rec, req)

			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantBody, rec.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

func TestHandleNotify_UnknownGateway(t *testing.T) {
	svc := new(MockCheckoutService)

	req := httptest.NewRequest(http.MethodGet, "/payment/notify/other?order=7", nil)
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertNotCalled(t, "OnNotify", mock.Anything, mock.Anything)
}

func TestHandleStartCheckout(t *testing.T) {
	svc := new(MockCheckoutService)
	svc.On("StartCheckout", mock.Anything, "42").Return(&domain.RemoteTransaction{
		ID: "r1", Status: domain.StatusCheckoutIncomplete, Snippet: "<div/>",
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/42/checkout", nil)
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body checkoutResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, checkoutResponse{RemoteID: "r1", Status: "checkout_incomplete", Snippet: "<div/>"}, body)
}

func TestHandleStartCheckout_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown order", &domain.CheckoutError{Kind: domain.ErrBadRequest, Msg: "invalid order 42"}, http.StatusBadRequest},
		{"misconfigured", &domain.CheckoutError{Kind: domain.ErrConfiguration, Msg: "no purchase country"}, http.StatusInternalServerError},
		{"provider", &domain.CheckoutError{Kind: domain.ErrRemote, Err: io.ErrUnexpectedEOF}, http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockCheckoutService)
			svc.On("StartCheckout", mock.Anything, "42").Return(nil, tc.err)

			rec := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders/42/checkout", nil))

			assert.Equal(t, tc.want, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestHandleReturn(t *testing.T) {
	svc := new(MockCheckoutService)
	id := uuid.New()
	svc.On("OnReturn", mock.Anything, "42").Return(&domain.Payment{
		ID: id, OrderID: "42", State: domain.PaymentAuthorization, Amount: domain.MustPrice("11", "EUR"),
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/checkout/42/payment/return?payment_gateway=hosted_checkout", nil)
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body paymentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, paymentResponse{PaymentID: id.String(), OrderID: "42", State: "authorization", Amount: "11.00 EUR"}, body)
}

func TestHandleReturn_NotYetComplete(t *testing.T) {
	svc := new(MockCheckoutService)
	svc.On("OnReturn", mock.Anything, "42").Return(nil, &domain.CheckoutError{
		Kind: domain.ErrValidation, Msg: "No order details returned from provider for order 42",
	})

	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/checkout/42/payment/return", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No order details returned from provider for order 42"}`, rec.Body.String())
}

func TestHandleCancel(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(new(MockCheckoutService)).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/checkout/42/payment/cancel?payment_gateway=other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	newRouter(new(MockCheckoutService)).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/checkout/42/payment/cancel?payment_gateway=hosted_checkout", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
