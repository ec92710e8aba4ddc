package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"checkout-engine/internal/app"
	"checkout-engine/internal/core/domain"
	"checkout-engine/internal/core/ports"
	"checkout-engine/internal/observability"
)

// CheckoutHandler exposes the checkout service to the storefront, the
// customer's browser and the provider.
type CheckoutHandler struct {
	service   ports.CheckoutService
	gatewayID string
	logger    *slog.Logger
}

func NewCheckoutHandler(service ports.CheckoutService, gatewayID string, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service:   service,
		gatewayID: gatewayID,
		logger:    logger,
	}
}

// OrderID reads the order route parameter; used by the OPA middleware.
func OrderID(r *http.Request) string {
	return chi.URLParam(r, "orderID")
}

type checkoutResponse struct {
	RemoteID string `json:"remote_id"`
	Status   string `json:"status"`
	Snippet  string `json:"snippet,omitempty"`
}

type paymentResponse struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	State     string `json:"state"`
	Amount    string `json:"amount"`
}

// HandleStartCheckout creates or refreshes the remote transaction and returns
// the embeddable snippet.
func (h *CheckoutHandler) HandleStartCheckout(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFrom(r.Context(), h.logger)

	tx, err := h.service.StartCheckout(r.Context(), OrderID(r))
	observability.RecordReconciliation("create", outcome(err))
	if err != nil {
		status := statusFor(err)
		logger.Error("start checkout failed", domain.ErrorAttrs(err)...)
		writeJSONError(w, publicMessage(err, status), status, logger)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		RemoteID: tx.ID,
		Status:   string(tx.Status),
		Snippet:  tx.Snippet,
	}, logger)
}

func (h *CheckoutHandler) HandleCompilePayload(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFrom(r.Context(), h.logger)

	payload, err := h.service.CompilePayload(r.Context(), OrderID(r))
	if err != nil {
		status := statusFor(err)
		writeJSONError(w, publicMessage(err, status), status, logger)
		return
	}
	writeJSON(w, http.StatusOK, payload, logger)
}

// HandleReturn handles the customer's redirect back from the provider. A
// validation failure here is expected until the provider finalises.
func (h *CheckoutHandler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFrom(r.Context(), h.logger)
	if !h.ownGateway(w, r.URL.Query().Get(app.QueryGateway), logger) {
		return
	}

	payment, err := h.service.OnReturn(r.Context(), OrderID(r))
	observability.RecordReconciliation("return", outcome(err))
	if err != nil {
		status := statusFor(err)
		writeJSONError(w, publicMessage(err, status), status, logger)
		return
	}

	writeJSON(w, http.StatusOK, paymentResponse{
		PaymentID: payment.ID.String(),
		OrderID:   payment.OrderID,
		State:     string(payment.State),
		Amount:    payment.Amount.String(),
	}, logger)
}

// HandleCancel acknowledges the customer leaving the hosted checkout. The
// order stays as it is so checkout can be restarted.
func (h *CheckoutHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFrom(r.Context(), h.logger)
	if !h.ownGateway(w, r.URL.Query().Get(app.QueryGateway), logger) {
		return
	}
	logger.Info("customer canceled hosted checkout", "order_id", OrderID(r))
	writeJSON(w, http.StatusOK, map[string]string{"order_id": OrderID(r), "status": "canceled"}, logger)
}

// HandleNotify is the provider's push endpoint. Any non-200 answer makes the
// provider retry, so every failure short of success is reported.
func (h *CheckoutHandler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFrom(r.Context(), h.logger)
	if chi.URLParam(r, "gateway") != h.gatewayID {
		writeText(w, http.StatusNotFound, "unknown payment gateway")
		return
	}

	query := r.URL.Query()
	orderID := query.Get(app.QueryOrder)

	err := h.service.OnNotify(r.Context(), orderID)
	observability.RecordReconciliation("notify", outcome(err))
	if err != nil {
		status := statusFor(err)
		if errors.Is(err, domain.ErrBadRequest) {
			logger.Info("notification for invalid order", "order_id", orderID, "query", query.Encode())
		}
		writeText(w, status, publicMessage(err, status))
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *CheckoutHandler) ownGateway(w http.ResponseWriter, gatewayID string, logger *slog.Logger) bool {
	if gatewayID != "" && gatewayID != h.gatewayID {
		writeJSONError(w, "unknown payment gateway", http.StatusNotFound, logger)
		return false
	}
	return true
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadRequest),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrAcknowledgementPending):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRemote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal error text behind 5xx responses.
func publicMessage(err error, status int) string {
	switch status {
	case http.StatusBadGateway:
		return "payment provider unavailable"
	case http.StatusInternalServerError:
		return "internal server error"
	default:
		return err.Error()
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrAcknowledgementPending):
		return "ack_pending"
	case errors.Is(err, domain.ErrValidation):
		return "rejected"
	case errors.Is(err, domain.ErrBadRequest):
		return "bad_request"
	case errors.Is(err, domain.ErrRemote):
		return "remote_error"
	case errors.Is(err, domain.ErrConfiguration):
		return "misconfigured"
	default:
		return "error"
	}
}

// Routes mounts the public callback endpoints.
func (h *CheckoutHandler) Routes(r chi.Router) {
	r.Get("/checkout/{orderID}/"+app.StepPayment+"/return", h.HandleReturn)
	r.Get("/checkout/{orderID}/"+app.StepPayment+"/cancel", h.HandleCancel)
	r.Get("/payment/notify/{gateway}", h.HandleNotify)
	r.Post("/payment/notify/{gateway}", h.HandleNotify)
}

// APIRoutes mounts the storefront API; callers add authentication.
func (h *CheckoutHandler) APIRoutes(r chi.Router) {
	r.Post("/orders/{orderID}/checkout", h.HandleStartCheckout)
	r.Get("/orders/{orderID}/payload", h.HandleCompilePayload)
}
