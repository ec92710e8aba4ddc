package domain

import (
	"errors"
	"log/slog"
)

// Error kinds. Every failure of the engine wraps exactly one of these.
var (
	ErrConfiguration          = errors.New("gateway configuration error")
	ErrRemote                 = errors.New("remote transaction error")
	ErrValidation             = errors.New("remote transaction validation failed")
	ErrBadRequest             = errors.New("bad request")
	ErrAcknowledgementPending = errors.New("provider acknowledgement pending")
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrPaymentExists   = errors.New("payment already exists for order and gateway")
	ErrRemoteNotFound  = errors.New("remote transaction not found")
)

// CheckoutError carries the identifying context operators need to diagnose a
// failed checkout step. Error() returns only the human readable message.
type CheckoutError struct {
	Kind     error
	Op       string
	OrderID  string
	RemoteID string
	Status   RemoteStatus
	Msg      string
	Err      error
}

func (e *CheckoutError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Kind.Error()
}

func (e *CheckoutError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// LogAttrs returns the error context as slog attributes.
func (e *CheckoutError) LogAttrs() []any {
	attrs := []any{slog.String("op", e.Op), slog.String("order_id", e.OrderID)}
	if e.RemoteID != "" {
		attrs = append(attrs, slog.String("remote_id", e.RemoteID))
	}
	if e.Status != "" {
		attrs = append(attrs, slog.String("status", string(e.Status)))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.Any("cause", e.Err))
	}
	return attrs
}

// ErrorAttrs extracts log attributes from err when it is a CheckoutError.
func ErrorAttrs(err error) []any {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return append(ce.LogAttrs(), slog.String("error", err.Error()))
	}
	return []any{slog.String("error", err.Error())}
}
