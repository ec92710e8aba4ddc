package app

import (
	"context"

	"checkout-engine/internal/core/domain"
)

// TransactionHook rewrites the values sent to the provider before a create
// (StepCreate) or acknowledgement update (StepCreated). The returned map
// replaces the input; returning nil keeps the input unchanged. A non-nil
// error aborts the remote call.
type TransactionHook func(ctx context.Context, order *domain.Order, step domain.Step, values domain.Values) (domain.Values, error)

// Hooks runs registered TransactionHooks in registration order, each seeing
// the previous hook's output. Register everything before serving requests.
type Hooks struct {
	hooks []TransactionHook
}

func NewHooks(hooks ...TransactionHook) *Hooks {
	return &Hooks{hooks: hooks}
}

func (h *Hooks) Register(hook TransactionHook) {
	h.hooks = append(h.hooks, hook)
}

func (h *Hooks) Len() int {
	if h == nil {
		return 0
	}
	return len(h.hooks)
}

// Run invokes every hook synchronously and returns the final values.
func (h *Hooks) Run(ctx context.Context, order *domain.Order, step domain.Step, values domain.Values) (domain.Values, error) {
	if h == nil {
		return values, nil
	}
	for _, hook := range h.hooks {
		out, err := hook(ctx, order, step, values)
		if err != nil {
			return nil, err
		}
		if out != nil {
			values = out
		}
	}
	return values, nil
}
