package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-engine/internal/core/domain"
)

func TestHooks_Run(t *testing.T) {
	ctx := context.Background()
	order := testOrder()

	t.Run("nil chain passes values through", func(t *testing.T) {
		var h *Hooks
		in := domain.Values{"status": "created"}

		out, err := h.Run(ctx, order, domain.StepCreated, in)

		require.NoError(t, err)
		assert.Equal(t, in, out)
		assert.Zero(t, h.Len())
	})

	t.Run("each hook sees the previous output", func(t *testing.T) {
		h := NewHooks()
		h.Register(func(_ context.Context, _ *domain.Order, _ domain.Step, v domain.Values) (domain.Values, error) {
			out := v.Clone()
			out["n"] = 1
			return out, nil
		})
		h.Register(func(_ context.Context, _ *domain.Order, _ domain.Step, v domain.Values) (domain.Values, error) {
			return nil, nil
		})
		h.Register(func(_ context.Context, _ *domain.Order, _ domain.Step, v domain.Values) (domain.Values, error) {
			out := v.Clone()
			out["n"] = v["n"].(int) + 1
			return out, nil
		})

		out, err := h.Run(ctx, order, domain.StepCreate, domain.Values{})

		require.NoError(t, err)
		assert.Equal(t, 2, out["n"])
		assert.Equal(t, 3, h.Len())
	})

	t.Run("error stops the chain", func(t *testing.T) {
		called := false
		h := NewHooks(
			func(context.Context, *domain.Order, domain.Step, domain.Values) (domain.Values, error) {
				return nil, errors.New("rejected")
			},
			func(_ context.Context, _ *domain.Order, _ domain.Step, v domain.Values) (domain.Values, error) {
				called = true
				return v, nil
			},
		)

		_, err := h.Run(ctx, order, domain.StepCreate, domain.Values{})

		assert.EqualError(t, err, "rejected")
		assert.False(t, called)
	})
}
