package domain

import "slices"

// OrderState is a workflow state id.
type OrderState string

const (
	OrderStateDraft      OrderState = "draft"
	OrderStateValidation OrderState = "validation"
	OrderStateCompleted  OrderState = "completed"
	OrderStateCanceled   OrderState = "canceled"
)

// TransitionValidate is applied once the provider acknowledged the payment.
const TransitionValidate = "validate"

type Transition struct {
	ID   string       `json:"id"`
	From []OrderState `json:"from"`
	To   OrderState   `json:"to"`
}

// Workflow is a named set of transitions between order states.
type Workflow struct {
	ID          string       `json:"id"`
	Transitions []Transition `json:"transitions"`
}

// Transition looks up the transition id allowed from the given state.
func (w Workflow) Transition(id string, from OrderState) (Transition, bool) {
	for _, t := range w.Transitions {
		if t.ID == id && slices.Contains(t.From, from) {
			return t, true
		}
	}
	return Transition{}, false
}

// DefaultWorkflow places an order straight into completed.
var DefaultWorkflow = Workflow{
	ID: "order_default",
	Transitions: []Transition{
		{ID: "place", From: []OrderState{OrderStateDraft}, To: OrderStateCompleted},
		{ID: "cancel", From: []OrderState{OrderStateDraft}, To: OrderStateCanceled},
	},
}

// ValidationWorkflow requires a validate step between placing and completion.
var ValidationWorkflow = Workflow{
	ID: "order_default_validation",
	Transitions: []Transition{
		{ID: "place", From: []OrderState{OrderStateDraft}, To: OrderStateValidation},
		{ID: TransitionValidate, From: []OrderState{OrderStateValidation}, To: OrderStateCompleted},
		{ID: "cancel", From: []OrderState{OrderStateDraft, OrderStateValidation}, To: OrderStateCanceled},
	},
}
