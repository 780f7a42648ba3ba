package order

// OrderState implements the state pattern for checkout transitions.
type OrderState interface {
	Status() Status
	OnConfirmationStarted(o *Order) (OrderState, error)
	OnConfirmationAborted(o *Order, reason string) (OrderState, error)
	OnPaymentConfirmed(o *Order) (OrderState, error)
	OnPaymentRejected(o *Order, reason string) (OrderState, error)
	OnStockUnavailable(o *Order, reason string) (OrderState, error)
}

func stateFor(s Status) OrderState {
	switch s {
	case StatusPending:
		return pendingState{}
	case StatusConfirming:
		return confirmingState{}
	case StatusCompleted:
		return completedState{}
	case StatusPaymentFailed:
		return paymentFailedState{}
	case StatusStockUnavailable:
		return stockUnavailableState{}
	default:
		return manualState{}
	}
}

// terminal rejects every transition; embedded by states that never move again.
type terminal struct{}

func (terminal) OnConfirmationStarted(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (terminal) OnConfirmationAborted(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (terminal) OnPaymentConfirmed(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (terminal) OnPaymentRejected(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (terminal) OnStockUnavailable(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type pendingState struct{ terminal }

func (pendingState) Status() Status { return StatusPending }

func (pendingState) OnConfirmationStarted(o *Order) (OrderState, error) {
	o.FailureReason = ""
	return confirmingState{}, nil
}

func (pendingState) OnPaymentRejected(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return paymentFailedState{}, nil
}

type confirmingState struct{ terminal }

func (confirmingState) Status() Status { return StatusConfirming }

func (confirmingState) OnConfirmationAborted(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	o.PaymentID = ""
	return pendingState{}, nil
}

func (confirmingState) OnPaymentConfirmed(o *Order) (OrderState, error) {
	o.FailureReason = ""
	return completedState{}, nil
}

func (confirmingState) OnStockUnavailable(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return stockUnavailableState{}, nil
}

type completedState struct{ terminal }

func (completedState) Status() Status { return StatusCompleted }

// A failed signature may be followed by a genuine confirmation for the same gateway order.
type paymentFailedState struct{ terminal }

func (paymentFailedState) Status() Status { return StatusPaymentFailed }

func (paymentFailedState) OnConfirmationStarted(o *Order) (OrderState, error) {
	o.FailureReason = ""
	return confirmingState{}, nil
}

func (paymentFailedState) OnPaymentRejected(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return paymentFailedState{}, nil
}

type stockUnavailableState struct{ terminal }

func (stockUnavailableState) Status() Status { return StatusStockUnavailable }

type manualState struct{ terminal }

func (manualState) Status() Status { return StatusManual }
