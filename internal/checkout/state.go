package checkout

// State is a checkout session state.
type State string

const (
	StateCart             State = "cart"
	StateAddressSelection State = "address_selection"
	StatePaymentPending   State = "payment_pending"
	StateVerifying        State = "verifying"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
	StateCancelled        State = "cancelled"
)

// FailureKind separates gateway declines from failed verifications.
type FailureKind string

const (
	// FailureGateway is a payment the gateway declined; the user may retry.
	FailureGateway FailureKind = "gateway"
	// FailureAmbiguous is a verification failure after a gateway success; never retried.
	FailureAmbiguous FailureKind = "ambiguous_payment"
)

var transitions = map[State][]State{
	StateCart:             {StateAddressSelection},
	StateAddressSelection: {StateAddressSelection, StatePaymentPending, StateCart},
	StatePaymentPending:   {StateVerifying, StateCancelled, StateFailed},
	StateVerifying:        {StateCompleted, StateFailed},
	StateCompleted:        {StateCart},
	StateFailed:           {StatePaymentPending, StateVerifying, StateCart},
	StateCancelled:        {StatePaymentPending, StateVerifying, StateFailed, StateCart},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// HoldsPayment reports whether a gateway order is in flight.
func (s State) HoldsPayment() bool {
	return s == StatePaymentPending || s == StateVerifying
}

func (s State) String() string {
	return string(s)
}
