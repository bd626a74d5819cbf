package service

import d "github.com/fjod/go_cart/checkout-engine/domain"

type StateName string

const (
	StateInitial    StateName = "Initial"
	StateLoading    StateName = "Loading"
	StateLoaded     StateName = "Loaded"
	StateProcessing StateName = "Processing"
	StateError      StateName = "Error"
	StateSuccess    StateName = "Success"
)

// State is one of InitialState, LoadingState, LoadedState, ProcessingState,
// ErrorState or SuccessState. The set is closed: only this package can add
// variants.
type State interface {
	Name() StateName
	isCheckoutState()
}

// InitialState means no checkout is in progress.
type InitialState struct{}

// LoadingState means payment methods are being fetched for a new session.
type LoadingState struct{}

// LoadedState is the interactive state. Session is a copy.
type LoadedState struct {
	Session CheckoutSession
}

// ProcessingState means a payment, authentication or order query is in
// flight. The session cannot be changed until it lands.
type ProcessingState struct {
	Session CheckoutSession
}

// ErrorState carries a message for the user and, when the gateway supplied
// one, a machine-readable Code. Session is nil when the failure happened
// before a session existed.
type ErrorState struct {
	Message   string
	Code      string
	Err       error
	Retryable bool
	Session   *CheckoutSession
}

// SuccessState holds the confirmed order. The session is gone.
type SuccessState struct {
	Order d.Order
}

func (InitialState) Name() StateName    { return StateInitial }
func (LoadingState) Name() StateName    { return StateLoading }
func (LoadedState) Name() StateName     { return StateLoaded }
func (ProcessingState) Name() StateName { return StateProcessing }
func (ErrorState) Name() StateName      { return StateError }
func (SuccessState) Name() StateName    { return StateSuccess }

func (InitialState) isCheckoutState()    {}
func (LoadingState) isCheckoutState()    {}
func (LoadedState) isCheckoutState()     {}
func (ProcessingState) isCheckoutState() {}
func (ErrorState) isCheckoutState()      {}
func (SuccessState) isCheckoutState()    {}

// detached returns st with its session deep-copied, so a caller holding the
// result cannot change what the engine reports.
func detached(st State) State {
	switch s := st.(type) {
	case LoadedState:
		s.Session = s.Session.clone()
		return s
	case ProcessingState:
		s.Session = s.Session.clone()
		return s
	case ErrorState:
		if s.Session != nil {
			c := s.Session.clone()
			s.Session = &c
		}
		return s
	default:
		return st
	}
}

// sessionOf returns the session a state carries, if any.
func sessionOf(st State) *CheckoutSession {
	switch s := st.(type) {
	case LoadedState:
		return &s.Session
	case ProcessingState:
		return &s.Session
	case ErrorState:
		return s.Session
	case InitialState, LoadingState, SuccessState:
		return nil
	default:
		return nil
	}
}
