package bridge

import "context"

// Direction says who issued a call.
type Direction uint8

const (
	Outbound Direction = iota // Go → native
	Inbound                   // native → Go
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}

// CallInfo describes a call to an Observer.
type CallInfo struct {
	ContextID string
	Module    string
	Method    string
	Direction Direction
}

// Observer is notified when a call starts. The returned function is called
// exactly once with the call's outcome.
type Observer interface {
	ObserveCall(ctx context.Context, info CallInfo) func(err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, info CallInfo) func(err error)

// ObserveCall implements Observer.
func (f ObserverFunc) ObserveCall(ctx context.Context, info CallInfo) func(err error) {
	return f(ctx, info)
}

// Observers fans out to several observers.
func Observers(observers ...Observer) Observer {
	return multiObserver(observers)
}

type multiObserver []Observer

func (m multiObserver) ObserveCall(ctx context.Context, info CallInfo) func(err error) {
	finishers := make([]func(error), 0, len(m))
	for _, o := range m {
		if o != nil {
			finishers = append(finishers, o.ObserveCall(ctx, info))
		}
	}
	return func(err error) {
		for _, f := range finishers {
			f(err)
		}
	}
}

type nopObserver struct{}

func (nopObserver) ObserveCall(context.Context, CallInfo) func(error) {
	return func(error) {}
}
