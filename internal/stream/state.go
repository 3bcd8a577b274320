package stream

import "fmt"

// State is a session lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Subscribed
	Degraded
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Subscribed:
		return "subscribed"
	case Degraded:
		return "degraded"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event drives a state transition.
type Event int

const (
	EventStart      Event = iota // Session started
	EventSubscribed              // Subscription acknowledged
	EventFault                   // Recoverable transport or provider fault
	EventRetry                   // Backoff elapsed
	EventFatal                   // Provider error that reconnecting cannot fix
	EventCancel                  // Caller cancelled
	EventClosed                  // Resources released
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventSubscribed:
		return "subscribed"
	case EventFault:
		return "fault"
	case EventRetry:
		return "retry"
	case EventFatal:
		return "fatal"
	case EventCancel:
		return "cancel"
	case EventClosed:
		return "closed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// TransitionError reports an event that is not valid in a state.
type TransitionError struct {
	From  State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s on %s", e.Event, e.From)
}

type transitionKey struct {
	from  State
	event Event
}

var transitions = map[transitionKey]State{
	{Disconnected, EventStart}:    Connecting,
	{Connecting, EventSubscribed}: Subscribed,
	{Connecting, EventFault}:      Degraded,
	{Subscribed, EventFault}:      Degraded,
	{Degraded, EventRetry}:        Connecting,
	{Connecting, EventFatal}:      Closed,
	{Subscribed, EventFatal}:      Closed,
	{Degraded, EventFatal}:        Closed,
	{Disconnected, EventCancel}:   Closing,
	{Connecting, EventCancel}:     Closing,
	{Subscribed, EventCancel}:     Closing,
	{Degraded, EventCancel}:       Closing,
	{Closing, EventClosed}:        Closed,
}

// Transition returns the state reached from s on e. It has no side effects.
func Transition(s State, e Event) (State, error) {
	next, ok := transitions[transitionKey{s, e}]
	if !ok {
		return s, &TransitionError{From: s, Event: e}
	}
	return next, nil
}
