package signal

import (
	"fmt"
	"sync"
)

// CallState models the observable phases of a single call as seen from
// one side. Each participant mirrors this machine locally, driven by
// broker events.
type CallState int32

const (
	CallIdle CallState = iota
	CallOfferSent
	CallIncomingOfferPending
	CallAnswerSent
	CallAwaitingAnswer
	CallConnected
	CallEnded
)

func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "idle"
	case CallOfferSent:
		return "offer_sent"
	case CallIncomingOfferPending:
		return "incoming_offer_pending"
	case CallAnswerSent:
		return "answer_sent"
	case CallAwaitingAnswer:
		return "awaiting_answer"
	case CallConnected:
		return "connected"
	case CallEnded:
		return "ended"
	}
	return "unknown"
}

// CallEvent drives state machine transitions.
type CallEvent int

const (
	// EventStartCall user started a call with local media ready
	EventStartCall CallEvent = iota
	// EventOfferDelivered transport confirmed the offer push went out
	EventOfferDelivered
	// EventOfferReceived a newOfferAwaiting push arrived
	EventOfferReceived
	// EventAccept user accepted, local answer created and submitted
	EventAccept
	// EventAnswerReceived the answerResponse push arrived
	EventAnswerReceived
	// EventAnsweredSignal the lightweight callAnswered push arrived
	EventAnsweredSignal
	// EventTrackObserved a remote media track was observed
	EventTrackObserved
	// EventHangUp local user hung up
	EventHangUp
	// EventRemoteHangUp the callEnded push arrived
	EventRemoteHangUp
	// EventICEFailure connectivity establishment failed
	EventICEFailure
	// EventReset a finished call is cleared so a new one can start
	EventReset
)

func (e CallEvent) String() string {
	switch e {
	case EventStartCall:
		return "start_call"
	case EventOfferDelivered:
		return "offer_delivered"
	case EventOfferReceived:
		return "offer_received"
	case EventAccept:
		return "accept"
	case EventAnswerReceived:
		return "answer_received"
	case EventAnsweredSignal:
		return "answered_signal"
	case EventTrackObserved:
		return "track_observed"
	case EventHangUp:
		return "hang_up"
	case EventRemoteHangUp:
		return "remote_hang_up"
	case EventICEFailure:
		return "ice_failure"
	case EventReset:
		return "reset"
	}
	return "unknown"
}

// CallStateMachine tracks one side of one call. At most one offer is
// outstanding per call by construction: starting a new call is only
// legal from idle, so a superseding offer first resets the machine.
type CallStateMachine struct {
	mu    sync.Mutex
	state CallState
}

// NewCallStateMachine starts in idle.
func NewCallStateMachine() *CallStateMachine {
	return &CallStateMachine{state: CallIdle}
}

// State returns the current state.
func (m *CallStateMachine) State() CallState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Apply transitions on the event. Invalid transitions leave the state
// unchanged and return ErrInvalidTransition.
func (m *CallStateMachine) Apply(event CallEvent) (CallState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, ok := transition(m.state, event)
	if !ok {
		return m.state, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, m.state)
	}
	m.state = next
	return next, nil
}

func transition(state CallState, event CallEvent) (CallState, bool) {
	// Hang-ups and ICE failure end the call from every active state.
	switch event {
	case EventHangUp, EventRemoteHangUp, EventICEFailure:
		if state != CallIdle && state != CallEnded {
			return CallEnded, true
		}
		return state, false
	}

	switch state {
	case CallIdle:
		switch event {
		case EventStartCall:
			return CallOfferSent, true
		case EventOfferReceived:
			return CallIncomingOfferPending, true
		}
	case CallOfferSent:
		switch event {
		case EventOfferDelivered:
			return CallAwaitingAnswer, true
		case EventAnswerReceived:
			// the transport gives no delivery receipt for pushes, so
			// the answer may be the first thing heard back
			return CallConnected, true
		}
	case CallAwaitingAnswer:
		if event == EventAnswerReceived {
			return CallConnected, true
		}
	case CallIncomingOfferPending:
		if event == EventAccept {
			return CallAnswerSent, true
		}
	case CallAnswerSent:
		switch event {
		case EventAnsweredSignal, EventTrackObserved:
			return CallConnected, true
		}
	case CallEnded:
		if event == EventReset {
			return CallIdle, true
		}
	}
	return state, false
}
