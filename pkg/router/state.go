package router

import "time"

// State is a step of the download state machine
type State string

const (
	StateIdle               State = "IDLE"
	StateCheckExisting      State = "CHECK_EXISTING"
	StateProbe              State = "PROBE"
	StateTryAuthenticated   State = "TRY_AUTHENTICATED"
	StateTryUnauthenticated State = "TRY_UNAUTHENTICATED"
	StateSuccess            State = "SUCCESS"
	StateFailed             State = "FAILED"
)

// Terminal reports whether no further transitions follow s
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// Event is one state transition of one request
type Event struct {
	Identifier string
	State      State
	// Strategy and Account are set for attempt states
	Strategy string
	Account  string
	// Err is set on FAILED
	Err error
	At  time.Time
}

// Observer receives every transition. It is called synchronously from the
// goroutine running the download and must not block.
type Observer func(Event)
