// Package gate implements the exam time-window check. Every candidate-facing
// request is classified as locked, open or expired from the current server
// time and the global exam window, before any session lookup happens, so a
// locked or expired response never reveals whether a token is valid.
package gate

// State classifies a request against the exam window.
type State int

const (
	// Open means the window admits the request.
	Open State = iota
	// Locked means the window has not opened yet.
	Locked
	// Expired means the window has closed.
	Expired
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case Locked:
		return "locked"
	case Expired:
		return "expired"
	default:
		return "open"
	}
}

// Decision is the result of evaluating the gate. The timing fields are
// returned to rejected clients so they can render a countdown and schedule
// a retry without guessing at the server clock.
type Decision struct {
	State     State
	ServerNow int64
	OpenAtUTC int64
	EndAtUTC  int64
}

// Evaluate classifies nowMillis against the window. An OpenAtUTC of zero
// disables gating entirely; a zero duration means the window never expires.
// All times are epoch milliseconds.
func Evaluate(nowMillis, openAtUTC, durationSeconds int64) Decision {
	d := Decision{
		State:     Open,
		ServerNow: nowMillis,
		OpenAtUTC: openAtUTC,
		EndAtUTC:  openAtUTC + durationSeconds*1000,
	}

	if openAtUTC == 0 {
		return d
	}
	if nowMillis < openAtUTC {
		d.State = Locked
		return d
	}
	if durationSeconds > 0 && nowMillis > d.EndAtUTC {
		d.State = Expired
		return d
	}
	return d
}
