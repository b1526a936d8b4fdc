// Package telephony defines the signal types delivered by the OS-level
// telephony observer to the RiskGuard core.
//
// The core never originates or terminates calls; it consumes the canonical
// call-state signals (ringing, off-hook, idle) plus the separate
// dial-initiated event fired for outgoing calls. Signals carry the remote
// phone number when the OS exposes it.
//
// This package lives under pkg/ because platform adapters (the Android
// bridge, test harnesses) are expected to produce values of these types.
package telephony

// CallState is the canonical OS call state carried by a [Signal].
type CallState string

const (
	// StateRinging indicates an incoming call is ringing.
	StateRinging CallState = "ringing"

	// StateOffHook indicates a call is connected (answered or dialing out).
	StateOffHook CallState = "offhook"

	// StateIdle indicates no call is in progress.
	StateIdle CallState = "idle"
)

// IsValid reports whether s is a recognised call state.
func (s CallState) IsValid() bool {
	switch s {
	case StateRinging, StateOffHook, StateIdle:
		return true
	}
	return false
}

// Signal is a single telephony state transition observed on the device.
type Signal struct {
	// State is the canonical call state after the transition.
	State CallState

	// Number is the remote phone number, when the OS exposes it. May be
	// empty (hidden caller ID, or an off-hook/idle signal without a number).
	Number string
}

// DialEvent is fired when an outgoing call is initiated. It arrives
// independently of the off-hook [Signal] and carries the dialed number.
type DialEvent struct {
	// Number is the dialed phone number.
	Number string
}

// Direction classifies a call session as incoming or outgoing.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Rejecter optionally rejects a ringing call and sends an auto-response
// message. Actual call rejection is an OS capability; implementations that
// lack it should return nil without acting. May be implemented by platform
// adapters alongside the signal source.
type Rejecter interface {
	// Reject asks the OS to end the ringing call from number. The message,
	// when non-empty, is sent to the caller as an auto-response text.
	Reject(number, message string) error
}
