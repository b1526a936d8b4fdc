package call

import (
	"time"

	"github.com/MrWong99/riskguard/pkg/telephony"
)

// State is the coordinator's position in the call lifecycle.
type State int

const (
	// StateIdle means no call is being tracked.
	StateIdle State = iota

	// StateRinging means a session is open but not yet connected.
	StateRinging

	// StateActive means the call is connected.
	StateActive

	// StateEnding means the call has ended and the session is inside its
	// teardown window.
	StateEnding
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRinging:
		return "ringing"
	case StateActive:
		return "active"
	case StateEnding:
		return "ending"
	}
	return "unknown"
}

// session is the in-memory record of one ringing-to-idle call lifecycle.
// It is owned exclusively by the [Coordinator] and never escapes its mutex;
// the persisted snapshot is written to call history at session close.
type session struct {
	id         string
	number     string
	callerName string
	direction  telephony.Direction

	startedAt  time.Time
	answeredAt time.Time // zero if never connected

	riskScore     int
	riskLevel     string
	explanation   string
	aiProbability float64
	aiSynthetic   bool

	recordingPath  string
	overlayVisible bool
	knownContact   bool
	blocked        bool

	timers *sessionTimers
}

// duration returns the connected time of the session, zero if the call was
// never answered.
func (s *session) duration(endedAt time.Time) time.Duration {
	if s.answeredAt.IsZero() {
		return 0
	}
	return endedAt.Sub(s.answeredAt)
}
