// Package mock provides a test double for the [overlay.Surface] interface.
//
// The mock records every command for assertion in tests. It is safe for
// concurrent use via an internal [sync.Mutex].
package mock

import (
	"sync"

	"github.com/MrWong99/riskguard/pkg/telephony"
)

// Call records the name and arguments of a single surface command.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the arguments passed to the method, in order.
	Args []any
}

// Surface is a recording test double for [overlay.Surface].
type Surface struct {
	mu    sync.Mutex
	calls []Call
}

// Calls returns a copy of all recorded commands.
func (m *Surface) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Surface) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded commands.
func (m *Surface) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *Surface) record(method string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Args: args})
}

// ShowOverlay implements [overlay.Surface].
func (m *Surface) ShowOverlay(number string, direction telephony.Direction) {
	m.record("ShowOverlay", number, direction)
}

// UpdateOverlay implements [overlay.Surface].
func (m *Surface) UpdateOverlay(number string, direction telephony.Direction) {
	m.record("UpdateOverlay", number, direction)
}

// UpdateRisk implements [overlay.Surface].
func (m *Surface) UpdateRisk(score int, level, explanation string) {
	m.record("UpdateRisk", score, level, explanation)
}

// UpdateAIResult implements [overlay.Surface].
func (m *Surface) UpdateAIResult(probability float64, isSynthetic bool) {
	m.record("UpdateAIResult", probability, isSynthetic)
}

// ShowPostCallDetails implements [overlay.Surface].
func (m *Surface) ShowPostCallDetails(number string) {
	m.record("ShowPostCallDetails", number)
}

// HideOverlay implements [overlay.Surface].
func (m *Surface) HideOverlay() {
	m.record("HideOverlay")
}
