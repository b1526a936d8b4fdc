// Package mock provides an in-memory test double for the [bridge.Bridge]
// interface. The mock records every call and is safe for concurrent use.
package mock

import (
	"context"
	"sync"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Path is the recording path argument.
	Path string
}

// Bridge is a configurable test double for [bridge.Bridge].
type Bridge struct {
	mu    sync.Mutex
	calls []Call

	// StartedErr is returned by [Bridge.RecordingStarted] when non-nil.
	StartedErr error

	// StoppedErr is returned by [Bridge.RecordingStopped] when non-nil.
	StoppedErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *Bridge) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Bridge) CallCount(method string) int {
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

// RecordingStarted implements [bridge.Bridge].
func (m *Bridge) RecordingStarted(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "RecordingStarted", Path: path})
	return m.StartedErr
}

// RecordingStopped implements [bridge.Bridge].
func (m *Bridge) RecordingStopped(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "RecordingStopped", Path: path})
	return m.StoppedErr
}
