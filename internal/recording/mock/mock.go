// Package mock provides a test double for the [recording.Engine] interface.
// The mock records every call and is safe for concurrent use.
package mock

import (
	"context"
	"sync"
)

// Engine is a configurable test double for [recording.Engine].
type Engine struct {
	mu     sync.Mutex
	starts []string
	stops  int

	// StartErr is returned by [Engine.Start] when non-nil.
	StartErr error

	// StopErr is returned by [Engine.Stop] when non-nil.
	StopErr error
}

// Starts returns the paths passed to every Start call.
func (m *Engine) Starts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.starts))
	copy(out, m.starts)
	return out
}

// Stops returns how many times Stop was called.
func (m *Engine) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// Start implements [recording.Engine].
func (m *Engine) Start(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return m.StartErr
	}
	m.starts = append(m.starts, path)
	return nil
}

// Stop implements [recording.Engine].
func (m *Engine) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StopErr != nil {
		return m.StopErr
	}
	m.stops++
	return nil
}
