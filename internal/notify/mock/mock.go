// Package mock provides a test double for the [notify.Sink] interface.
// The mock records every delivered notification and is safe for concurrent use.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/riskguard/internal/notify"
)

// Sink is a recording test double for [notify.Sink].
type Sink struct {
	mu        sync.Mutex
	delivered []notify.Notification

	// DeliverErr is returned by [Sink.Deliver] when non-nil.
	DeliverErr error
}

// Delivered returns a copy of every notification delivered so far.
func (m *Sink) Delivered() []notify.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notify.Notification, len(m.delivered))
	copy(out, m.delivered)
	return out
}

// DeliveredOf returns the delivered notifications of the given kind.
func (m *Sink) DeliveredOf(kind notify.Kind) []notify.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notify.Notification
	for _, n := range m.delivered {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// Reset clears all recorded notifications.
func (m *Sink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = nil
}

// Deliver implements [notify.Sink].
func (m *Sink) Deliver(_ context.Context, n notify.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeliverErr != nil {
		return m.DeliverErr
	}
	m.delivered = append(m.delivered, n)
	return nil
}
