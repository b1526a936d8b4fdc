package call

import (
	"sync"
	"time"
)

// sessionTimers tracks the deferred actions belonging to one session: the
// post-call detail show, the overlay teardown, and the stuck-call watchdog.
// Cancelling is idempotent and guarantees that no callback scheduled through
// this instance runs afterwards, so a new session can safely cancel its
// predecessor's timers before arming its own.
type sessionTimers struct {
	mu        sync.Mutex
	timers    []*time.Timer
	cancelled bool
}

func newSessionTimers() *sessionTimers {
	return &sessionTimers{}
}

// schedule runs fn after d unless [sessionTimers.cancel] is called first.
// The cancelled check is re-taken inside the callback to close the race
// where the timer fires while cancel holds the lock.
func (st *sessionTimers) schedule(d time.Duration, fn func()) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cancelled {
		return
	}
	t := time.AfterFunc(d, func() {
		st.mu.Lock()
		dead := st.cancelled
		st.mu.Unlock()
		if dead {
			return
		}
		fn()
	})
	st.timers = append(st.timers, t)
}

// cancel stops all pending timers. Safe to call multiple times.
func (st *sessionTimers) cancel() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cancelled {
		return
	}
	st.cancelled = true
	for _, t := range st.timers {
		t.Stop()
	}
	st.timers = nil
}
