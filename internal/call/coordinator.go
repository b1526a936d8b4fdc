// Package call implements the call session coordinator: the state machine
// that turns raw telephony signals into call sessions and drives the side
// effects around them — overlay commands, audio capture, block-list checks,
// history persistence, and post-call notifications.
//
// The coordinator behaves as a single-writer actor. Telephony signals,
// analysis-engine callbacks, and timer firings arrive concurrently from
// independent sources; all of them serialize on one mutex, so session state
// mutates in arrival order. No downstream fault may keep the coordinator
// outside [StateIdle] indefinitely — failures are logged and the machine
// keeps moving, with a watchdog teardown as the backstop.
package call

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/riskguard/internal/notify"
	"github.com/MrWong99/riskguard/internal/observe"
	"github.com/MrWong99/riskguard/internal/recording"
	"github.com/MrWong99/riskguard/internal/store"
	"github.com/MrWong99/riskguard/pkg/bridge"
	"github.com/MrWong99/riskguard/pkg/overlay"
	"github.com/MrWong99/riskguard/pkg/telephony"
)

const (
	// defaultDetailDelay is how long after call end the post-call details
	// are shown.
	defaultDetailDelay = 1 * time.Second

	// defaultTeardownDelay is the total window after call end before the
	// overlay is hidden and session state released.
	defaultTeardownDelay = 6 * time.Second

	// defaultMaxCallDuration bounds how long a session may stay non-idle
	// before the watchdog forces it closed.
	defaultMaxCallDuration = 4 * time.Hour

	// postCallAlertThreshold is the minimum final risk score that triggers
	// a post-call notification.
	postCallAlertThreshold = 60

	// aiAlertThreshold is the minimum synthetic-voice probability that
	// triggers an AI-voice notification.
	aiAlertThreshold = 0.7
)

// Coordinator owns the single in-memory call session and every decision
// about it. All exported methods are safe for concurrent use.
type Coordinator struct {
	mu      sync.Mutex
	state   State
	sess    *session
	enabled bool

	blocklist  *store.Blocklist
	history    *store.History
	contacts   *store.Contacts
	settings   *store.Settings
	recorder   *recording.Controller
	dispatcher *notify.Dispatcher
	surface    overlay.Surface
	rejecter   telephony.Rejecter
	metrics    *observe.Metrics
	now        func() time.Time

	detailDelay     time.Duration
	teardownDelay   time.Duration
	maxCallDuration time.Duration
}

// CoordinatorConfig holds all dependencies for a [Coordinator].
type CoordinatorConfig struct {
	Store      *store.Store
	Recorder   *recording.Controller
	Dispatcher *notify.Dispatcher
	Surface    overlay.Surface

	// Rejecter is the optional OS call-rejection capability. When nil,
	// blocked calls are observed but never rejected.
	Rejecter telephony.Rejecter

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// MaxCallDuration bounds session lifetime before the watchdog forces
	// teardown. Defaults to 4 hours if zero.
	MaxCallDuration time.Duration

	// DetailDelay and TeardownDelay override the post-call timings.
	// Intended for tests; both default to their production values.
	DetailDelay   time.Duration
	TeardownDelay time.Duration

	// Now overrides the clock. Defaults to [time.Now].
	Now func() time.Time
}

// NewCoordinator creates a [Coordinator] with the given dependencies. Call
// [Coordinator.Start] afterwards to restore the persisted monitoring state.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	c := &Coordinator{
		blocklist:       cfg.Store.Blocklist(),
		history:         cfg.Store.History(),
		contacts:        cfg.Store.Contacts(),
		settings:        cfg.Store.Settings(),
		recorder:        cfg.Recorder,
		dispatcher:      cfg.Dispatcher,
		surface:         cfg.Surface,
		rejecter:        cfg.Rejecter,
		metrics:         cfg.Metrics,
		now:             cfg.Now,
		detailDelay:     cfg.DetailDelay,
		teardownDelay:   cfg.TeardownDelay,
		maxCallDuration: cfg.MaxCallDuration,
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.detailDelay <= 0 {
		c.detailDelay = defaultDetailDelay
	}
	if c.teardownDelay <= 0 {
		c.teardownDelay = defaultTeardownDelay
	}
	if c.maxCallDuration <= 0 {
		c.maxCallDuration = defaultMaxCallDuration
	}
	return c
}

// Start restores the persisted monitoring flag so that protection resumes
// across process restarts.
func (c *Coordinator) Start(ctx context.Context) error {
	enabled, err := c.settings.ProtectionEnabled(ctx)
	if err != nil {
		return fmt.Errorf("call: restore monitoring state: %w", err)
	}
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
	slog.Info("call monitoring restored", "enabled", enabled)
	return nil
}

// Close cancels any pending session timers. The coordinator must not be
// used afterwards.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		c.sess.timers.cancel()
	}
}

// StartMonitoring enables signal processing and persists the flag.
func (c *Coordinator) StartMonitoring(ctx context.Context) error {
	return c.setMonitoring(ctx, true)
}

// StopMonitoring disables signal processing and persists the flag. An open
// session is not interrupted; only new signals are dropped.
func (c *Coordinator) StopMonitoring(ctx context.Context) error {
	return c.setMonitoring(ctx, false)
}

func (c *Coordinator) setMonitoring(ctx context.Context, enabled bool) error {
	if err := c.settings.SetProtectionEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("call: persist monitoring state: %w", err)
	}
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
	slog.Info("call monitoring toggled", "enabled", enabled)
	return nil
}

// Monitoring reports whether signals are currently processed.
func (c *Coordinator) Monitoring() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentRecordingPath returns the in-flight capture path, empty when no
// recording is active.
func (c *Coordinator) CurrentRecordingPath() string {
	return c.recorder.CurrentPath()
}

// HandleSignal applies one telephony state transition. Signals received
// while monitoring is disabled are dropped.
func (c *Coordinator) HandleSignal(ctx context.Context, sig telephony.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		slog.Debug("signal dropped, monitoring disabled", "state", sig.State)
		return
	}
	if !sig.State.IsValid() {
		slog.Warn("unrecognised call state", "state", sig.State)
		return
	}

	switch sig.State {
	case telephony.StateRinging:
		c.handleRinging(ctx, sig.Number)
	case telephony.StateOffHook:
		c.handleOffHook(ctx, sig.Number)
	case telephony.StateIdle:
		c.handleIdle(ctx)
	}
}

// HandleDial opens an outgoing session for a dial-initiated event. The
// off-hook signal that follows attaches to this session.
func (c *Coordinator) HandleDial(ctx context.Context, ev telephony.DialEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		slog.Debug("dial event dropped, monitoring disabled")
		return
	}
	if c.state == StateRinging || c.state == StateActive {
		// A dial during a live session is an OS quirk; ignore it.
		slog.Warn("dial event during live session ignored", "number", ev.Number)
		return
	}
	c.reapEndingSession()
	c.openSession(ctx, ev.Number, telephony.DirectionOutgoing)
}

// UpdateRisk applies an asynchronous risk result from the analysis engine.
// Results arriving with no live session are dropped.
func (c *Coordinator) UpdateRisk(ctx context.Context, u bridge.RiskUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil || c.state == StateEnding {
		slog.Debug("risk update with no live session dropped", "score", u.Score)
		return
	}

	level := u.Level
	if level == "" {
		level = RiskLevel(u.Score)
	}
	c.sess.riskScore = u.Score
	c.sess.riskLevel = level
	c.sess.explanation = u.Explanation
	if c.sess.overlayVisible {
		c.surface.UpdateRisk(u.Score, level, u.Explanation)
	}

	c.autoBlock(ctx, u.Score)
}

// UpdateAIResult applies an asynchronous voice-classification result from
// the analysis engine.
func (c *Coordinator) UpdateAIResult(ctx context.Context, r bridge.AIResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil || c.state == StateEnding {
		slog.Debug("AI result with no live session dropped", "probability", r.Probability)
		return
	}

	c.sess.aiProbability = r.Probability
	c.sess.aiSynthetic = r.IsSynthetic
	if c.sess.overlayVisible {
		c.surface.UpdateAIResult(r.Probability, r.IsSynthetic)
	}
}

// handleRinging opens an incoming session. A pending teardown from the
// previous session is cancelled first so a stale timer can never hide the
// new session's overlay.
func (c *Coordinator) handleRinging(ctx context.Context, number string) {
	switch c.state {
	case StateRinging, StateActive:
		// Duplicate ringing for the live session; nothing to reconcile.
		slog.Debug("duplicate ringing signal ignored", "number", number)
		return
	case StateEnding:
		c.reapEndingSession()
	}
	c.openSession(ctx, number, telephony.DirectionIncoming)
}

// openSession creates the session, applies block-list policy, and shows the
// overlay for unblocked numbers. Must be called with c.mu held and no live
// session.
func (c *Coordinator) openSession(ctx context.Context, number string, direction telephony.Direction) {
	s := &session{
		id:        uuid.NewString(),
		number:    number,
		direction: direction,
		startedAt: c.now(),
		timers:    newSessionTimers(),
	}
	c.sess = s
	c.state = StateRinging

	c.metrics.CallsObserved.Add(ctx, 1, metric.WithAttributes(
		attribute.String("direction", string(direction)),
	))
	c.metrics.ActiveSessions.Add(ctx, 1)

	// Stuck-call backstop.
	c.sess.timers.schedule(c.maxCallDuration, func() {
		c.forceTeardown(s.id)
	})

	if direction == telephony.DirectionIncoming && number != "" {
		blocked, err := c.blocklist.IsBlocked(ctx, number)
		if err != nil {
			slog.Error("block list lookup failed", "number", number, "error", err)
		}
		if blocked {
			s.blocked = true
			c.metrics.CallsBlocked.Add(ctx, 1)
			slog.Info("blocked call suppressed", "session_id", s.id, "number", number)
			c.rejectBlocked(ctx, number)
			return
		}
	}

	if number != "" {
		if contact, ok, err := c.contacts.Get(ctx, number); err != nil {
			slog.Error("contact lookup failed", "number", number, "error", err)
		} else if ok {
			s.knownContact = true
			s.callerName = contact.Name
		}
	}

	c.surface.ShowOverlay(number, direction)
	s.overlayVisible = true
	slog.Info("call session opened",
		"session_id", s.id,
		"number", number,
		"direction", direction,
		"known_contact", s.knownContact,
	)

	// Seed the overlay with the offline heuristic; the analysis engine
	// overwrites it as soon as real results arrive.
	if a, err := AnalyzeNumber(number); err == nil && a.Score > 0 {
		s.riskScore = a.Score
		s.riskLevel = RiskLevel(a.Score)
		s.explanation = strings.Join(a.Factors, ", ")
		c.surface.UpdateRisk(s.riskScore, s.riskLevel, s.explanation)
	}
}

// rejectBlocked asks the OS to reject the ringing call, when the capability
// exists and auto-response is enabled. Advisory only.
func (c *Coordinator) rejectBlocked(ctx context.Context, number string) {
	if c.rejecter == nil {
		return
	}
	bs, err := c.settings.Blocking(ctx)
	if err != nil {
		slog.Error("blocking settings lookup failed", "error", err)
		return
	}
	msg := ""
	if bs.SendAutoResponse {
		msg = bs.AutoResponseMessage
	}
	if err := c.rejecter.Reject(number, msg); err != nil {
		slog.Warn("call rejection failed", "number", number, "error", err)
	}
}

// handleOffHook marks the session connected and starts audio capture. A
// missing session means the dial event was lost (or the process cold-started
// mid-call); an outgoing session is synthesized so monitoring still works.
func (c *Coordinator) handleOffHook(ctx context.Context, number string) {
	switch c.state {
	case StateActive:
		slog.Debug("duplicate off-hook signal ignored")
		return
	case StateEnding:
		c.reapEndingSession()
		fallthrough
	case StateIdle:
		c.openSession(ctx, number, telephony.DirectionOutgoing)
	}

	s := c.sess
	if s.number == "" && number != "" {
		s.number = number
	}
	s.answeredAt = c.now()
	c.state = StateActive

	if path, err := c.recorder.Start(ctx, s.id); err != nil {
		slog.Error("recording start failed", "session_id", s.id, "error", err)
	} else {
		s.recordingPath = path
		c.metrics.RecordingsStarted.Add(ctx, 1)
	}

	if s.overlayVisible {
		c.surface.UpdateOverlay(s.number, s.direction)
	}
	slog.Info("call connected", "session_id", s.id, "number", s.number)
}

// handleIdle closes the live session: stop capture, persist the history
// snapshot, fire notifications, and schedule the deferred post-call actions.
// Duplicate idle signals are no-ops.
func (c *Coordinator) handleIdle(ctx context.Context) {
	if c.state == StateIdle || c.state == StateEnding || c.sess == nil {
		slog.Debug("idle signal with no live session ignored")
		return
	}

	s := c.sess
	endedAt := c.now()

	if path, err := c.recorder.Stop(ctx); err != nil {
		slog.Error("recording stop failed", "session_id", s.id, "error", err)
	} else if path != "" {
		s.recordingPath = path
	}

	record := store.CallRecord{
		PhoneNumber:   s.number,
		CallerName:    s.callerName,
		CallType:      s.direction,
		Duration:      s.duration(endedAt),
		Timestamp:     endedAt,
		RiskScore:     s.riskScore,
		RiskLevel:     s.riskLevel,
		AIProbability: s.aiProbability,
		WasBlocked:    s.blocked,
	}
	if _, err := c.history.Add(ctx, record); err != nil {
		slog.Error("history write failed", "session_id", s.id, "error", err)
	}

	c.metrics.CallDuration.Record(ctx, record.Duration.Seconds())
	c.metrics.RiskScore.Record(ctx, int64(record.RiskScore))
	if record.AIProbability >= aiAlertThreshold {
		c.metrics.AIDetections.Add(ctx, 1)
	}

	if record.RiskScore >= postCallAlertThreshold {
		c.dispatcher.PostCallAlert(ctx, record)
	}
	if record.AIProbability >= aiAlertThreshold {
		c.dispatcher.AIVoiceAlert(ctx, s.number, s.callerName, record.AIProbability)
	}

	c.state = StateEnding
	slog.Info("call session closed",
		"session_id", s.id,
		"number", s.number,
		"duration", record.Duration,
		"risk_score", record.RiskScore,
		"was_blocked", record.WasBlocked,
	)

	if s.overlayVisible {
		s.timers.schedule(c.detailDelay, func() {
			c.showPostCallDetails(s.id)
		})
	}
	s.timers.schedule(c.teardownDelay, func() {
		c.forceTeardown(s.id)
	})
}

// showPostCallDetails runs on the detail timer; it re-checks session
// identity under the lock because a new session may have started meanwhile.
func (c *Coordinator) showPostCallDetails(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.sess.id != sessionID {
		return
	}
	c.surface.ShowPostCallDetails(c.sess.number)
}

// forceTeardown releases the identified session and returns to idle. Runs on
// the teardown timer and the watchdog.
func (c *Coordinator) forceTeardown(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.sess.id != sessionID {
		return
	}
	if c.state != StateEnding {
		slog.Warn("watchdog closing stuck session",
			"session_id", sessionID, "state", c.state.String())
	}
	c.releaseSession()
}

// reapEndingSession discards a session sitting in its teardown window so a
// new one can open. Must be called with c.mu held.
func (c *Coordinator) reapEndingSession() {
	if c.sess == nil {
		return
	}
	c.releaseSession()
}

// releaseSession cancels timers, hides the overlay, and returns to idle.
// Must be called with c.mu held and c.sess non-nil.
func (c *Coordinator) releaseSession() {
	s := c.sess
	s.timers.cancel()
	if s.overlayVisible {
		c.surface.HideOverlay()
	}
	c.metrics.ActiveSessions.Add(context.Background(), -1)
	c.sess = nil
	c.state = StateIdle
}

// autoBlock applies the auto-block policy for a live risk score. Must be
// called with c.mu held.
func (c *Coordinator) autoBlock(ctx context.Context, score int) {
	if c.sess == nil || c.sess.number == "" || c.sess.blocked {
		return
	}
	bs, err := c.settings.Blocking(ctx)
	if err != nil {
		slog.Error("blocking settings lookup failed", "error", err)
		return
	}
	if !bs.AutoBlockEnabled || score < bs.AutoBlockThreshold {
		return
	}
	reason := fmt.Sprintf("Auto-blocked: risk score %d%%", score)
	if err := c.blocklist.Block(ctx, c.sess.number, reason, true); err != nil {
		slog.Error("auto-block failed", "number", c.sess.number, "error", err)
		return
	}
	slog.Info("number auto-blocked", "number", c.sess.number, "score", score)
}
