package call

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/riskguard/internal/notify"
	notifymock "github.com/MrWong99/riskguard/internal/notify/mock"
	"github.com/MrWong99/riskguard/internal/recording"
	recordingmock "github.com/MrWong99/riskguard/internal/recording/mock"
	"github.com/MrWong99/riskguard/internal/store"
	"github.com/MrWong99/riskguard/pkg/bridge"
	bridgemock "github.com/MrWong99/riskguard/pkg/bridge/mock"
	overlaymock "github.com/MrWong99/riskguard/pkg/overlay/mock"
	"github.com/MrWong99/riskguard/pkg/telephony"
)

// fixture wires a coordinator against real SQLite stores and mock
// externals, with short post-call timings so tests can wait for teardown.
type fixture struct {
	coord   *Coordinator
	store   *store.Store
	surface *overlaymock.Surface
	sink    *notifymock.Sink
	engine  *recordingmock.Engine
	bridge  *bridgemock.Bridge
}

const (
	testDetailDelay   = 10 * time.Millisecond
	testTeardownDelay = 40 * time.Millisecond
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "riskguard.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	surface := &overlaymock.Surface{}
	sink := &notifymock.Sink{}
	engine := &recordingmock.Engine{}
	br := &bridgemock.Bridge{}

	rec := recording.New(recording.Config{
		Engine:    engine,
		Bridge:    br,
		Directory: filepath.Join(dir, "recordings"),
	})
	disp := notify.New(notify.Config{
		Sink:      sink,
		Blocklist: st.Blocklist(),
		Surface:   surface,
	})

	coord := NewCoordinator(CoordinatorConfig{
		Store:         st,
		Recorder:      rec,
		Dispatcher:    disp,
		Surface:       surface,
		DetailDelay:   testDetailDelay,
		TeardownDelay: testTeardownDelay,
	})
	if err := coord.StartMonitoring(ctx); err != nil {
		t.Fatalf("start monitoring: %v", err)
	}
	t.Cleanup(coord.Close)

	return &fixture{coord: coord, store: st, surface: surface, sink: sink, engine: engine, bridge: br}
}

// waitForState polls until the coordinator reaches want or the deadline
// passes.
func waitForState(t *testing.T, c *Coordinator, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", c.State(), want)
}

func TestCoordinator_CompleteIncomingCall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateRinging, Number: "+15551234567"})
	if got := f.coord.State(); got != StateRinging {
		t.Fatalf("state after ringing = %v", got)
	}
	if f.surface.CallCount("ShowOverlay") != 1 {
		t.Error("expected overlay shown")
	}

	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateOffHook, Number: "+15551234567"})
	if got := f.coord.State(); got != StateActive {
		t.Fatalf("state after off-hook = %v", got)
	}
	if len(f.engine.Starts()) != 1 {
		t.Error("expected one capture start")
	}
	if f.coord.CurrentRecordingPath() == "" {
		t.Error("expected in-flight recording path")
	}

	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateIdle})
	if got := f.coord.State(); got != StateEnding {
		t.Fatalf("state after idle = %v", got)
	}
	if f.engine.Stops() != 1 {
		t.Error("expected capture stopped")
	}

	// Exactly one history record per completed session.
	records, err := f.store.History().All(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("history records = %d, want 1", len(records))
	}
	r := records[0]
	if r.PhoneNumber != "+15551234567" || r.CallType != telephony.DirectionIncoming {
		t.Errorf("record = %+v", r)
	}
	if r.WasBlocked {
		t.Error("unblocked call recorded as blocked")
	}

	// Teardown window: details shown after the short delay, overlay hidden
	// and state released after the total window.
	waitForState(t, f.coord, StateIdle)
	if f.surface.CallCount("ShowPostCallDetails") != 1 {
		t.Error("expected post-call details")
	}
	if f.surface.CallCount("HideOverlay") != 1 {
		t.Error("expected overlay hidden")
	}
}

func TestCoordinator_BlockedCallSuppressesOverlay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if err := f.store.Blocklist().Block(ctx, "+15559999999", "spam", false); err != nil {
		t.Fatalf("block: %v", err)
	}

	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateRinging, Number: "+15559999999"})
	if f.surface.CallCount("ShowOverlay") != 0 {
		t.Error("blocked call must not show the overlay")
	}

	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateIdle})

	records, _ := f.store.History().All(ctx)
	if len(records) != 1 {
		t.Fatalf("history records = %d, want 1", len(records))
	}
	if !records[0].WasBlocked {
		t.Error("expected wasBlocked on the history record")
	}
	if records[0].Duration != 0 {
		t.Errorf("never-answered duration = %v, want 0", records[0].Duration)
	}
}

func TestCoordinator_NewRingingCancelsPendingTeardown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateRinging, Number: "+15551111111"})
	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateOffHook, Number: "+15551111111"})
	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateIdle})

	// New call arrives inside the 6s-equivalent window.
	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateRinging, Number: "+15552222222"})
	if got := f.coord.State(); got != StateRinging {
		t.Fatalf("state = %v, want ringing", got)
	}
	hidesAtOpen := f.surface.CallCount("HideOverlay")

	// Wait beyond the old teardown window; the stale timer must not fire.
	time.Sleep(2 * testTeardownDelay)
	if got := f.coord.State(); got != StateRinging {
		t.Errorf("stale teardown closed the new session, state = %v", got)
	}
	if got := f.surface.CallCount("HideOverlay"); got != hidesAtOpen {
		t.Errorf("stale timer hid the new overlay (hides %d -> %d)", hidesAtOpen, got)
	}
}

func TestCoordinator_RiskAndAIUpdatesReachHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateRinging, Number: "+15551234567"})
	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateOffHook, Number: "+15551234567"})

	f.coord.UpdateRisk(ctx, bridge.RiskUpdate{Score: 85, Explanation: "matched scam pattern"})
	f.coord.UpdateAIResult(ctx, bridge.AIResult{Probability: 0.91, IsSynthetic: true})

	if f.surface.CallCount("UpdateAIResult") != 1 {
		t.Error("AI result not forwarded to the overlay")
	}

	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateIdle})

	records, _ := f.store.History().All(ctx)
	if len(records) != 1 {
		t.Fatalf("history records = %d", len(records))
	}
	r := records[0]
	if r.RiskScore != 85 {
		t.Errorf("risk score = %d, want 85", r.RiskScore)
	}
	// Label derived when the engine omits it.
	if r.RiskLevel != "High Risk" {
		t.Errorf("risk level = %q", r.RiskLevel)
	}
	if r.AIProbability != 0.91 {
		t.Errorf("ai probability = %v", r.AIProbability)
	}

	// Both alert kinds fire independently for the same session.
	if got := len(f.sink.DeliveredOf(notify.KindPostCallRisk)); got != 1 {
		t.Errorf("post-call alerts = %d, want 1", got)
	}
	if got := len(f.sink.DeliveredOf(notify.KindAIVoice)); got != 1 {
		t.Errorf("ai-voice alerts = %d, want 1", got)
	}
}

func TestCoordinator_NoAlertsBelowThresholds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateRinging, Number: "5551234567"})
	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateOffHook, Number: "5551234567"})
	f.coord.UpdateRisk(ctx, bridge.RiskUpdate{Score: 45})
	f.coord.UpdateAIResult(ctx, bridge.AIResult{Probability: 0.3})
	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateIdle})

	if got := len(f.sink.Delivered()); got != 0 {
		t.Errorf("alerts = %d, want 0", got)
	}
}

func TestCoordinator_AutoBlockPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if err := f.store.Settings().UpdateBlocking(ctx, store.BlockingSettings{
		AutoBlockEnabled:   true,
		AutoBlockThreshold: 70,
	}); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateRinging, Number: "+15553334444"})
	f.coord.UpdateRisk(ctx, bridge.RiskUpdate{Score: 88})

	entry, ok, err := f.store.Blocklist().Get(ctx, "+15553334444")
	if err != nil || !ok {
		t.Fatalf("expected auto-block entry, ok=%v err=%v", ok, err)
	}
	if !entry.AutoBlocked {
		t.Error("entry not marked auto-blocked")
	}
	if !strings.Contains(entry.Reason, "88%") {
		t.Errorf("reason = %q", entry.Reason)
	}
}

func TestCoordinator_OutgoingCallViaDial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.coord.HandleDial(ctx, telephony.DialEvent{Number: "+15557654321"})
	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateOffHook})
	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateIdle})

	records, _ := f.store.History().All(ctx)
	if len(records) != 1 {
		t.Fatalf("history records = %d", len(records))
	}
	if records[0].CallType != telephony.DirectionOutgoing {
		t.Errorf("call type = %v", records[0].CallType)
	}
	if records[0].PhoneNumber != "+15557654321" {
		t.Errorf("number = %q", records[0].PhoneNumber)
	}
}

func TestCoordinator_ColdStartOffHook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// First signal after process start is off-hook: synthesize an outgoing
	// session rather than dropping the call.
	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateOffHook, Number: "+15550001111"})
	if got := f.coord.State(); got != StateActive {
		t.Fatalf("state = %v, want active", got)
	}

	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateIdle})
	records, _ := f.store.History().All(ctx)
	if len(records) != 1 {
		t.Fatalf("history records = %d", len(records))
	}
	if records[0].CallType != telephony.DirectionOutgoing {
		t.Errorf("synthesized direction = %v", records[0].CallType)
	}
}

func TestCoordinator_DuplicateIdleIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateIdle})
	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateIdle})

	records, _ := f.store.History().All(ctx)
	if len(records) != 0 {
		t.Errorf("idle-while-idle wrote %d history records", len(records))
	}
}

func TestCoordinator_MonitoringGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if err := f.coord.StopMonitoring(ctx); err != nil {
		t.Fatalf("stop monitoring: %v", err)
	}
	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateRinging, Number: "+15551234567"})
	if got := f.coord.State(); got != StateIdle {
		t.Errorf("signal processed while disabled, state = %v", got)
	}

	// The flag survives a restart.
	fresh := NewCoordinator(CoordinatorConfig{
		Store:      f.store,
		Recorder:   recording.New(recording.Config{Engine: &recordingmock.Engine{}, Bridge: &bridgemock.Bridge{}, Directory: t.TempDir()}),
		Dispatcher: notify.New(notify.Config{Sink: &notifymock.Sink{}, Blocklist: f.store.Blocklist(), Surface: &overlaymock.Surface{}}),
		Surface:    &overlaymock.Surface{},
	})
	if err := fresh.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(fresh.Close)
	if fresh.Monitoring() {
		t.Error("disabled flag did not survive restart")
	}
}

func TestCoordinator_KnownContactName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if err := f.store.Contacts().Save(ctx, store.Contact{
		PhoneNumber: "+15551234567",
		Name:        "Alex Chen",
		Category:    store.CategoryPersonal,
	}); err != nil {
		t.Fatalf("save contact: %v", err)
	}

	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateRinging, Number: "+15551234567"})
	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateOffHook, Number: "+15551234567"})
	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateIdle})

	records, _ := f.store.History().All(ctx)
	if len(records) != 1 {
		t.Fatalf("history records = %d", len(records))
	}
	if records[0].CallerName != "Alex Chen" {
		t.Errorf("caller name = %q", records[0].CallerName)
	}
}

func TestCoordinator_WatchdogClosesStuckSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.coord.maxCallDuration = 30 * time.Millisecond

	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateRinging, Number: "+15551234567"})
	f.coord.HandleSignal(ctx, telephony.Signal{State: telephony.StateOffHook, Number: "+15551234567"})

	// No idle signal ever arrives; the watchdog must still return to idle.
	waitForState(t, f.coord, StateIdle)
}

func TestAnalyzeNumber(t *testing.T) {
	t.Run("premium plus international", func(t *testing.T) {
		a, err := AnalyzeNumber("+19005551234")
		if err != nil {
			t.Fatalf("analyze: %v", err)
		}
		if a.Score < 50 {
			t.Errorf("score = %d, want >= 50", a.Score)
		}
		if len(a.Factors) != 2 {
			t.Errorf("factors = %v, want 2", a.Factors)
		}
	})

	t.Run("short number", func(t *testing.T) {
		a, err := AnalyzeNumber("12345")
		if err != nil {
			t.Fatalf("analyze: %v", err)
		}
		if a.Score != 20 {
			t.Errorf("score = %d, want 20", a.Score)
		}
	})

	t.Run("ordinary number scores zero", func(t *testing.T) {
		a, err := AnalyzeNumber("5551234567")
		if err != nil {
			t.Fatalf("analyze: %v", err)
		}
		if a.Score != 0 || len(a.Factors) != 0 {
			t.Errorf("analysis = %+v, want zero", a)
		}
	})

	t.Run("empty number errors", func(t *testing.T) {
		if _, err := AnalyzeNumber("  "); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestRiskLevel(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, "Low Risk"},
		{39, "Low Risk"},
		{40, "Medium Risk"},
		{69, "Medium Risk"},
		{70, "High Risk"},
		{100, "High Risk"},
	}
	for _, tc := range tests {
		if got := RiskLevel(tc.score); got != tc.want {
			t.Errorf("RiskLevel(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestFormatPhoneNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5551234567", "(555) 123-4567"},
		{"+15551234567", "+1 (555) 123-4567"},
		{"12345", "12345"},
		{"+442071234567", "+442071234567"},
	}
	for _, tc := range tests {
		if got := FormatPhoneNumber(tc.in); got != tc.want {
			t.Errorf("FormatPhoneNumber(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
