package notify

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/riskguard/internal/store"
	overlaymock "github.com/MrWong99/riskguard/pkg/overlay/mock"
)

// sinkRecorder is a minimal in-package sink double. The shared mock package
// lives under notify/mock and cannot be imported here without a cycle in
// its own tests, so the dispatcher tests carry their own.
type sinkRecorder struct {
	delivered []Notification
	err       error
}

func (s *sinkRecorder) Deliver(_ context.Context, n Notification) error {
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, n)
	return nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *sinkRecorder, *store.Store, *overlaymock.Surface) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "riskguard.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sink := &sinkRecorder{}
	surface := &overlaymock.Surface{}
	d := New(Config{Sink: sink, Blocklist: st.Blocklist(), Surface: surface})
	return d, sink, st, surface
}

func TestDispatcher_PostCallAlert(t *testing.T) {
	ctx := context.Background()
	d, sink, _, _ := newTestDispatcher(t)

	d.PostCallAlert(ctx, store.CallRecord{
		PhoneNumber: "+15551234567",
		CallerName:  "Suspicious Sam",
		RiskScore:   82,
		RiskLevel:   "High Risk",
		Duration:    93 * time.Second,
	})

	if len(sink.delivered) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(sink.delivered))
	}
	n := sink.delivered[0]
	if n.Kind != KindPostCallRisk {
		t.Errorf("kind = %q", n.Kind)
	}
	if !strings.Contains(n.Body, "Suspicious Sam") || !strings.Contains(n.Body, "82%") {
		t.Errorf("body = %q", n.Body)
	}
	if !strings.Contains(n.Body, "01:33") {
		t.Errorf("body missing mm:ss duration: %q", n.Body)
	}
	want := []Action{ActionBlock, ActionSave, ActionReport}
	if len(n.Actions) != len(want) {
		t.Fatalf("actions = %v", n.Actions)
	}
	for i, a := range want {
		if n.Actions[i] != a {
			t.Errorf("actions[%d] = %q, want %q", i, n.Actions[i], a)
		}
	}
}

func TestDispatcher_AIVoiceAlert(t *testing.T) {
	ctx := context.Background()
	d, sink, _, _ := newTestDispatcher(t)

	d.AIVoiceAlert(ctx, "+15551234567", "", 0.87)

	if len(sink.delivered) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(sink.delivered))
	}
	n := sink.delivered[0]
	if n.Kind != KindAIVoice {
		t.Errorf("kind = %q", n.Kind)
	}
	// Falls back to the number when no caller name is known.
	if !strings.Contains(n.Body, "+15551234567") || !strings.Contains(n.Body, "87%") {
		t.Errorf("body = %q", n.Body)
	}
}

func TestDispatcher_DailyDigest(t *testing.T) {
	ctx := context.Background()
	d, sink, _, _ := newTestDispatcher(t)

	d.DailyDigest(ctx, DigestStats{TotalCalls: 5, HighRisk: 2, AIDetected: 1, Blocked: 3})

	if len(sink.delivered) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(sink.delivered))
	}
	body := sink.delivered[0].Body
	for _, want := range []string{"5 calls analyzed", "2 high-risk", "1 AI voices", "3 calls blocked"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q: %q", want, body)
		}
	}
}

func TestDispatcher_DeliveryFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	d, sink, _, _ := newTestDispatcher(t)
	sink.err = errors.New("notification service unavailable")

	// Must not panic or surface the error.
	d.DailyDigest(ctx, DigestStats{TotalCalls: 1})
	d.AIVoiceAlert(ctx, "+15551234567", "", 0.9)
}

func TestDispatcher_HandleAction(t *testing.T) {
	ctx := context.Background()

	t.Run("block upserts a block entry", func(t *testing.T) {
		d, _, st, _ := newTestDispatcher(t)

		if err := d.HandleAction(ctx, ActionBlock, "+15551234567"); err != nil {
			t.Fatalf("handle: %v", err)
		}
		e, ok, _ := st.Blocklist().Get(ctx, "+15551234567")
		if !ok {
			t.Fatal("expected number blocked")
		}
		if e.Reason != "Blocked from notification" {
			t.Errorf("reason = %q", e.Reason)
		}
	})

	t.Run("report blocks with the spam reason", func(t *testing.T) {
		d, _, st, _ := newTestDispatcher(t)

		if err := d.HandleAction(ctx, ActionReport, "+15551234567"); err != nil {
			t.Fatalf("handle: %v", err)
		}
		e, _, _ := st.Blocklist().Get(ctx, "+15551234567")
		if e.Reason != "Reported as spam" {
			t.Errorf("reason = %q", e.Reason)
		}
	})

	t.Run("view details opens the presentation surface", func(t *testing.T) {
		d, _, _, surface := newTestDispatcher(t)

		if err := d.HandleAction(ctx, ActionViewDetails, "+15551234567"); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if surface.CallCount("ShowPostCallDetails") != 1 {
			t.Error("expected ShowPostCallDetails")
		}
	})

	t.Run("unknown action errors", func(t *testing.T) {
		d, _, _, _ := newTestDispatcher(t)
		if err := d.HandleAction(ctx, Action("shrug"), "+15551234567"); err == nil {
			t.Fatal("expected error")
		}
	})
}
