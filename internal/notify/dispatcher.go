package notify

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/riskguard/internal/observe"
	"github.com/MrWong99/riskguard/internal/store"
	"github.com/MrWong99/riskguard/pkg/overlay"
)

// Reasons recorded on block entries created from notification actions.
const (
	reasonBlockedFromNotification = "Blocked from notification"
	reasonReportedAsSpam          = "Reported as spam"
)

// Dispatcher formats and emits the three RiskGuard notification kinds and
// executes their follow-up actions. It holds no mutable state; all methods
// are safe for concurrent use.
type Dispatcher struct {
	sink      Sink
	blocklist *store.Blocklist
	surface   overlay.Surface
	metrics   *observe.Metrics
}

// Config holds the dependencies for a [Dispatcher].
type Config struct {
	// Sink delivers formatted notifications.
	Sink Sink

	// Blocklist receives upserts from block/report actions.
	Blocklist *store.Blocklist

	// Surface opens the post-call detail view for save/view actions.
	Surface overlay.Surface

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// New creates a [Dispatcher] with the given dependencies.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		sink:      cfg.Sink,
		blocklist: cfg.Blocklist,
		surface:   cfg.Surface,
		metrics:   cfg.Metrics,
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	return d
}

// PostCallAlert emits a risk alert for a completed call. The record carries
// everything needed for formatting; the caller decides whether the score
// warrants an alert.
func (d *Dispatcher) PostCallAlert(ctx context.Context, r store.CallRecord) {
	display := r.CallerName
	if display == "" {
		display = r.PhoneNumber
	}

	d.deliver(ctx, Notification{
		Kind:        KindPostCallRisk,
		Title:       "High Risk Call Detected",
		Body: fmt.Sprintf("%s\nRisk Score: %d%% - %s\nDuration: %s",
			display, r.RiskScore, r.RiskLevel, formatDuration(r.Duration)),
		PhoneNumber: r.PhoneNumber,
		Actions:     []Action{ActionBlock, ActionSave, ActionReport},
	})
}

// AIVoiceAlert emits an alert that the remote voice was classified as
// synthetic.
func (d *Dispatcher) AIVoiceAlert(ctx context.Context, number, callerName string, probability float64) {
	display := callerName
	if display == "" {
		display = number
	}
	pct := int(probability * 100)

	d.deliver(ctx, Notification{
		Kind:  KindAIVoice,
		Title: "AI Voice Detected",
		Body: fmt.Sprintf("%s\n%d%% probability of synthetic voice\nCall may be from AI system or voice changer",
			display, pct),
		PhoneNumber: number,
		Actions:     []Action{ActionBlock, ActionViewDetails},
	})
}

// DailyDigest emits the daily protection summary. Callers skip days with no
// activity; the dispatcher formats whatever it is given.
func (d *Dispatcher) DailyDigest(ctx context.Context, stats DigestStats) {
	d.deliver(ctx, Notification{
		Kind:  KindDailyDigest,
		Title: "Daily Protection Summary",
		Body: fmt.Sprintf("Today's Activity:\n• %d calls analyzed\n• %d high-risk calls\n• %d AI voices detected\n• %d calls blocked",
			stats.TotalCalls, stats.HighRisk, stats.AIDetected, stats.Blocked),
		Actions: []Action{ActionViewReport},
	})
}

// HandleAction executes a follow-up action invoked from a delivered
// notification. Block and report write to the block list; the remaining
// actions open the Presentation Surface on the number's details.
func (d *Dispatcher) HandleAction(ctx context.Context, action Action, number string) error {
	switch action {
	case ActionBlock:
		if err := d.blocklist.Block(ctx, number, reasonBlockedFromNotification, false); err != nil {
			return fmt.Errorf("notify: block action: %w", err)
		}
		slog.Info("number blocked from notification", "phone_number", number)
		return nil
	case ActionReport:
		if err := d.blocklist.Block(ctx, number, reasonReportedAsSpam, false); err != nil {
			return fmt.Errorf("notify: report action: %w", err)
		}
		slog.Info("number reported as spam", "phone_number", number)
		return nil
	case ActionSave, ActionViewDetails, ActionViewReport:
		d.surface.ShowPostCallDetails(number)
		return nil
	default:
		return fmt.Errorf("notify: unknown action %q", action)
	}
}

// deliver hands n to the sink, logging and swallowing delivery failures.
func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	if d.sink == nil {
		return
	}
	if err := d.sink.Deliver(ctx, n); err != nil {
		slog.Warn("notification delivery failed", "kind", n.Kind, "err", err)
		return
	}
	d.metrics.NotificationsSent.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(n.Kind)),
	))
}
