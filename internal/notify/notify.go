// Package notify implements the RiskGuard notification dispatcher.
//
// The dispatcher is a stateless formatter over three notification kinds —
// post-call risk alert, AI voice alert, and the daily digest — each carrying
// follow-up actions. Delivery goes through the [Sink] interface (the OS
// notification service is external); a delivery failure is logged and never
// retried. Follow-up actions invoked by the host platform come back through
// [Dispatcher.HandleAction].
package notify

import (
	"context"
	"fmt"
	"time"
)

// Kind identifies a notification category. Kinds map onto distinct OS
// notification channels so the user can tune each independently.
type Kind string

const (
	KindPostCallRisk Kind = "post_call_risk"
	KindAIVoice      Kind = "ai_voice"
	KindDailyDigest  Kind = "daily_digest"
)

// Action is a follow-up the user can invoke from a delivered notification.
type Action string

const (
	ActionBlock       Action = "block"
	ActionSave        Action = "save"
	ActionReport      Action = "report"
	ActionViewDetails Action = "view_details"
	ActionViewReport  Action = "view_report"
)

// IsValid reports whether a is a recognised action.
func (a Action) IsValid() bool {
	switch a {
	case ActionBlock, ActionSave, ActionReport, ActionViewDetails, ActionViewReport:
		return true
	}
	return false
}

// Notification is a fully formatted user-visible alert ready for delivery.
type Notification struct {
	// Kind selects the notification channel.
	Kind Kind

	// Title is the headline.
	Title string

	// Body is the expanded multi-line text.
	Body string

	// PhoneNumber is the subject number, when the notification concerns a
	// specific caller. Empty for digests.
	PhoneNumber string

	// Actions are the follow-ups offered on the notification.
	Actions []Action
}

// DigestStats are the daily aggregates rendered into a digest notification.
type DigestStats struct {
	// TotalCalls is the number of calls analyzed today.
	TotalCalls int

	// HighRisk counts calls with a risk score of 70 or above.
	HighRisk int

	// AIDetected counts calls with an AI-voice probability of 0.7 or above.
	AIDetected int

	// Blocked counts calls from blocked numbers.
	Blocked int
}

// Sink delivers formatted notifications to the OS notification service.
type Sink interface {
	// Deliver shows the notification. Fire-and-forget from the
	// dispatcher's point of view; errors are logged, never retried.
	Deliver(ctx context.Context, n Notification) error
}

// formatDuration renders a call duration as mm:ss.
func formatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
