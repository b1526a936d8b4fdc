// Package overlay defines the Presentation Surface interface: the typed
// command set the core issues to whatever renders the in-call risk display.
//
// Rendering is owned entirely by the host platform. Commands are
// fire-and-forget — implementations log their own failures and must never
// block the caller for long; the coordinator issues them while holding its
// session lock.
//
// This package lives under pkg/ because platform adapters (the Android
// overlay service, desktop notifiers, test doubles) implement [Surface].
package overlay

import "github.com/MrWong99/riskguard/pkg/telephony"

// Surface receives display commands for the live call overlay and the
// post-call detail view.
type Surface interface {
	// ShowOverlay displays the overlay for a new call.
	ShowOverlay(number string, direction telephony.Direction)

	// UpdateOverlay refreshes the number/direction shown on a visible
	// overlay (e.g. when an outgoing call connects).
	UpdateOverlay(number string, direction telephony.Direction)

	// UpdateRisk pushes a new risk assessment to the overlay.
	UpdateRisk(score int, level, explanation string)

	// UpdateAIResult pushes a new AI voice classification to the overlay.
	UpdateAIResult(probability float64, isSynthetic bool)

	// ShowPostCallDetails displays the post-call contact/details view for
	// the given number.
	ShowPostCallDetails(number string)

	// HideOverlay tears the overlay down.
	HideOverlay()
}

// Risk display thresholds shared with surface implementations: scores below
// LowRiskMax render green, scores below HighRiskMin amber, the rest red.
const (
	LowRiskMax  = 30
	HighRiskMin = 70
)
