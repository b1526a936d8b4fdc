// Package bridge defines the Analysis Bridge contract: the asynchronous
// channel between the RiskGuard core and the external risk-analysis engine
// that performs risk scoring and AI voice classification.
//
// Communication is one-way in each direction. The core notifies the engine
// about recording lifecycle events via [Bridge]; the engine pushes scoring
// results back at its own pace through the [Handlers] callbacks. The core
// never awaits an analysis result synchronously.
//
// This package lives under pkg/ because transport adapters (websocket,
// platform method channels, test doubles) implement [Bridge].
package bridge

import "context"

// RiskUpdate is a risk assessment pushed by the analysis engine during an
// active call.
type RiskUpdate struct {
	// Score is the risk score in [0, 100].
	Score int `json:"score"`

	// Level is a human-readable label (e.g. "High Risk"). May be empty;
	// the core derives a label from Score when omitted.
	Level string `json:"level,omitempty"`

	// Explanation is free text describing the contributing factors.
	Explanation string `json:"explanation,omitempty"`
}

// AIResult is an AI voice classification pushed by the analysis engine.
type AIResult struct {
	// Probability is the likelihood in [0.0, 1.0] that the remote voice is
	// synthetic.
	Probability float64 `json:"probability"`

	// IsSynthetic is the engine's binary verdict.
	IsSynthetic bool `json:"is_synthetic"`
}

// Handlers receives inbound analysis results. Both callbacks may be invoked
// concurrently from transport goroutines; receivers must serialize
// internally. Nil callbacks are skipped.
type Handlers struct {
	// OnRisk is invoked for each risk update.
	OnRisk func(ctx context.Context, u RiskUpdate)

	// OnAIResult is invoked for each AI voice classification.
	OnAIResult func(ctx context.Context, r AIResult)
}

// Bridge carries outbound notifications from the core to the analysis
// engine. Implementations must not block on engine-side processing; errors
// are returned for logging only and never retried by the core.
type Bridge interface {
	// RecordingStarted tells the engine a call recording has begun at path.
	RecordingStarted(ctx context.Context, path string) error

	// RecordingStopped tells the engine the recording at path is finalized
	// and ready for voice analysis.
	RecordingStopped(ctx context.Context, path string) error
}
