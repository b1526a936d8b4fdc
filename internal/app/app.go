// Package app wires all RiskGuard subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the serving loop, and Shutdown tears everything
// down in order.
//
// For testing, inject mock implementations via functional options
// (WithSurface, WithSink, WithCaptureEngine, etc.). When an option is not
// provided, New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/riskguard/internal/call"
	"github.com/MrWong99/riskguard/internal/config"
	"github.com/MrWong99/riskguard/internal/digest"
	"github.com/MrWong99/riskguard/internal/health"
	"github.com/MrWong99/riskguard/internal/notify"
	"github.com/MrWong99/riskguard/internal/observe"
	"github.com/MrWong99/riskguard/internal/recording"
	"github.com/MrWong99/riskguard/internal/store"
	"github.com/MrWong99/riskguard/pkg/audio"
	"github.com/MrWong99/riskguard/pkg/bridge"
	"github.com/MrWong99/riskguard/pkg/bridge/ws"
	"github.com/MrWong99/riskguard/pkg/overlay"
	"github.com/MrWong99/riskguard/pkg/telephony"
)

// shutdownTimeout bounds the HTTP server drain during Shutdown.
const shutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes and serves the host-shell HTTP surface.
type App struct {
	cfg *config.Config

	// Subsystems — initialised in New, torn down in Shutdown.
	store       *store.Store
	recorder    *recording.Controller
	dispatcher  *notify.Dispatcher
	coordinator *call.Coordinator
	digest      *digest.Scheduler
	server      *http.Server

	// External collaborators, injectable for tests.
	surface  overlay.Surface
	sink     notify.Sink
	engine   recording.Engine
	bridge   bridge.Bridge
	wsClient *ws.Client
	rejecter telephony.Rejecter
	metrics  *observe.Metrics

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSurface injects a presentation surface instead of the logging default.
func WithSurface(s overlay.Surface) Option {
	return func(a *App) { a.surface = s }
}

// WithSink injects a notification sink instead of the logging default.
func WithSink(s notify.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithCaptureEngine injects an audio capture engine instead of the
// silence-backed WAV engine.
func WithCaptureEngine(e recording.Engine) Option {
	return func(a *App) { a.engine = e }
}

// WithBridge injects an analysis bridge instead of the websocket client
// built from config.
func WithBridge(b bridge.Bridge) Option {
	return func(a *App) { a.bridge = b }
}

// WithRejecter injects the OS call-rejection capability.
func WithRejecter(r telephony.Rejecter) Option {
	return func(a *App) { a.rejecter = r }
}

// WithMetrics injects a metrics instance instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for the external collaborators (presentation
// surface, notification sink, capture engine, analysis bridge).
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.surface == nil {
		a.surface = logSurface{}
	}
	if a.sink == nil {
		a.sink = logSink{}
	}

	// ── 1. Persistence ───────────────────────────────────────────────────
	st, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	// ── 2. Analysis bridge ───────────────────────────────────────────────
	a.initBridge()

	// ── 3. Recording controller ──────────────────────────────────────────
	if a.engine == nil {
		a.engine = recording.NewWAVEngine(silentSource{})
	}
	a.recorder = recording.New(recording.Config{
		Engine:    a.engine,
		Bridge:    a.bridge,
		Directory: cfg.Recording.Directory,
	})

	// ── 4. Notification dispatcher ───────────────────────────────────────
	a.dispatcher = notify.New(notify.Config{
		Sink:      a.sink,
		Blocklist: st.Blocklist(),
		Surface:   a.surface,
		Metrics:   a.metrics,
	})

	// ── 5. Call session coordinator ──────────────────────────────────────
	a.coordinator = call.NewCoordinator(call.CoordinatorConfig{
		Store:           st,
		Recorder:        a.recorder,
		Dispatcher:      a.dispatcher,
		Surface:         a.surface,
		Rejecter:        a.rejecter,
		Metrics:         a.metrics,
		MaxCallDuration: cfg.Call.MaxCallDuration,
	})
	if err := a.coordinator.Start(ctx); err != nil {
		a.Shutdown()
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		a.coordinator.Close()
		return nil
	})

	// ── 6. Digest scheduler ──────────────────────────────────────────────
	a.digest = digest.NewScheduler(digest.Config{
		History:  st.History(),
		Settings: st.Settings(),
		Notifier: a.dispatcher,
	})

	// ── 7. HTTP surface ──────────────────────────────────────────────────
	a.server = &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: a.routes(),
	}

	return a, nil
}

// initBridge builds the websocket analysis-bridge client from config unless
// a bridge was injected. Inbound results are routed into the coordinator;
// the coordinator is wired afterwards, so handlers go through the field.
func (a *App) initBridge() {
	if a.bridge != nil {
		return
	}
	if a.cfg.Bridge.URL == "" {
		// Bridge disabled; recording and sessions run without analysis.
		slog.Info("analysis bridge disabled, no url configured")
		return
	}
	client := ws.New(ws.Config{
		URL: a.cfg.Bridge.URL,
		Handlers: bridge.Handlers{
			OnRisk: func(ctx context.Context, u bridge.RiskUpdate) {
				a.coordinator.UpdateRisk(ctx, u)
			},
			OnAIResult: func(ctx context.Context, r bridge.AIResult) {
				a.coordinator.UpdateAIResult(ctx, r)
			},
		},
	})
	a.wsClient = client
	a.bridge = client
	a.closers = append(a.closers, func() error {
		client.Close()
		return nil
	})
}

// Coordinator exposes the call session coordinator to the host shell.
func (a *App) Coordinator() *call.Coordinator { return a.coordinator }

// Store exposes the persistence layer to the host shell.
func (a *App) Store() *store.Store { return a.store }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the HTTP server, the analysis-bridge connection, and the digest
// scheduler, then blocks until ctx is cancelled or a subsystem fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.digest.Start(ctx); err != nil {
		return err
	}
	defer a.digest.Stop()

	g, ctx := errgroup.WithContext(ctx)

	if a.wsClient != nil {
		g.Go(func() error {
			a.wsClient.Run(ctx)
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown tears down all subsystems in reverse initialisation order. Safe
// to call multiple times.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				slog.Warn("shutdown step failed", "err", err)
			}
		}
		slog.Info("app shut down")
	})
}

// routes assembles the host-shell HTTP surface.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	h := health.New(health.Database(a.store))
	h.Register(mux)
	a.registerAPI(mux)

	return observe.Middleware(a.metrics)(mux)
}

// ─── Default external collaborators ──────────────────────────────────────────

// logSurface is the fallback presentation surface: overlay commands are
// logged instead of rendered. Used when no platform adapter is wired in.
type logSurface struct{}

func (logSurface) ShowOverlay(number string, direction telephony.Direction) {
	slog.Info("overlay: show", "number", number, "direction", direction)
}

func (logSurface) UpdateOverlay(number string, direction telephony.Direction) {
	slog.Info("overlay: update", "number", number, "direction", direction)
}

func (logSurface) UpdateRisk(score int, level, explanation string) {
	slog.Info("overlay: risk", "score", score, "level", level, "explanation", explanation)
}

func (logSurface) UpdateAIResult(probability float64, isSynthetic bool) {
	slog.Info("overlay: ai result", "probability", probability, "synthetic", isSynthetic)
}

func (logSurface) ShowPostCallDetails(number string) {
	slog.Info("overlay: post-call details", "number", number)
}

func (logSurface) HideOverlay() {
	slog.Info("overlay: hide")
}

// logSink is the fallback notification sink: notifications are logged
// instead of delivered to an OS notification service.
type logSink struct{}

func (logSink) Deliver(_ context.Context, n notify.Notification) error {
	slog.Info("notification", "kind", n.Kind, "title", n.Title, "number", n.PhoneNumber)
	return nil
}

// silentSource is the fallback capture source when no microphone adapter is
// wired in: its stream is already closed, so recordings are finalized as
// header-only WAV files.
type silentSource struct{}

func (silentSource) Frames() <-chan audio.Frame {
	ch := make(chan audio.Frame)
	close(ch)
	return ch
}
