package recording

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MrWong99/riskguard/pkg/bridge"
)

// pathTimeFormat names recording files by wall-clock capture time.
const pathTimeFormat = "20060102_150405"

// Controller manages at most one active audio capture per call session.
// All methods are safe for concurrent use; the single-active-recording
// invariant is enforced independently of the coordinator's lock.
type Controller struct {
	engine Engine
	bridge bridge.Bridge
	dir    string

	// now is test-overridable to get deterministic file names.
	now func() time.Time

	mu        sync.Mutex
	sessionID string
	path      string
}

// Config holds the dependencies for a [Controller].
type Config struct {
	// Engine performs the actual capture.
	Engine Engine

	// Bridge is notified of recording lifecycle events. May be nil when no
	// analysis engine is configured.
	Bridge bridge.Bridge

	// Directory is where recordings are written; created on first start.
	Directory string
}

// New creates a [Controller] with the given configuration.
func New(cfg Config) *Controller {
	return &Controller{
		engine: cfg.Engine,
		bridge: cfg.Bridge,
		dir:    cfg.Directory,
		now:    time.Now,
	}
}

// Start begins a recording for sessionID and returns the allocated file
// path. Calling Start while a recording is already active is a no-op that
// returns the existing path — not an error. An engine failure resets the
// controller to "not recording" so a later Start retries cleanly.
func (c *Controller) Start(ctx context.Context, sessionID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionID != "" {
		slog.Debug("recording: already recording", "session_id", c.sessionID, "path", c.path)
		return c.path, nil
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("recording: create directory %q: %w", c.dir, err)
	}

	name := fmt.Sprintf("riskguard_call_%s.wav", c.now().Format(pathTimeFormat))
	path := filepath.Join(c.dir, name)

	if err := c.engine.Start(ctx, path); err != nil {
		return "", fmt.Errorf("recording: start capture: %w", err)
	}

	c.sessionID = sessionID
	c.path = path
	slog.Info("recording started", "session_id", sessionID, "path", path)

	if c.bridge != nil {
		if err := c.bridge.RecordingStarted(ctx, path); err != nil {
			slog.Warn("recording: bridge start notification failed", "err", err)
		}
	}
	return path, nil
}

// Stop finalizes the active recording and returns its path, handing the
// artifact to the Analysis Bridge for voice analysis. Calling Stop while
// not recording is a no-op returning an empty path.
func (c *Controller) Stop(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionID == "" {
		return "", nil
	}

	sessionID := c.sessionID
	path := c.path
	c.sessionID = ""
	c.path = ""

	if err := c.engine.Stop(ctx); err != nil {
		// State is already reset; the artifact may be unusable but a
		// subsequent Start works.
		return "", fmt.Errorf("recording: stop capture: %w", err)
	}
	slog.Info("recording stopped", "session_id", sessionID, "path", path)

	if c.bridge != nil {
		if err := c.bridge.RecordingStopped(ctx, path); err != nil {
			slog.Warn("recording: bridge stop notification failed", "err", err)
		}
	}
	return path, nil
}

// CurrentPath returns the path of the in-flight recording, or the empty
// string when no recording is active.
func (c *Controller) CurrentPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}
