package recording

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentrycam/sentrycam/internal/capture"
)

// DefaultCaption is the alert caption sent with the snapshot photo
const DefaultCaption = "🚨 Motion detected!"

// Bus subjects for controller events
const (
	SubjectSessionStarted = "recording.session.started"
	SubjectSessionStopped = "recording.session.stopped"
	SubjectCleanupDone    = "retention.cleanup.completed"
)

// ControllerConfig holds the controller's immutable settings
type ControllerConfig struct {
	StoragePath string
	Window      MonitoringWindow
	GracePeriod time.Duration
	FPS         int
	Container   string // file extension without dot
	Caption     string
}

// Controller owns the Idle/Recording state machine. On each frame it
// consults the motion signal, the monitoring-window clock and the grace
// period to decide whether to start, continue or stop a recording. It owns
// at most one Session at a time and dispatches exactly one notification per
// session start.
type Controller struct {
	cfg      ControllerConfig
	newSink  SinkFactory
	notifier Notifier
	bus      Publisher

	mu              sync.Mutex
	session         *Session
	sink            VideoSink
	sessionsStarted int
	framesWritten   int64
	lastClosedAt    time.Time
	lastError       string

	now    func() time.Time
	logger *slog.Logger
}

// NewController creates a recording controller. notifier and bus may be nil.
func NewController(cfg ControllerConfig, sinks SinkFactory, notifier Notifier, bus Publisher) *Controller {
	if cfg.Caption == "" {
		cfg.Caption = DefaultCaption
	}
	if cfg.Container == "" {
		cfg.Container = "mp4"
	}
	return &Controller{
		cfg:      cfg,
		newSink:  sinks,
		notifier: notifier,
		bus:      bus,
		now:      time.Now,
		logger:   slog.Default().With("component", "controller"),
	}
}

// ProcessFrame advances the state machine by one frame. Nothing propagates
// past this call: sink and notification failures are logged and absorbed so
// one failure cannot corrupt the state machine's invariants.
func (c *Controller) ProcessFrame(ctx context.Context, frame *capture.Frame, motion bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if c.session == nil {
		// The window gates only the start transition. Motion outside
		// the window is observed but never recorded or notified.
		if motion && c.cfg.Window.Contains(now) {
			c.startSession(ctx, frame, now)
		}
		return
	}

	if motion {
		// A session already open finishes naturally even if the
		// window boundary is crossed.
		c.writeFrame(frame)
		c.session.LastMotionAt = now
		return
	}

	// A negative delta (clock stepped backwards) reads as still within
	// the grace period.
	if now.Sub(c.session.LastMotionAt) > c.cfg.GracePeriod {
		c.closeSession(now)
		return
	}

	// Keep writing through brief motion gaps so clips are continuous
	c.writeFrame(frame)
}

// startSession performs the Idle -> Recording transition
func (c *Controller) startSession(ctx context.Context, frame *capture.Frame, now time.Time) {
	stamp := now.Format("20060102_150405")
	videoPath := filepath.Join(c.cfg.StoragePath, fmt.Sprintf("recording_%s.%s", stamp, c.cfg.Container))

	sink, err := c.newSink(videoPath, frame.Width, frame.Height, c.cfg.FPS)
	if err != nil {
		// Recoverable: stay Idle, next motion frame retries
		c.lastError = err.Error()
		c.logger.Error("Failed to open video sink", "path", videoPath, "error", err)
		return
	}

	c.sink = sink
	c.session = &Session{
		ID:           uuid.New().String(),
		VideoPath:    videoPath,
		StartedAt:    now,
		LastMotionAt: now,
	}
	c.sessionsStarted++

	c.logger.Info("Motion detected during monitoring window, starting recording",
		"session", c.session.ID, "path", videoPath)

	c.writeFrame(frame)
	c.dispatchAlert(ctx, frame, stamp)
	c.publish(SubjectSessionStarted, SessionEvent{
		SessionID: c.session.ID,
		VideoPath: videoPath,
		StartedAt: now,
		Timestamp: now,
	})
}

// closeSession performs the Recording -> Idle transition
func (c *Controller) closeSession(now time.Time) {
	c.logger.Info("No motion past grace period, stopping recording",
		"session", c.session.ID, "path", c.session.VideoPath)

	if err := c.sink.Close(); err != nil {
		c.lastError = err.Error()
		c.logger.Error("Failed to close video sink", "path", c.session.VideoPath, "error", err)
	}

	c.publish(SubjectSessionStopped, SessionEvent{
		SessionID: c.session.ID,
		VideoPath: c.session.VideoPath,
		StartedAt: c.session.StartedAt,
		EndedAt:   now,
		Timestamp: now,
	})

	c.sink = nil
	c.session = nil
	c.lastClosedAt = now
}

// dispatchAlert snapshots the frame and pushes it to the notification sink.
// The snapshot file is transient: created, uploaded, then deleted whether
// or not the upload succeeded. Notification failure never blocks or cancels
// the recording.
func (c *Controller) dispatchAlert(ctx context.Context, frame *capture.Frame, stamp string) {
	if c.notifier == nil {
		return
	}

	snapshotPath := filepath.Join(c.cfg.StoragePath, fmt.Sprintf("snapshot_%s.jpg", stamp))
	if err := os.WriteFile(snapshotPath, frame.Data, 0644); err != nil {
		c.logger.Error("Failed to write snapshot", "path", snapshotPath, "error", err)
		return
	}

	if err := c.notifier.SendPhoto(ctx, snapshotPath, c.cfg.Caption); err != nil {
		c.logger.Error("Notification dispatch failed", "error", err)
	}

	if err := os.Remove(snapshotPath); err != nil {
		c.logger.Warn("Failed to remove snapshot", "path", snapshotPath, "error", err)
	}
}

// writeFrame appends a frame to the open sink
func (c *Controller) writeFrame(frame *capture.Frame) {
	if err := c.sink.Write(frame); err != nil {
		c.lastError = err.Error()
		c.logger.Error("Failed to write frame", "path", c.session.VideoPath, "error", err)
		return
	}
	c.framesWritten++
}

func (c *Controller) publish(subject string, data interface{}) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(subject, data); err != nil {
		c.logger.Warn("Failed to publish event", "subject", subject, "error", err)
	}
}

// Close shuts the controller down, closing any open session so no file
// handle dangles past process exit.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.closeSession(c.now())
	}
}

// State returns the current controller state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return StateRecording
	}
	return StateIdle
}

// Status returns a snapshot of the controller
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:           StateIdle,
		SessionsStarted: c.sessionsStarted,
		FramesWritten:   c.framesWritten,
		LastError:       c.lastError,
	}
	if c.session != nil {
		st.State = StateRecording
		sess := *c.session
		st.Session = &sess
	}
	if !c.lastClosedAt.IsZero() {
		t := c.lastClosedAt
		st.LastClosedAt = &t
	}
	return st
}
