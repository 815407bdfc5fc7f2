// Package recording provides the motion-triggered recording controller and
// retention management.
package recording

import (
	"context"
	"time"

	"github.com/sentrycam/sentrycam/internal/capture"
)

// State represents the controller state
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

// Session is one continuous open recording, owned exclusively by the
// controller. At most one exists at a time.
type Session struct {
	ID           string    `json:"id"`
	VideoPath    string    `json:"video_path"`
	StartedAt    time.Time `json:"started_at"`
	LastMotionAt time.Time `json:"last_motion_at"`
}

// VideoSink writes frames to an on-disk recording
type VideoSink interface {
	// Write appends a frame to the recording
	Write(frame *capture.Frame) error

	// Path returns the output file path
	Path() string

	// Close finalizes the recording file
	Close() error
}

// SinkFactory opens a new video sink at the given resolution and frame rate
type SinkFactory func(path string, width, height, fps int) (VideoSink, error)

// Notifier delivers an alert photo to a remote chat. Failures are logged
// by the caller, never fatal, and never retried.
type Notifier interface {
	SendPhoto(ctx context.Context, imagePath, caption string) error
}

// Publisher publishes controller events to the bus. May be nil.
type Publisher interface {
	Publish(subject string, data interface{}) error
}

// Status is a point-in-time snapshot of the controller
type Status struct {
	State           State      `json:"state"`
	Session         *Session   `json:"session,omitempty"`
	SessionsStarted int        `json:"sessions_started"`
	FramesWritten   int64      `json:"frames_written"`
	LastClosedAt    *time.Time `json:"last_closed_at,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

// SessionEvent is published on session start and stop
type SessionEvent struct {
	SessionID string    `json:"session_id"`
	VideoPath string    `json:"video_path"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CleanupEvent is published after a retention cleanup run
type CleanupEvent struct {
	FilesDeleted int       `json:"files_deleted"`
	BytesFreed   int64     `json:"bytes_freed"`
	Timestamp    time.Time `json:"timestamp"`
}
