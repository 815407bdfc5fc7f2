// Package capture provides frame acquisition from a camera device or stream
package capture

import (
	"context"
	"image"
	"time"
)

// Frame is a single captured video frame
type Frame struct {
	Timestamp time.Time
	Image     image.Image
	Data      []byte // JPEG-encoded bytes as received
	Width     int
	Height    int
}

// FrameSource yields frames from a capture device.
// Opened once at start, released at stop.
type FrameSource interface {
	// Open acquires the device or stream
	Open(ctx context.Context) error

	// Read blocks until the next frame is available. A read failure is
	// fatal to the capture loop; callers do not retry.
	Read(ctx context.Context) (*Frame, error)

	// Close releases the device
	Close() error
}
