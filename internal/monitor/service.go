// Package monitor runs the capture/detect/record loop
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentrycam/sentrycam/internal/capture"
	"github.com/sentrycam/sentrycam/internal/motion"
	"github.com/sentrycam/sentrycam/internal/recording"
)

// SubjectMotionDetected is published on each motion rising edge
const SubjectMotionDetected = "camera.motion.detected"

// MotionEvent is the payload for SubjectMotionDetected
type MotionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	InWindow  bool      `json:"in_window"`
}

// Service owns the single-threaded capture loop: read a frame, classify
// motion, hand both to the recording controller. Its only suspension point
// is the blocking frame read.
type Service struct {
	source     capture.FrameSource
	detector   *motion.Detector
	controller *recording.Controller
	window     recording.MonitoringWindow
	bus        recording.Publisher

	prevMotion bool
	logger     *slog.Logger
}

// New creates the capture loop service. bus may be nil.
func New(
	source capture.FrameSource,
	detector *motion.Detector,
	controller *recording.Controller,
	window recording.MonitoringWindow,
	bus recording.Publisher,
) *Service {
	return &Service{
		source:     source,
		detector:   detector,
		controller: controller,
		window:     window,
		bus:        bus,
		logger:     slog.Default().With("component", "monitor"),
	}
}

// Run drives the loop until the context is cancelled or a frame read
// fails. A read failure is fatal to the loop, not to the process. The open
// session, if any, is closed on the way out so no file handle dangles.
func (s *Service) Run(ctx context.Context) error {
	defer s.controller.Close()

	s.logger.Info("Capture loop started")

	for {
		if ctx.Err() != nil {
			s.logger.Info("Capture loop stopped")
			return nil
		}

		frame, err := s.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("Capture loop stopped")
				return nil
			}
			return fmt.Errorf("frame read failed: %w", err)
		}

		motionDetected := s.detector.Detect(frame.Image)
		s.announceMotion(motionDetected, frame.Timestamp)
		s.controller.ProcessFrame(ctx, frame, motionDetected)
	}
}

// announceMotion publishes a bus event on each motion rising edge
func (s *Service) announceMotion(motionDetected bool, ts time.Time) {
	if motionDetected && !s.prevMotion && s.bus != nil {
		ev := MotionEvent{Timestamp: ts, InWindow: s.window.Contains(ts)}
		if err := s.bus.Publish(SubjectMotionDetected, ev); err != nil {
			s.logger.Warn("Failed to publish motion event", "error", err)
		}
	}
	s.prevMotion = motionDetected
}
