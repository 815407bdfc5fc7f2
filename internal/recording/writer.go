package recording

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/sentrycam/sentrycam/internal/capture"
)

// FFmpegSink encodes frames into a video file through an FFmpeg process
// fed JPEG frames over stdin.
type FFmpegSink struct {
	path   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *slog.Logger
}

// NewFFmpegSink opens a video sink at the given resolution and frame rate.
// Satisfies SinkFactory.
func NewFFmpegSink(path string, width, height, fps int) (VideoSink, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "image2pipe",
		"-framerate", strconv.Itoa(fps),
		"-i", "-",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height-height%2),
		"-y",
		path,
	}

	cmd := exec.Command("ffmpeg", args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	sink := &FFmpegSink{
		path:   path,
		cmd:    cmd,
		stdin:  stdin,
		logger: slog.Default().With("component", "writer", "path", path),
	}
	go sink.drainStderr(stderr)

	return sink, nil
}

// Write appends a JPEG-encoded frame to the recording
func (s *FFmpegSink) Write(frame *capture.Frame) error {
	if _, err := s.stdin.Write(frame.Data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Path returns the output file path
func (s *FFmpegSink) Path() string {
	return s.path
}

// Close finalizes the recording file
func (s *FFmpegSink) Close() error {
	if err := s.stdin.Close(); err != nil {
		return fmt.Errorf("failed to close stdin: %w", err)
	}
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg exited with error: %w", err)
	}
	return nil
}

func (s *FFmpegSink) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		s.logger.Warn("ffmpeg", "line", scanner.Text())
	}
}
