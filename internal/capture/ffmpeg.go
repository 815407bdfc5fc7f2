package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FFmpegSource reads frames from an FFmpeg process decoding a capture
// device or stream URL into an MJPEG pipe.
type FFmpegSource struct {
	source string
	fps    int
	width  int

	mu     sync.Mutex
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout *bufio.Reader
	logger *slog.Logger
}

// NewFFmpegSource creates a frame source for an ffmpeg-readable input
func NewFFmpegSource(source string, fps, width int) *FFmpegSource {
	return &FFmpegSource{
		source: source,
		fps:    fps,
		width:  width,
		logger: slog.Default().With("component", "capture"),
	}
}

// Open starts the FFmpeg decode process
func (s *FFmpegSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return nil
	}

	procCtx, cancel := context.WithCancel(ctx)
	args := s.buildArgs()
	cmd := exec.CommandContext(procCtx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	go s.drainStderr(stderr)

	s.cmd = cmd
	s.cancel = cancel
	s.stdout = bufio.NewReaderSize(stdout, 1<<20)
	s.logger.Info("Capture source opened", "source", s.source, "pid", cmd.Process.Pid)
	return nil
}

// buildArgs constructs the FFmpeg command arguments
func (s *FFmpegSource) buildArgs() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}

	if strings.HasPrefix(s.source, "/dev/video") {
		args = append(args, "-f", "v4l2")
	} else if strings.HasPrefix(s.source, "rtsp://") {
		args = append(args, "-rtsp_transport", "tcp")
	}

	args = append(args,
		"-i", s.source,
		"-vf", fmt.Sprintf("scale=%d:-2", s.width),
		"-r", strconv.Itoa(s.fps),
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "5",
		"-",
	)
	return args
}

// Read returns the next frame from the MJPEG pipe
func (s *FFmpegSource) Read(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	r := s.stdout
	s.mu.Unlock()

	if r == nil {
		return nil, fmt.Errorf("capture source not open")
	}

	data, err := readJPEG(r)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	bounds := img.Bounds()
	return &Frame{
		Timestamp: time.Now(),
		Image:     img,
		Data:      data,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}, nil
}

// Close stops the FFmpeg process and releases the device
func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return nil
	}

	s.cancel()
	_ = s.cmd.Wait()
	s.cmd = nil
	s.stdout = nil
	s.logger.Info("Capture source closed", "source", s.source)
	return nil
}

func (s *FFmpegSource) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		s.logger.Warn("ffmpeg", "line", scanner.Text())
	}
}

// readJPEG scans the stream for the next SOI..EOI delimited JPEG image
func readJPEG(r *bufio.Reader) ([]byte, error) {
	// Seek start-of-image marker
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != 0xFF {
			continue
		}
		next, err := r.Peek(1)
		if err != nil {
			return nil, err
		}
		if next[0] == 0xD8 {
			if _, err := r.ReadByte(); err != nil {
				return nil, err
			}
			break
		}
	}

	buf := make([]byte, 0, 64*1024)
	buf = append(buf, 0xFF, 0xD8)

	// Collect until end-of-image marker
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b)
		if b == 0xFF {
			next, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			buf = append(buf, next)
			if next == 0xD9 {
				return buf, nil
			}
		}
	}
}
