package capture

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPSource polls a JPEG snapshot endpoint at a fixed rate. Useful for
// cameras that expose a still-image URL instead of a stream.
type HTTPSource struct {
	url        string
	interval   time.Duration
	httpClient *http.Client
	ticker     *time.Ticker
	logger     *slog.Logger
}

// NewHTTPSource creates a snapshot-polling frame source
func NewHTTPSource(url string, fps int) *HTTPSource {
	if fps <= 0 {
		fps = 5
	}
	return &HTTPSource{
		url:      url,
		interval: time.Second / time.Duration(fps),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: slog.Default().With("component", "capture"),
	}
}

// Open verifies the endpoint is reachable
func (s *HTTPSource) Open(ctx context.Context) error {
	if _, err := s.fetch(ctx); err != nil {
		return fmt.Errorf("snapshot endpoint unavailable: %w", err)
	}
	s.ticker = time.NewTicker(s.interval)
	s.logger.Info("Capture source opened", "url", s.url)
	return nil
}

// Read waits for the next poll tick and fetches a frame
func (s *HTTPSource) Read(ctx context.Context) (*Frame, error) {
	if s.ticker == nil {
		return nil, fmt.Errorf("capture source not open")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ticker.C:
	}

	data, err := s.fetch(ctx)
	if err != nil {
		return nil, err
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

// Close stops polling
func (s *HTTPSource) Close() error {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	return nil
}

func (s *HTTPSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame data: %w", err)
	}
	return data, nil
}
