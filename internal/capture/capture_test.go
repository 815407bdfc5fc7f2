package capture

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestReadJPEGExtractsFrames(t *testing.T) {
	first := encodeJPEG(t, 32, 24)
	second := encodeJPEG(t, 32, 24)

	var stream bytes.Buffer
	stream.Write([]byte{0x00, 0x01, 0xFF, 0x00}) // leading garbage
	stream.Write(first)
	stream.Write(second)

	r := bufio.NewReader(&stream)

	got1, err := readJPEG(r)
	if err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if !bytes.Equal(got1, first) {
		t.Errorf("first frame: got %d bytes, want %d", len(got1), len(first))
	}

	got2, err := readJPEG(r)
	if err != nil {
		t.Fatalf("second frame: %v", err)
	}
	if !bytes.Equal(got2, second) {
		t.Errorf("second frame: got %d bytes, want %d", len(got2), len(second))
	}
}

func TestReadJPEGTruncatedStream(t *testing.T) {
	data := encodeJPEG(t, 32, 24)
	r := bufio.NewReader(bytes.NewReader(data[:len(data)-2]))

	if _, err := readJPEG(r); err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestBuildArgs(t *testing.T) {
	cases := []struct {
		name       string
		source     string
		wantPrefix []string
	}{
		{
			"v4l2 device",
			"/dev/video0",
			[]string{"-hide_banner", "-loglevel", "error", "-f", "v4l2", "-i", "/dev/video0"},
		},
		{
			"rtsp stream",
			"rtsp://cam.local/stream",
			[]string{"-hide_banner", "-loglevel", "error", "-rtsp_transport", "tcp", "-i", "rtsp://cam.local/stream"},
		},
		{
			"plain url",
			"http://cam.local/video.mjpg",
			[]string{"-hide_banner", "-loglevel", "error", "-i", "http://cam.local/video.mjpg"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewFFmpegSource(tc.source, 10, 500)
			args := s.buildArgs()

			if len(args) < len(tc.wantPrefix) {
				t.Fatalf("args too short: %v", args)
			}
			if !reflect.DeepEqual(args[:len(tc.wantPrefix)], tc.wantPrefix) {
				t.Errorf("args prefix = %v, want %v", args[:len(tc.wantPrefix)], tc.wantPrefix)
			}
			if args[len(args)-1] != "-" {
				t.Errorf("output must be stdout, got %q", args[len(args)-1])
			}
		})
	}
}

func TestHTTPSourceReadsSnapshots(t *testing.T) {
	payload := encodeJPEG(t, 64, 48)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(payload)
	}))
	defer srv.Close()

	s := NewHTTPSource(srv.URL, 50)
	ctx := context.Background()

	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	frame, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if frame.Width != 64 || frame.Height != 48 {
		t.Errorf("frame = %dx%d, want 64x48", frame.Width, frame.Height)
	}
	if frame.Image == nil || len(frame.Data) == 0 {
		t.Error("frame missing decoded image or raw data")
	}
}

func TestHTTPSourceOpenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewHTTPSource(srv.URL, 10)
	if err := s.Open(context.Background()); err == nil {
		t.Fatal("expected error for unreachable snapshot endpoint")
	}
}

func TestHTTPSourceReadHonorsContext(t *testing.T) {
	payload := encodeJPEG(t, 8, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	s := NewHTTPSource(srv.URL, 1)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := s.Read(ctx); err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}
