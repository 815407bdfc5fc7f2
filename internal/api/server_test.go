package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sentrycam/sentrycam/internal/capture"
	"github.com/sentrycam/sentrycam/internal/config"
	"github.com/sentrycam/sentrycam/internal/recording"
)

type discardSink struct{}

func (discardSink) Write(*capture.Frame) error { return nil }
func (discardSink) Path() string               { return "" }
func (discardSink) Close() error               { return nil }

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.System.StoragePath = dir
	cfg.Monitoring.StartHour = 22
	cfg.Monitoring.EndHour = 6

	controller := recording.NewController(recording.ControllerConfig{
		StoragePath: dir,
		Window:      recording.MonitoringWindow{Start: 22, End: 6},
		GracePeriod: time.Minute,
	}, func(path string, width, height, fps int) (recording.VideoSink, error) {
		return discardSink{}, nil
	}, nil, nil)

	scheduler := recording.NewRetentionScheduler(dir, 7, 6, nil)

	return NewServer(cfg, controller, scheduler, nil), dir
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorInfo      `json:"error"`
}

func doGet(t *testing.T, srv *httptest.Server, path string) envelope {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", path, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	return env
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	env := doGet(t, srv, "/api/health")
	if !env.Success {
		t.Fatalf("health not ok: %+v", env)
	}
}

func TestStatusReflectsWindow(t *testing.T) {
	cases := []struct {
		name       string
		hour       int
		wantActive bool
		wantLabel  string
	}{
		{"inside window", 23, true, "MONITORING ACTIVE"},
		{"outside window", 12, false, "MONITORING INACTIVE"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			s.now = func() time.Time {
				return time.Date(2026, 3, 10, tc.hour, 0, 0, 0, time.Local)
			}
			srv := httptest.NewServer(s.Router())
			defer srv.Close()

			env := doGet(t, srv, "/api/status")

			var status struct {
				Monitoring       string `json:"monitoring"`
				MonitoringActive bool   `json:"monitoring_active"`
				Recorder         struct {
					State string `json:"state"`
				} `json:"recorder"`
			}
			if err := json.Unmarshal(env.Data, &status); err != nil {
				t.Fatal(err)
			}

			if status.MonitoringActive != tc.wantActive {
				t.Errorf("monitoring_active = %v, want %v", status.MonitoringActive, tc.wantActive)
			}
			if status.Monitoring != tc.wantLabel {
				t.Errorf("monitoring = %q, want %q", status.Monitoring, tc.wantLabel)
			}
			if status.Recorder.State != "idle" {
				t.Errorf("recorder state = %q, want idle", status.Recorder.State)
			}
		})
	}
}

func TestRecordingsListsOnlyRecordings(t *testing.T) {
	s, dir := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	for _, name := range []string{"recording_20260310_231500.mp4", "recording_20260311_002000.mp4", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	env := doGet(t, srv, "/api/recordings")

	var files []RecordingFile
	if err := json.Unmarshal(env.Data, &files); err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2", len(files))
	}
	for _, f := range files {
		if f.Size != 1 {
			t.Errorf("size = %d, want 1", f.Size)
		}
	}
}

func TestEventsWithoutStore(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	env := doGet(t, srv, "/api/events")

	var records []json.RawMessage
	if err := json.Unmarshal(env.Data, &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0", len(records))
	}
}

func TestCleanupEndpoint(t *testing.T) {
	s, dir := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	old := filepath.Join(dir, "recording_20260201_220000.mp4")
	if err := os.WriteFile(old, []byte("xx"), 0644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Now().Add(-10 * 24 * time.Hour)
	if err := os.Chtimes(old, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	resp, err := srv.Client().Post(srv.URL+"/api/cleanup", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}

	var stats recording.CleanupEvent
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.FilesDeleted != 1 {
		t.Errorf("files deleted = %d, want 1", stats.FilesDeleted)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("expired recording still on disk")
	}
}
