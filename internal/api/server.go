// Package api provides the HTTP status API and live event feed
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nats-io/nats.go"

	"github.com/sentrycam/sentrycam/internal/bus"
	"github.com/sentrycam/sentrycam/internal/config"
	"github.com/sentrycam/sentrycam/internal/events"
	"github.com/sentrycam/sentrycam/internal/monitor"
	"github.com/sentrycam/sentrycam/internal/recording"
)

// Server exposes monitor status, recording history and a live event feed.
// It replaces the on-screen preview of a desktop deployment.
type Server struct {
	cfg        *config.Config
	controller *recording.Controller
	scheduler  *recording.RetentionScheduler
	store      *events.Store
	hub        *Hub

	httpServer *http.Server
	startedAt  time.Time
	now        func() time.Time
	logger     *slog.Logger
}

// RecordingFile describes one recording on disk
type RecordingFile struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// NewServer creates the API server. store may be nil.
func NewServer(
	cfg *config.Config,
	controller *recording.Controller,
	scheduler *recording.RetentionScheduler,
	store *events.Store,
) *Server {
	return &Server{
		cfg:        cfg,
		controller: controller,
		scheduler:  scheduler,
		store:      store,
		hub:        NewHub(),
		startedAt:  time.Now(),
		now:        time.Now,
		logger:     slog.Default().With("component", "api"),
	}
}

// AttachBus bridges bus events onto the websocket feed
func (s *Server) AttachBus(b *bus.Bus) error {
	bridge := func(subject, msgType string) error {
		_, err := b.Subscribe(subject, func(msg *nats.Msg) {
			var data interface{}
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				s.logger.Error("Failed to unmarshal bus message", "subject", subject, "error", err)
				return
			}
			s.hub.Broadcast(msgType, data)
		})
		return err
	}

	if err := bridge(monitor.SubjectMotionDetected, "motion"); err != nil {
		return err
	}
	if err := bridge(recording.SubjectSessionStarted, "session_started"); err != nil {
		return err
	}
	if err := bridge(recording.SubjectSessionStopped, "session_stopped"); err != nil {
		return err
	}
	return bridge(recording.SubjectCleanupDone, "cleanup")
}

// Router builds the HTTP router
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/recordings", s.handleRecordings)
		r.Get("/events", s.handleEvents)
		r.Post("/cleanup", s.handleCleanup)
		r.Get("/ws", s.hub.ServeWS)
	})

	return r
}

// Start runs the HTTP server until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.API.Address, s.cfg.API.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		s.hub.Close()
	}()

	s.logger.Info("API server starting", "address", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	OK(w, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Seconds(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	window := recording.MonitoringWindow{
		Start: s.cfg.Monitoring.StartHour,
		End:   s.cfg.Monitoring.EndHour,
	}
	active := window.Contains(s.now())

	status := "MONITORING INACTIVE"
	if active {
		status = "MONITORING ACTIVE"
	}

	OK(w, map[string]interface{}{
		"monitoring":        status,
		"monitoring_active": active,
		"window":            map[string]int{"start_hour": window.Start, "end_hour": window.End},
		"recorder":          s.controller.Status(),
		"next_cleanup":      s.scheduler.NextRun(s.now()),
	})
}

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.cfg.System.StoragePath)
	if err != nil {
		InternalError(w, "failed to scan recordings directory")
		return
	}

	files := []RecordingFile{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "recording_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, RecordingFile{
			Name:       filepath.Base(entry.Name()),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	OK(w, files)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		OK(w, []events.SessionRecord{})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	records, err := s.store.List(r.Context(), limit)
	if err != nil {
		InternalError(w, "failed to list events")
		return
	}
	OK(w, records)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	stats, err := s.scheduler.RunCleanup(r.Context())
	if err != nil {
		InternalError(w, err.Error())
		return
	}
	OK(w, stats)
}
