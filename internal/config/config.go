// Package config provides configuration management for the monitor
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the main monitor configuration.
// Loaded once at startup and read-only for the life of the process.
type Config struct {
	System     SystemConfig     `yaml:"system"`
	Camera     CameraConfig     `yaml:"camera"`
	Motion     MotionConfig     `yaml:"motion"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Recording  RecordingConfig  `yaml:"recording"`
	Retention  RetentionConfig  `yaml:"retention"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	API        APIConfig        `yaml:"api"`
	Bus        BusConfig        `yaml:"bus"`
}

// SystemConfig holds system-wide settings
type SystemConfig struct {
	Name        string        `yaml:"name"`
	StoragePath string        `yaml:"storage_path"`
	Database    string        `yaml:"database"`
	Logging     LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CameraConfig holds capture device settings
type CameraConfig struct {
	// Source is an ffmpeg-readable input: a V4L2 device path
	// (/dev/video0), an RTSP/HTTP stream URL, or with Type "http" a
	// JPEG snapshot endpoint polled at FPS.
	Source string `yaml:"source"`
	Type   string `yaml:"type"` // ffmpeg (default) or http
	FPS    int    `yaml:"fps"`
	Width  int    `yaml:"width"` // frames are scaled to this width before analysis
}

// MotionConfig holds motion detection sensitivity settings
type MotionConfig struct {
	Threshold      int `yaml:"threshold"`        // per-pixel luma delta 0-255
	MinContourArea int `yaml:"min_contour_area"` // pixels
}

// MonitoringConfig holds the daily monitoring window bounds.
// The window may wrap past midnight: start_hour > end_hour means
// [start_hour,24) plus [0,end_hour).
type MonitoringConfig struct {
	StartHour int `yaml:"start_hour"`
	EndHour   int `yaml:"end_hour"`
}

// RecordingConfig holds recording settings
type RecordingConfig struct {
	FPS                int    `yaml:"fps"`
	GracePeriodSeconds int    `yaml:"grace_period_seconds"`
	Container          string `yaml:"container"` // mp4 (default), mkv, avi
}

// RetentionConfig holds retention settings
type RetentionConfig struct {
	Days    int `yaml:"days"`
	RunHour int `yaml:"run_hour"` // daily cleanup hour, local time
}

// TelegramConfig holds notification credentials
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	TopicID  string `yaml:"topic_id,omitempty"`
	// APIBase overrides https://api.telegram.org, used by tests
	APIBase string `yaml:"api_base,omitempty"`
}

// APIConfig holds the status API settings
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// BusConfig holds the embedded event bus settings
type BusConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default values for unset fields
func (c *Config) setDefaults() {
	if c.System.Name == "" {
		c.System.Name = "sentrycam"
	}
	if c.System.StoragePath == "" {
		c.System.StoragePath = "."
	}
	if c.System.Database == "" {
		c.System.Database = filepath.Join(c.System.StoragePath, "sentrycam.db")
	}
	if c.System.Logging.Level == "" {
		c.System.Logging.Level = "info"
	}
	if c.System.Logging.Format == "" {
		c.System.Logging.Format = "json"
	}
	if c.Camera.Source == "" {
		c.Camera.Source = "/dev/video0"
	}
	if c.Camera.Type == "" {
		c.Camera.Type = "ffmpeg"
	}
	if c.Camera.FPS <= 0 {
		c.Camera.FPS = 10
	}
	if c.Camera.Width <= 0 {
		c.Camera.Width = 500
	}
	if c.Motion.Threshold <= 0 {
		c.Motion.Threshold = 25
	}
	if c.Motion.MinContourArea <= 0 {
		c.Motion.MinContourArea = 500
	}
	if c.Monitoring.StartHour == 0 && c.Monitoring.EndHour == 0 {
		c.Monitoring.StartHour = 22
		c.Monitoring.EndHour = 6
	}
	if c.Recording.FPS <= 0 {
		c.Recording.FPS = 20
	}
	if c.Recording.GracePeriodSeconds <= 0 {
		c.Recording.GracePeriodSeconds = 60
	}
	if c.Recording.Container == "" {
		c.Recording.Container = "mp4"
	}
	if c.Retention.Days <= 0 {
		c.Retention.Days = 7
	}
	if c.Retention.RunHour == 0 {
		c.Retention.RunHour = 6
	}
	if c.API.Address == "" {
		c.API.Address = "127.0.0.1"
	}
	if c.API.Port == 0 {
		c.API.Port = 8470
	}
	if c.Bus.Host == "" {
		c.Bus.Host = "127.0.0.1"
	}
	if c.Bus.Port == 0 {
		c.Bus.Port = 12101
	}
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Monitoring.StartHour < 0 || c.Monitoring.StartHour > 23 {
		return fmt.Errorf("monitoring.start_hour must be in [0,24): got %d", c.Monitoring.StartHour)
	}
	if c.Monitoring.EndHour < 0 || c.Monitoring.EndHour > 23 {
		return fmt.Errorf("monitoring.end_hour must be in [0,24): got %d", c.Monitoring.EndHour)
	}
	if c.Retention.RunHour < 0 || c.Retention.RunHour > 23 {
		return fmt.Errorf("retention.run_hour must be in [0,24): got %d", c.Retention.RunHour)
	}
	if c.Motion.Threshold > 255 {
		return fmt.Errorf("motion.threshold must be in [1,255]: got %d", c.Motion.Threshold)
	}
	if c.Camera.Type != "ffmpeg" && c.Camera.Type != "http" {
		return fmt.Errorf("camera.type must be ffmpeg or http: got %q", c.Camera.Type)
	}
	switch c.Recording.Container {
	case "mp4", "mkv", "avi":
	default:
		return fmt.Errorf("recording.container must be mp4, mkv or avi: got %q", c.Recording.Container)
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}
	return nil
}

// NotificationsEnabled reports whether Telegram credentials are configured
func (c *Config) NotificationsEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
