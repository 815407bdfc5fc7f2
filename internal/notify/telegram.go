// Package notify delivers alert photos to a Telegram chat
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Telegram pushes photos to a chat via the Bot API sendPhoto method.
// Delivery is fire-and-forget: one multipart POST, no retry.
type Telegram struct {
	apiBase    string
	botToken   string
	chatID     string
	topicID    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds Telegram credentials
type Config struct {
	BotToken string
	ChatID   string
	TopicID  string // optional forum sub-topic
	APIBase  string // optional override, used by tests
}

// NewTelegram creates a Telegram notifier
func NewTelegram(cfg Config) *Telegram {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Telegram{
		apiBase:  apiBase,
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		topicID:  cfg.TopicID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default().With("component", "notify"),
	}
}

// SendPhoto uploads a local image with a caption. A non-2xx response or
// network failure is returned as an error for the caller to log and drop.
func (t *Telegram) SendPhoto(ctx context.Context, imagePath, caption string) error {
	photo, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("failed to open photo: %w", err)
	}
	defer photo.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("photo", filepath.Base(imagePath))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, photo); err != nil {
		return fmt.Errorf("failed to copy photo: %w", err)
	}

	_ = writer.WriteField("chat_id", t.chatID)
	_ = writer.WriteField("caption", caption)
	if t.topicID != "" {
		_ = writer.WriteField("message_thread_id", t.topicID)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendPhoto", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("telegram send failed: status %d: %s", resp.StatusCode, string(respBody))
	}

	t.logger.Info("Alert photo delivered", "chat_id", t.chatID)
	return nil
}
