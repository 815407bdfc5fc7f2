package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writePhoto(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.jpg")
	if err := os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSendPhoto(t *testing.T) {
	var gotPath string
	var gotForm map[string]string
	var gotPhoto []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		gotForm = map[string]string{}
		for key, vals := range r.MultipartForm.Value {
			gotForm[key] = vals[0]
		}
		file, _, err := r.FormFile("photo")
		if err != nil {
			t.Errorf("photo part missing: %v", err)
		} else {
			buf := make([]byte, 16)
			n, _ := file.Read(buf)
			gotPhoto = buf[:n]
			file.Close()
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(Config{
		BotToken: "123:abc",
		ChatID:   "-100200300",
		APIBase:  srv.URL,
	})

	if err := tg.SendPhoto(context.Background(), writePhoto(t), "🚨 Motion detected!"); err != nil {
		t.Fatalf("SendPhoto: %v", err)
	}

	if gotPath != "/bot123:abc/sendPhoto" {
		t.Errorf("path = %q", gotPath)
	}
	if gotForm["chat_id"] != "-100200300" {
		t.Errorf("chat_id = %q", gotForm["chat_id"])
	}
	if gotForm["caption"] != "🚨 Motion detected!" {
		t.Errorf("caption = %q", gotForm["caption"])
	}
	if _, ok := gotForm["message_thread_id"]; ok {
		t.Error("message_thread_id sent without a topic configured")
	}
	if len(gotPhoto) != 4 || gotPhoto[0] != 0xFF {
		t.Errorf("photo payload = %v", gotPhoto)
	}
}

func TestSendPhotoWithTopic(t *testing.T) {
	var gotThread string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		gotThread = r.FormValue("message_thread_id")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(Config{
		BotToken: "123:abc",
		ChatID:   "-100200300",
		TopicID:  "42",
		APIBase:  srv.URL,
	})

	if err := tg.SendPhoto(context.Background(), writePhoto(t), "caption"); err != nil {
		t.Fatalf("SendPhoto: %v", err)
	}
	if gotThread != "42" {
		t.Errorf("message_thread_id = %q, want 42", gotThread)
	}
}

func TestSendPhotoAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	tg := NewTelegram(Config{BotToken: "123:abc", ChatID: "bad", APIBase: srv.URL})

	err := tg.SendPhoto(context.Background(), writePhoto(t), "caption")
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestSendPhotoMissingFile(t *testing.T) {
	tg := NewTelegram(Config{BotToken: "123:abc", ChatID: "c"})

	err := tg.SendPhoto(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"), "caption")
	if err == nil {
		t.Fatal("expected error for missing photo file")
	}
}
