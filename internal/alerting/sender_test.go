package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func telegramServer(t *testing.T, onSend func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok":     true,
				"result": map[string]any{"id": 1, "is_bot": true, "first_name": "watcher", "username": "watcher_bot"},
			})
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			onSend(w, r)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
}

func TestTelegramSenderSuccess(t *testing.T) {
	var chatID, text string
	srv := telegramServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		chatID = r.PostForm.Get("chat_id")
		text = r.PostForm.Get("text")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 7, "date": 0, "chat": map[string]any{"id": 42, "type": "private"}},
		})
	})
	defer srv.Close()

	sender, err := NewTelegramSender("token", "42", srv.URL, time.Second, testLogger())
	if err != nil {
		t.Fatalf("NewTelegramSender: %v", err)
	}
	if err := sender.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Telegram Send 应成功: %v", err)
	}
	if chatID != "42" {
		t.Fatalf("chat_id 不正确: %q", chatID)
	}
	if text != "hello" {
		t.Fatalf("text 不正确: %q", text)
	}
}

func TestTelegramSenderRateLimited(t *testing.T) {
	srv := telegramServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"error_code":  429,
			"description": "Too Many Requests: retry after 3",
			"parameters":  map[string]any{"retry_after": 3},
		})
	})
	defer srv.Close()

	sender, err := NewTelegramSender("token", "42", srv.URL, time.Second, testLogger())
	if err != nil {
		t.Fatalf("NewTelegramSender: %v", err)
	}
	err = sender.Send(context.Background(), "hello")
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("429 应转换为 RateLimitError, 实际 %v", err)
	}
	if rl.RetryAfter != 3*time.Second {
		t.Fatalf("retry after = %s", rl.RetryAfter)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Fatal("RateLimitError should unwrap to ErrRateLimited")
	}
}

func TestTelegramSenderError(t *testing.T) {
	srv := telegramServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 400, "description": "chat not found"})
	})
	defer srv.Close()

	sender, err := NewTelegramSender("token", "42", srv.URL, time.Second, testLogger())
	if err != nil {
		t.Fatalf("NewTelegramSender: %v", err)
	}
	err = sender.Send(context.Background(), "hello")
	if err == nil {
		t.Fatal("ok=false 应报错")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Fatal("a plain API error is not a rate limit")
	}
}

func TestTelegramSenderRequiresCredentials(t *testing.T) {
	if _, err := NewTelegramSender("", "42", "", time.Second, testLogger()); err == nil {
		t.Fatal("缺少 token 时应报错")
	}
	if _, err := NewTelegramSender("token", "", "", time.Second, testLogger()); err == nil {
		t.Fatal("缺少 chat id 时应报错")
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
