package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, nil)
	err := n.Send(context.Background(), Alert{
		Level:   AlertWarning,
		Title:   "Order rejected",
		Message: "Insufficient funds",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["level"] != "WARNING" || got["title"] != "Order rejected" {
		t.Errorf("payload = %v", got)
	}
	if got["ts"] == "" {
		t.Error("timestamp missing from payload")
	}
}

func TestWebhookNotifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, nil)
	if err := n.Send(context.Background(), Alert{Title: "x"}); err == nil {
		t.Fatal("Send succeeded against a 502 endpoint")
	}
}

func TestTelegramNotifier_Send(t *testing.T) {
	var path string
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("test-token", "42", nil)
	n.baseURL = srv.URL
	if err := n.Send(context.Background(), Alert{Level: AlertInfo, Title: "Session done", Message: "2 orders"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/bottest-token/sendMessage" {
		t.Errorf("path = %q", path)
	}
	if payload["chat_id"] != "42" {
		t.Errorf("chat_id = %v, want 42", payload["chat_id"])
	}
}

type failingNotifier struct{ err error }

func (f failingNotifier) Send(context.Context, Alert) error { return f.err }

func TestMulti_ReturnsFirstErrorButTriesAll(t *testing.T) {
	calls := 0
	counting := notifierFunc(func(context.Context, Alert) error { calls++; return nil })
	boom := errors.New("boom")

	m := Multi{failingNotifier{boom}, counting}
	if err := m.Send(context.Background(), Alert{}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("second notifier called %d times, want 1", calls)
	}
}

type notifierFunc func(context.Context, Alert) error

func (f notifierFunc) Send(ctx context.Context, a Alert) error { return f(ctx, a) }
