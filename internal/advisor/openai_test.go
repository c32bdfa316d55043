package advisor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"dailytrader/internal/indicator"
	"dailytrader/internal/model"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, content)
	}))
}

func newTestAdvisor(t *testing.T, srvURL string) *OpenAI {
	t.Helper()
	o, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srvURL}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestAdvise_ParsesJSON(t *testing.T) {
	srv := chatServer(t, `{"action":"buy","confidence":0.8,"reasoning":"uptrend intact"}`)
	defer srv.Close()

	advice, err := newTestAdvisor(t, srv.URL).Advise(context.Background(), "ACME", nil, indicator.Snapshot{})
	if err != nil {
		t.Fatal(err)
	}
	if advice.Action != model.ActionBuy {
		t.Errorf("expected buy, got %s", advice.Action)
	}
	if advice.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", advice.Confidence)
	}
}

func TestAdvise_FencedJSON(t *testing.T) {
	srv := chatServer(t, "```json\n{\"action\":\"sell\",\"confidence\":0.6,\"reasoning\":\"momentum fading\"}\n```")
	defer srv.Close()

	advice, err := newTestAdvisor(t, srv.URL).Advise(context.Background(), "ACME", nil, indicator.Snapshot{})
	if err != nil {
		t.Fatal(err)
	}
	if advice.Action != model.ActionSell {
		t.Errorf("expected sell, got %s", advice.Action)
	}
}

func TestAdvise_KeywordFallback(t *testing.T) {
	srv := chatServer(t, "I would buy this dip, the trend looks strong.")
	defer srv.Close()

	advice, err := newTestAdvisor(t, srv.URL).Advise(context.Background(), "ACME", nil, indicator.Snapshot{})
	if err != nil {
		t.Fatal(err)
	}
	if advice.Action != model.ActionBuy {
		t.Errorf("expected keyword-detected buy, got %s", advice.Action)
	}
	if advice.Confidence != 0.5 {
		t.Errorf("expected fallback confidence 0.5, got %v", advice.Confidence)
	}
}

func TestAdvise_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limit","type":"rate_limit_error"}}`)
	}))
	defer srv.Close()

	_, err := newTestAdvisor(t, srv.URL).Advise(context.Background(), "ACME", nil, indicator.Snapshot{})
	if err == nil {
		t.Fatal("expected error from API failure")
	}
}

func TestAnalyzeSentiment(t *testing.T) {
	srv := chatServer(t, `{"score":-0.7,"label":"negative","confidence":0.9}`)
	defer srv.Close()

	s, err := newTestAdvisor(t, srv.URL).AnalyzeSentiment(context.Background(), "earnings miss, guidance cut")
	if err != nil {
		t.Fatal(err)
	}
	if s.Label != "negative" || s.Score != -0.7 {
		t.Errorf("unexpected sentiment %+v", s)
	}
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	if _, err := NewOpenAI(OpenAIConfig{}, nil); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
