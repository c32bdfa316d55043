package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dailytrader/internal/indicator"
	"dailytrader/internal/model"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIConfig configures the OpenAI-backed advisor.
type OpenAIConfig struct {
	APIKey  string
	Model   string // defaults to gpt-4o-mini
	BaseURL string
	Timeout time.Duration
}

// OpenAI implements Advisor and SentimentAnalyzer over the OpenAI
// chat-completions API.
type OpenAI struct {
	cfg    OpenAIConfig
	client *http.Client
	log    *slog.Logger
}

// NewOpenAI creates an OpenAI advisor. The API key is required.
func NewOpenAI(cfg OpenAIConfig, log *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &OpenAI{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Advise asks the model for a trading decision on a symbol given the recent
// window and the indicator snapshot. The response is parsed leniently: if
// the model does not return valid JSON, a keyword fallback keeps the advice
// usable.
func (o *OpenAI) Advise(ctx context.Context, symbol string, bars []model.Bar, snap indicator.Snapshot) (Advice, error) {
	prompt := buildAdvicePrompt(symbol, bars, snap)

	content, err := o.chat(ctx, []chatMessage{
		{
			Role: "system",
			Content: "You are a trading signal generator. Reply with a JSON object " +
				`containing "action" (one of buy, sell, hold), "confidence" (0 to 1), ` +
				`and "reasoning" (one sentence).`,
		},
		{Role: "user", Content: prompt},
	}, 0.3)
	if err != nil {
		return Advice{}, err
	}

	return parseAdvice(content), nil
}

// AnalyzeSentiment scores a piece of text such as a headline.
func (o *OpenAI) AnalyzeSentiment(ctx context.Context, text string) (Sentiment, error) {
	content, err := o.chat(ctx, []chatMessage{
		{
			Role: "system",
			Content: "You are a financial sentiment analyzer. Reply with a JSON object " +
				`containing "score" (-1 to 1), "label" (positive, negative or neutral), ` +
				`and "confidence" (0 to 1).`,
		},
		{Role: "user", Content: "Analyze the sentiment of this text: " + text},
	}, 0.3)
	if err != nil {
		return Sentiment{}, err
	}

	var s Sentiment
	if err := json.Unmarshal([]byte(extractJSON(content)), &s); err == nil && s.Label != "" {
		return s, nil
	}

	// Keyword fallback for non-JSON answers.
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "positive"):
		return Sentiment{Score: 0.5, Label: "positive", Confidence: 0.6}, nil
	case strings.Contains(lower, "negative"):
		return Sentiment{Score: -0.5, Label: "negative", Confidence: 0.6}, nil
	default:
		return Sentiment{Score: 0, Label: "neutral", Confidence: 0.5}, nil
	}
}

func (o *OpenAI) chat(ctx context.Context, messages []chatMessage, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       o.cfg.Model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(o.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	defer resp.Body.Close()

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("openai: %s: %s", cr.Error.Type, cr.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai: status %d", resp.StatusCode)
	}
	if len(cr.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	return cr.Choices[0].Message.Content, nil
}

// buildAdvicePrompt summarizes the window and snapshot for the model.
func buildAdvicePrompt(symbol string, bars []model.Bar, snap indicator.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s\n", symbol)
	fmt.Fprintf(&b, "Current price: %.2f\n", snap.CurrentPrice)
	if n := len(bars); n > 0 {
		fmt.Fprintf(&b, "Window: %d daily bars ending %s\n",
			n, bars[n-1].Date.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "SMA(10): %.2f  SMA(20): %.2f  EMA(10): %.2f\n",
		snap.SMAShort, snap.SMALong, snap.EMAShort)
	fmt.Fprintf(&b, "Momentum: %.2f%%  Volume ratio: %.2f  Volatility: %.2f%%\n",
		snap.Momentum, snap.VolumeRatio, snap.Volatility)
	fmt.Fprintf(&b, "RSI(14): %.2f  MACD: %.4f  MACD signal: %.4f\n",
		snap.RSI, snap.MACD, snap.MACDSignal)
	fmt.Fprintf(&b, "Bollinger: %.2f / %.2f / %.2f\n",
		snap.BBLower, snap.BBMiddle, snap.BBUpper)
	b.WriteString("Propose a trading action for the next session.")
	return b.String()
}

// parseAdvice decodes the model's answer, accepting fenced or prefixed JSON
// and falling back to keyword detection.
func parseAdvice(content string) Advice {
	var raw struct {
		Action     string  `json:"action"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &raw); err == nil {
		if a, ok := parseAction(raw.Action); ok {
			return Advice{Action: a, Confidence: raw.Confidence, Reasoning: raw.Reasoning}
		}
	}

	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "buy"):
		return Advice{Action: model.ActionBuy, Confidence: 0.5, Reasoning: content}
	case strings.Contains(lower, "sell"):
		return Advice{Action: model.ActionSell, Confidence: 0.5, Reasoning: content}
	default:
		return Advice{Action: model.ActionHold, Confidence: 0.5, Reasoning: content}
	}
}

func parseAction(s string) (model.Action, bool) {
	switch model.Action(strings.ToLower(strings.TrimSpace(s))) {
	case model.ActionBuy:
		return model.ActionBuy, true
	case model.ActionSell:
		return model.ActionSell, true
	case model.ActionHold:
		return model.ActionHold, true
	default:
		return "", false
	}
}

// extractJSON strips markdown code fences and surrounding prose, returning
// the first top-level JSON object in the content.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			return s[i : j+1]
		}
	}
	return s
}
